package engine

import (
	"fmt"

	"github.com/oarkflow/migrator/schema"
)

// PlanWarning is a non-fatal issue the planner surfaces without aborting.
type PlanWarning struct {
	Message string
}

// Plan builds the next MigrationGroup from a refreshed InfoService:
//
//	group := empty ordered map
//	for each pendingMigration in infoService.pending():
//	    if appliedResolvedMigrations already contains this resolved entry: continue
//	    isOutOfOrder := pending.version != null && pending.version < currentVersion
//	    group.put(pending, isOutOfOrder)
//	    if not configuration.group: break
//	return group
//
// plus the group's transactional-mode reduction and the pre-execution
// policy checks (mixed-transaction guard, failed-migration guard, DDL-
// transaction-support warning).
func Plan(info *InfoService, cfg Configuration, ddlTransactional bool, appliedResolvedMigrations map[string]bool) (schema.MigrationGroup, bool, []PlanWarning, error) {
	var group schema.MigrationGroup
	var warnings []PlanWarning

	if failed := info.Failed(); len(failed) > 0 {
		unignored := failed[:0:0]
		for _, f := range failed {
			if f.State == schema.StateFutureFailed && cfg.IgnoreMigrationPatterns.AnyMatches(f.Versioned(), schema.StateFutureFailed) {
				continue
			}
			unignored = append(unignored, f)
		}
		if len(unignored) > 0 {
			return group, false, warnings, &schema.MigrationError{
				Kind:      schema.KindFailedMigrationPresent,
				Migration: &unignored[0],
			}
		}
	}

	if future := info.Future(); len(future) > 0 {
		downgraded := true
		for _, f := range future {
			if !cfg.IgnoreMigrationPatterns.AnyMatches(f.Versioned(), f.State) {
				downgraded = false
				break
			}
		}
		if !downgraded {
			warnings = append(warnings, PlanWarning{Message: fmt.Sprintf("%d migration(s) were found in schema history that are not resolved locally", len(future))})
		}
	}

	if cfg.Group && !ddlTransactional {
		warnings = append(warnings, PlanWarning{Message: "database does not support DDL transactions; configuration.group will not be fully transactional"})
	}

	current := schema.Empty
	if c := info.Current(); c != nil {
		current = c.Version()
	}

	for _, pending := range info.Pending() {
		key := pending.Resolved.Identifier()
		if appliedResolvedMigrations[key] {
			continue
		}
		outOfOrder := pending.Versioned() && !pending.Version().IsEmpty() && pending.Version().Less(current)
		group.Put(pending, outOfOrder)
		if !cfg.Group {
			break
		}
	}

	transactional, err := groupTransactionalMode(group, cfg)
	if err != nil {
		return group, false, warnings, err
	}
	return group, transactional, warnings, nil
}

// groupTransactionalMode reduces CanExecuteInTransaction across the
// group's members: all-true is transactional, all-false is
// non-transactional, mixed fails unless configuration.mixed=true (in
// which case the group runs non-transactionally).
func groupTransactionalMode(group schema.MigrationGroup, cfg Configuration) (bool, error) {
	entries := group.Entries()
	if len(entries) == 0 {
		return true, nil
	}
	allTrue, allFalse := true, true
	for _, e := range entries {
		if e.Info.Resolved == nil || e.Info.Resolved.Executor == nil {
			continue
		}
		if e.Info.Resolved.Executor.CanExecuteInTransaction() {
			allFalse = false
		} else {
			allTrue = false
		}
	}
	switch {
	case allTrue:
		return true, nil
	case allFalse:
		return false, nil
	case cfg.Mixed:
		return false, nil
	default:
		first := entries[0].Info
		for _, e := range entries {
			if e.Info.Resolved != nil && e.Info.Resolved.Executor != nil && !e.Info.Resolved.Executor.CanExecuteInTransaction() {
				first = e.Info
				break
			}
		}
		return false, &schema.MigrationError{Kind: schema.KindMixedTransactional, Migration: &first}
	}
}
