// migrate.go implements the top-level Migration Executor: the migrate()
// orchestrator and its per-group, per-migration inner loop
// (doMigrateGroup), threading the mutable run state explicitly through
// each call instead of holding it on engine fields.
package engine

import (
	"context"
	"time"

	"github.com/oarkflow/migrator/schema"
)

// RunState is the per-invocation mutable state threaded through the loop
// rather than held as instance fields: appliedResolvedMigrations (so a
// migration already applied by an earlier group in this run is never
// reconsidered), the versioned→repeatable boundary flag, the
// single-connection auto-commit quirk flag, and the MigrateResult
// accumulator.
type RunState struct {
	appliedResolvedMigrations map[string]bool
	firedRepeatableBoundary   bool
	outerAutoCommitOff        bool
	result                    *schema.MigrateResult
}

// nowFunc is a seam for tests; production uses time.Now.
var nowFunc = time.Now

// Migrate is the top-level orchestrator (C6): acquire the schema-history
// lock (once for the whole run under configuration.group, per iteration
// otherwise), drive iterations until an empty group or a single NEXT-target
// pass, firing lifecycle callbacks and assembling the structured result.
func (e *Engine) Migrate(ctx context.Context) (*schema.MigrateResult, error) {
	e.callbacks.fire(BeforeMigrate, "")

	result := &schema.MigrateResult{
		SchemaName:    e.Configuration.SchemaName,
		Database:      e.DatabaseName,
		EngineVersion: e.Configuration.EngineVersion,
		Success:       true,
	}
	state := &RunState{
		appliedResolvedMigrations: map[string]bool{},
		outerAutoCommitOff:        e.Configuration.Group && e.Dialect.UseSingleConnection(),
		result:                    result,
	}

	migrateErr := e.runMigrate(ctx, state)

	if c := e.Info.Current(); c != nil {
		result.TargetSchemaVersion = c.Version().String()
	}

	if migrateErr != nil {
		result.Success = false
		e.callbacks.fire(AfterMigrateError, "")
		e.callbacks.fire(AfterMigrate, "")
		return result, migrateErr
	}
	if result.MigrationsExecuted > 0 {
		e.callbacks.fire(AfterMigrateApplied, "")
	}
	e.callbacks.fire(AfterMigrate, "")
	return result, nil
}

func (e *Engine) runMigrate(ctx context.Context, state *RunState) error {
	if err := e.History.Create(ctx); err != nil {
		return err
	}
	if err := e.Info.Refresh(ctx); err != nil {
		return err
	}
	if c := e.Info.Current(); c != nil {
		state.result.InitialSchemaVersion = c.Version().String()
	}

	tx, err := e.Connections.Acquire(ctx)
	if err != nil {
		return err
	}
	defer e.Connections.Release(tx)

	runOnce := func() (done bool, err error) {
		if err := e.Info.Refresh(ctx); err != nil {
			return false, err
		}
		group, transactional, warnings, err := Plan(e.Info, e.Configuration, e.Dialect.SupportsDdlTransactions(), state.appliedResolvedMigrations)
		for _, w := range warnings {
			state.result.Warnings = append(state.result.Warnings, w.Message)
			e.logger().Warn(w.Message, nil)
		}
		if err != nil {
			return false, err
		}
		if group.Empty() {
			return true, nil
		}
		e.progress().PushSteps(group.Len())
		if err := e.doMigrateGroup(ctx, tx, group, transactional, state); err != nil {
			return false, err
		}
		return false, nil
	}

	if e.Configuration.Group {
		return e.History.Lock(ctx, func() error {
			for {
				done, err := runOnce()
				if err != nil {
					return err
				}
				if done || e.Configuration.Target.Kind == TargetNext {
					return nil
				}
			}
		})
	}

	for {
		var done bool
		var runErr error
		lockErr := e.History.Lock(ctx, func() error {
			done, runErr = runOnce()
			return runErr
		})
		if lockErr != nil {
			return lockErr
		}
		if done || e.Configuration.Target.Kind == TargetNext {
			return nil
		}
	}
}

// doMigrateGroup runs one MigrationGroup's members in order under
// executeTemplate's transactional boundary.
func (e *Engine) doMigrateGroup(ctx context.Context, tx Transactor, group schema.MigrationGroup, transactional bool, state *RunState) error {
	ddlTransactional := e.Dialect.SupportsDdlTransactions()
	// In a transactional group on a DDL-transactional dialect, success rows
	// are held until the group's transaction has committed, so a rollback
	// leaves no history row for any member of the group.
	holdRows := transactional && ddlTransactional
	var heldRows []schema.AppliedMigration

	body := func(ctx context.Context) error {
		for _, entry := range group.Entries() {
			info := entry.Info

			if !state.firedRepeatableBoundary && !info.Versioned() {
				e.callbacks.fire(AfterVersioned, "")
				e.callbacks.fire(BeforeRepeatables, "")
				state.firedRepeatableBoundary = true
			}

			e.callbacks.fire(BeforeEachMigrate, info.Identifier())
			e.progress().Starting(info.Identifier())

			if err := tx.RestoreOriginalState(ctx); err != nil {
				return err
			}
			if e.Configuration.SchemaName != "" {
				if err := tx.SetSchema(ctx, e.Configuration.SchemaName); err != nil {
					return err
				}
			}

			start := nowFunc()
			var execErr error
			if !e.Configuration.SkipExecutingMigrations && info.Resolved != nil && info.Resolved.Executor != nil {
				execErr = info.Resolved.Executor.Execute(ctx, tx.Conn())
			}
			elapsed := nowFunc().Sub(start)

			if execErr == nil {
				row := buildAppliedRow(info, true, elapsed, e.Configuration.InstalledBy)
				if holdRows {
					heldRows = append(heldRows, row)
				} else if _, err := e.History.AddAppliedMigration(ctx, row); err != nil {
					return err
				}
				state.appliedResolvedMigrations[info.Resolved.Identifier()] = true
				state.result.MigrationsExecuted++
				state.result.Migrations = append(state.result.Migrations, buildResultEntry(info, schema.StateSuccess, elapsed))
				e.callbacks.fire(AfterEachMigrate, info.Identifier())
				e.progress().Completed(info.Identifier())
				continue
			}

			e.callbacks.fire(AfterEachMigrateError, info.Identifier())
			e.progress().Failed(info.Identifier(), execErr)
			state.result.Migrations = append(state.result.Migrations, buildResultEntry(info, schema.StateFailed, elapsed))

			migErr := &schema.MigrationError{
				Kind:                    schema.KindMigrationFailed,
				Migration:               &info,
				ExecutableInTransaction: transactional && ddlTransactional,
				OutOfOrder:              entry.OutOfOrder,
				ResultSoFar:             state.result,
				Cause:                   execErr,
			}

			if transactional && ddlTransactional {
				// The outer executeTemplate rolls the whole group back;
				// the rows held for earlier entries are never written.
				return migErr
			}

			// Non-transactional: record the failure so the next run's
			// FAILED_MIGRATION_PRESENT guard sees it.
			if _, err := e.History.AddAppliedMigration(ctx, buildAppliedRow(info, false, elapsed, e.Configuration.InstalledBy)); err != nil {
				return err
			}
			return migErr
		}
		return nil
	}

	if err := executeTemplate(ctx, tx, e.Dialect, transactional, state.outerAutoCommitOff, body); err != nil {
		return err
	}
	for _, row := range heldRows {
		if _, err := e.History.AddAppliedMigration(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func buildAppliedRow(info schema.MigrationInfo, success bool, elapsed time.Duration, installedBy string) schema.AppliedMigration {
	r := info.Resolved
	row := schema.AppliedMigration{
		Description:         r.Description,
		Type:                r.Type,
		Script:               r.Script,
		Checksum:             r.Checksum,
		Digest:               r.Digest,
		InstalledBy:          installedBy,
		InstalledOn:          nowFunc(),
		ExecutionTimeMillis:  elapsed.Milliseconds(),
		Success:              success,
	}
	if r.Versioned {
		row.Version = r.Version
		row.Versioned = true
	}
	return row
}

func buildResultEntry(info schema.MigrationInfo, state schema.State, elapsed time.Duration) schema.MigrationResultEntry {
	r := info.Resolved
	return schema.MigrationResultEntry{
		Version:         r.Version.String(),
		Description:     r.Description,
		Type:            r.Type,
		Filepath:        r.Script,
		ExecutionTimeMs: elapsed.Milliseconds(),
		State:           state,
	}
}

func (e *Engine) logger() Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return defaultLogger{}
}

func (e *Engine) progress() Progress {
	if e.Progress != nil {
		return e.Progress
	}
	return colorProgress{}
}
