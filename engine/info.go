package engine

import (
	"context"
	"sort"

	"github.com/oarkflow/migrator/history"
	"github.com/oarkflow/migrator/schema"
)

// Resolver discovers migration scripts and hands back ResolvedMigrations.
// The filesystem resolver package is one implementation; tests supply a
// static slice.
type Resolver interface {
	Resolve(ctx context.Context) ([]schema.ResolvedMigration, error)
}

// StaticResolver is a Resolver over a fixed, pre-resolved slice —
// what engine's own tests use, and what a caller who already has its
// migrations in memory (embed.FS scan done once at startup) can use
// directly instead of re-resolving on every refresh.
type StaticResolver []schema.ResolvedMigration

func (s StaticResolver) Resolve(context.Context) ([]schema.ResolvedMigration, error) {
	return []schema.ResolvedMigration(s), nil
}

// InfoService is the Migration Info Service: Refresh materializes a
// snapshot of every resolved and applied migration joined together with
// a derived State; the query methods below are pure reads over that
// snapshot.
type InfoService struct {
	resolver Resolver
	store    history.Store
	cfg      Configuration

	snapshot []schema.MigrationInfo
	// baseline is the highest version covered by a BASELINE applied row,
	// or Empty if none. Versioned migrations at or below it are
	// BELOW_BASELINE rather than PENDING.
	baseline schema.MigrationVersion
}

// NewInfoService builds an InfoService; call Refresh before using it.
func NewInfoService(resolver Resolver, store history.Store, cfg Configuration) *InfoService {
	return &InfoService{resolver: resolver, store: store, cfg: cfg}
}

// Refresh rebuilds the snapshot fresh: resolve, read history, join, and
// derive each entry's State.
func (s *InfoService) Refresh(ctx context.Context) error {
	resolved, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	applied, err := s.store.AllAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	sortResolved(resolved)

	s.baseline = schema.Empty
	appliedByVersion := map[string]schema.AppliedMigration{}
	appliedRepeatableLatest := map[string]schema.AppliedMigration{}
	for _, a := range applied {
		if a.Type == schema.TypeBaseline && a.Versioned && a.Version.Compare(s.baseline) > 0 {
			s.baseline = a.Version
		}
		if a.Versioned {
			appliedByVersion[a.Version.String()] = a
		} else {
			appliedRepeatableLatest[a.Description] = a
		}
	}

	currentResolvedMax := schema.Empty
	for _, r := range resolved {
		if r.Versioned && r.Version.Compare(currentResolvedMax) > 0 {
			currentResolvedMax = r.Version
		}
	}

	// currentVersion: max version among successfully applied versioned
	// migrations, used for OUT_OF_ORDER / ABOVE_TARGET / pending filtering.
	currentVersion := schema.Empty
	for _, a := range applied {
		if a.Versioned && a.Success && a.Version.Compare(currentVersion) > 0 {
			currentVersion = a.Version
		}
	}

	cherryPick := s.cfg.cherryPickSet()
	targetVersion, hasTarget := s.resolveTarget(currentVersion, resolved)
	outOfOrderApplied := outOfOrderAppliedSet(applied)

	var infos []schema.MigrationInfo
	matchedApplied := map[string]bool{}

	for _, r := range resolved {
		rCopy := r
		if r.Versioned {
			key := r.Version.String()
			if a, ok := appliedByVersion[key]; ok {
				matchedApplied[appliedKey(a)] = true
				aCopy := a
				st := versionedAppliedState(a, outOfOrderApplied[key])
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, Applied: &aCopy, State: st})
				continue
			}
			// Not applied: BELOW_BASELINE, ABOVE_TARGET, IGNORED, or PENDING.
			switch {
			case !s.baseline.IsEmpty() && r.Version.Compare(s.baseline) <= 0:
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, State: schema.StateBelowBaseline})
			case hasTarget && r.Version.Compare(targetVersion) > 0:
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, State: schema.StateAboveTarget})
			case cherryPick != nil && !cherryPick[r.Version.String()]:
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, State: schema.StateIgnored})
			case s.cfg.IgnoreMigrationPatterns.AnyMatches(true, schema.StatePending):
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, State: schema.StateIgnored})
			case r.Version.Compare(currentVersion) < 0 && !s.cfg.OutOfOrder:
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, State: schema.StateIgnored})
			default:
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, State: schema.StatePending})
			}
			continue
		}

		// Repeatable: joined by description; PENDING again if checksum
		// differs from the latest applied row (re-applied whenever its
		// checksum changes).
		if a, ok := appliedRepeatableLatest[r.Description]; ok {
			matchedApplied[appliedKey(a)] = true
			aCopy := a
			switch {
			case !schema.ChecksumsMatch(r.Checksum, a.Checksum):
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, Applied: &aCopy, State: s.repeatablePendingState(r, cherryPick)})
			case !a.Success:
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, Applied: &aCopy, State: schema.StateFailed})
			default:
				infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, Applied: &aCopy, State: schema.StateSuccess})
			}
			continue
		}
		infos = append(infos, schema.MigrationInfo{Resolved: &rCopy, State: s.repeatablePendingState(r, cherryPick)})
	}

	// Applied rows with no resolved counterpart: FUTURE (beyond the
	// highest version this resolver knows about) or MISSING (the script
	// that produced them is gone from the resolver's catalog).
	for _, a := range applied {
		if matchedApplied[appliedKey(a)] {
			continue
		}
		aCopy := a
		var st schema.State
		switch {
		case a.Type == schema.TypeBaseline:
			st = schema.StateBaseline
		case a.Versioned && a.Version.Compare(currentResolvedMax) > 0:
			st = futureState(a.Success)
		case a.Versioned:
			st = missingState(a.Success)
		default:
			// Repeatable history with no current resolved match: the
			// script was removed; treat as missing.
			st = missingState(a.Success)
		}
		infos = append(infos, schema.MigrationInfo{Applied: &aCopy, State: st})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return compareInfoOrder(infos[i], infos[j])
	})

	s.snapshot = infos
	return nil
}

func appliedKey(a schema.AppliedMigration) string {
	if a.Versioned {
		return "v:" + a.Version.String()
	}
	return "r:" + a.Description + "#" + itoa(a.InstalledRank)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func versionedAppliedState(a schema.AppliedMigration, outOfOrder bool) schema.State {
	switch {
	case a.Success && outOfOrder:
		return schema.StateOutOfOrder
	case a.Success:
		return schema.StateSuccess
	default:
		return schema.StateFailed
	}
}

// outOfOrderAppliedSet walks applied migrations in their actual installation
// order (InstalledRank, not version order) and marks every successful
// versioned row whose version is lower than the highest version already
// installed before it — the OUT_OF_ORDER condition. This must
// run over installation order, not the version-sorted resolved catalog:
// a migration is out of order because of when it ran, not where it sorts.
func outOfOrderAppliedSet(applied []schema.AppliedMigration) map[string]bool {
	byRank := make([]schema.AppliedMigration, len(applied))
	copy(byRank, applied)
	sort.SliceStable(byRank, func(i, j int) bool {
		return byRank[i].InstalledRank < byRank[j].InstalledRank
	})

	result := map[string]bool{}
	maxSeen := schema.Empty
	for _, a := range byRank {
		if !a.Versioned {
			continue
		}
		if a.Success && a.Version.Compare(maxSeen) < 0 {
			result[a.Version.String()] = true
		}
		if a.Version.Compare(maxSeen) > 0 {
			maxSeen = a.Version
		}
	}
	return result
}

func futureState(success bool) schema.State {
	if success {
		return schema.StateFutureSuccess
	}
	return schema.StateFutureFailed
}

func missingState(success bool) schema.State {
	if success {
		return schema.StateMissingSuccess
	}
	return schema.StateMissingFailed
}

func (s *InfoService) repeatablePendingState(r schema.ResolvedMigration, cherryPick map[string]bool) schema.State {
	switch {
	case cherryPick != nil && !cherryPick[r.Description]:
		return schema.StateIgnored
	case s.cfg.IgnoreMigrationPatterns.AnyMatches(false, schema.StatePending):
		return schema.StateIgnored
	default:
		return schema.StatePending
	}
}

// resolveTarget turns configuration.Target into a concrete version bound,
// or reports hasTarget=false for Latest (no upper bound at all).
func (s *InfoService) resolveTarget(currentVersion schema.MigrationVersion, resolved []schema.ResolvedMigration) (schema.MigrationVersion, bool) {
	switch s.cfg.Target.Kind {
	case TargetVersion:
		return s.cfg.Target.Version, true
	case TargetCurrent:
		return currentVersion, true
	case TargetNext:
		for _, r := range resolved {
			if r.Versioned && r.Version.Compare(currentVersion) > 0 {
				return r.Version, true
			}
		}
		return currentVersion, true
	default: // TargetLatest
		return schema.Empty, false
	}
}

// sortResolved orders versioned ascending by version, then repeatables by
// description, versioned first.
func sortResolved(resolved []schema.ResolvedMigration) {
	sort.SliceStable(resolved, func(i, j int) bool {
		a, b := resolved[i], resolved[j]
		if a.Versioned != b.Versioned {
			return a.Versioned
		}
		if a.Versioned {
			return a.Version.Less(b.Version)
		}
		return a.Description < b.Description
	})
}

func compareInfoOrder(a, b schema.MigrationInfo) bool {
	aV, bV := a.Versioned(), b.Versioned()
	if aV != bV {
		return aV
	}
	if aV {
		return a.Version().Less(b.Version())
	}
	return a.Description() < b.Description()
}

// Snapshot returns every MigrationInfo from the last Refresh, in order.
func (s *InfoService) Snapshot() []schema.MigrationInfo {
	return s.snapshot
}

// Current returns the latest successful versioned applied migration, or
// nil if none has been applied yet.
func (s *InfoService) Current() *schema.MigrationInfo {
	var best *schema.MigrationInfo
	var bestVersion schema.MigrationVersion
	for i := range s.snapshot {
		info := &s.snapshot[i]
		if info.State != schema.StateSuccess && info.State != schema.StateOutOfOrder {
			continue
		}
		if !info.Versioned() {
			continue
		}
		if best == nil || info.Version().Compare(bestVersion) > 0 {
			best = info
			bestVersion = info.Version()
		}
	}
	return best
}

// Pending returns resolved-not-yet-applied migrations eligible under the
// current target/cherry-pick/out-of-order/ignore configuration, in
// execution order.
func (s *InfoService) Pending() []schema.MigrationInfo {
	var out []schema.MigrationInfo
	for _, info := range s.snapshot {
		if info.State == schema.StatePending {
			out = append(out, info)
		}
	}
	return out
}

// Future returns applied migrations with no resolved counterpart.
func (s *InfoService) Future() []schema.MigrationInfo {
	var out []schema.MigrationInfo
	for _, info := range s.snapshot {
		if info.State == schema.StateFutureSuccess || info.State == schema.StateFutureFailed {
			out = append(out, info)
		}
	}
	return out
}

// Failed returns applied rows with success=false, ordered by rank.
func (s *InfoService) Failed() []schema.MigrationInfo {
	var out []schema.MigrationInfo
	for _, info := range s.snapshot {
		if info.State.IsFailure() {
			out = append(out, info)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := int64(0), int64(0)
		if out[i].Applied != nil {
			ri = out[i].Applied.InstalledRank
		}
		if out[j].Applied != nil {
			rj = out[j].Applied.InstalledRank
		}
		return ri < rj
	})
	return out
}

// Resolved returns every resolved migration in version order, regardless
// of applied state.
func (s *InfoService) Resolved() []schema.MigrationInfo {
	var out []schema.MigrationInfo
	for _, info := range s.snapshot {
		if info.Resolved != nil {
			out = append(out, info)
		}
	}
	return out
}

// Config exposes the configuration the snapshot was built under, for
// callers (e.g. the planner) that need to re-derive pending() semantics.
func (s *InfoService) Config() Configuration { return s.cfg }
