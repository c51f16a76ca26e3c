package schema

import (
	"context"
	"time"
)

// MigrationType tags how a ResolvedMigration's script was authored.
type MigrationType string

const (
	TypeSQL        MigrationType = "SQL"
	TypeProcedural MigrationType = "PROCEDURAL"
	TypeBaseline   MigrationType = "BASELINE"
)

// TriState models the three-valued "inherit" semantics
// detectCanExecuteInTransaction needs: a dialect hook may assert true,
// assert false, or defer to the engine's own default.
type TriState int

const (
	Inherit TriState = iota
	Yes
	No
)

// Bool resolves the tri-state against the engine default used when the
// hook abstains.
func (t TriState) Bool(engineDefault bool) bool {
	switch t {
	case Yes:
		return true
	case No:
		return false
	default:
		return engineDefault
	}
}

// Executor is the capability a ResolvedMigration carries to run itself
// against a live connection. SQL-scripted migrations and DSL-compiled
// migrations both implement this the same way: by handing the engine a
// sequence of statements (or, for COPY, a statement plus inline payload).
type Executor interface {
	// CanExecuteInTransaction reports whether this migration, taken on its
	// own, may run inside the group's wrapping transaction.
	CanExecuteInTransaction() bool
	// Execute runs the migration body against conn. conn is whatever the
	// caller's driver exposes as its live connection/transaction handle
	// (engine never inspects it, only passes it through).
	Execute(ctx context.Context, conn any) error
}

// ResolvedMigration is produced by a resolver (filesystem scan, embedded
// catalog, ...) before planning begins and never mutates during a run.
type ResolvedMigration struct {
	// Version is the zero value (Empty) for repeatable migrations.
	Version     MigrationVersion
	Versioned   bool
	Description string
	Type        MigrationType
	Script      string
	// Checksum is nil for migrations the resolver could not checksum
	// (e.g. a baseline marker); non-nil otherwise. CRC32 of the
	// normalized script content, matching the persisted column.
	Checksum *int32
	// Digest is a SHA-256 hex content digest carried purely for audit
	// logging (AppliedMigration.Digest); it plays no role in the
	// checksum-equality decisions Checksum drives.
	Digest   string
	Executor Executor
}

// Identifier renders a short human label: "V1.2__add_users" or
// "R__refresh_view" for repeatables.
func (r ResolvedMigration) Identifier() string {
	if r.Versioned {
		return "V" + r.Version.String() + "__" + r.Description
	}
	return "R__" + r.Description
}

// AppliedMigration is one row of the schema history table. Rows are
// append-only during normal operation; repair is the one exception,
// deleting failed rows and realigning repeatable checksums in place.
type AppliedMigration struct {
	InstalledRank int64  `db:"installed_rank"`
	Version       MigrationVersion `db:"version"`
	Versioned     bool   `db:"-"`
	Description   string `db:"description"`
	Type          MigrationType `db:"type"`
	Script        string `db:"script"`
	Checksum      *int32 `db:"checksum"`
	// Digest is a SHA-256 hex content digest kept purely for audit
	// logging; it plays no role in checksum-equality decisions.
	Digest              string    `db:"digest"`
	InstalledBy         string    `db:"installed_by"`
	InstalledOn         time.Time `db:"installed_on"`
	ExecutionTimeMillis int64     `db:"execution_time"`
	Success             bool      `db:"success"`
}

// State is the derived status of a MigrationInfo, a pure function of
// (resolved?, applied?, target, cherryPick, outOfOrder, ignorePatterns,
// currentVersion).
type State string

const (
	StatePending        State = "PENDING"
	StateAboveTarget     State = "ABOVE_TARGET"
	StateBelowBaseline   State = "BELOW_BASELINE"
	StateIgnored         State = "IGNORED"
	StateMissingSuccess  State = "MISSING_SUCCESS"
	StateMissingFailed   State = "MISSING_FAILED"
	StateFutureSuccess   State = "FUTURE_SUCCESS"
	StateFutureFailed    State = "FUTURE_FAILED"
	StateSuccess         State = "SUCCESS"
	StateFailed          State = "FAILED"
	StateOutOfOrder      State = "OUT_OF_ORDER"
	StateBaseline        State = "BASELINE"
	StateAvailable       State = "AVAILABLE"
	StateUndone          State = "UNDONE"
)

// IsFailure reports whether state reflects an unsuccessful applied row.
func (s State) IsFailure() bool {
	return s == StateFailed || s == StateMissingFailed || s == StateFutureFailed
}

// IsApplied reports whether state corresponds to a row present in history.
func (s State) IsApplied() bool {
	switch s {
	case StateSuccess, StateFailed, StateMissingSuccess, StateMissingFailed,
		StateFutureSuccess, StateFutureFailed, StateOutOfOrder, StateBaseline:
		return true
	default:
		return false
	}
}

// MigrationInfo is the join of a resolved and/or applied record, carrying
// the derived State. Either Resolved or Applied (or both) is non-nil.
type MigrationInfo struct {
	Resolved *ResolvedMigration
	Applied  *AppliedMigration
	State    State
}

// Version returns the migration's version, preferring the resolved side.
func (m MigrationInfo) Version() MigrationVersion {
	if m.Resolved != nil {
		return m.Resolved.Version
	}
	if m.Applied != nil {
		return m.Applied.Version
	}
	return Empty
}

// Versioned reports whether this info describes a versioned migration.
func (m MigrationInfo) Versioned() bool {
	if m.Resolved != nil {
		return m.Resolved.Versioned
	}
	if m.Applied != nil {
		return m.Applied.Versioned
	}
	return false
}

// Description returns the migration's description, preferring the
// resolved side since it reflects the current script.
func (m MigrationInfo) Description() string {
	if m.Resolved != nil {
		return m.Resolved.Description
	}
	if m.Applied != nil {
		return m.Applied.Description
	}
	return ""
}

// Identifier renders a short human label for logging and MigrateResult.
func (m MigrationInfo) Identifier() string {
	if m.Resolved != nil {
		return m.Resolved.Identifier()
	}
	if m.Applied != nil {
		if m.Applied.Versioned {
			return "V" + m.Applied.Version.String() + "__" + m.Applied.Description
		}
		return "R__" + m.Applied.Description
	}
	return "<unknown>"
}

// ChecksumsMatch reports whether the resolved and applied checksums agree,
// honoring the nullable-checksum rule: a stored null checksum matches any
// resolved checksum (the baseline/repair case).
func ChecksumsMatch(resolved, applied *int32) bool {
	if applied == nil {
		return true
	}
	if resolved == nil {
		return false
	}
	return *resolved == *applied
}

// MigrationGroup is an ordered mapping from MigrationInfo to an
// out-of-order flag; insertion order is the execution order.
type MigrationGroup struct {
	entries []GroupEntry
}

// GroupEntry is one member of a MigrationGroup.
type GroupEntry struct {
	Info       MigrationInfo
	OutOfOrder bool
}

// Put appends an entry, preserving insertion order.
func (g *MigrationGroup) Put(info MigrationInfo, outOfOrder bool) {
	g.entries = append(g.entries, GroupEntry{Info: info, OutOfOrder: outOfOrder})
}

// Entries returns the group's members in execution order.
func (g *MigrationGroup) Entries() []GroupEntry {
	return g.entries
}

// Len reports the number of members in the group.
func (g *MigrationGroup) Len() int {
	return len(g.entries)
}

// Empty reports whether the group has no members.
func (g *MigrationGroup) Empty() bool {
	return len(g.entries) == 0
}

// MigrationResultEntry is one line of MigrateResult.Migrations: a report
// of a single migration attempted during the run.
type MigrationResultEntry struct {
	Version           string
	Description       string
	Type              MigrationType
	Filepath          string
	ExecutionTimeMs   int64
	State             State
}

// MigrateResult is the structured output of a migrate() invocation.
type MigrateResult struct {
	InitialSchemaVersion string
	TargetSchemaVersion  string
	SchemaName           string
	MigrationsExecuted   int
	Migrations           []MigrationResultEntry
	Warnings             []string
	Success              bool
	Database             string
	EngineVersion        string
}
