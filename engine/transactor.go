package engine

import "context"

// Transactor is the live-connection capability the execution template and
// the migration executor need: a transactional boundary plus two
// session-state operations (restoring original session state, switching
// current schema). It stands in for a live database connection bound to
// the target schema without tying this package to any one driver; the
// drivers package supplies the concrete implementation over squealx.
type Transactor interface {
	// Begin opens a transaction boundary. Statements executed through Conn
	// after Begin participate in it until Commit or Rollback.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// SetAutoCommit toggles auto-commit on the underlying connection. Used
	// by the execution template's non-transactional path and by the
	// single-connection auto-commit quirk some dialects require.
	SetAutoCommit(ctx context.Context, on bool) error

	// Conn returns the handle passed to ResolvedMigration.Executor.Execute;
	// engine never inspects it.
	Conn() any

	// RestoreOriginalState resets session-scoped variables to the values
	// captured at connect time, between migrations.
	RestoreOriginalState(ctx context.Context) error

	// SetSchema switches the connection's current schema/search_path to
	// name.
	SetSchema(ctx context.Context, name string) error
}

// ConnectionProvider hands the engine the Transactor it runs migrations
// through. A provider typically wraps a single pooled connection reserved
// exclusively for the duration of a run.
type ConnectionProvider interface {
	Acquire(ctx context.Context) (Transactor, error)
	Release(t Transactor)
}
