package drivers

import (
	"context"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/engine"
)

// provider is the engine.ConnectionProvider backing a live run: it pins
// one physical connection out of db's pool, exclusively, for the run's
// duration.
type provider struct {
	db      *squealx.DB
	dialect dialect.Dialect
}

// NewConnectionProvider wraps db as an engine.ConnectionProvider for d.
func NewConnectionProvider(db *squealx.DB, d dialect.Dialect) engine.ConnectionProvider {
	return &provider{db: db, dialect: d}
}

func (p *provider) Acquire(ctx context.Context) (engine.Transactor, error) {
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("drivers: acquiring connection: %w", err)
	}
	t := &transactor{conn: conn, dialect: p.dialect}
	if err := t.captureOriginalState(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

func (p *provider) Release(t engine.Transactor) {
	if tr, ok := t.(*transactor); ok {
		_ = tr.conn.Close()
	}
}

// transactor implements engine.Transactor over one pinned *squealx.Conn.
// Begin/Commit/Rollback manage an explicit *squealx.Tx opened on that same
// connection so every statement in a group's transaction stays on one
// physical connection.
type transactor struct {
	conn     *squealx.Conn
	dialect  dialect.Dialect
	tx       *squealx.Tx
	original map[string]string
}

func (t *transactor) Begin(ctx context.Context) error {
	tx, err := t.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("drivers: beginning transaction: %w", err)
	}
	t.tx = tx
	return nil
}

func (t *transactor) Commit(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Commit()
	t.tx = nil
	return err
}

func (t *transactor) Rollback(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Rollback()
	t.tx = nil
	return err
}

// SetAutoCommit is meaningful only for the single-connection quirk some
// dialects need: there is no real driver-level auto-commit flag to
// flip, since every statement here runs either inside an explicit
// t.tx or directly on t.conn (which is always "auto-committing" in the
// ordinary sense). Toggling it off is therefore a no-op; toggling it on
// while a transaction is open commits that transaction early, which is
// exactly what the quirk wants: let the non-transactional migration's
// statements land outside any transaction.
func (t *transactor) SetAutoCommit(ctx context.Context, on bool) error {
	if on && t.tx != nil {
		return t.Commit(ctx)
	}
	return nil
}

// Conn returns whichever handle is currently live: the open transaction
// if one exists, otherwise the raw connection.
func (t *transactor) Conn() any {
	if t.tx != nil {
		return t.tx
	}
	return t.conn
}

func (t *transactor) captureOriginalState(ctx context.Context) error {
	switch t.dialect.Name() {
	case dialect.MySQL:
		t.original = map[string]string{}
		row := t.conn.QueryRowxContext(ctx, `SELECT @@foreign_key_checks, @@sql_safe_updates`)
		var fk, safe string
		if err := row.Scan(&fk, &safe); err == nil {
			t.original["foreign_key_checks"] = fk
			t.original["sql_safe_updates"] = safe
		}
	}
	return nil
}

// RestoreOriginalState resets session-scoped variables captured at
// connect time: on MySQL, restore foreign_key_checks/sql_safe_updates
// between migrations so one script's session tweaks cannot leak into the
// next.
func (t *transactor) RestoreOriginalState(ctx context.Context) error {
	if t.dialect.Name() != dialect.MySQL || len(t.original) == 0 {
		return nil
	}
	ex := t.execHandle()
	if fk, ok := t.original["foreign_key_checks"]; ok {
		if _, err := ex.ExecContext(ctx, "SET foreign_key_checks = "+fk); err != nil {
			return fmt.Errorf("drivers: restoring foreign_key_checks: %w", err)
		}
	}
	if safe, ok := t.original["sql_safe_updates"]; ok {
		if _, err := ex.ExecContext(ctx, "SET sql_safe_updates = "+safe); err != nil {
			return fmt.Errorf("drivers: restoring sql_safe_updates: %w", err)
		}
	}
	return nil
}

// SetSchema switches the connection's current schema/search_path.
func (t *transactor) SetSchema(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	ex := t.execHandle()
	var stmt string
	switch t.dialect.Name() {
	case dialect.Postgres:
		stmt = fmt.Sprintf("SET search_path TO %s", t.dialect.QuoteIdentifier(name))
	case dialect.MySQL:
		stmt = fmt.Sprintf("USE %s", t.dialect.QuoteIdentifier(name))
	default:
		// SQLite has no notion of a current schema beyond ATTACH DATABASE,
		// which this engine does not manage.
		return nil
	}
	if _, err := ex.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("drivers: setting schema to %s: %w", name, err)
	}
	return nil
}

// execHandle returns the *squealx.Tx or *squealx.Conn to issue
// session-management statements through, matching Conn()'s own choice.
func (t *transactor) execHandle() interface {
	ExecContext(ctx context.Context, query string, args ...any) (any, error)
} {
	if t.tx != nil {
		return txExecAdapter{t.tx}
	}
	return connExecAdapter{t.conn}
}

// txExecAdapter/connExecAdapter paper over squealx's ExecContext
// returning (sql.Result, error) rather than (any, error), so execHandle
// can return one interface regardless of which handle is live.
type txExecAdapter struct{ tx *squealx.Tx }

func (a txExecAdapter) ExecContext(ctx context.Context, query string, args ...any) (any, error) {
	return a.tx.ExecContext(ctx, query, args...)
}

type connExecAdapter struct{ conn *squealx.Conn }

func (a connExecAdapter) ExecContext(ctx context.Context, query string, args ...any) (any, error) {
	return a.conn.ExecContext(ctx, query, args...)
}
