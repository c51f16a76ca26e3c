package resolver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/sqlparse"
)

// execer is the capability a parsed script's statements need from the
// connection handle the engine hands Execute.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqlExecutor runs a hand-written SQL script's statements in order,
// handling the one case sqlparse tags specially: a COPY ... FROM STDIN
// statement's inline payload is appended to the statement text itself,
// reproducing how a client sends it over the simple query protocol.
type sqlExecutor struct {
	statements []sqlparse.ParsedStatement
	// canExecuteInTransaction is the engine-wide default reduced across
	// every statement's own verdict: Yes/Inherit resolve to true, any No
	// makes the whole script non-transactional.
	canExecuteInTransaction bool
}

// newSQLExecutor parses script with d's statement-splitting hooks and
// returns a schema.Executor that replays it verbatim.
func newSQLExecutor(d dialect.Dialect, script string) (*sqlExecutor, error) {
	hooks, err := dialect.HooksFor(d.Name())
	if err != nil {
		return nil, err
	}
	stmts, err := sqlparse.Parse(script, sqlparse.ParsingContext{}, hooks)
	if err != nil {
		return nil, err
	}
	can := true
	for _, s := range stmts {
		if s.CanExecuteInTransaction != nil && !*s.CanExecuteInTransaction {
			can = false
			break
		}
	}
	return &sqlExecutor{statements: stmts, canExecuteInTransaction: can}, nil
}

func (e *sqlExecutor) CanExecuteInTransaction() bool { return e.canExecuteInTransaction }

func (e *sqlExecutor) Execute(ctx context.Context, conn any) error {
	ex, ok := conn.(execer)
	if !ok {
		return fmt.Errorf("resolver: connection handle %T does not support ExecContext", conn)
	}
	for _, stmt := range e.statements {
		text := stmt.SQL
		if stmt.Type == sqlparse.TypeCopy && stmt.CopyData != "" {
			text = stmt.SQL + "\n" + stmt.CopyData
		}
		if _, err := ex.ExecContext(ctx, text); err != nil {
			return fmt.Errorf("statement at line %d: %w", stmt.Line, err)
		}
	}
	return nil
}
