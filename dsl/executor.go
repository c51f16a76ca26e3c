package dsl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/schema"
)

// execer is the capability compiled statements need from the connection
// handle the engine hands Execute. squealx's *DB and *Tx both satisfy it
// by embedding the standard library's *sql.DB/*sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// queryer is the capability a Validate block's query() calls need.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// executor adapts a parsed Migration into a schema.Executor: it compiles
// the requested direction's operations against dialect d and runs the
// matching Validate checks around the up path.
type executor struct {
	dialect dialect.Dialect
	mig     Migration
	up      bool
}

// NewExecutor returns a schema.Executor that runs m's Up body (up=true)
// or Down body (up=false) against d's SQL. An Up execution runs each
// Validate block's PreUpChecks first and PostUpChecks last; a Down
// execution runs no checks.
func NewExecutor(d dialect.Dialect, m Migration, up bool) schema.Executor {
	return &executor{dialect: d, mig: m, up: up}
}

// CanExecuteInTransaction is always true for DSL-compiled migrations:
// every operation type the dsl package knows how to compile is ordinary
// DDL/DML. Statements that cannot run inside a transaction (CREATE INDEX
// CONCURRENTLY and the like) are only reachable through hand-written SQL
// scripts, which sqlparse/dialect classify on their own terms.
func (e *executor) CanExecuteInTransaction() bool { return true }

func (e *executor) Execute(ctx context.Context, conn any) error {
	if e.up {
		if err := e.runChecks(ctx, conn, true); err != nil {
			return fmt.Errorf("pre-up validation: %w", err)
		}
	}

	stmts, err := compileStatements(ctx, e.dialect, conn, e.mig, e.up)
	if err != nil {
		return err
	}
	ex, ok := conn.(execer)
	if !ok {
		return fmt.Errorf("dsl: connection handle %T does not support ExecContext", conn)
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}

	if e.up {
		if err := e.runChecks(ctx, conn, false); err != nil {
			return fmt.Errorf("post-up validation: %w", err)
		}
	}
	return nil
}

func (e *executor) runChecks(ctx context.Context, conn any, pre bool) error {
	var pending [][2]string // [0]=validation name, [1]=check
	for _, v := range e.mig.Validate {
		checks := v.PostUpChecks
		if pre {
			checks = v.PreUpChecks
		}
		for _, c := range checks {
			pending = append(pending, [2]string{v.Name, c})
		}
	}
	if len(pending) == 0 {
		return nil
	}

	q, ok := conn.(queryer)
	if !ok {
		return fmt.Errorf("connection handle %T does not support QueryContext", conn)
	}
	unbind := bindQuery(ctx, q)
	defer unbind()

	env := bcl.NewEnv(nil)
	exprs := make([]string, len(pending))
	for i, p := range pending {
		exprs[i] = p[1]
	}
	results, err := bcl.NewBatchEvaluator(1).EvaluateExpressions(ctx, exprs, env)
	if err != nil {
		return err
	}
	for i, r := range results {
		if !truthy(r) {
			return fmt.Errorf("%s: check failed: %s", pending[i][0], pending[i][1])
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
