package engine

import (
	"context"

	"github.com/oarkflow/migrator/dialect"
)

// executeTemplate wraps body in the transactional boundary: if
// executeInTransaction, disable auto-commit, run body,
// commit on normal return or rollback and rethrow on error; otherwise run
// body as-is and never attempt a rollback.
//
// outerAutoCommitOffOnSingleConnection is the single-connection quirk: when
// the dialect allows only one connection (SQLite) and the outer
// schema-history lock already forced auto-commit off for the whole
// configuration.group=true run, a non-transactional migration running
// inside that group still needs auto-commit on for its own body. The
// template toggles it on for the duration of body and restores it
// afterward.
func executeTemplate(ctx context.Context, tx Transactor, d dialect.Dialect, executeInTransaction bool, outerAutoCommitOffOnSingleConnection bool, body func(context.Context) error) error {
	if executeInTransaction {
		if err := tx.Begin(ctx); err != nil {
			return err
		}
		if err := body(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	}

	if d.UseSingleConnection() && outerAutoCommitOffOnSingleConnection {
		if err := tx.SetAutoCommit(ctx, true); err != nil {
			return err
		}
		defer func() { _ = tx.SetAutoCommit(ctx, false) }()
	}
	return body(ctx)
}
