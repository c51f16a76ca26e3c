// Package history implements the schema-history store: an append-only
// table of applied migrations plus a dialect-specific lock that
// serializes concurrent engine instances against the same table.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/schema"
)

// TableName is the schema-history table's default name.
const TableName = "schema_history"

// Store is the Schema History Store contract (C3): exists, create,
// addAppliedMigration, allAppliedMigrations, the repair-only
// mutations, and a re-entrant lock.
type Store interface {
	// Exists reports whether the schema-history table has been created.
	Exists(ctx context.Context) (bool, error)

	// Create creates the schema-history table if it does not exist.
	Create(ctx context.Context) error

	// AddAppliedMigration appends one row. installedRank is assigned by
	// the store, strictly increasing with no gaps.
	AddAppliedMigration(ctx context.Context, m schema.AppliedMigration) (installedRank int64, err error)

	// AllAppliedMigrations returns every row ordered by installed_rank.
	AllAppliedMigrations(ctx context.Context) ([]schema.AppliedMigration, error)

	// RemoveFailedMigration deletes the row at installedRank. Callers are
	// expected to have confirmed via AllAppliedMigrations that the row's
	// success is false; this is the repair-time escape hatch from the
	// append-only contract the other methods honor.
	RemoveFailedMigration(ctx context.Context, installedRank int64) error

	// RealignChecksum overwrites the checksum and digest stored for the
	// row at installedRank, bringing a repeatable migration's history back
	// in sync with its current resolved script without re-running it.
	RealignChecksum(ctx context.Context, installedRank int64, checksum *int32, digest string) error

	// Lock acquires a named, re-entrant lock around fn, serializing
	// concurrent engine instances against this history table. The lock
	// is released on every exit path, including a panic or error from
	// fn.
	Lock(ctx context.Context, fn func() error) error
}

// sqlStore is the squealx-backed Store implementation shared by all
// three dialects; only its Locker strategy differs.
type sqlStore struct {
	db      *squealx.DB
	dialect dialect.Dialect
	table   string
	locker  Locker
}

// New builds a Store for db using the lock strategy appropriate to d's
// capabilities (see NewLocker).
func New(db *squealx.DB, d dialect.Dialect) Store {
	return &sqlStore{
		db:      db,
		dialect: d,
		table:   TableName,
		locker:  NewLocker(db, d, TableName),
	}
}

func (s *sqlStore) Exists(ctx context.Context) (bool, error) {
	var name string
	query := existsQuery(s.dialect.Name(), s.table)
	err := s.db.GetContext(ctx, &name, query, s.table)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("history: checking table existence: %w", err)
	}
	return true, nil
}

func (s *sqlStore) Create(ctx context.Context) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.db.ExecContext(ctx, createTableDDL(s.dialect.Name(), s.table))
	if err != nil {
		return fmt.Errorf("history: creating %s: %w", s.table, err)
	}
	return nil
}

func (s *sqlStore) AddAppliedMigration(ctx context.Context, m schema.AppliedMigration) (int64, error) {
	var nextRank int64
	query := fmt.Sprintf(`SELECT COALESCE(MAX(installed_rank), 0) + 1 FROM %s`, s.table)
	if err := s.db.GetContext(ctx, &nextRank, query); err != nil {
		return 0, fmt.Errorf("history: computing next installed_rank: %w", err)
	}
	m.InstalledRank = nextRank
	if m.InstalledOn.IsZero() {
		m.InstalledOn = time.Now()
	}

	insert := fmt.Sprintf(`INSERT INTO %s
		(installed_rank, version, description, type, script, checksum, digest, installed_by, installed_on, execution_time, success)
		VALUES (:installed_rank, :version, :description, :type, :script, :checksum, :digest, :installed_by, :installed_on, :execution_time, :success)`, s.table)
	if _, err := s.db.NamedExecContext(ctx, insert, m); err != nil {
		return 0, fmt.Errorf("history: appending installed_rank=%d: %w", nextRank, err)
	}
	return nextRank, nil
}

func (s *sqlStore) AllAppliedMigrations(ctx context.Context) ([]schema.AppliedMigration, error) {
	var rows []schema.AppliedMigration
	query := fmt.Sprintf(`SELECT installed_rank, version, description, type, script, checksum, digest,
		installed_by, installed_on, execution_time, success FROM %s ORDER BY installed_rank ASC`, s.table)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("history: reading %s: %w", s.table, err)
	}
	for i := range rows {
		rows[i].Versioned = !rows[i].Version.IsEmpty()
	}
	return rows, nil
}

func (s *sqlStore) RemoveFailedMigration(ctx context.Context, installedRank int64) error {
	query := fmt.Sprintf(deleteFailedQuery(s.dialect.Name()), s.table)
	res, err := s.db.ExecContext(ctx, query, installedRank, false)
	if err != nil {
		return fmt.Errorf("history: removing failed installed_rank=%d: %w", installedRank, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: removing failed installed_rank=%d: %w", installedRank, err)
	}
	if n == 0 {
		return fmt.Errorf("history: no failed row at installed_rank=%d", installedRank)
	}
	return nil
}

func (s *sqlStore) RealignChecksum(ctx context.Context, installedRank int64, checksum *int32, digest string) error {
	query := fmt.Sprintf(realignChecksumQuery(s.dialect.Name()), s.table)
	if _, err := s.db.ExecContext(ctx, query, checksum, digest, installedRank); err != nil {
		return fmt.Errorf("history: realigning checksum for installed_rank=%d: %w", installedRank, err)
	}
	return nil
}

func (s *sqlStore) Lock(ctx context.Context, fn func() error) error {
	release, err := s.locker.Acquire(ctx)
	if err != nil {
		return &schema.MigrationError{Kind: schema.KindLockAcquisitionFailed, Cause: err}
	}
	defer release()
	return fn()
}

func deleteFailedQuery(name dialect.Name) string {
	switch name {
	case dialect.MySQL, dialect.SQLite:
		return `DELETE FROM %s WHERE installed_rank = ? AND success = ?`
	default:
		return `DELETE FROM %s WHERE installed_rank = $1 AND success = $2`
	}
}

func realignChecksumQuery(name dialect.Name) string {
	switch name {
	case dialect.MySQL, dialect.SQLite:
		return `UPDATE %s SET checksum = ?, digest = ? WHERE installed_rank = ?`
	default:
		return `UPDATE %s SET checksum = $1, digest = $2 WHERE installed_rank = $3`
	}
}

func existsQuery(name dialect.Name, table string) string {
	switch name {
	case dialect.MySQL:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	case dialect.SQLite:
		return `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`
	default:
		return `SELECT table_name FROM information_schema.tables WHERE table_name = $1`
	}
}

func createTableDDL(name dialect.Name, table string) string {
	switch name {
	case dialect.MySQL:
		return fmt.Sprintf(`CREATE TABLE %s (
			installed_rank INT PRIMARY KEY,
			version VARCHAR(255) NULL,
			description VARCHAR(255) NOT NULL,
			type VARCHAR(50) NOT NULL,
			script VARCHAR(1000) NOT NULL,
			checksum INT NULL,
			digest VARCHAR(64) NULL,
			installed_by VARCHAR(255) NOT NULL,
			installed_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			execution_time INT NOT NULL,
			success BOOLEAN NOT NULL,
			INDEX %s_success_idx (success)
		)`, table, table)
	case dialect.SQLite:
		return fmt.Sprintf(`CREATE TABLE %s (
			installed_rank INTEGER PRIMARY KEY,
			version TEXT NULL,
			description TEXT NOT NULL,
			type TEXT NOT NULL,
			script TEXT NOT NULL,
			checksum INTEGER NULL,
			digest TEXT NULL,
			installed_by TEXT NOT NULL,
			installed_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			execution_time INTEGER NOT NULL,
			success BOOLEAN NOT NULL
		);
		CREATE INDEX %s_success_idx ON %s(success)`, table, table, table)
	default:
		return fmt.Sprintf(`CREATE TABLE %s (
			installed_rank INT PRIMARY KEY,
			version VARCHAR(255) NULL,
			description VARCHAR(255) NOT NULL,
			type VARCHAR(50) NOT NULL,
			script VARCHAR(1000) NOT NULL,
			checksum INT NULL,
			digest VARCHAR(64) NULL,
			installed_by VARCHAR(255) NOT NULL,
			installed_on TIMESTAMP NOT NULL DEFAULT NOW(),
			execution_time INT NOT NULL,
			success BOOLEAN NOT NULL
		);
		CREATE INDEX %s_success_idx ON %s(success)`, table, table, table)
	}
}
