package history

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/oarkflow/squealx"

	"github.com/oarkflow/migrator/dialect"
)

// Locker acquires and releases the schema-history lock around a single
// invocation. Release functions are idempotent-safe to call once.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// NewLocker picks a lock strategy by the dialect's capabilities:
// PostgreSQL gets a real advisory lock, MySQL falls back to a row lock
// (no advisory-lock primitive in the driver we use), and SQLite — a
// single-writer, often single-connection engine — gets an in-process
// mutex that serializes access without a cross-process primitive.
func NewLocker(db *squealx.DB, d dialect.Dialect, table string) Locker {
	if d.SupportsAdvisoryLock() {
		return &advisoryLocker{db: db, key: lockKey(table)}
	}
	if d.Name() == dialect.SQLite {
		return &mutexLocker{}
	}
	return &rowLocker{db: db, table: table + "_lock"}
}

// lockKey hashes the table name to the int64 key pg_advisory_lock wants,
// the same "single named resource" idea as a file-lock path, keyed
// instead by a database-native identifier.
func lockKey(table string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(table))
	return int64(h.Sum64())
}

// advisoryLocker uses PostgreSQL's session-level advisory lock, which is
// reentrant by design (the same session may call pg_advisory_lock on the
// same key repeatedly; each call must be matched by an unlock).
type advisoryLocker struct {
	db  *squealx.DB
	key int64

	mu    sync.Mutex
	depth int
	token string
}

func (l *advisoryLocker) Acquire(ctx context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.depth == 0 {
		if _, err := l.db.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, l.key); err != nil {
			return nil, fmt.Errorf("history: acquiring advisory lock: %w", err)
		}
		l.token = uuid.NewString()
	}
	l.depth++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.depth--
		if l.depth == 0 {
			_, _ = l.db.Exec(`SELECT pg_advisory_unlock($1)`, l.key)
			l.token = ""
		}
	}, nil
}

// rowLocker takes a row lock with SELECT ... FOR UPDATE inside a held
// transaction, MySQL's substitute for an advisory-lock primitive. The
// lock row is created lazily on first use.
type rowLocker struct {
	db    *squealx.DB
	table string

	mu    sync.Mutex
	depth int
	tx    squealx.SQLTx
}

func (l *rowLocker) ensureTable(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id INT PRIMARY KEY)`, l.table))
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT IGNORE INTO %s (id) VALUES (1)`, l.table))
	return err
}

func (l *rowLocker) Acquire(ctx context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.depth == 0 {
		if err := l.ensureTable(ctx); err != nil {
			return nil, fmt.Errorf("history: preparing lock table: %w", err)
		}
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("history: beginning lock transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE id = 1 FOR UPDATE`, l.table)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("history: acquiring row lock: %w", err)
		}
		l.tx = tx
	}
	l.depth++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.depth--
		if l.depth == 0 && l.tx != nil {
			_ = l.tx.Commit()
			l.tx = nil
		}
	}, nil
}

// mutexLocker serializes access in-process for SQLite, where a single
// connection (or a single os-level writer) is the usual deployment and
// no meaningful cross-process lock primitive exists.
type mutexLocker struct {
	mu    sync.Mutex
	held  bool
	depth int
	gate  sync.Mutex
}

func (l *mutexLocker) Acquire(context.Context) (func(), error) {
	l.gate.Lock()
	defer l.gate.Unlock()
	if l.depth == 0 {
		l.mu.Lock()
		l.held = true
	}
	l.depth++
	return func() {
		l.gate.Lock()
		defer l.gate.Unlock()
		l.depth--
		if l.depth == 0 && l.held {
			l.held = false
			l.mu.Unlock()
		}
	}, nil
}
