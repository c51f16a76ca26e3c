// Package drivers opens a *squealx.DB for one of the three supported
// dialects and adapts it to engine.ConnectionProvider/engine.Transactor,
// the concrete collaborator standing in for a live database connection
// bound to the target schema: one physical connection pinned for the
// duration of an engine run, plus the session-state hooks
// (RestoreOriginalState, SetSchema) a thin per-statement wrapper would
// never need.
package drivers

import (
	"fmt"

	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/drivers/mysql"
	"github.com/oarkflow/squealx/drivers/postgres"
	"github.com/oarkflow/squealx/drivers/sqlite"

	"github.com/oarkflow/migrator/dialect"
)

// Open connects to dsn using the squealx driver matching name.
func Open(name dialect.Name, dsn string) (*squealx.DB, error) {
	switch name {
	case dialect.Postgres:
		db, err := postgres.Open(dsn, "postgres")
		if err != nil {
			return nil, fmt.Errorf("drivers: opening postgres: %w", err)
		}
		return ping(db)
	case dialect.MySQL:
		db, err := mysql.Open(dsn, "mysql")
		if err != nil {
			return nil, fmt.Errorf("drivers: opening mysql: %w", err)
		}
		return ping(db)
	case dialect.SQLite:
		db, err := sqlite.Open(dsn, "sqlite3")
		if err != nil {
			return nil, fmt.Errorf("drivers: opening sqlite: %w", err)
		}
		return ping(db)
	default:
		return nil, fmt.Errorf("drivers: unknown dialect %q", name)
	}
}

func ping(db *squealx.DB) (*squealx.DB, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("drivers: pinging database: %w", err)
	}
	return db, nil
}
