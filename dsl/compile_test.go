package dsl_test

import (
	"context"
	"testing"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/drivers"
	"github.com/oarkflow/migrator/dsl"
)

func TestAlterTableSQLiteRecreatesForDropAndRename(t *testing.T) {
	d, err := dialect.Get(dialect.SQLite)
	if err != nil {
		t.Fatalf("dialect.Get: %v", err)
	}
	db, err := drivers.Open(dialect.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("drivers.Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE widgets (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		legacy_code TEXT NOT NULL,
		drop_me TEXT NOT NULL
	)`); err != nil {
		t.Fatalf("seeding widgets: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO widgets (id, name, legacy_code, drop_me) VALUES (1, 'gizmo', 'A1', 'x')`); err != nil {
		t.Fatalf("seeding row: %v", err)
	}

	migration := dsl.Migration{
		Name: "alter_widgets",
		Up: []dsl.Operation{{
			Name: "alter",
			AlterTable: []dialect.AlterTable{{
				Name:          "widgets",
				DropColumns:   []dialect.DropColumn{{Name: "drop_me"}},
				RenameColumns: []dialect.RenameColumn{{From: "legacy_code", To: "code"}},
			}},
		}},
	}

	executor := dsl.NewExecutor(d, migration, true)
	if err := executor.Execute(ctx, db); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT name, code FROM widgets WHERE id = 1`)
	if err != nil {
		t.Fatalf("querying recreated table: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatalf("expected the seeded row to survive recreation")
	}
	var name, code string
	if err := rows.Scan(&name, &code); err != nil {
		t.Fatalf("scanning recreated row: %v", err)
	}
	if name != "gizmo" || code != "A1" {
		t.Fatalf("expected name=gizmo code=A1, got name=%s code=%s", name, code)
	}

	if _, err := db.ExecContext(ctx, `SELECT drop_me FROM widgets`); err == nil {
		t.Fatalf("expected drop_me to no longer exist")
	}
	if _, err := db.ExecContext(ctx, `SELECT legacy_code FROM widgets`); err == nil {
		t.Fatalf("expected legacy_code to have been renamed away")
	}
}

func TestToSQLSQLiteDropColumnWithoutConnStillErrors(t *testing.T) {
	d, err := dialect.Get(dialect.SQLite)
	if err != nil {
		t.Fatalf("dialect.Get: %v", err)
	}
	migration := dsl.Migration{
		Name: "alter_widgets",
		Up: []dsl.Operation{{
			Name: "alter",
			AlterTable: []dialect.AlterTable{{
				Name:        "widgets",
				DropColumns: []dialect.DropColumn{{Name: "drop_me"}},
			}},
		}},
	}
	if _, err := dsl.ToSQL(d, migration, true); err == nil {
		t.Fatalf("expected ToSQL to still error without a live connection to introspect the table")
	}
}
