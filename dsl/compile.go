package dsl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oarkflow/migrator/dialect"
)

// compileOperation turns one Operation into an ordered list of SQL
// statements for dial, in declaration order: CreateTable, AlterTable,
// DeleteData, the various Drop* kinds, then RenameTable/View and the view
// DDL. Order matters for down-migrations that, say, drop a view before
// dropping the table it selects from.
//
// conn is nil for display-only compilation (ToSQL) and the live connection
// handle during Execute; it is only consulted by compileAlterTable's
// SQLite table-recreation path, which needs to read the table's current
// columns before rebuilding it.
func compileOperation(ctx context.Context, d dialect.Dialect, conn any, op Operation) ([]string, error) {
	var out []string

	for _, ct := range op.CreateTable {
		q, err := d.CreateTableSQL(ct, true)
		if err != nil {
			return nil, fmt.Errorf("CreateTable %s: %w", ct.Name, err)
		}
		out = append(out, q)
	}
	for _, at := range op.AlterTable {
		qs, err := compileAlterTable(ctx, d, conn, at)
		if err != nil {
			return nil, fmt.Errorf("AlterTable %s: %w", at.Name, err)
		}
		out = append(out, qs...)
	}
	for _, dd := range op.DeleteData {
		q, err := d.DeleteDataSQL(dd)
		if err != nil {
			return nil, fmt.Errorf("DeleteData %s: %w", dd.Name, err)
		}
		out = append(out, q)
	}
	for _, de := range op.DropEnumType {
		q, err := d.DropEnumTypeSQL(de)
		if err != nil {
			return nil, fmt.Errorf("DropEnumType %s: %w", de.Name, err)
		}
		out = append(out, q)
	}
	for _, drp := range op.DropRowPolicy {
		q, err := d.DropRowPolicySQL(drp)
		if err != nil {
			return nil, fmt.Errorf("DropRowPolicy %s: %w", drp.Name, err)
		}
		out = append(out, q)
	}
	for _, dmv := range op.DropMaterializedView {
		q, err := d.DropMaterializedViewSQL(dmv)
		if err != nil {
			return nil, fmt.Errorf("DropMaterializedView %s: %w", dmv.Name, err)
		}
		out = append(out, q)
	}
	for _, dv := range op.DropView {
		q, err := d.DropViewSQL(dv)
		if err != nil {
			return nil, fmt.Errorf("DropView %s: %w", dv.Name, err)
		}
		out = append(out, q)
	}
	for _, dt := range op.DropTable {
		q, err := d.DropTableSQL(dt)
		if err != nil {
			return nil, fmt.Errorf("DropTable %s: %w", dt.Name, err)
		}
		out = append(out, q)
	}
	for _, ds := range op.DropSchema {
		q, err := d.DropSchemaSQL(ds)
		if err != nil {
			return nil, fmt.Errorf("DropSchema %s: %w", ds.Name, err)
		}
		out = append(out, q)
	}
	for _, rt := range op.RenameTable {
		q, err := d.RenameTableSQL(rt)
		if err != nil {
			return nil, fmt.Errorf("RenameTable %s: %w", rt.OldName, err)
		}
		out = append(out, q)
	}
	for _, rv := range op.RenameView {
		q, err := d.RenameViewSQL(rv)
		if err != nil {
			return nil, fmt.Errorf("RenameView %s: %w", rv.OldName, err)
		}
		out = append(out, q)
	}
	for _, cv := range op.CreateView {
		q, err := d.CreateViewSQL(cv)
		if err != nil {
			return nil, fmt.Errorf("CreateView %s: %w", cv.Name, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// compileAlterTable compiles one AlterTable block. SQLite cannot ALTER a
// column away or in place; when at drops or renames a column against
// SQLite and a live conn is available, the whole block is instead routed
// through the dialect's table-recreation strategy (see
// recreateSQLiteAlterTable), which needs to read the table's current
// columns first. Without a live conn (ToSQL's display-only path) that
// introspection isn't possible, so SQLite drop/rename still surfaces the
// dialect's "must use table recreation" error there.
func compileAlterTable(ctx context.Context, d dialect.Dialect, conn any, at dialect.AlterTable) ([]string, error) {
	if d.Name() == dialect.SQLite && conn != nil && (len(at.DropColumns) > 0 || len(at.RenameColumns) > 0) {
		return recreateSQLiteAlterTable(ctx, d, conn, at)
	}
	var out []string
	for _, ac := range at.AddColumns {
		qs, err := d.AddColumnSQL(ac, at.Name)
		if err != nil {
			return nil, fmt.Errorf("AddColumn %s: %w", ac.Name, err)
		}
		out = append(out, qs...)
	}
	for _, dc := range at.DropColumns {
		q, err := d.DropColumnSQL(dc, at.Name)
		if err != nil {
			return nil, fmt.Errorf("DropColumn %s: %w", dc.Name, err)
		}
		out = append(out, q)
	}
	for _, rc := range at.RenameColumns {
		q, err := d.RenameColumnSQL(rc, at.Name)
		if err != nil {
			return nil, fmt.Errorf("RenameColumn %s: %w", rc.From, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// tableRecreator is satisfied by dialect.Dialect implementations that
// support SQLite's rename-copy-drop workaround for column drops/renames
// (see dialect/sqlite.go's RecreateTableForAlter).
type tableRecreator interface {
	RecreateTableForAlter(tableName string, newSchema dialect.CreateTable, renameMap map[string]string) ([]string, error)
}

// recreateSQLiteAlterTable reads at.Name's current columns off conn,
// applies at's drops/renames/adds to them, and hands the resulting schema
// to the dialect's table-recreation strategy.
func recreateSQLiteAlterTable(ctx context.Context, d dialect.Dialect, conn any, at dialect.AlterTable) ([]string, error) {
	recreator, ok := d.(tableRecreator)
	if !ok {
		return nil, fmt.Errorf("dialect %s does not support table recreation", d.Name())
	}
	q, ok := conn.(queryer)
	if !ok {
		return nil, fmt.Errorf("connection handle %T does not support QueryContext", conn)
	}
	cols, err := sqliteTableColumns(ctx, q, at.Name)
	if err != nil {
		return nil, err
	}

	dropped := make(map[string]bool, len(at.DropColumns))
	for _, dc := range at.DropColumns {
		dropped[dc.Name] = true
	}
	renameMap := make(map[string]string, len(at.RenameColumns))
	for _, rc := range at.RenameColumns {
		renameMap[rc.From] = rc.To
	}

	newSchema := dialect.CreateTable{Name: at.Name}
	for _, col := range cols {
		if dropped[col.Name] {
			continue
		}
		if renamed, ok := renameMap[col.Name]; ok {
			col.Name = renamed
		}
		newSchema.Columns = append(newSchema.Columns, col)
	}
	for _, ac := range at.AddColumns {
		newSchema.Columns = append(newSchema.Columns, dialect.Column{
			Name:          ac.Name,
			Type:          ac.Type,
			Size:          ac.Size,
			Nullable:      ac.Nullable,
			Default:       ac.Default,
			Check:         ac.Check,
			AutoIncrement: ac.AutoIncrement,
			PrimaryKey:    ac.PrimaryKey,
		})
	}

	return recreator.RecreateTableForAlter(at.Name, newSchema, renameMap)
}

// sqliteTableColumns reads tableName's current columns via PRAGMA
// table_info, the only way SQLite exposes a table's live schema.
func sqliteTableColumns(ctx context.Context, q queryer, tableName string) ([]dialect.Column, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return nil, fmt.Errorf("reading current schema of %s: %w", tableName, err)
	}
	defer rows.Close()

	var cols []dialect.Column
	for rows.Next() {
		var cid, pk int
		var name, colType string
		var notNull int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("reading current schema of %s: %w", tableName, err)
		}
		cols = append(cols, dialect.Column{
			Name:       name,
			Type:       colType,
			Nullable:   notNull == 0,
			Default:    dflt.String,
			PrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading current schema of %s: %w", tableName, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns or does not exist", tableName)
	}
	return cols, nil
}

// compileStatements compiles a Migration's Up (up=true) or Down (up=false)
// operations into dial's bare SQL statements, in execution order, with no
// transaction wrapper: the engine's own Transactor already owns the
// transaction boundary (engine.executeTemplate), so an Executor running
// these must not issue its own BEGIN/COMMIT.
func compileStatements(ctx context.Context, d dialect.Dialect, conn any, m Migration, up bool) ([]string, error) {
	ops := m.Up
	if !up {
		ops = m.Down
	}
	var out []string
	for _, op := range ops {
		qs, err := compileOperation(ctx, d, conn, op)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", m.Name, err)
		}
		out = append(out, qs...)
	}
	return out, nil
}

// ToSQL compiles a Migration the same way compileStatements does, but
// wraps the result in an explicit transaction (the migration's own
// Transaction block if it declares one, otherwise a plain BEGIN/COMMIT).
// This is for display purposes only (printing a runnable script; no
// command in cmd/migrator calls it) — never for the live Execute path,
// which would double the transaction the engine already opened. With no live connection to read a table's
// current columns from, an AlterTable that drops or renames a SQLite
// column still surfaces the dialect's "must use table recreation" error
// here; only Execute (which has a connection) can resolve it.
func ToSQL(d dialect.Dialect, m Migration, up bool) ([]string, error) {
	out, err := compileStatements(context.Background(), d, nil, m, up)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	if len(m.Transaction) > 0 {
		return d.WrapInTransactionWithConfig(out, m.Transaction[0]), nil
	}
	return d.WrapInTransaction(out), nil
}
