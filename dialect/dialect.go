// Package dialect turns dialect-agnostic schema operations into concrete
// DDL for PostgreSQL, MySQL, and SQLite, and exposes the capability
// predicates (transactional DDL, advisory locking, single-connection
// quirks) the engine and the statement parser key their behavior on.
package dialect

import (
	"fmt"

	"github.com/oarkflow/migrator/schema"
)

// Name identifies one of the supported dialects.
type Name string

const (
	Postgres Name = "postgres"
	MySQL    Name = "mysql"
	SQLite   Name = "sqlite"
)

// Dialect is the capability set a database backend must supply: DDL
// generation for every schema operation the dsl package knows about, plus
// the transactionality and locking predicates the engine and sqlparse
// depend on.
type Dialect interface {
	Name() Name
	QuoteIdentifier(id string) string

	CreateTableSQL(ct CreateTable, up bool) (string, error)
	RenameTableSQL(rt RenameTable) (string, error)
	DeleteDataSQL(dd DeleteData) (string, error)
	DropEnumTypeSQL(de DropEnumType) (string, error)
	DropRowPolicySQL(drp DropRowPolicy) (string, error)
	DropMaterializedViewSQL(dmv DropMaterializedView) (string, error)
	DropTableSQL(dt DropTable) (string, error)
	DropSchemaSQL(ds DropSchema) (string, error)
	AddColumnSQL(ac AddColumn, tableName string) ([]string, error)
	DropColumnSQL(dc DropColumn, tableName string) (string, error)
	RenameColumnSQL(rc RenameColumn, tableName string) (string, error)
	MapDataType(genericType string, size int, autoIncrement, primaryKey bool) string

	CreateViewSQL(cv CreateView) (string, error)
	DropViewSQL(dv DropView) (string, error)
	RenameViewSQL(rv RenameView) (string, error)

	CreateFunctionSQL(cf CreateFunction) (string, error)
	DropFunctionSQL(df DropFunction) (string, error)
	RenameFunctionSQL(rf RenameFunction) (string, error)

	CreateProcedureSQL(cp CreateProcedure) (string, error)
	DropProcedureSQL(dp DropProcedure) (string, error)
	RenameProcedureSQL(rp RenameProcedure) (string, error)

	CreateTriggerSQL(ct CreateTrigger) (string, error)
	DropTriggerSQL(dt DropTrigger) (string, error)
	RenameTriggerSQL(rt RenameTrigger) (string, error)

	WrapInTransaction(queries []string) []string
	WrapInTransactionWithConfig(queries []string, trans Transaction) []string

	// SupportsDdlTransactions reports whether DDL statements participate
	// in the surrounding transaction and roll back with it. MySQL DDL
	// implicitly commits, so MySQL returns false here.
	SupportsDdlTransactions() bool

	// SupportsAdvisoryLock reports whether the dialect has a named
	// session-scoped lock primitive the history store can use directly
	// (PostgreSQL's pg_advisory_lock). Dialects without one fall back to
	// a row lock or an in-process mutex (see the history package).
	SupportsAdvisoryLock() bool

	// UseSingleConnection reports whether this dialect's driver is
	// restricted to one connection at a time (SQLite), which is the
	// quirk the execution template's auto-commit toggle exists for.
	UseSingleConnection() bool

	// DetectCanExecuteInTransaction implements a dialect's
	// detectCanExecuteInTransaction hook: given a simplified (upper-cased,
	// whitespace-collapsed) statement and whether the connected server is
	// known to be below version 12, it returns Yes/No/Inherit.
	DetectCanExecuteInTransaction(simplifiedStatement string, serverVersionUnder12 bool) schema.TriState
}

var registry = map[Name]Dialect{}

func register(d Dialect) {
	registry[d.Name()] = d
}

func init() {
	register(&postgresDialect{})
	register(&mysqlDialect{})
	register(&sqliteDialect{})
}

// Get looks up a registered dialect by name.
func Get(name Name) (Dialect, error) {
	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("dialect: unknown dialect %q", name)
	}
	return d, nil
}
