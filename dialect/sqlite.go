package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oarkflow/migrator/schema"
)

type sqliteDialect struct{}

func (s *sqliteDialect) Name() Name { return SQLite }

func (s *sqliteDialect) QuoteIdentifier(id string) string {
	return fmt.Sprintf("%q", id)
}

func (s *sqliteDialect) SupportsDdlTransactions() bool { return true }
func (s *sqliteDialect) SupportsAdvisoryLock() bool     { return false }
func (s *sqliteDialect) UseSingleConnection() bool      { return true }

func (s *sqliteDialect) DetectCanExecuteInTransaction(string, bool) schema.TriState {
	return schema.Inherit
}

func (s *sqliteDialect) CreateTableSQL(ct CreateTable, up bool) (string, error) {
	if !up {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s;", s.QuoteIdentifier(ct.Name)), nil
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (", s.QuoteIdentifier(ct.Name)))
	var cols []string
	for _, col := range ct.Columns {
		cols = append(cols, s.columnDef(col))
	}
	if len(ct.PrimaryKey) > 0 {
		var pk []string
		for _, c := range ct.PrimaryKey {
			pk = append(pk, s.QuoteIdentifier(c))
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(");")
	return sb.String(), nil
}

func (s *sqliteDialect) columnDef(col Column) string {
	def := fmt.Sprintf("%s %s", s.QuoteIdentifier(col.Name), s.MapDataType(col.Type, col.Size, col.AutoIncrement, col.PrimaryKey))
	if !col.Nullable {
		def += " NOT NULL"
	}
	if col.Default != "" {
		def += fmt.Sprintf(" DEFAULT %s", quoteDefaultIfNeeded(col.Type, col.Default))
	}
	if col.Check != "" {
		def += fmt.Sprintf(" CHECK (%s)", col.Check)
	}
	return def
}

func (s *sqliteDialect) RenameTableSQL(rt RenameTable) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", s.QuoteIdentifier(rt.OldName), s.QuoteIdentifier(rt.NewName)), nil
}

func (s *sqliteDialect) DeleteDataSQL(dd DeleteData) (string, error) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s;", s.QuoteIdentifier(dd.Name), dd.Where), nil
}

func (s *sqliteDialect) DropEnumTypeSQL(DropEnumType) (string, error) {
	return "", errors.New("enum types are not supported in SQLite")
}

func (s *sqliteDialect) DropRowPolicySQL(DropRowPolicy) (string, error) {
	return "", errors.New("DROP ROW POLICY is not supported in SQLite")
}

func (s *sqliteDialect) DropMaterializedViewSQL(DropMaterializedView) (string, error) {
	return "", errors.New("DROP MATERIALIZED VIEW is not supported in SQLite")
}

func (s *sqliteDialect) DropTableSQL(dt DropTable) (string, error) {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", s.QuoteIdentifier(dt.Name)), nil
}

func (s *sqliteDialect) DropSchemaSQL(DropSchema) (string, error) {
	return "", errors.New("DROP SCHEMA is not supported in SQLite")
}

func (s *sqliteDialect) AddColumnSQL(ac AddColumn, tableName string) ([]string, error) {
	var queries []string
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s ", s.QuoteIdentifier(tableName), s.QuoteIdentifier(ac.Name)))
	sb.WriteString(s.MapDataType(ac.Type, ac.Size, ac.AutoIncrement, ac.PrimaryKey))
	if !ac.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if ac.Default != "" {
		sb.WriteString(fmt.Sprintf(" DEFAULT %s", quoteDefaultIfNeeded(ac.Type, ac.Default)))
	}
	if ac.Check != "" {
		sb.WriteString(fmt.Sprintf(" CHECK (%s)", ac.Check))
	}
	sb.WriteString(";")
	queries = append(queries, sb.String())
	if ac.Unique {
		queries = append(queries, fmt.Sprintf("CREATE UNIQUE INDEX uniq_%s_%s ON %s (%s);", tableName, ac.Name, tableName, ac.Name))
	}
	if ac.Index {
		queries = append(queries, fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s);", tableName, ac.Name, tableName, ac.Name))
	}
	if ac.ForeignKey != nil {
		return nil, errors.New("SQLite foreign keys must be defined at table creation")
	}
	return queries, nil
}

func (s *sqliteDialect) DropColumnSQL(DropColumn, string) (string, error) {
	return "", errors.New("SQLite DROP COLUMN must use table recreation")
}

func (s *sqliteDialect) RenameColumnSQL(RenameColumn, string) (string, error) {
	return "", errors.New("SQLite RENAME COLUMN must use table recreation")
}

func (s *sqliteDialect) MapDataType(genericType string, size int, _, _ bool) string {
	switch strings.ToLower(genericType) {
	case "string":
		if size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", size)
		}
		return "TEXT"
	case "number":
		return "INTEGER"
	case "boolean":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "datetime":
		return "DATETIME"
	default:
		return genericType
	}
}

func (s *sqliteDialect) WrapInTransaction(queries []string) []string {
	return append(append([]string{"BEGIN;"}, queries...), "COMMIT;")
}

func (s *sqliteDialect) WrapInTransactionWithConfig(queries []string, _ Transaction) []string {
	return s.WrapInTransaction(queries)
}

func (s *sqliteDialect) CreateViewSQL(cv CreateView) (string, error) {
	if cv.OrReplace {
		return fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS %s;", s.QuoteIdentifier(cv.Name), cv.Definition), nil
	}
	return fmt.Sprintf("CREATE VIEW %s AS %s;", s.QuoteIdentifier(cv.Name), cv.Definition), nil
}

func (s *sqliteDialect) DropViewSQL(dv DropView) (string, error) {
	if dv.IfExists {
		return fmt.Sprintf("DROP VIEW IF EXISTS %s;", s.QuoteIdentifier(dv.Name)), nil
	}
	return fmt.Sprintf("DROP VIEW %s;", s.QuoteIdentifier(dv.Name)), nil
}

func (s *sqliteDialect) RenameViewSQL(RenameView) (string, error) {
	return "", errors.New("RENAME VIEW is not supported in SQLite")
}

func (s *sqliteDialect) CreateFunctionSQL(CreateFunction) (string, error) {
	return "", errors.New("CREATE FUNCTION is not supported in SQLite")
}

func (s *sqliteDialect) DropFunctionSQL(DropFunction) (string, error) {
	return "", errors.New("DROP FUNCTION is not supported in SQLite")
}

func (s *sqliteDialect) RenameFunctionSQL(RenameFunction) (string, error) {
	return "", errors.New("RENAME FUNCTION is not supported in SQLite")
}

func (s *sqliteDialect) CreateProcedureSQL(CreateProcedure) (string, error) {
	return "", errors.New("CREATE PROCEDURE is not supported in SQLite")
}

func (s *sqliteDialect) DropProcedureSQL(DropProcedure) (string, error) {
	return "", errors.New("DROP PROCEDURE is not supported in SQLite")
}

func (s *sqliteDialect) RenameProcedureSQL(RenameProcedure) (string, error) {
	return "", errors.New("RENAME PROCEDURE is not supported in SQLite")
}

func (s *sqliteDialect) CreateTriggerSQL(ct CreateTrigger) (string, error) {
	if ct.OrReplace {
		return fmt.Sprintf("DROP TRIGGER IF EXISTS %s; CREATE TRIGGER %s %s;", s.QuoteIdentifier(ct.Name), s.QuoteIdentifier(ct.Name), ct.Definition), nil
	}
	return fmt.Sprintf("CREATE TRIGGER %s %s;", s.QuoteIdentifier(ct.Name), ct.Definition), nil
}

func (s *sqliteDialect) DropTriggerSQL(dt DropTrigger) (string, error) {
	if dt.IfExists {
		return fmt.Sprintf("DROP TRIGGER IF EXISTS %s;", s.QuoteIdentifier(dt.Name)), nil
	}
	return fmt.Sprintf("DROP TRIGGER %s;", s.QuoteIdentifier(dt.Name)), nil
}

func (s *sqliteDialect) RenameTriggerSQL(RenameTrigger) (string, error) {
	return "", errors.New("RENAME TRIGGER is not supported in SQLite")
}

// RecreateTableForAlter implements SQLite's table-recreation strategy for
// column drops and renames, which SQLite cannot do with a plain ALTER.
func (s *sqliteDialect) RecreateTableForAlter(tableName string, newSchema CreateTable, renameMap map[string]string) ([]string, error) {
	var newCols, selectCols []string
	for _, col := range newSchema.Columns {
		newCols = append(newCols, col.Name)
		orig := col.Name
		for old, renamed := range renameMap {
			if renamed == col.Name {
				orig = old
				break
			}
		}
		selectCols = append(selectCols, orig)
	}
	queries := []string{
		"PRAGMA foreign_keys=off;",
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", s.QuoteIdentifier(tableName), s.QuoteIdentifier(tableName+"_backup")),
	}
	createSQL, err := s.CreateTableSQL(newSchema, true)
	if err != nil {
		return nil, fmt.Errorf("recreate table %s: %w", tableName, err)
	}
	queries = append(queries, createSQL)
	queries = append(queries, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;",
		s.QuoteIdentifier(tableName), strings.Join(newCols, ", "), strings.Join(selectCols, ", "), s.QuoteIdentifier(tableName+"_backup")))
	queries = append(queries, fmt.Sprintf("DROP TABLE %s;", s.QuoteIdentifier(tableName+"_backup")))
	queries = append(queries, "PRAGMA foreign_keys=on;")
	return queries, nil
}
