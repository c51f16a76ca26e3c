package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/oarkflow/migrator/schema"
)

// createIndexRegex and algorithmInplaceRegex mark statements MySQL reports
// as No: a script containing one is non-transactional, which the engine
// uses when grouping scripts (the mixed-transaction guard) and when
// deciding whether to open a transaction around them. MySQL's DDL never
// runs inside a transaction regardless; SupportsDdlTransactions (false)
// is what decides how a failure is recorded.
var (
	createIndexRegex      = regexp.MustCompile(`^(CREATE|DROP)( UNIQUE)? INDEX`)
	algorithmInplaceRegex = regexp.MustCompile(`ALGORITHM\s*=\s*INPLACE`)
)

type mysqlDialect struct{}

func (m *mysqlDialect) Name() Name { return MySQL }

func (m *mysqlDialect) QuoteIdentifier(id string) string {
	return fmt.Sprintf("`%s`", id)
}

func (m *mysqlDialect) SupportsDdlTransactions() bool { return false }
func (m *mysqlDialect) SupportsAdvisoryLock() bool     { return false }
func (m *mysqlDialect) UseSingleConnection() bool      { return false }

func (m *mysqlDialect) DetectCanExecuteInTransaction(simplified string, _ bool) schema.TriState {
	if createIndexRegex.MatchString(simplified) || algorithmInplaceRegex.MatchString(simplified) {
		return schema.No
	}
	return schema.Inherit
}

func (m *mysqlDialect) CreateTableSQL(ct CreateTable, up bool) (string, error) {
	if !up {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s;", m.QuoteIdentifier(ct.Name)), nil
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (", m.QuoteIdentifier(ct.Name)))
	var cols []string
	for _, col := range ct.Columns {
		cols = append(cols, m.columnDef(col))
	}
	if len(ct.PrimaryKey) > 0 {
		var pk []string
		for _, c := range ct.PrimaryKey {
			pk = append(pk, m.QuoteIdentifier(c))
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(");")
	return sb.String(), nil
}

func (m *mysqlDialect) columnDef(col Column) string {
	def := fmt.Sprintf("%s %s", m.QuoteIdentifier(col.Name), m.MapDataType(col.Type, col.Size, col.AutoIncrement, col.PrimaryKey))
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

func (m *mysqlDialect) RenameTableSQL(rt RenameTable) (string, error) {
	return fmt.Sprintf("RENAME TABLE %s TO %s;", m.QuoteIdentifier(rt.OldName), m.QuoteIdentifier(rt.NewName)), nil
}

func (m *mysqlDialect) DeleteDataSQL(dd DeleteData) (string, error) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s;", m.QuoteIdentifier(dd.Name), dd.Where), nil
}

func (m *mysqlDialect) DropEnumTypeSQL(DropEnumType) (string, error) {
	return "", errors.New("enum types are not supported in MySQL")
}

func (m *mysqlDialect) DropRowPolicySQL(DropRowPolicy) (string, error) {
	return "", errors.New("DROP ROW POLICY is not supported in MySQL")
}

func (m *mysqlDialect) DropMaterializedViewSQL(DropMaterializedView) (string, error) {
	return "", errors.New("DROP MATERIALIZED VIEW is not supported in MySQL")
}

func (m *mysqlDialect) DropTableSQL(dt DropTable) (string, error) {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", m.QuoteIdentifier(dt.Name)), nil
}

func (m *mysqlDialect) DropSchemaSQL(DropSchema) (string, error) {
	return "", errors.New("DROP SCHEMA is not supported in MySQL")
}

func (m *mysqlDialect) AddColumnSQL(ac AddColumn, tableName string) ([]string, error) {
	var queries []string
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s ", m.QuoteIdentifier(tableName), m.QuoteIdentifier(ac.Name)))
	sb.WriteString(m.MapDataType(ac.Type, ac.Size, ac.AutoIncrement, ac.PrimaryKey))
	if ac.AutoIncrement {
		sb.WriteString(" AUTO_INCREMENT")
	}
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
		fk := ac.ForeignKey
		sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT fk_%s FOREIGN KEY (%s) REFERENCES %s(%s)",
			tableName, ac.Name, ac.Name, fk.ReferenceTable, fk.ReferenceColumn)
		if fk.OnDelete != "" {
			sql += fmt.Sprintf(" ON DELETE %s", fk.OnDelete)
		}
		if fk.OnUpdate != "" {
			sql += fmt.Sprintf(" ON UPDATE %s", fk.OnUpdate)
		}
		queries = append(queries, sql+";")
	}
	return queries, nil
}

func (m *mysqlDialect) DropColumnSQL(dc DropColumn, tableName string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", m.QuoteIdentifier(tableName), m.QuoteIdentifier(dc.Name)), nil
}

func (m *mysqlDialect) RenameColumnSQL(rc RenameColumn, tableName string) (string, error) {
	if rc.Type == "" {
		return "", errors.New("MySQL requires the column type to rename a column")
	}
	return fmt.Sprintf("ALTER TABLE %s CHANGE %s %s %s;", m.QuoteIdentifier(tableName), m.QuoteIdentifier(rc.From), m.QuoteIdentifier(rc.To), rc.Type), nil
}

func (m *mysqlDialect) MapDataType(genericType string, size int, _, _ bool) string {
	switch strings.ToLower(genericType) {
	case "string":
		if size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", size)
		}
		return "TEXT"
	case "number":
		return "INT"
	case "boolean":
		return "TINYINT(1)"
	case "date":
		return "DATE"
	case "datetime":
		return "DATETIME"
	default:
		return genericType
	}
}

func (m *mysqlDialect) WrapInTransaction(queries []string) []string {
	return append(append([]string{"START TRANSACTION;"}, queries...), "COMMIT;")
}

func (m *mysqlDialect) WrapInTransactionWithConfig(queries []string, trans Transaction) []string {
	begin := "START TRANSACTION;"
	if trans.IsolationLevel != "" {
		begin = fmt.Sprintf("SET TRANSACTION ISOLATION LEVEL %s; START TRANSACTION;", trans.IsolationLevel)
	}
	return append(append([]string{begin}, queries...), "COMMIT;")
}

func (m *mysqlDialect) CreateViewSQL(cv CreateView) (string, error) {
	if cv.OrReplace {
		return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s;", m.QuoteIdentifier(cv.Name), cv.Definition), nil
	}
	return fmt.Sprintf("CREATE VIEW %s AS %s;", m.QuoteIdentifier(cv.Name), cv.Definition), nil
}

func (m *mysqlDialect) DropViewSQL(dv DropView) (string, error) {
	cascade := ""
	if dv.Cascade {
		cascade = " CASCADE"
	}
	if dv.IfExists {
		return fmt.Sprintf("DROP VIEW IF EXISTS %s%s;", m.QuoteIdentifier(dv.Name), cascade), nil
	}
	return fmt.Sprintf("DROP VIEW %s%s;", m.QuoteIdentifier(dv.Name), cascade), nil
}

func (m *mysqlDialect) RenameViewSQL(RenameView) (string, error) {
	return "", errors.New("RENAME VIEW is not supported in MySQL")
}

func (m *mysqlDialect) CreateFunctionSQL(CreateFunction) (string, error) {
	return "", errors.New("CREATE FUNCTION is not supported in this MySQL dialect implementation")
}

func (m *mysqlDialect) DropFunctionSQL(DropFunction) (string, error) {
	return "", errors.New("DROP FUNCTION is not supported in this MySQL dialect implementation")
}

func (m *mysqlDialect) RenameFunctionSQL(RenameFunction) (string, error) {
	return "", errors.New("RENAME FUNCTION is not supported in this MySQL dialect implementation")
}

func (m *mysqlDialect) CreateProcedureSQL(CreateProcedure) (string, error) {
	return "", errors.New("CREATE PROCEDURE is not supported in this MySQL dialect implementation")
}

func (m *mysqlDialect) DropProcedureSQL(DropProcedure) (string, error) {
	return "", errors.New("DROP PROCEDURE is not supported in this MySQL dialect implementation")
}

func (m *mysqlDialect) RenameProcedureSQL(RenameProcedure) (string, error) {
	return "", errors.New("RENAME PROCEDURE is not supported in this MySQL dialect implementation")
}

func (m *mysqlDialect) CreateTriggerSQL(CreateTrigger) (string, error) {
	return "", errors.New("CREATE TRIGGER is not supported in this MySQL dialect implementation")
}

func (m *mysqlDialect) DropTriggerSQL(DropTrigger) (string, error) {
	return "", errors.New("DROP TRIGGER is not supported in this MySQL dialect implementation")
}

func (m *mysqlDialect) RenameTriggerSQL(RenameTrigger) (string, error) {
	return "", errors.New("RENAME TRIGGER is not supported in this MySQL dialect implementation")
}
