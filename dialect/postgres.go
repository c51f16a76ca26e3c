package dialect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oarkflow/migrator/schema"
)

var (
	createDatabaseTablespaceSubscriptionRegex = regexp.MustCompile(`^(CREATE|DROP) (DATABASE|TABLESPACE|SUBSCRIPTION)`)
	alterSystemRegex                          = regexp.MustCompile(`^ALTER SYSTEM`)
	createIndexConcurrentlyRegex              = regexp.MustCompile(`^(CREATE|DROP)( UNIQUE)? INDEX CONCURRENTLY`)
	reindexRegex                              = regexp.MustCompile(`^REINDEX( VERBOSE)? (SCHEMA|DATABASE|SYSTEM)`)
	vacuumRegex                               = regexp.MustCompile(`^VACUUM`)
	discardAllRegex                           = regexp.MustCompile(`^DISCARD ALL`)
	alterTypeAddValueRegex                    = regexp.MustCompile(`^ALTER TYPE( .*)? ADD VALUE`)
)

type postgresDialect struct{}

func (p *postgresDialect) Name() Name { return Postgres }

func (p *postgresDialect) QuoteIdentifier(id string) string {
	return fmt.Sprintf("%q", id)
}

func (p *postgresDialect) SupportsDdlTransactions() bool { return true }
func (p *postgresDialect) SupportsAdvisoryLock() bool     { return true }
func (p *postgresDialect) UseSingleConnection() bool      { return false }

// DetectCanExecuteInTransaction mirrors PostgreSQLParser.detectCanExecuteInTransaction:
// a handful of statement families never run inside a transaction, and
// ALTER TYPE ... ADD VALUE additionally can't on servers below version 12.
func (p *postgresDialect) DetectCanExecuteInTransaction(simplified string, serverVersionUnder12 bool) schema.TriState {
	if createDatabaseTablespaceSubscriptionRegex.MatchString(simplified) ||
		alterSystemRegex.MatchString(simplified) ||
		createIndexConcurrentlyRegex.MatchString(simplified) ||
		reindexRegex.MatchString(simplified) ||
		vacuumRegex.MatchString(simplified) ||
		discardAllRegex.MatchString(simplified) {
		return schema.No
	}
	if serverVersionUnder12 && alterTypeAddValueRegex.MatchString(simplified) {
		return schema.No
	}
	return schema.Inherit
}

func (p *postgresDialect) CreateTableSQL(ct CreateTable, up bool) (string, error) {
	if !up {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s;", p.QuoteIdentifier(ct.Name)), nil
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (", p.QuoteIdentifier(ct.Name)))
	var cols []string
	for _, col := range ct.Columns {
		cols = append(cols, p.columnDef(col))
	}
	if len(ct.PrimaryKey) > 0 {
		var pk []string
		for _, c := range ct.PrimaryKey {
			pk = append(pk, p.QuoteIdentifier(c))
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(");")
	return sb.String(), nil
}

func (p *postgresDialect) columnDef(col Column) string {
	def := fmt.Sprintf("%s %s", p.QuoteIdentifier(col.Name), p.MapDataType(col.Type, col.Size, col.AutoIncrement, col.PrimaryKey))
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

func quoteDefaultIfNeeded(genericType, def string) string {
	if strings.ToLower(genericType) == "string" && !(strings.HasPrefix(def, "'") && strings.HasSuffix(def, "'")) {
		return fmt.Sprintf("'%s'", def)
	}
	return def
}

func (p *postgresDialect) RenameTableSQL(rt RenameTable) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", p.QuoteIdentifier(rt.OldName), p.QuoteIdentifier(rt.NewName)), nil
}

func (p *postgresDialect) DeleteDataSQL(dd DeleteData) (string, error) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s;", p.QuoteIdentifier(dd.Name), dd.Where), nil
}

func (p *postgresDialect) DropEnumTypeSQL(de DropEnumType) (string, error) {
	if de.IfExists {
		return fmt.Sprintf("DROP TYPE IF EXISTS %s;", p.QuoteIdentifier(de.Name)), nil
	}
	return fmt.Sprintf("DROP TYPE %s;", p.QuoteIdentifier(de.Name)), nil
}

func (p *postgresDialect) DropRowPolicySQL(drp DropRowPolicy) (string, error) {
	if drp.IfExists {
		return fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s;", drp.Name, p.QuoteIdentifier(drp.Table)), nil
	}
	return fmt.Sprintf("DROP POLICY %s ON %s;", drp.Name, p.QuoteIdentifier(drp.Table)), nil
}

func (p *postgresDialect) DropMaterializedViewSQL(dmv DropMaterializedView) (string, error) {
	if dmv.IfExists {
		return fmt.Sprintf("DROP MATERIALIZED VIEW IF EXISTS %s;", p.QuoteIdentifier(dmv.Name)), nil
	}
	return fmt.Sprintf("DROP MATERIALIZED VIEW %s;", p.QuoteIdentifier(dmv.Name)), nil
}

func (p *postgresDialect) DropTableSQL(dt DropTable) (string, error) {
	cascade := ""
	if dt.Cascade {
		cascade = " CASCADE"
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s%s;", p.QuoteIdentifier(dt.Name), cascade), nil
}

func (p *postgresDialect) DropSchemaSQL(ds DropSchema) (string, error) {
	exists, cascade := "", ""
	if ds.IfExists {
		exists = " IF EXISTS"
	}
	if ds.Cascade {
		cascade = " CASCADE"
	}
	return fmt.Sprintf("DROP SCHEMA%s %s%s;", exists, p.QuoteIdentifier(ds.Name), cascade), nil
}

func (p *postgresDialect) AddColumnSQL(ac AddColumn, tableName string) ([]string, error) {
	var queries []string
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s ", p.QuoteIdentifier(tableName), p.QuoteIdentifier(ac.Name)))
	sb.WriteString(p.MapDataType(ac.Type, ac.Size, ac.AutoIncrement, ac.PrimaryKey))
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

func (p *postgresDialect) DropColumnSQL(dc DropColumn, tableName string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", p.QuoteIdentifier(tableName), p.QuoteIdentifier(dc.Name)), nil
}

func (p *postgresDialect) RenameColumnSQL(rc RenameColumn, tableName string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;", p.QuoteIdentifier(tableName), p.QuoteIdentifier(rc.From), p.QuoteIdentifier(rc.To)), nil
}

func (p *postgresDialect) MapDataType(genericType string, size int, autoIncrement, _ bool) string {
	switch strings.ToLower(genericType) {
	case "string":
		if size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", size)
		}
		return "TEXT"
	case "number":
		if autoIncrement {
			return "SERIAL"
		}
		return "INTEGER"
	case "boolean":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "datetime":
		return "TIMESTAMP"
	default:
		return genericType
	}
}

func (p *postgresDialect) CreateViewSQL(cv CreateView) (string, error) {
	if cv.OrReplace {
		return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s;", p.QuoteIdentifier(cv.Name), cv.Definition), nil
	}
	return fmt.Sprintf("CREATE VIEW %s AS %s;", p.QuoteIdentifier(cv.Name), cv.Definition), nil
}

func (p *postgresDialect) DropViewSQL(dv DropView) (string, error) {
	cascade := ""
	if dv.Cascade {
		cascade = " CASCADE"
	}
	if dv.IfExists {
		return fmt.Sprintf("DROP VIEW IF EXISTS %s%s;", p.QuoteIdentifier(dv.Name), cascade), nil
	}
	return fmt.Sprintf("DROP VIEW %s%s;", p.QuoteIdentifier(dv.Name), cascade), nil
}

func (p *postgresDialect) RenameViewSQL(rv RenameView) (string, error) {
	return fmt.Sprintf("ALTER VIEW %s RENAME TO %s;", p.QuoteIdentifier(rv.OldName), p.QuoteIdentifier(rv.NewName)), nil
}

func (p *postgresDialect) CreateFunctionSQL(cf CreateFunction) (string, error) {
	if cf.OrReplace {
		return fmt.Sprintf("CREATE OR REPLACE FUNCTION %s AS %s;", p.QuoteIdentifier(cf.Name), cf.Definition), nil
	}
	return fmt.Sprintf("CREATE FUNCTION %s AS %s;", p.QuoteIdentifier(cf.Name), cf.Definition), nil
}

func (p *postgresDialect) DropFunctionSQL(df DropFunction) (string, error) {
	cascade := ""
	if df.Cascade {
		cascade = " CASCADE"
	}
	if df.IfExists {
		return fmt.Sprintf("DROP FUNCTION IF EXISTS %s%s;", p.QuoteIdentifier(df.Name), cascade), nil
	}
	return fmt.Sprintf("DROP FUNCTION %s%s;", p.QuoteIdentifier(df.Name), cascade), nil
}

func (p *postgresDialect) RenameFunctionSQL(rf RenameFunction) (string, error) {
	return fmt.Sprintf("ALTER FUNCTION %s RENAME TO %s;", p.QuoteIdentifier(rf.OldName), p.QuoteIdentifier(rf.NewName)), nil
}

func (p *postgresDialect) CreateProcedureSQL(cp CreateProcedure) (string, error) {
	if cp.OrReplace {
		return fmt.Sprintf("CREATE OR REPLACE PROCEDURE %s AS %s;", p.QuoteIdentifier(cp.Name), cp.Definition), nil
	}
	return fmt.Sprintf("CREATE PROCEDURE %s AS %s;", p.QuoteIdentifier(cp.Name), cp.Definition), nil
}

func (p *postgresDialect) DropProcedureSQL(dp DropProcedure) (string, error) {
	cascade := ""
	if dp.Cascade {
		cascade = " CASCADE"
	}
	if dp.IfExists {
		return fmt.Sprintf("DROP PROCEDURE IF EXISTS %s%s;", p.QuoteIdentifier(dp.Name), cascade), nil
	}
	return fmt.Sprintf("DROP PROCEDURE %s%s;", p.QuoteIdentifier(dp.Name), cascade), nil
}

func (p *postgresDialect) RenameProcedureSQL(rp RenameProcedure) (string, error) {
	return fmt.Sprintf("ALTER PROCEDURE %s RENAME TO %s;", p.QuoteIdentifier(rp.OldName), p.QuoteIdentifier(rp.NewName)), nil
}

func (p *postgresDialect) CreateTriggerSQL(ct CreateTrigger) (string, error) {
	if ct.OrReplace {
		return fmt.Sprintf("CREATE OR REPLACE TRIGGER %s %s;", p.QuoteIdentifier(ct.Name), ct.Definition), nil
	}
	return fmt.Sprintf("CREATE TRIGGER %s %s;", p.QuoteIdentifier(ct.Name), ct.Definition), nil
}

func (p *postgresDialect) DropTriggerSQL(dt DropTrigger) (string, error) {
	cascade := ""
	if dt.Cascade {
		cascade = " CASCADE"
	}
	if dt.IfExists {
		return fmt.Sprintf("DROP TRIGGER IF EXISTS %s%s;", p.QuoteIdentifier(dt.Name), cascade), nil
	}
	return fmt.Sprintf("DROP TRIGGER %s%s;", p.QuoteIdentifier(dt.Name), cascade), nil
}

func (p *postgresDialect) RenameTriggerSQL(rt RenameTrigger) (string, error) {
	return fmt.Sprintf("ALTER TRIGGER %s RENAME TO %s;", p.QuoteIdentifier(rt.OldName), p.QuoteIdentifier(rt.NewName)), nil
}

func (p *postgresDialect) WrapInTransaction(queries []string) []string {
	return append(append([]string{"BEGIN;"}, queries...), "COMMIT;")
}

func (p *postgresDialect) WrapInTransactionWithConfig(queries []string, trans Transaction) []string {
	begin := "BEGIN;"
	if trans.IsolationLevel != "" {
		begin = fmt.Sprintf("BEGIN TRANSACTION ISOLATION LEVEL %s;", trans.IsolationLevel)
	}
	return append(append([]string{begin}, queries...), "COMMIT;")
}
