package dialect

import (
	"fmt"
	"regexp"

	"github.com/oarkflow/migrator/schema"
	"github.com/oarkflow/migrator/sqlparse"
)

// PostgresHooks implements sqlparse.DialectHooks for PostgreSQL: dollar
// quoting, BEGIN ATOMIC / CASE block depth, COPY FROM STDIN detection, and
// the non-transactional statement families.
type PostgresHooks struct {
	// ServerVersionUnder12 mirrors PostgreSQLParser's isDBVerUnder12.
	// HooksFor sets the conservative value true, so ALTER TYPE ADD VALUE
	// is treated as non-transactional. Nothing in this module queries the
	// server version, so that value is not changed after connecting.
	ServerVersionUnder12 bool
}

var _ sqlparse.DialectHooks = (*PostgresHooks)(nil)

func (PostgresHooks) AlternativeStringLiteralQuote() (byte, bool) {
	return '$', true
}

// ReadAlternativeStringLiteral implements Postgres' dollar-quoting: the
// reader is positioned just after the opening '$' (already written to the
// caller's output by the time this is called); it reads the (possibly
// empty) tag up to and including the next '$', then swallows everything
// up to the identical tag reappearing. The returned text must include the
// tag itself, since the caller only wrote the bare leading '$' byte before
// calling this hook.
func (PostgresHooks) ReadAlternativeStringLiteral(r *sqlparse.Reader) (string, error) {
	tag, err := r.ReadUntilIncluding('$')
	if err != nil {
		return "", err
	}
	dollarQuote := "$" + tag
	body, err := r.SwallowUntilExcluding(dollarQuote)
	if err != nil {
		return "", err
	}
	r.Swallow(len(dollarQuote))
	return tag + body + dollarQuote, nil
}

var copyFromStdinRegex = regexp.MustCompile(`^COPY( .*)? FROM STDIN`)

func (PostgresHooks) DetectStatementType(simplified string) sqlparse.StatementType {
	if copyFromStdinRegex.MatchString(simplified) {
		return sqlparse.TypeCopy
	}
	return sqlparse.TypeGeneric
}

func (h PostgresHooks) DetectCanExecuteInTransaction(simplified string) schema.TriState {
	d := postgresDialect{}
	return d.DetectCanExecuteInTransaction(simplified, h.ServerVersionUnder12)
}

// AdjustBlockDepth reproduces PostgreSQLParser.adjustBlockDepth: "BEGIN"
// immediately followed by "ATOMIC" opens a block; "CASE" inside an ATOMIC
// block opens another; "END" closes one level while inside either.
func (PostgresHooks) AdjustBlockDepth(state *sqlparse.BlockState, keyword, prevKeyword string, parenDepth int) {
	if parenDepth == 0 && prevKeyword == "BEGIN" && keyword == "ATOMIC" {
		state.Increase("ATOMIC")
	}
	if keyword == "CASE" && state.Initiator() == "ATOMIC" {
		state.Increase("CASE")
	}
	if state.Depth() > 0 && keyword == "END" && (state.Initiator() == "ATOMIC" || state.Initiator() == "CASE") {
		state.Decrease()
	}
}

// MySQLHooks implements sqlparse.DialectHooks for MySQL. MySQL has no
// dollar-quoting or COPY-style bulk load statement and no block-nesting
// construct the parser needs to track beyond parens, so most hooks are
// no-ops; index statements are flagged non-transactional (see mysql.go).
type MySQLHooks struct{}

var _ sqlparse.DialectHooks = MySQLHooks{}

func (MySQLHooks) AlternativeStringLiteralQuote() (byte, bool) { return 0, false }
func (MySQLHooks) ReadAlternativeStringLiteral(*sqlparse.Reader) (string, error) {
	return "", nil
}
func (MySQLHooks) DetectStatementType(string) sqlparse.StatementType { return sqlparse.TypeGeneric }
func (MySQLHooks) DetectCanExecuteInTransaction(simplified string) schema.TriState {
	d := mysqlDialect{}
	return d.DetectCanExecuteInTransaction(simplified, false)
}
func (MySQLHooks) AdjustBlockDepth(*sqlparse.BlockState, string, string, int) {}

// SQLiteHooks implements sqlparse.DialectHooks for SQLite, which likewise
// needs no dialect-specific string or block handling for the statement
// shapes this engine generates and runs.
type SQLiteHooks struct{}

var _ sqlparse.DialectHooks = SQLiteHooks{}

func (SQLiteHooks) AlternativeStringLiteralQuote() (byte, bool) { return 0, false }
func (SQLiteHooks) ReadAlternativeStringLiteral(*sqlparse.Reader) (string, error) {
	return "", nil
}
func (SQLiteHooks) DetectStatementType(string) sqlparse.StatementType { return sqlparse.TypeGeneric }
func (SQLiteHooks) DetectCanExecuteInTransaction(simplified string) schema.TriState {
	d := sqliteDialect{}
	return d.DetectCanExecuteInTransaction(simplified, false)
}
func (SQLiteHooks) AdjustBlockDepth(*sqlparse.BlockState, string, string, int) {}

// HooksFor returns the sqlparse.DialectHooks implementation for name, so
// callers that only have a dialect name (the resolver, reading a script
// off disk) don't need a parallel switch over Postgres/MySQL/SQLite.
func HooksFor(name Name) (sqlparse.DialectHooks, error) {
	switch name {
	case Postgres:
		return PostgresHooks{ServerVersionUnder12: true}, nil
	case MySQL:
		return MySQLHooks{}, nil
	case SQLite:
		return SQLiteHooks{}, nil
	default:
		return nil, fmt.Errorf("dialect: unknown dialect %q", name)
	}
}
