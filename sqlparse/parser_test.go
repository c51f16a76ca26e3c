package sqlparse_test

import (
	"testing"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/sqlparse"
)

func parsePostgres(t *testing.T, src string) []sqlparse.ParsedStatement {
	t.Helper()
	stmts, err := sqlparse.Parse(src, sqlparse.ParsingContext{Delimiter: sqlparse.DefaultDelimiter}, dialect.PostgresHooks{ServerVersionUnder12: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return stmts
}

func TestParseSplitsOnDelimiter(t *testing.T) {
	stmts := parsePostgres(t, "SELECT 1; SELECT 2;")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
}

func TestDollarQuoteRoundTrip(t *testing.T) {
	stmts := parsePostgres(t, `SELECT $a$hello $world$ still in$a$;`)
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	want := `SELECT $a$hello $world$ still in$a$`
	if stmts[0].SQL != want {
		t.Fatalf("got %q want %q", stmts[0].SQL, want)
	}
}

func TestCopyFromStdinPayload(t *testing.T) {
	src := "COPY t(a) FROM STDIN;\n1\n2\n\\.\n"
	stmts := parsePostgres(t, src)
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	if stmts[0].Type != sqlparse.TypeCopy {
		t.Fatalf("expected TypeCopy, got %v", stmts[0].Type)
	}
	if stmts[0].CopyData != "1\n2\n" {
		t.Fatalf("unexpected copy data: %q", stmts[0].CopyData)
	}
}

func TestNonTransactionalStatements(t *testing.T) {
	cases := []string{
		"CREATE DATABASE foo;",
		"ALTER SYSTEM SET work_mem = '64MB';",
		"CREATE INDEX CONCURRENTLY idx_foo ON t(a);",
		"REINDEX SCHEMA public;",
		"VACUUM;",
		"DISCARD ALL;",
	}
	for _, sql := range cases {
		stmts := parsePostgres(t, sql)
		if len(stmts) != 1 {
			t.Fatalf("%q: expected 1 statement, got %d", sql, len(stmts))
		}
		if stmts[0].CanExecuteInTransaction == nil || *stmts[0].CanExecuteInTransaction {
			t.Fatalf("%q: expected canExecuteInTransaction=false", sql)
		}
	}
}

func TestOrdinaryStatementsInheritTransactionality(t *testing.T) {
	cases := []string{"SELECT 1;", "INSERT INTO t VALUES(1);"}
	for _, sql := range cases {
		stmts := parsePostgres(t, sql)
		if len(stmts) != 1 {
			t.Fatalf("%q: expected 1 statement, got %d", sql, len(stmts))
		}
		if stmts[0].CanExecuteInTransaction != nil {
			t.Fatalf("%q: expected inherit (nil), got %v", sql, *stmts[0].CanExecuteInTransaction)
		}
	}
}

func TestAlterTypeAddValueUnderVersion12(t *testing.T) {
	stmts := parsePostgres(t, "ALTER TYPE color ADD VALUE 'blue';")
	if stmts[0].CanExecuteInTransaction == nil || *stmts[0].CanExecuteInTransaction {
		t.Fatalf("expected non-transactional under server version 12")
	}
}

func TestBeginAtomicBlockDepthMasksDelimiter(t *testing.T) {
	src := "CREATE FUNCTION f() RETURNS int BEGIN ATOMIC SELECT 1; SELECT 2; END;"
	stmts := parsePostgres(t, src)
	if len(stmts) != 1 {
		t.Fatalf("expected the semicolons inside BEGIN ATOMIC...END to be masked, got %d statements", len(stmts))
	}
}
