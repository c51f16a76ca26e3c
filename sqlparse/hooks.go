package sqlparse

import "github.com/oarkflow/migrator/schema"

// BlockState tracks the nesting of dialect-specific block constructs
// (Postgres' BEGIN ATOMIC / CASE ... END) across the statement's tokens.
// The zero value is "not inside a block".
type BlockState struct {
	depth     int
	initiator string
}

// Depth reports the current block nesting depth.
func (b *BlockState) Depth() int { return b.depth }

// Initiator reports which construct opened the outermost active block
// ("ATOMIC", "CASE", or "" when not inside one).
func (b *BlockState) Initiator() string { return b.initiator }

// Increase opens one more level of block nesting, recording initiator the
// first time depth transitions from zero.
func (b *BlockState) Increase(initiator string) {
	if b.depth == 0 {
		b.initiator = initiator
	}
	b.depth++
}

// Decrease closes one level of block nesting.
func (b *BlockState) Decrease() {
	if b.depth > 0 {
		b.depth--
	}
	if b.depth == 0 {
		b.initiator = ""
	}
}

// DialectHooks is the capability set the parser core dispatches to for
// everything that varies by database. The core handles delimiter-based
// statement splitting, generic single/double-quote strings, comments, and
// paren depth; hooks handle dialect quirks like dollar-quoting and block
// constructs.
type DialectHooks interface {
	// AlternativeStringLiteralQuote returns the sentinel byte that opens a
	// dialect-specific string form (e.g. '$' for Postgres), and whether
	// one exists at all.
	AlternativeStringLiteralQuote() (byte, bool)

	// ReadAlternativeStringLiteral is called with the reader positioned
	// just after the sentinel byte, which the core has already appended
	// to the statement text; it must consume through the closing
	// terminator and return the literal's remaining raw source text
	// (everything after the sentinel, through the closing delimiter), so
	// the core can append it verbatim.
	ReadAlternativeStringLiteral(r *Reader) (string, error)

	// DetectStatementType lets a hook recognize statements needing
	// special tokenization (Postgres' COPY ... FROM STDIN).
	DetectStatementType(simplified string) StatementType

	// DetectCanExecuteInTransaction returns the dialect's verdict for a
	// simplified (whitespace-collapsed, upper-cased) statement.
	DetectCanExecuteInTransaction(simplified string) schema.TriState

	// AdjustBlockDepth is invoked once per keyword token outside of any
	// string/comment, with the previous keyword token's text (or "" at
	// the start of a statement) and the current paren depth, so the hook
	// can recognize constructs like "BEGIN" immediately followed by
	// "ATOMIC".
	AdjustBlockDepth(state *BlockState, keyword, prevKeyword string, parenDepth int)
}
