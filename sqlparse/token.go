package sqlparse

// StatementType tags the handling a statement needs beyond ordinary
// tokenization. Most statements are TypeGeneric; COPY FROM STDIN is the
// one dialect-visible exception.
type StatementType int

const (
	TypeGeneric StatementType = iota
	TypeCopy
)

// Delimiter is the statement terminator. Parse uses one delimiter for the
// whole script; a client-side `DELIMITER $$` command is not recognized.
type Delimiter struct {
	Text string
}

var DefaultDelimiter = Delimiter{Text: ";"}

// ParsedStatement is one statement extracted from a script.
type ParsedStatement struct {
	StartOffset int
	Line        int
	Column      int
	SQL         string
	Type        StatementType
	// CanExecuteInTransaction is nil when the dialect hook abstains
	// (Inherit); the engine then applies its own default.
	CanExecuteInTransaction *bool
	Delimiter               Delimiter
	Batchable               bool
	// CopyData holds the inline payload for a COPY ... FROM STDIN
	// statement; empty for every other statement type.
	CopyData string
}
