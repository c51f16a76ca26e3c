// Package sqlparse splits a SQL script into individual statements and
// classifies each one's transactionality, reproducing the quirks real
// database dialects need: dollar-quoted string literals, BEGIN ATOMIC /
// CASE ... END block nesting, and COPY ... FROM STDIN inline payloads.
//
// The core tokenizer here is dialect-agnostic; everything dialect-specific
// is dispatched through the DialectHooks capability set (hooks.go), keeping
// generic token scanning separate from grammar-specific node construction.
package sqlparse

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/oarkflow/migrator/schema"
)

// ParsingContext carries per-parse settings for the core tokenizer: the
// script's delimiter. The server-version input of the ALTER TYPE ADD
// VALUE quirk lives on the dialect's hooks, not here.
type ParsingContext struct {
	Delimiter Delimiter
}

// Parse tokenizes src into a sequence of ParsedStatements using hooks for
// every dialect-specific decision. Statement boundaries are governed by
// ctx.Delimiter, masked while block or paren depth is non-zero.
func Parse(src string, ctx ParsingContext, hooks DialectHooks) ([]ParsedStatement, error) {
	if ctx.Delimiter.Text == "" {
		ctx.Delimiter = DefaultDelimiter
	}
	r := NewReader(src)
	var statements []ParsedStatement

	for {
		skipWhitespace(r)
		if r.Eof() {
			return statements, nil
		}
		stmt, err := parseOneStatement(r, ctx, hooks)
		if err != nil {
			return statements, err
		}
		if strings.TrimSpace(stmt.SQL) == "" {
			continue
		}
		if stmt.Type == TypeCopy {
			payload, err := ReadCopyData(r)
			if err != nil {
				return statements, &schema.ParseError{Message: err.Error(), Line: stmt.Line, Column: stmt.Column}
			}
			stmt.CopyData = payload
		}
		statements = append(statements, stmt)
	}
}

func parseOneStatement(r *Reader, ctx ParsingContext, hooks DialectHooks) (ParsedStatement, error) {
	startOffset, startLine, startCol := r.Pos()

	var raw strings.Builder
	var parenDepth int
	block := &BlockState{}
	prevKeyword := ""
	delim := ctx.Delimiter.Text

	altQuote, hasAltQuote := hooks.AlternativeStringLiteralQuote()

	for {
		b, ok := r.Peek()
		if !ok {
			break
		}

		switch {
		case b == '\'':
			consumeSimpleString(r, &raw, '\'')
			continue
		case b == '"':
			consumeSimpleString(r, &raw, '"')
			continue
		case hasAltQuote && b == altQuote:
			_, _ = r.Read()
			raw.WriteByte(b)
			lit, err := hooks.ReadAlternativeStringLiteral(r)
			if err != nil {
				return ParsedStatement{}, &schema.ParseError{
					Message: err.Error(), Line: startLine, Column: startCol,
				}
			}
			raw.WriteString(lit)
			continue
		case b == '-' && peekByte(r, 1) == '-':
			consumeLineComment(r, &raw)
			continue
		case b == '/' && peekByte(r, 1) == '*':
			if err := consumeBlockComment(r, &raw); err != nil {
				return ParsedStatement{}, &schema.ParseError{Message: err.Error(), Line: startLine, Column: startCol}
			}
			continue
		case b == '(':
			_, _ = r.Read()
			raw.WriteByte(b)
			parenDepth++
			continue
		case b == ')':
			_, _ = r.Read()
			raw.WriteByte(b)
			if parenDepth > 0 {
				parenDepth--
			}
			continue
		case isIdentStart(b):
			word := consumeWord(r)
			raw.WriteString(word)
			upper := strings.ToUpper(word)
			hooks.AdjustBlockDepth(block, upper, prevKeyword, parenDepth)
			prevKeyword = upper
			continue
		}

		// Candidate delimiter match, only terminates the statement when
		// not nested inside parens or a dialect block.
		if parenDepth == 0 && block.Depth() == 0 && r.PeekString(delim) {
			r.Swallow(len(delim))
			return finishStatement(raw.String(), startOffset, startLine, startCol, ctx, hooks)
		}

		_, _ = r.Read()
		raw.WriteByte(b)
	}

	text := strings.TrimSpace(raw.String())
	if text == "" {
		return ParsedStatement{}, nil
	}
	return finishStatement(raw.String(), startOffset, startLine, startCol, ctx, hooks)
}

func finishStatement(rawText string, startOffset, startLine, startCol int, ctx ParsingContext, hooks DialectHooks) (ParsedStatement, error) {
	simplified := simplify(rawText)
	stmtType := hooks.DetectStatementType(simplified)

	stmt := ParsedStatement{
		StartOffset: startOffset,
		Line:        startLine,
		Column:      startCol,
		SQL:         strings.TrimSpace(rawText),
		Type:        stmtType,
		Delimiter:   ctx.Delimiter,
		Batchable:   true,
	}

	switch hooks.DetectCanExecuteInTransaction(simplified) {
	case schema.Yes:
		t := true
		stmt.CanExecuteInTransaction = &t
	case schema.No:
		f := false
		stmt.CanExecuteInTransaction = &f
	default:
		stmt.CanExecuteInTransaction = nil
	}

	return stmt, nil
}

// ReadCopyData consumes a COPY ... FROM STDIN payload from r, which must
// be positioned just after the statement's terminating delimiter. It skips
// to the end of the current line, then reads lines verbatim until one
// whose trimmed content is exactly "\.", discarding the sentinel.
func ReadCopyData(r *Reader) (string, error) {
	if _, err := r.ReadUntilIncluding('\n'); err != nil {
		// EOF here is not reported yet; the loop below reports the
		// missing "\." terminator.
	}
	var sb strings.Builder
	for {
		line, err := r.ReadUntilIncluding('\n')
		if line == "" && err != nil {
			return "", fmt.Errorf("unexpected EOF inside COPY payload")
		}
		if strings.TrimSpace(line) == `\.` {
			return sb.String(), nil
		}
		sb.WriteString(line)
		if err != nil {
			return sb.String(), nil
		}
	}
}

func consumeSimpleString(r *Reader, raw *strings.Builder, quote byte) {
	b, _ := r.Read()
	raw.WriteByte(b)
	for {
		c, ok := r.Peek()
		if !ok {
			return
		}
		_, _ = r.Read()
		raw.WriteByte(c)
		if c == quote {
			if next, ok := r.Peek(); ok && next == quote {
				_, _ = r.Read()
				raw.WriteByte(next)
				continue
			}
			return
		}
	}
}

func consumeLineComment(r *Reader, raw *strings.Builder) {
	for {
		b, ok := r.Peek()
		if !ok || b == '\n' {
			return
		}
		_, _ = r.Read()
		raw.WriteByte(b)
	}
}

func consumeBlockComment(r *Reader, raw *strings.Builder) error {
	_, _ = r.Read()
	raw.WriteByte('/')
	_, _ = r.Read()
	raw.WriteByte('*')
	for {
		b, ok := r.Peek()
		if !ok {
			return fmt.Errorf("unterminated block comment")
		}
		if b == '*' && peekByte(r, 1) == '/' {
			_, _ = r.Read()
			raw.WriteByte('*')
			_, _ = r.Read()
			raw.WriteByte('/')
			return nil
		}
		_, _ = r.Read()
		raw.WriteByte(b)
	}
}

func consumeWord(r *Reader) string {
	var sb strings.Builder
	for {
		b, ok := r.Peek()
		if !ok || !isIdentPart(b) {
			return sb.String()
		}
		_, _ = r.Read()
		sb.WriteByte(b)
	}
}

func isIdentStart(b byte) bool {
	return unicode.IsLetter(rune(b)) || b == '_'
}

func isIdentPart(b byte) bool {
	return unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b)) || b == '_'
}

// skipWhitespace advances r past any run of whitespace at the cursor.
func skipWhitespace(r *Reader) {
	for {
		b, ok := r.Peek()
		if !ok || !unicode.IsSpace(rune(b)) {
			return
		}
		_, _ = r.Read()
	}
}

func peekByte(r *Reader, n int) byte {
	b, ok := r.PeekAt(n)
	if !ok {
		return 0
	}
	return b
}

// simplify collapses whitespace to single spaces, strips SQL comments, and
// upper-cases the result, matching what the dialect regexes expect.
func simplify(sql string) string {
	var sb strings.Builder
	r := NewReader(sql)
	lastWasSpace := false
	for {
		b, ok := r.Peek()
		if !ok {
			break
		}
		switch {
		case b == '-' && peekByte(r, 1) == '-':
			for {
				c, ok := r.Peek()
				if !ok || c == '\n' {
					break
				}
				_, _ = r.Read()
			}
			continue
		case b == '/' && peekByte(r, 1) == '*':
			_, _ = r.Read()
			_, _ = r.Read()
			for {
				c, ok := r.Peek()
				if !ok {
					break
				}
				if c == '*' && peekByte(r, 1) == '/' {
					_, _ = r.Read()
					_, _ = r.Read()
					break
				}
				_, _ = r.Read()
			}
			continue
		case unicode.IsSpace(rune(b)):
			_, _ = r.Read()
			if !lastWasSpace {
				sb.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		default:
			_, _ = r.Read()
			sb.WriteByte(b)
			lastWasSpace = false
		}
	}
	return strings.ToUpper(strings.TrimSpace(sb.String()))
}
