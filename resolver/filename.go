// Package resolver discovers migration scripts on the filesystem and
// turns them into schema.ResolvedMigration values the engine can plan
// against: SQL scripts parsed by sqlparse, .bcl scripts compiled by the
// dsl package.
package resolver

import (
	"fmt"
	"strings"
)

// scriptKind tags which executor a discovered file needs.
type scriptKind int

const (
	kindSQL scriptKind = iota
	kindDSL
)

// parsedName is a migration filename's decoded components.
type parsedName struct {
	versioned   bool
	version     string
	description string
	kind        scriptKind
}

// parseFilename recognizes three shapes: a versioned script
// `V<version>__<description>.{sql,bcl}` and a repeatable script
// `R__<description>.{sql,bcl}`, matching Flyway's own naming convention
// (`V1__a.sql`, `V2__b.sql`), plus a versioned script whose name starts
// with a run of at least eight digits and an underscore
// (`20240102150405_add_users.sql`).
func parseFilename(name string) (parsedName, bool) {
	var kind scriptKind
	var base string
	switch {
	case strings.HasSuffix(name, ".sql"):
		kind = kindSQL
		base = strings.TrimSuffix(name, ".sql")
	case strings.HasSuffix(name, ".bcl"):
		kind = kindDSL
		base = strings.TrimSuffix(name, ".bcl")
	default:
		return parsedName{}, false
	}

	switch {
	case strings.HasPrefix(base, "V"):
		rest := strings.TrimPrefix(base, "V")
		parts := strings.SplitN(rest, "__", 2)
		if len(parts) != 2 || parts[0] == "" {
			return parsedName{}, false
		}
		return parsedName{
			versioned:   true,
			version:     parts[0],
			description: humanizeDescription(parts[1]),
			kind:        kind,
		}, true
	case strings.HasPrefix(base, "R__"):
		desc := strings.TrimPrefix(base, "R__")
		if desc == "" {
			return parsedName{}, false
		}
		return parsedName{
			versioned:   false,
			description: humanizeDescription(desc),
			kind:        kind,
		}, true
	default:
		// Timestamp-prefixed style (20240102150405_add_users.sql): the
		// leading run of digits becomes the version, ordered the same
		// way a dotted version would be since all prefixes share the
		// same width.
		digits := 0
		for digits < len(base) && base[digits] >= '0' && base[digits] <= '9' {
			digits++
		}
		if digits < 8 || digits >= len(base) || base[digits] != '_' {
			return parsedName{}, false
		}
		desc := base[digits+1:]
		if desc == "" {
			return parsedName{}, false
		}
		return parsedName{
			versioned:   true,
			version:     base[:digits],
			description: humanizeDescription(desc),
			kind:        kind,
		}, true
	}
}

func humanizeDescription(raw string) string {
	return strings.ReplaceAll(raw, "_", " ")
}

// validateDirEntry is a small guard used while walking the migrations
// directory: it rejects an entry name containing "..". Files that match
// no naming convention are not its concern; Resolve skips them (via
// parseFilename) rather than erroring, since a migrations directory
// commonly holds README files alongside real scripts.
func validateDirEntry(name string) error {
	if strings.Contains(name, "..") {
		return fmt.Errorf("resolver: suspicious path component in %q", name)
	}
	return nil
}
