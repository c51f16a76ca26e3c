// Package schema holds the value types shared by every other package in
// this module: migration versions, resolved and applied migration records,
// the derived info snapshot, and the migration-engine error taxonomy.
package schema

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// MigrationVersion is a dotted numeric sequence such as "1.2.3". Versions
// compare component-wise, numerically, left to right; a shorter version is
// padded with implicit zero components ("1.2" == "1.2.0").
type MigrationVersion struct {
	raw        string
	components []int64
}

// Empty is the sentinel version that precedes every real version.
var Empty = MigrationVersion{raw: ""}

// NewVersion parses a dotted numeric version string. An empty string
// yields Empty. Components must be non-negative integers; NewVersion
// returns an error for anything else (letters, signs, empty components).
func NewVersion(raw string) (MigrationVersion, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Empty, nil
	}
	parts := strings.Split(raw, ".")
	components := make([]int64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return MigrationVersion{}, &ParseError{Message: "empty version component", Context: raw}
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return MigrationVersion{}, &ParseError{Message: "non-numeric version component", Context: raw}
		}
		components = append(components, n)
	}
	return MigrationVersion{raw: raw, components: components}, nil
}

// MustVersion is NewVersion, panicking on error; intended for literals in
// tests and static tables, never for user input.
func MustVersion(raw string) MigrationVersion {
	v, err := NewVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// IsEmpty reports whether v is the Empty sentinel.
func (v MigrationVersion) IsEmpty() bool {
	return len(v.components) == 0
}

// String renders the version in its original dotted form.
func (v MigrationVersion) String() string {
	return v.raw
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, comparing components left to right and treating missing trailing
// components as zero. Empty sorts before every non-empty version.
func (v MigrationVersion) Compare(other MigrationVersion) int {
	if v.IsEmpty() && other.IsEmpty() {
		return 0
	}
	if v.IsEmpty() {
		return -1
	}
	if other.IsEmpty() {
		return 1
	}
	n := len(v.components)
	if len(other.components) > n {
		n = len(other.components)
	}
	for i := 0; i < n; i++ {
		var a, b int64
		if i < len(v.components) {
			a = v.components[i]
		}
		if i < len(other.components) {
			b = other.components[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports v < other, for use with sort.Slice.
func (v MigrationVersion) Less(other MigrationVersion) bool {
	return v.Compare(other) < 0
}

// Equal reports v == other.
func (v MigrationVersion) Equal(other MigrationVersion) bool {
	return v.Compare(other) == 0
}

// Value implements driver.Valuer so a MigrationVersion can be written
// directly into a nullable VARCHAR history column: Empty stores as SQL
// NULL.
func (v MigrationVersion) Value() (driver.Value, error) {
	if v.IsEmpty() {
		return nil, nil
	}
	return v.raw, nil
}

// Scan implements sql.Scanner, the inverse of Value.
func (v *MigrationVersion) Scan(src any) error {
	if src == nil {
		*v = Empty
		return nil
	}
	var raw string
	switch s := src.(type) {
	case string:
		raw = s
	case []byte:
		raw = string(s)
	default:
		return fmt.Errorf("schema: cannot scan %T into MigrationVersion", src)
	}
	parsed, err := NewVersion(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
