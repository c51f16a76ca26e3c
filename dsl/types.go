// Package dsl implements the procedural migration format: schema changes
// authored as bcl blocks instead of hand-written SQL, compiled to dialect
// SQL through the dialect package, and able to validate themselves against
// a live connection before and after running.
//
// CreateTable/AlterTable/DropTable/... blocks nest under Up/Down, and
// every operation's SQL generation is delegated to a dialect.Dialect
// instead of a per-type switch over a dialect string, so the same parsed
// Migration compiles against Postgres, MySQL, or SQLite.
package dsl

import "github.com/oarkflow/migrator/dialect"

// Config is the root of a parsed .bcl migration file: one or more named
// Migration blocks.
type Config struct {
	Migrations []Migration `json:"Migration"`
}

// Migration is one procedural migration: a version/description pair, its
// up and down operation sequences, an optional transaction override, and
// any Validate blocks guarding it.
type Migration struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"Version"`
	Description string                 `json:"Description"`
	Up          []Operation            `json:"Up"`
	Down        []Operation            `json:"Down"`
	Transaction []dialect.Transaction  `json:"Transaction"`
	Validate    []Validation           `json:"Validate"`
}

// Operation groups the schema changes a single Up or Down block declares.
// Every field is optional; an Operation with none set compiles to no SQL.
type Operation struct {
	Name                 string                          `json:"name"`
	CreateTable          []dialect.CreateTable          `json:"CreateTable,omitempty"`
	AlterTable           []dialect.AlterTable           `json:"AlterTable,omitempty"`
	DeleteData           []dialect.DeleteData           `json:"DeleteData,omitempty"`
	DropEnumType         []dialect.DropEnumType         `json:"DropEnumType,omitempty"`
	DropRowPolicy        []dialect.DropRowPolicy        `json:"DropRowPolicy,omitempty"`
	DropMaterializedView []dialect.DropMaterializedView `json:"DropMaterializedView,omitempty"`
	DropTable            []dialect.DropTable            `json:"DropTable,omitempty"`
	DropSchema           []dialect.DropSchema           `json:"DropSchema,omitempty"`
	RenameTable          []dialect.RenameTable          `json:"RenameTable,omitempty"`
	CreateView           []dialect.CreateView           `json:"CreateView,omitempty"`
	DropView             []dialect.DropView             `json:"DropView,omitempty"`
	RenameView           []dialect.RenameView           `json:"RenameView,omitempty"`
}

// Validation is a named group of expressions evaluated against a live
// connection: PreUpChecks before the Up operations run, PostUpChecks
// after. Each expression is bcl syntax evaluated in a fresh, empty
// Environment (see executor.go); live data comes in through the query()
// function (see functions.go). A falsy or erroring result fails the
// migration.
type Validation struct {
	Name         string   `json:"name"`
	PreUpChecks  []string `json:"PreUpChecks,omitempty"`
	PostUpChecks []string `json:"PostUpChecks,omitempty"`
}
