// Package engine implements the migration-planning-and-execution core:
// the Migration Info Service, the Group Planner, the Execution Template,
// and the top-level Migration Executor. It is deliberately decoupled from
// any one database driver: callers supply a history.Store, a
// dialect.Dialect, and a ConnectionProvider.
package engine

import (
	"os/user"
	"strings"

	"github.com/oarkflow/migrator/schema"
)

// TargetKind distinguishes an explicit version target from the three
// sentinel targets below.
type TargetKind int

const (
	TargetLatest TargetKind = iota
	TargetNext
	TargetCurrent
	TargetVersion
)

// Target is the upper bound configuration.target resolves to.
type Target struct {
	Kind    TargetKind
	Version schema.MigrationVersion
}

// Latest, Next, and Current are the three sentinel targets; use
// NewVersionTarget for an explicit version bound.
var (
	Latest  = Target{Kind: TargetLatest}
	Next    = Target{Kind: TargetNext}
	Current = Target{Kind: TargetCurrent}
)

// NewVersionTarget builds an explicit version bound.
func NewVersionTarget(v schema.MigrationVersion) Target {
	return Target{Kind: TargetVersion, Version: v}
}

// IgnorePattern matches a MigrationInfo by migration kind and state, in
// Flyway's "<kind>:<state>" shape (either half may be "*"). Kind is one of
// "versioned", "repeatable", or "*"; State is a lower-cased schema.State
// name or "*".
type IgnorePattern struct {
	Kind  string
	State string
}

// ParseIgnorePattern parses "kind:state"; an empty kind or state defaults
// to "*".
func ParseIgnorePattern(raw string) IgnorePattern {
	kind, state := "*", "*"
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		kind, state = raw[:idx], raw[idx+1:]
	} else {
		state = raw
	}
	if kind == "" {
		kind = "*"
	}
	if state == "" {
		state = "*"
	}
	return IgnorePattern{Kind: strings.ToLower(kind), State: strings.ToLower(state)}
}

// Matches reports whether pattern covers the migration's kind and state.
func (p IgnorePattern) Matches(versioned bool, state schema.State) bool {
	if p.Kind != "*" {
		wantVersioned := p.Kind == "versioned"
		if wantVersioned != versioned {
			return false
		}
	}
	if p.State != "*" && p.State != strings.ToLower(string(state)) {
		return false
	}
	return true
}

// IgnorePatterns is a set of patterns tested with AnyMatches.
type IgnorePatterns []IgnorePattern

func (ps IgnorePatterns) AnyMatches(versioned bool, state schema.State) bool {
	for _, p := range ps {
		if p.Matches(versioned, state) {
			return true
		}
	}
	return false
}

// Configuration carries the options that tune one migration run.
type Configuration struct {
	// Group: one transaction over the whole run vs. one per migration.
	Group bool
	// Mixed: allow transactional and non-transactional migrations in one
	// group; when false a mixed group fails planning.
	Mixed bool
	// OutOfOrder allows applying pending versions below the current max.
	OutOfOrder bool
	// Target bounds which pending migrations are eligible.
	Target Target
	// CherryPick restricts pending to an explicit allow-list of versions
	// (dotted string form) or repeatable descriptions.
	CherryPick []string
	// SkipExecutingMigrations records history rows without running the
	// migration body, for baseline-style adoption.
	SkipExecutingMigrations bool
	// IgnoreMigrationPatterns downgrades specified states from
	// errors/warnings to silence.
	IgnoreMigrationPatterns IgnorePatterns
	// InstalledBy overrides the schema_history.installed_by value; empty
	// means "ask the OS for the current user", matching Flyway's default.
	InstalledBy string
	// SchemaName is the schema the executor switches the connection to
	// before each migration.
	SchemaName string
	// EngineVersion is recorded in MigrateResult.
	EngineVersion string
}

// Option configures a Configuration programmatically, alongside the
// environment-driven loading in the sibling config package.
type Option func(*Configuration)

// NewConfiguration builds a Configuration from defaults plus options.
// Defaults: Target=Latest, Mixed=false, Group=false, OutOfOrder=false.
func NewConfiguration(opts ...Option) Configuration {
	cfg := Configuration{Target: Latest}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.InstalledBy == "" {
		cfg.InstalledBy = currentOSUser()
	}
	return cfg
}

func WithGroup(v bool) Option                     { return func(c *Configuration) { c.Group = v } }
func WithMixed(v bool) Option                      { return func(c *Configuration) { c.Mixed = v } }
func WithOutOfOrder(v bool) Option                 { return func(c *Configuration) { c.OutOfOrder = v } }
func WithTarget(t Target) Option                   { return func(c *Configuration) { c.Target = t } }
func WithCherryPick(ids ...string) Option          { return func(c *Configuration) { c.CherryPick = ids } }
func WithSkipExecuting(v bool) Option              { return func(c *Configuration) { c.SkipExecutingMigrations = v } }
func WithInstalledBy(who string) Option            { return func(c *Configuration) { c.InstalledBy = who } }
func WithSchemaName(name string) Option            { return func(c *Configuration) { c.SchemaName = name } }
func WithEngineVersion(version string) Option       { return func(c *Configuration) { c.EngineVersion = version } }
func WithIgnorePatterns(raw ...string) Option {
	return func(c *Configuration) {
		for _, r := range raw {
			c.IgnoreMigrationPatterns = append(c.IgnoreMigrationPatterns, ParseIgnorePattern(r))
		}
	}
}

func currentOSUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// cherryPickSet normalizes CherryPick into a lookup set keyed by version
// string (versioned) or description (repeatable).
func (c Configuration) cherryPickSet() map[string]bool {
	if len(c.CherryPick) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.CherryPick))
	for _, id := range c.CherryPick {
		set[id] = true
	}
	return set
}
