// Package config loads the engine's Configuration from environment
// variables, using the shared utils.Getenv helper for environment-driven
// settings.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/engine"
	"github.com/oarkflow/migrator/schema"
	"github.com/oarkflow/migrator/utils"
)

// Settings is the environment-driven configuration this package loads:
// the database connection plus the engine.Configuration options.
type Settings struct {
	Dialect        dialect.Name
	DSN            string
	MigrationsDir  string
	SchemaHistoryTable string

	Engine engine.Configuration
}

// Env names the environment variables Load reads, all prefixed MIGRATOR_.
const (
	EnvDialect        = "MIGRATOR_DIALECT"
	EnvDSN            = "MIGRATOR_DSN"
	EnvMigrationsDir  = "MIGRATOR_MIGRATIONS_DIR"
	EnvGroup          = "MIGRATOR_GROUP"
	EnvMixed          = "MIGRATOR_MIXED"
	EnvOutOfOrder     = "MIGRATOR_OUT_OF_ORDER"
	EnvTarget         = "MIGRATOR_TARGET"
	EnvCherryPick     = "MIGRATOR_CHERRY_PICK"
	EnvSkipExecuting  = "MIGRATOR_SKIP_EXECUTING_MIGRATIONS"
	EnvIgnorePatterns = "MIGRATOR_IGNORE_MIGRATION_PATTERNS"
	EnvInstalledBy    = "MIGRATOR_INSTALLED_BY"
	EnvSchemaName     = "MIGRATOR_SCHEMA"
)

// Load builds Settings from the process environment, applying opts on top
// of the environment-derived engine.Configuration so callers can override
// individual fields programmatically without re-parsing env vars.
func Load(opts ...engine.Option) (Settings, error) {
	dialectName := dialect.Name(strings.ToLower(utils.Getenv(EnvDialect, "postgres")))
	if _, err := dialect.Get(dialectName); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}

	dsn := utils.Getenv(EnvDSN, "")
	if dsn == "" {
		return Settings{}, fmt.Errorf("config: %s is required", EnvDSN)
	}

	target, err := parseTarget(utils.Getenv(EnvTarget, "latest"))
	if err != nil {
		return Settings{}, err
	}

	var cherryPick []string
	if raw := utils.Getenv(EnvCherryPick, ""); raw != "" {
		cherryPick = splitCSV(raw)
	}

	var ignorePatterns []string
	if raw := utils.Getenv(EnvIgnorePatterns, ""); raw != "" {
		ignorePatterns = splitCSV(raw)
	}

	base := []engine.Option{
		engine.WithGroup(parseBool(utils.Getenv(EnvGroup, "false"))),
		engine.WithMixed(parseBool(utils.Getenv(EnvMixed, "false"))),
		engine.WithOutOfOrder(parseBool(utils.Getenv(EnvOutOfOrder, "false"))),
		engine.WithTarget(target),
		engine.WithSkipExecuting(parseBool(utils.Getenv(EnvSkipExecuting, "false"))),
		engine.WithInstalledBy(utils.Getenv(EnvInstalledBy, "")),
		engine.WithSchemaName(utils.Getenv(EnvSchemaName, "")),
	}
	if len(cherryPick) > 0 {
		base = append(base, engine.WithCherryPick(cherryPick...))
	}
	if len(ignorePatterns) > 0 {
		base = append(base, engine.WithIgnorePatterns(ignorePatterns...))
	}
	base = append(base, opts...)

	return Settings{
		Dialect:            dialectName,
		DSN:                dsn,
		MigrationsDir:      utils.Getenv(EnvMigrationsDir, "migrations"),
		SchemaHistoryTable: utils.Getenv("MIGRATOR_SCHEMA_HISTORY_TABLE", "schema_history"),
		Engine:             engine.NewConfiguration(base...),
	}, nil
}

func parseTarget(raw string) (engine.Target, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "latest":
		return engine.Latest, nil
	case "next":
		return engine.Next, nil
	case "current":
		return engine.Current, nil
	default:
		v, err := schema.NewVersion(raw)
		if err != nil {
			return engine.Target{}, fmt.Errorf("config: %s: %w", EnvTarget, err)
		}
		return engine.NewVersionTarget(v), nil
	}
}

func parseBool(raw string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return b
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
