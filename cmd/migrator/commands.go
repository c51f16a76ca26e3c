// commands.go implements the CLI command set: migrate, migration:info,
// migration:validate, migration:baseline, migration:repair, and
// make:migration, each a thin wrapper around the engine package.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oarkflow/cli/contracts"
	"github.com/oarkflow/json"

	"github.com/oarkflow/migrator/engine"
	"github.com/oarkflow/migrator/schema"
)

// app bundles the wiring every command needs: the engine itself plus the
// migrations directory it was built with (commands like make:migration
// only need that directory, not a live connection).
type app struct {
	engine *engine.Engine
	dir    string
}

type migrateCommand struct {
	extend contracts.Extend
	app    *app
}

func (c *migrateCommand) Signature() string   { return "migrate" }
func (c *migrateCommand) Description() string { return "Applies every pending migration up to the configured target." }
func (c *migrateCommand) Extend() contracts.Extend { return c.extend }

func (c *migrateCommand) Handle(ctx contracts.Context) error {
	result, err := c.app.engine.Migrate(context.Background())
	if result != nil {
		printMigrateResult(ctx, result)
	}
	return err
}

type infoCommand struct {
	extend contracts.Extend
	app    *app
}

func (c *infoCommand) Signature() string   { return "migration:info" }
func (c *infoCommand) Description() string { return "Prints the status of every resolved and applied migration." }
func (c *infoCommand) Extend() contracts.Extend { return c.extend }

func (c *infoCommand) Handle(ctx contracts.Context) error {
	infos, err := c.app.engine.MigrationInfo(context.Background())
	if err != nil {
		return err
	}
	if ctx.Option("json") != "" {
		return printJSON(infos)
	}
	for _, i := range infos {
		fmt.Printf("%-10s %s\n", i.State, i.Identifier())
	}
	return nil
}

type validateCommand struct {
	extend contracts.Extend
	app    *app
}

func (c *validateCommand) Signature() string   { return "migration:validate" }
func (c *validateCommand) Description() string { return "Checks applied migrations' checksums against their resolved scripts." }
func (c *validateCommand) Extend() contracts.Extend { return c.extend }

func (c *validateCommand) Handle(ctx contracts.Context) error {
	if err := c.app.engine.Validate(context.Background()); err != nil {
		return err
	}
	fmt.Println("All migrations validated.")
	return nil
}

type baselineCommand struct {
	extend contracts.Extend
	app    *app
}

func (c *baselineCommand) Signature() string   { return "migration:baseline" }
func (c *baselineCommand) Description() string { return "Marks the schema as baselined at --version without running anything." }
func (c *baselineCommand) Extend() contracts.Extend { return c.extend }

func (c *baselineCommand) Handle(ctx contracts.Context) error {
	raw := ctx.Option("version")
	if raw == "" {
		return fmt.Errorf("migration:baseline: --version is required")
	}
	version, err := schema.NewVersion(raw)
	if err != nil {
		return err
	}
	desc := ctx.Option("description")
	if desc == "" {
		desc = "baseline"
	}
	return c.app.engine.Baseline(context.Background(), version, desc)
}

type repairCommand struct {
	extend contracts.Extend
	app    *app
}

func (c *repairCommand) Signature() string   { return "migration:repair" }
func (c *repairCommand) Description() string { return "Removes failed history rows and realigns stale repeatable checksums." }
func (c *repairCommand) Extend() contracts.Extend { return c.extend }

func (c *repairCommand) Handle(ctx contracts.Context) error {
	report, err := c.app.engine.Repair(context.Background())
	if err != nil {
		return err
	}
	for _, id := range report.FailedRowsRemoved {
		fmt.Printf("removed failed row: %s\n", id)
	}
	for _, id := range report.ChecksumsRealigned {
		fmt.Printf("realigned checksum: %s\n", id)
	}
	return nil
}

type makeMigrationCommand struct {
	extend contracts.Extend
	app    *app
}

func (c *makeMigrationCommand) Signature() string   { return "make:migration" }
func (c *makeMigrationCommand) Description() string { return "Creates a new, timestamp-prefixed SQL migration file." }
func (c *makeMigrationCommand) Extend() contracts.Extend { return c.extend }

func (c *makeMigrationCommand) Handle(ctx contracts.Context) error {
	name := ctx.Argument(0)
	if name == "" {
		return fmt.Errorf("make:migration: a migration name argument is required")
	}
	stamp := time.Now().UTC().Format("20060102150405")
	filename := filepath.Join(c.app.dir, fmt.Sprintf("V%s__%s.sql", stamp, name))
	const template = "-- %s\n\n"
	if err := os.WriteFile(filename, []byte(fmt.Sprintf(template, name)), 0o644); err != nil {
		return fmt.Errorf("make:migration: %w", err)
	}
	fmt.Printf("created %s\n", filename)
	return nil
}

func printMigrateResult(ctx contracts.Context, result *schema.MigrateResult) {
	if ctx.Option("json") != "" {
		_ = printJSON(result)
		return
	}
	fmt.Printf("migrated %s -> %s (%d executed)\n", result.InitialSchemaVersion, result.TargetSchemaVersion, result.MigrationsExecuted)
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
