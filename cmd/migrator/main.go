// Command migrator is the CLI front-end for the migration engine: it
// wires config.Load, the dialect and driver it resolves to, and the
// engine itself into a runnable set of subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/oarkflow/cli"
	"github.com/oarkflow/cli/console"
	"github.com/oarkflow/cli/contracts"

	"github.com/oarkflow/migrator/config"
	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/drivers"
	"github.com/oarkflow/migrator/engine"
	"github.com/oarkflow/migrator/history"
	"github.com/oarkflow/migrator/resolver"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrator:", err)
		os.Exit(1)
	}

	d, err := dialect.Get(settings.Dialect)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrator:", err)
		os.Exit(1)
	}

	db, err := drivers.Open(settings.Dialect, settings.DSN)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrator:", err)
		os.Exit(1)
	}
	defer db.Close()

	store := history.New(db, d)
	res := resolver.New(settings.MigrationsDir, d)
	eng := engine.New(res, store, d, drivers.NewConnectionProvider(db, d), settings.Engine, string(settings.Dialect))

	a := &app{engine: eng, dir: settings.MigrationsDir}

	cli.SetName("Migrator")
	cli.SetVersion("v0.1.0")
	application := cli.New()
	client := application.Instance.Client()
	client.Register([]contracts.Command{
		console.NewListCommand(client),
		&migrateCommand{app: a},
		&infoCommand{app: a},
		&validateCommand{app: a},
		&baselineCommand{app: a},
		&repairCommand{app: a},
		&makeMigrationCommand{app: a},
	})
	client.Run(os.Args, true)
}
