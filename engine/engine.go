package engine

import (
	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/history"
)

// Engine wires the Migration Info Service, the Schema History Store, the
// Group Planner, the Execution Template, and the Migration Executor into
// one runnable unit. It holds no database connection itself — Connections
// hands out a Transactor per run — so an Engine value is cheap to build
// per invocation.
type Engine struct {
	Info          *InfoService
	History       history.Store
	Dialect       dialect.Dialect
	Connections   ConnectionProvider
	Configuration Configuration
	DatabaseName  string

	Logger   Logger
	Progress Progress

	callbacks callbackSet
}

// New builds an Engine. resolver and store back the InfoService;
// connections supplies the live Transactor Migrate runs migrations
// through.
func New(resolver Resolver, store history.Store, d dialect.Dialect, connections ConnectionProvider, cfg Configuration, databaseName string) *Engine {
	return &Engine{
		Info:          NewInfoService(resolver, store, cfg),
		History:       store,
		Dialect:       d,
		Connections:   connections,
		Configuration: cfg,
		DatabaseName:  databaseName,
		Logger:        defaultLogger{},
		Progress:      colorProgress{},
	}
}

// AddCallback registers a lifecycle observer, fired in registration order.
func (e *Engine) AddCallback(cb Callback) {
	e.callbacks = append(e.callbacks, cb)
}
