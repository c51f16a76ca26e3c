package engine

// Event names one of the lifecycle points Migrate fires, in order.
type Event string

const (
	BeforeMigrate       Event = "BEFORE_MIGRATE"
	BeforeEachMigrate    Event = "BEFORE_EACH_MIGRATE"
	AfterEachMigrate     Event = "AFTER_EACH_MIGRATE"
	AfterEachMigrateError Event = "AFTER_EACH_MIGRATE_ERROR"
	AfterVersioned       Event = "AFTER_VERSIONED"
	BeforeRepeatables    Event = "BEFORE_REPEATABLES"
	AfterMigrateApplied  Event = "AFTER_MIGRATE_APPLIED"
	AfterMigrateError    Event = "AFTER_MIGRATE_ERROR"
	AfterMigrate         Event = "AFTER_MIGRATE"
)

// CallbackContext carries whatever a callback might want: the event name
// and, for per-migration events, the migration identifier in flight.
type CallbackContext struct {
	Event     Event
	Migration string
}

// Callback is the lifecycle-hook contract. Fire returns no error, so a
// callback cannot abort a run — callbacks are observers, not gates. Fire
// must not panic: fire does not recover one.
type Callback interface {
	Fire(ctx CallbackContext)
}

// CallbackFunc adapts a plain function to Callback.
type CallbackFunc func(CallbackContext)

func (f CallbackFunc) Fire(ctx CallbackContext) { f(ctx) }

// callbackSet fires every registered callback for an event in
// registration order, matching Flyway's callback-registry fan-out.
type callbackSet []Callback

func (s callbackSet) fire(ev Event, migration string) {
	ctx := CallbackContext{Event: ev, Migration: migration}
	for _, cb := range s {
		cb.Fire(ctx)
	}
}
