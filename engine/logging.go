package engine

import (
	"github.com/gookit/color"
	"github.com/oarkflow/log"
)

// Logger is the structured-logging seam engine uses throughout. The
// default wraps github.com/oarkflow/log; callers can substitute
// NoopLogger to silence it.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// defaultLogger adapts oarkflow/log's structured event builder.
type defaultLogger struct{}

func (defaultLogger) Debug(msg string, fields map[string]any) {
	ev := log.Debug()
	for k, v := range fields {
		ev = ev.Any(k, v)
	}
	ev.Msg(msg)
}

func (defaultLogger) Info(msg string, fields map[string]any) {
	ev := log.Info()
	for k, v := range fields {
		ev = ev.Any(k, v)
	}
	ev.Msg(msg)
}

func (defaultLogger) Warn(msg string, fields map[string]any) {
	ev := log.Warn()
	for k, v := range fields {
		ev = ev.Any(k, v)
	}
	ev.Msg(msg)
}

func (defaultLogger) Error(msg string, fields map[string]any) {
	ev := log.Error()
	for k, v := range fields {
		ev = ev.Any(k, v)
	}
	ev.Msg(msg)
}

// NoopLogger discards everything; resolver.New uses it as its default.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}

// Progress reports per-group, per-migration progress: push expected
// steps, then Starting.../Successfully completed... lines. The default
// colorizes success/failure the way a CLI migrate run wants; programmatic
// callers can substitute a no-op.
type Progress interface {
	PushSteps(n int)
	Starting(identifier string)
	Completed(identifier string)
	Failed(identifier string, err error)
}

type colorProgress struct{}

func (colorProgress) PushSteps(int) {}

func (colorProgress) Starting(identifier string) {
	color.FgCyan.Printf("Starting migration %s...\n", identifier)
}

func (colorProgress) Completed(identifier string) {
	color.FgGreen.Printf("Successfully completed migration %s\n", identifier)
}

func (colorProgress) Failed(identifier string, err error) {
	color.FgRed.Printf("Migration %s failed: %v\n", identifier, err)
}

// NoopProgress discards everything.
type NoopProgress struct{}

func (NoopProgress) PushSteps(int)                {}
func (NoopProgress) Starting(string)              {}
func (NoopProgress) Completed(string)             {}
func (NoopProgress) Failed(string, error)         {}
