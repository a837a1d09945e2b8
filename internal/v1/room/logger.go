package room

// Logger is the injected logging sink the core depends on instead of a
// concrete logging library (spec.md §1: "the core consumes only an injected
// logging sink"). internal/v1/logging provides the zap-backed production
// implementation; tests use NopLogger.
type Logger interface {
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// NopLogger discards everything. Used as a safe default and in unit tests
// that don't care about log output.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
