package log

// Logger is a sink for sync events: device API requests and responses,
// state transitions, listener notifications and errors. The engine calls
// Log from several goroutines and waits for it, so implementations must be
// safe for concurrent use and return quickly.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event. The engine uses it when no EventLogger is
// configured.
type NoopLogger struct{}

// Log implements Logger.
func (NoopLogger) Log(Event) {}
