// Package log provides the sync event log.
//
// The synchronization engine emits an Event for every request it sends to
// the device API, every response, every state transition, every listener
// notification and every terminal error. Events are independent of
// operational logging (slog): they form a complete machine-readable trace of
// a session that can be replayed with the pushsync-log tool.
//
// # Basic Usage
//
//	// Development: events on the console
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// Production: append to a binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/lib/pushsync/device.slog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(console, file)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events using integer map keys.
// Reader iterates a file, optionally through a Filter.
package log
