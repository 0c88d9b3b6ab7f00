package log

import "sync"

// MemoryLogger keeps events in memory. Used by tests and the interactive
// device CLI's history command.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewMemoryLogger creates a MemoryLogger keeping at most limit events
// (oldest dropped first). A limit of zero keeps everything.
func NewMemoryLogger(limit int) *MemoryLogger {
	return &MemoryLogger{limit: limit}
}

// Log records the event.
func (m *MemoryLogger) Log(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	if m.limit > 0 && len(m.events) > m.limit {
		m.events = append([]Event(nil), m.events[len(m.events)-m.limit:]...)
	}
}

// Events returns a copy of the recorded events matching filter.
func (m *MemoryLogger) Events(filter Filter) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, e := range m.events {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all recorded events.
func (m *MemoryLogger) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}

// Compile-time interface satisfaction check.
var _ Logger = (*MemoryLogger)(nil)
