package events

import "log/slog"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC, notifiers,
// indexers). Emission is fire-and-forget: an emitter must never fail or block
// the originating operation.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default when a component does not wire a subscriber.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MemoryEmitter buffers emitted events in order. Tests and the RPC event feed
// use it to observe engine activity.
type MemoryEmitter struct {
	events []Event
}

// Emit implements the Emitter interface.
func (m *MemoryEmitter) Emit(evt Event) {
	if m == nil || evt == nil {
		return
	}
	m.events = append(m.events, evt)
}

// Events returns the buffered events in emission order.
func (m *MemoryEmitter) Events() []Event {
	if m == nil {
		return nil
	}
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Reset drops all buffered events.
func (m *MemoryEmitter) Reset() {
	if m == nil {
		return
	}
	m.events = m.events[:0]
}

// LogEmitter writes each event to a structured logger. The daemon uses it as
// its fire-and-forget notification sink.
type LogEmitter struct {
	log *slog.Logger
}

// NewLogEmitter wraps the given logger; a nil logger falls back to the
// process default.
func NewLogEmitter(log *slog.Logger) *LogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmitter{log: log}
}

// Emit implements the Emitter interface.
func (l *LogEmitter) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	l.log.Info("ledger event", slog.String("type", evt.EventType()))
}
