package types

// Event represents a typed event emitted during state transitions. Attributes
// carry the canonical string-encoded payload consumed by off-ledger
// collaborators (notifications, analytics, UI refresh).
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a copy of the event with its attribute map duplicated.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Type: e.Type, Attributes: attrs}
}
