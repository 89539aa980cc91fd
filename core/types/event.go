package types

// Event represents a typed event emitted during a state transition. Events are
// fire-and-forget: the engine never reads them back, they exist for indexers
// and downstream notification services.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attribute returns the named attribute or the empty string when absent.
func (e *Event) Attribute(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
