package types

// Event represents a typed event produced by a ledger state transition. Events
// are returned to the caller as part of the operation result rather than
// pushed through a side channel.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
