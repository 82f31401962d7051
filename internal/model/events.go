package model

import "time"

// EventType identifies the type of event sent to a connection
type EventType string

const (
	EventStart   EventType = "start"
	EventMove    EventType = "move"
	EventMessage EventType = "message"
	EventReset   EventType = "reset"
	EventError   EventType = "error"
)

// Event is an outbound notification produced by the coordinator.
// The transport decides how it is serialized.
type Event struct {
	Type        EventType
	Timestamp   time.Time
	SessionCode SessionCode

	// Symbol is the recipient's own symbol (start, reset)
	Symbol Symbol
	// Participants lists both participants in turn order (start, reset)
	Participants []Participant

	// Move details (move)
	Position int
	MovedBy  Symbol
	Board    Board

	// Message is free-text status for the recipient (message, error)
	Message string
	// Err is set for error events
	Err error
}

// PlayerNumber returns the 1-based turn slot for a symbol (X is 1, O is 2)
func PlayerNumber(s Symbol) int {
	switch s {
	case SymbolX:
		return 1
	case SymbolO:
		return 2
	default:
		return 0
	}
}
