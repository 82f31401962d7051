package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrPlayerNotFound     = errors.New("unknown identity")
	ErrInvalidDisplayName = errors.New("display name must be 1-32 characters")

	// Session errors
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExists        = errors.New("session code already in use")
	ErrSessionFull          = errors.New("session is full")
	ErrAlreadyInSession     = errors.New("already in a session")
	ErrNotInSession         = errors.New("not in a session")
	ErrNotParticipant       = errors.New("not a participant in this session")
	ErrSessionNotInProgress = errors.New("session is not in progress")
	ErrSessionNotCompleted  = errors.New("session is not completed")
	ErrOpponentUnavailable  = errors.New("opponent is not connected")

	// Move errors
	ErrNotPlayerTurn   = errors.New("not this player's turn")
	ErrInvalidPosition = errors.New("invalid board position")
	ErrCellOccupied    = errors.New("cell is already occupied")

	// Concurrency errors
	ErrConflict = errors.New("session was modified concurrently")

	// Protocol errors
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// ErrorKind classifies errors for reporting to clients
type ErrorKind string

const (
	KindProtocol ErrorKind = "protocol"
	KindState    ErrorKind = "state"
	KindConflict ErrorKind = "conflict"
	KindNotFound ErrorKind = "not_found"
	KindStore    ErrorKind = "store"
)

// KindOf returns the kind of a (possibly wrapped) error.
// Anything unrecognised is treated as a storage failure.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownMessageType), errors.Is(err, ErrInvalidDisplayName):
		return KindProtocol
	case errors.Is(err, ErrPlayerNotFound), errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrSessionFull),
		errors.Is(err, ErrSessionExists),
		errors.Is(err, ErrAlreadyInSession),
		errors.Is(err, ErrNotInSession),
		errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrSessionNotInProgress),
		errors.Is(err, ErrSessionNotCompleted),
		errors.Is(err, ErrOpponentUnavailable),
		errors.Is(err, ErrNotPlayerTurn),
		errors.Is(err, ErrInvalidPosition),
		errors.Is(err, ErrCellOccupied):
		return KindState
	default:
		return KindStore
	}
}
