package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/noughts/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes, shared by the HTTP API and the websocket gateway
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeMalformedMessage     = "MALFORMED_MESSAGE"
	CodeUnknownMessageType   = "UNKNOWN_MESSAGE_TYPE"
	CodeInvalidDisplayName   = "INVALID_DISPLAY_NAME"
	CodePlayerNotFound       = "PLAYER_NOT_FOUND"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeSessionFull          = "SESSION_FULL"
	CodeAlreadyInSession     = "ALREADY_IN_SESSION"
	CodeNotInSession         = "NOT_IN_SESSION"
	CodeNotParticipant       = "NOT_PARTICIPANT"
	CodeSessionNotInProgress = "SESSION_NOT_IN_PROGRESS"
	CodeSessionNotCompleted  = "SESSION_NOT_COMPLETED"
	CodeOpponentUnavailable  = "OPPONENT_UNAVAILABLE"
	CodeNotYourTurn          = "NOT_YOUR_TURN"
	CodeInvalidPosition      = "INVALID_POSITION"
	CodeCellOccupied         = "CELL_OCCUPIED"
	CodeConflict             = "CONFLICT"
	CodeInternalError        = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Describe returns the wire code and message for an error
func Describe(err error) APIError {
	return toHTTPError(err).apiError
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Protocol errors keep the underlying detail, e.g. which type was unknown
	case errors.Is(err, model.ErrMalformedMessage):
		return &httpError{http.StatusBadRequest, APIError{CodeMalformedMessage, err.Error()}}
	case errors.Is(err, model.ErrUnknownMessageType):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownMessageType, err.Error()}}
	case errors.Is(err, model.ErrInvalidDisplayName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidDisplayName, "Display name must be 1-32 characters"}}

	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, model.ErrSessionFull):
		return &httpError{http.StatusConflict, APIError{CodeSessionFull, "Session is full"}}
	case errors.Is(err, model.ErrAlreadyInSession):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyInSession, "Already in a session"}}
	case errors.Is(err, model.ErrNotInSession):
		return &httpError{http.StatusConflict, APIError{CodeNotInSession, "Not in a session"}}
	case errors.Is(err, model.ErrNotParticipant):
		return &httpError{http.StatusForbidden, APIError{CodeNotParticipant, "Not a participant in this session"}}
	case errors.Is(err, model.ErrSessionNotInProgress):
		return &httpError{http.StatusConflict, APIError{CodeSessionNotInProgress, "Game is not in progress"}}
	case errors.Is(err, model.ErrSessionNotCompleted):
		return &httpError{http.StatusConflict, APIError{CodeSessionNotCompleted, "Game has not finished"}}
	case errors.Is(err, model.ErrOpponentUnavailable):
		return &httpError{http.StatusConflict, APIError{CodeOpponentUnavailable, "Opponent is no longer connected"}}
	case errors.Is(err, model.ErrNotPlayerTurn):
		return &httpError{http.StatusForbidden, APIError{CodeNotYourTurn, "Not your turn"}}
	case errors.Is(err, model.ErrInvalidPosition):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPosition, "Position must be 0-8"}}
	case errors.Is(err, model.ErrCellOccupied):
		return &httpError{http.StatusConflict, APIError{CodeCellOccupied, "Cell is already occupied"}}
	case errors.Is(err, model.ErrConflict):
		return &httpError{http.StatusConflict, APIError{CodeConflict, "Game changed, try again"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
