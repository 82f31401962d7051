package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/noughts/internal/model"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{model.ErrPlayerNotFound, CodePlayerNotFound, http.StatusNotFound},
		{model.ErrNotPlayerTurn, CodeNotYourTurn, http.StatusForbidden},
		{model.ErrCellOccupied, CodeCellOccupied, http.StatusConflict},
		{model.ErrInvalidPosition, CodeInvalidPosition, http.StatusBadRequest},
		{model.ErrSessionNotInProgress, CodeSessionNotInProgress, http.StatusConflict},
		{model.ErrOpponentUnavailable, CodeOpponentUnavailable, http.StatusConflict},
		{model.ErrConflict, CodeConflict, http.StatusConflict},
		{fmt.Errorf("saving session: %w", model.ErrCellOccupied), CodeCellOccupied, http.StatusConflict},
		{errors.New("redis: connection refused"), CodeInternalError, http.StatusInternalServerError},
		{NewInvalidRequestError("display_name is required"), CodeInvalidRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, Describe(tt.err).Code)
			assert.Equal(t, tt.status, Status(tt.err))
		})
	}
}

func TestDescribeKeepsProtocolDetail(t *testing.T) {
	err := fmt.Errorf("%w: %q", model.ErrUnknownMessageType, "jump")
	got := Describe(err)
	assert.Equal(t, CodeUnknownMessageType, got.Code)
	assert.Contains(t, got.Message, "jump")
}

func TestDescribeHidesStoreDetail(t *testing.T) {
	got := Describe(errors.New("pq: password authentication failed"))
	assert.Equal(t, "Internal server error", got.Message)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, model.ErrPlayerNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodePlayerNotFound, body.Error.Code)
}
