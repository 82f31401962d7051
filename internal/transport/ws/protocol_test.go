package ws

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/noughts/internal/api/apierr"
	"github.com/mcoot/noughts/internal/model"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Inbound
		err  error
	}{
		{"connect", `{"type":"connect","userId":"p-1"}`, ConnectMessage{UserID: "p-1"}, nil},
		{"move", `{"type":"move","index":4}`, MoveMessage{Index: 4}, nil},
		{"move at zero", `{"type":"move","index":0}`, MoveMessage{Index: 0}, nil},
		{"move out of range decodes", `{"type":"move","index":12}`, MoveMessage{Index: 12}, nil},
		{"reset", `{"type":"reset"}`, ResetMessage{}, nil},
		{"exit ignores extra fields", `{"type":"exit","index":3}`, ExitMessage{}, nil},
		{"connect without userId", `{"type":"connect"}`, nil, model.ErrMalformedMessage},
		{"connect with empty userId", `{"type":"connect","userId":""}`, nil, model.ErrMalformedMessage},
		{"move without index", `{"type":"move"}`, nil, model.ErrMalformedMessage},
		{"move with string index", `{"type":"move","index":"4"}`, nil, model.ErrMalformedMessage},
		{"not json", `move 4`, nil, model.ErrMalformedMessage},
		{"missing type", `{"index":4}`, nil, model.ErrMalformedMessage},
		{"unknown type", `{"type":"jump"}`, nil, model.ErrUnknownMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeUnknownTypeNamesIt(t *testing.T) {
	_, err := Decode([]byte(`{"type":"jump"}`))
	assert.Contains(t, err.Error(), "jump")
}

func TestEncodeMove(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var b model.Board
	b[0] = model.SymbolX
	b[4] = model.SymbolO

	p := Encode(model.Event{
		Type:        model.EventMove,
		Timestamp:   ts,
		SessionCode: "GAME22",
		Position:    4,
		MovedBy:     model.SymbolO,
		Board:       b,
	})

	assert.Equal(t, "move", p.Type)
	assert.Equal(t, "GAME22", p.RoomCode)
	require.NotNil(t, p.Index)
	assert.Equal(t, 4, *p.Index)
	assert.Equal(t, 2, p.Player)
	assert.Equal(t, []string{"X", "", "", "", "O", "", "", "", ""}, p.Board)
	assert.Equal(t, "X |   |  ", p.Row1)
	assert.Equal(t, "  | O |  ", p.Row2)
	assert.Equal(t, ts, p.Timestamp)
	assert.Nil(t, p.Error)
}

func TestEncodeMoveAtZeroKeepsIndex(t *testing.T) {
	data, err := json.Marshal(Encode(model.Event{Type: model.EventMove, Position: 0, MovedBy: model.SymbolX}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"index":0`)
}

func TestEncodeStart(t *testing.T) {
	p := Encode(model.Event{
		Type:        model.EventStart,
		SessionCode: "GAME22",
		Symbol:      model.SymbolO,
		Participants: []model.Participant{
			{PlayerID: "p-1", DisplayName: "Alice", Symbol: model.SymbolX},
			{PlayerID: "p-2", DisplayName: "Bob", Symbol: model.SymbolO},
		},
		Message: "Game started. You are O",
	})

	assert.Equal(t, "O", p.Symbol)
	assert.Equal(t, 2, p.Player)
	assert.Equal(t, []Player{
		{UserID: "p-1", Username: "Alice", Symbol: "X"},
		{UserID: "p-2", Username: "Bob", Symbol: "O"},
	}, p.Players)
	assert.Nil(t, p.Index)
}

func TestEncodeError(t *testing.T) {
	p := Encode(model.Event{Type: model.EventError, Err: model.ErrNotPlayerTurn})

	require.NotNil(t, p.Error)
	assert.Equal(t, apierr.CodeNotYourTurn, p.Error.Code)
	assert.Equal(t, "Not your turn", p.Message)
	assert.Nil(t, p.Schema)
	assert.Nil(t, p.Board)
}

func TestEncodeProtocolErrorCarriesSchema(t *testing.T) {
	p := Encode(model.Event{Type: model.EventError, Err: fmt.Errorf("%w: %q", model.ErrUnknownMessageType, "jump")})

	require.NotNil(t, p.Error)
	assert.Equal(t, apierr.CodeUnknownMessageType, p.Error.Code)
	assert.Equal(t, Schema, p.Schema)
	assert.Len(t, p.Schema, 4)
}
