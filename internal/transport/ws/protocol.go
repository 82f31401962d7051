package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcoot/noughts/internal/api/apierr"
	"github.com/mcoot/noughts/internal/model"
)

// Inbound message types
const (
	TypeConnect = "connect"
	TypeMove    = "move"
	TypeReset   = "reset"
	TypeExit    = "exit"
)

// Schema describes every inbound message type. It is sent back with
// protocol errors so a client can correct itself.
var Schema = map[string]string{
	TypeConnect: `{"type":"connect","userId":"<player id>"}`,
	TypeMove:    `{"type":"move","index":<0-8>}`,
	TypeReset:   `{"type":"reset"}`,
	TypeExit:    `{"type":"exit"}`,
}

// Inbound is a decoded client message. The set of variants is closed.
type Inbound interface {
	inbound()
}

// ConnectMessage asks to be paired into a session
type ConnectMessage struct {
	UserID model.PlayerID
}

// MoveMessage plays a cell, row-major from 0
type MoveMessage struct {
	Index int
}

// ResetMessage asks for a rematch after a completed game
type ResetMessage struct{}

// ExitMessage leaves the current session
type ExitMessage struct{}

func (ConnectMessage) inbound() {}
func (MoveMessage) inbound()    {}
func (ResetMessage) inbound()   {}
func (ExitMessage) inbound()    {}

// envelope is the raw wire shape of every inbound message
type envelope struct {
	Type   string  `json:"type"`
	UserID *string `json:"userId"`
	Index  *int    `json:"index"`
}

// Decode parses one inbound frame
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrMalformedMessage, "body is not a JSON object with the expected fields")
	}

	switch env.Type {
	case TypeConnect:
		if env.UserID == nil || *env.UserID == "" {
			return nil, fmt.Errorf("%w: connect requires userId", model.ErrMalformedMessage)
		}
		return ConnectMessage{UserID: model.PlayerID(*env.UserID)}, nil
	case TypeMove:
		if env.Index == nil {
			return nil, fmt.Errorf("%w: move requires index", model.ErrMalformedMessage)
		}
		return MoveMessage{Index: *env.Index}, nil
	case TypeReset:
		return ResetMessage{}, nil
	case TypeExit:
		return ExitMessage{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", model.ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessageType, env.Type)
	}
}

// Player describes a participant in outbound payloads
type Player struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Symbol   string `json:"symbol"`
}

// Payload is the wire shape of every outbound message
type Payload struct {
	Type      string            `json:"type"`
	RoomCode  string            `json:"roomCode,omitempty"`
	Board     []string          `json:"board,omitempty"`
	Row1      string            `json:"row1,omitempty"`
	Row2      string            `json:"row2,omitempty"`
	Row3      string            `json:"row3,omitempty"`
	Players   []Player          `json:"players,omitempty"`
	Symbol    string            `json:"symbol,omitempty"`
	Player    int               `json:"player,omitempty"`
	Index     *int              `json:"index,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Error     *apierr.APIError  `json:"error,omitempty"`
	Schema    map[string]string `json:"schema,omitempty"`
}

// Encode converts a coordinator event to its outbound payload
func Encode(event model.Event) Payload {
	p := Payload{
		Type:      string(event.Type),
		RoomCode:  string(event.SessionCode),
		Message:   event.Message,
		Timestamp: event.Timestamp,
	}

	if event.Type == model.EventError {
		desc := apierr.Describe(event.Err)
		p.Error = &desc
		if p.Message == "" {
			p.Message = desc.Message
		}
		if errors.Is(event.Err, model.ErrMalformedMessage) || errors.Is(event.Err, model.ErrUnknownMessageType) {
			p.Schema = Schema
		}
		return p
	}

	p.Board = event.Board.Cells()
	rows := event.Board.Rows()
	p.Row1, p.Row2, p.Row3 = rows[0], rows[1], rows[2]

	if len(event.Participants) > 0 {
		p.Players = make([]Player, len(event.Participants))
		for i, pt := range event.Participants {
			p.Players[i] = Player{
				UserID:   string(pt.PlayerID),
				Username: pt.DisplayName,
				Symbol:   string(pt.Symbol),
			}
		}
	}

	switch event.Type {
	case model.EventMove:
		index := event.Position
		p.Index = &index
		p.Player = model.PlayerNumber(event.MovedBy)
	case model.EventStart, model.EventReset:
		p.Symbol = string(event.Symbol)
		p.Player = model.PlayerNumber(event.Symbol)
	default:
		p.Symbol = string(event.Symbol)
	}
	return p
}
