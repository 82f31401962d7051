package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Output handles formatting output based on the configured format.
// It is safe for concurrent use.
type Output struct {
	format string
	w      io.Writer
	mu     sync.Mutex
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error to stderr
func (o *Output) PrintError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.format == "json" {
		data, _ := json.Marshal(map[string]any{
			"error": map[string]string{"message": err.Error()},
		})
		_, _ = fmt.Fprintln(os.Stderr, string(data))
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

// printJSON writes one compact line so streamed messages stay line-delimited
func (o *Output) printJSON(data any) {
	_ = json.NewEncoder(o.w).Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case HealthResult:
		o.printHealthResult(v)
	case GameMessage:
		o.printGameMessage(v)
	default:
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// HealthResult response type
type HealthResult struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// GamePlayer is a participant as described by the server
type GamePlayer struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Symbol   string `json:"symbol"`
}

// GameError is the error detail on an error message
type GameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GameMessage is one message pushed over the game connection
type GameMessage struct {
	Type      string            `json:"type"`
	RoomCode  string            `json:"roomCode,omitempty"`
	Board     []string          `json:"board,omitempty"`
	Row1      string            `json:"row1,omitempty"`
	Row2      string            `json:"row2,omitempty"`
	Row3      string            `json:"row3,omitempty"`
	Players   []GamePlayer      `json:"players,omitempty"`
	Symbol    string            `json:"symbol,omitempty"`
	Player    int               `json:"player,omitempty"`
	Index     *int              `json:"index,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Error     *GameError        `json:"error,omitempty"`
	Schema    map[string]string `json:"schema,omitempty"`
}

func (o *Output) printPlayer(p Player) {
	_, _ = fmt.Fprintf(o.w, "Player: %s (%s)\n", p.DisplayName, p.ID)
	_, _ = fmt.Fprintf(o.w, "Created: %s\n", p.CreatedAt.Format(time.RFC3339))
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	_, _ = fmt.Fprintf(o.w, "Connections: %d\n", h.Connections)
}

func (o *Output) printGameMessage(m GameMessage) {
	switch m.Type {
	case "start", "reset":
		_, _ = fmt.Fprintf(o.w, "Game %s\n", m.RoomCode)
		for _, p := range m.Players {
			_, _ = fmt.Fprintf(o.w, "  %s: %s\n", p.Symbol, p.Username)
		}
		_, _ = fmt.Fprintf(o.w, "You are %s\n", m.Symbol)
		o.printBoard(m.Board)
	case "move":
		if m.Index != nil {
			_, _ = fmt.Fprintf(o.w, "Player %d took cell %d\n", m.Player, *m.Index)
		}
		o.printBoard(m.Board)
	case "error":
		if m.Error != nil {
			_, _ = fmt.Fprintf(o.w, "Rejected: %s (%s)\n", m.Error.Message, m.Error.Code)
		} else {
			_, _ = fmt.Fprintf(o.w, "Rejected: %s\n", m.Message)
		}
		return
	}

	if m.Message != "" {
		_, _ = fmt.Fprintln(o.w, m.Message)
	}
}

// printBoard draws the grid with cell numbers in the empty squares
func (o *Output) printBoard(cells []string) {
	if len(cells) != 9 {
		return
	}

	for row := 0; row < 3; row++ {
		marks := make([]string, 3)
		for col := 0; col < 3; col++ {
			i := row*3 + col
			marks[col] = cells[i]
			if marks[col] == "" || marks[col] == " " {
				marks[col] = fmt.Sprintf("%d", i)
			}
		}
		_, _ = fmt.Fprintf(o.w, " %s\n", strings.Join(marks, " | "))
		if row < 2 {
			_, _ = fmt.Fprintln(o.w, "---+---+---")
		}
	}
}
