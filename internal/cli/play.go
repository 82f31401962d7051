package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/noughts/internal/dependencies/random"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/services/bot"
)

const closeWait = time.Second

var errQuit = errors.New("quit")

func newPlayCmd() *cobra.Command {
	var (
		autoPlay bool
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Connect and play a game",
		Long: `Connect to the server and wait to be paired with an opponent.

Commands are read from standard input, one per line:
  move N   play cell N (0-8, row-major); a bare number also works
  reset    ask for a rematch once a game is over
  exit     leave the current game
  quit     disconnect

With --auto a strategy plays your moves for you; "reset", "exit" and
"quit" still work.

Press Ctrl+C or close standard input to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.UserID == "" {
				return fmt.Errorf("no player id given and none saved; run \"player guest\" first")
			}

			var auto bot.Strategy
			if autoPlay || strategy != "" {
				name := strategy
				if name == "" {
					name = bot.StrategyLines
				}
				var err error
				if auto, err = bot.New(name, random.New()); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return play(ctx, cmd.InOrStdin(), NewOutput(cfg.Output, cmd.OutOrStdout()), auto)
		},
	}

	cmd.Flags().BoolVar(&autoPlay, "auto", false, "Let a strategy choose moves")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Strategy for --auto: random, lines (default lines)")

	return cmd
}

// outbound is a message sent to the server
type outbound struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// parseCommand turns one line of input into a message. Blank lines yield nil.
func parseCommand(line string) (*outbound, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil, nil
	}

	switch fields[0] {
	case "move", "m":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: move N")
		}
		return parseMove(fields[1])
	case "reset", "rematch":
		return &outbound{Type: "reset"}, nil
	case "exit", "leave":
		return &outbound{Type: "exit"}, nil
	case "quit", "q":
		return nil, errQuit
	default:
		if len(fields) == 1 {
			if msg, err := parseMove(fields[0]); err == nil {
				return msg, nil
			}
		}
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseMove(s string) (*outbound, error) {
	index, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("cell must be a number, got %q", s)
	}
	return &outbound{Type: "move", Index: &index}, nil
}

// autoPlayer moves on behalf of the user when a strategy is set
type autoPlayer struct {
	strategy bot.Strategy
	symbol   model.Symbol
}

// observe returns the move to make in response to msg, if any
func (a *autoPlayer) observe(msg GameMessage) (*outbound, bool) {
	if a == nil || a.strategy == nil {
		return nil, false
	}

	switch msg.Type {
	case "start", "reset":
		a.symbol = model.Symbol(msg.Symbol)
	case "move":
	default:
		return nil, false
	}

	b, err := bot.BoardFromCells(msg.Board)
	if err != nil {
		return nil, false
	}
	index, ok := bot.NextMove(a.strategy, b, a.symbol)
	if !ok {
		return nil, false
	}
	return &outbound{Type: "move", Index: &index}, true
}

func play(ctx context.Context, in io.Reader, out *Output, strategy bot.Strategy) error {
	wsURL, err := client.WebSocketURL("/ws")
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if cfg.Verbose {
		out.PrintMessage("Connected to " + wsURL)
	}

	if err := conn.WriteJSON(outbound{Type: "connect", UserID: cfg.UserID}); err != nil {
		return fmt.Errorf("failed to send connect: %w", err)
	}

	auto := &autoPlayer{strategy: strategy}

	// Server messages
	messages := make(chan GameMessage)
	received := make(chan error, 1)
	go func() {
		for {
			var msg GameMessage
			if err := conn.ReadJSON(&msg); err != nil {
				received <- err
				return
			}
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Input lines
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return hangUp(conn, messages, received, out)
		case err := <-received:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case msg := <-messages:
			out.Print(msg)
			if move, ok := auto.observe(msg); ok {
				if err := conn.WriteJSON(move); err != nil {
					return fmt.Errorf("failed to send move: %w", err)
				}
			}
		case line, ok := <-lines:
			if !ok {
				return hangUp(conn, messages, received, out)
			}
			msg, err := parseCommand(line)
			if errors.Is(err, errQuit) {
				return hangUp(conn, messages, received, out)
			}
			if err != nil {
				out.PrintError(err)
				continue
			}
			if msg == nil {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("failed to send %s: %w", msg.Type, err)
			}
		}
	}
}

// hangUp closes the connection cleanly, printing whatever the server still
// sends until it answers the close frame or closeWait passes.
func hangUp(conn *websocket.Conn, messages <-chan GameMessage, received <-chan error, out *Output) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait)); err != nil {
		return nil
	}

	timeout := time.After(closeWait)
	for {
		select {
		case msg := <-messages:
			out.Print(msg)
		case <-received:
			return nil
		case <-timeout:
			return nil
		}
	}
}
