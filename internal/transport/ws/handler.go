// Package ws is the websocket gateway. It decodes client frames into
// coordinator calls and encodes coordinator events back onto the wire.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/noughts/internal/dependencies/clock"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/registry"
	"github.com/mcoot/noughts/internal/services/session"
)

// Config holds connection tuning for the gateway
type Config struct {
	// Time allowed to write a frame to the peer
	WriteWait time.Duration
	// Time allowed to read the next pong from the peer
	PongWait time.Duration
	// Ping interval, must be less than PongWait
	PingPeriod time.Duration
	// Largest inbound frame accepted
	MaxMessageSize int64
	// Outbound events queued per connection before sends are dropped
	SendBufferSize int
}

// DefaultConfig returns sensible defaults for the gateway
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 512,
		SendBufferSize: 32,
	}
}

// errPanic is reported to a client whose request crashed its handler
var errPanic = errors.New("internal error")

// Registrar is where new connections are announced
type Registrar interface {
	Register(conn registry.Conn)
}

// Handler upgrades requests to websockets and runs one client per connection
type Handler struct {
	sessions session.ControllerInterface
	registry Registrar
	clock    clock.Clock
	logger   *slog.Logger
	config   Config
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[registry.ConnID]*Client
}

// NewHandler creates a new websocket gateway
func NewHandler(sessions session.ControllerInterface, reg Registrar, clock clock.Clock, logger *slog.Logger, config Config) *Handler {
	return &Handler{
		sessions: sessions,
		registry: reg,
		clock:    clock,
		logger:   logger.With(slog.String("component", "ws")),
		config:   config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are CLIs and same-host pages; there is no cookie auth to protect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[registry.ConnID]*Client),
	}
}

// ServeHTTP handles GET /ws. It blocks until the connection closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	id := registry.ConnID(uuid.NewString())
	client := newClient(id, conn, h.config, h.logger, func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		h.sessions.Disconnect(ctx, id)
	})

	h.mu.Lock()
	h.clients[id] = client
	h.mu.Unlock()
	h.registry.Register(client)

	go client.writePump()
	client.readPump(func(data []byte) {
		h.handle(ctx, client, data)
	})
}

// Close disconnects every live client
func (h *Handler) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.logger.Info("websocket gateway closed", slog.Int("disconnected_clients", len(clients)))
}

// handle dispatches one inbound frame. Every failure becomes an error payload
// to the sender; none closes the connection.
func (h *Handler) handle(ctx context.Context, client *Client, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic recovered",
				slog.String("conn_id", string(client.ID())),
				slog.Any("error", rec),
				slog.String("stack", string(debug.Stack())))
			h.reject(client, errPanic)
		}
	}()

	msg, err := Decode(data)
	if err != nil {
		h.reject(client, err)
		return
	}

	switch m := msg.(type) {
	case ConnectMessage:
		_, err = h.sessions.Connect(ctx, client.ID(), m.UserID)
	case MoveMessage:
		_, err = h.sessions.PlaceMove(ctx, client.ID(), m.Index)
	case ResetMessage:
		_, err = h.sessions.Reset(ctx, client.ID())
	case ExitMessage:
		err = h.sessions.Exit(ctx, client.ID())
	}
	if err != nil {
		h.reject(client, err)
	}
}

func (h *Handler) reject(client *Client, err error) {
	if model.KindOf(err) == model.KindStore {
		h.logger.Error("request failed",
			slog.String("conn_id", string(client.ID())),
			slog.String("error", err.Error()))
	} else {
		h.logger.Debug("request rejected",
			slog.String("conn_id", string(client.ID())),
			slog.String("error", err.Error()))
	}

	if sendErr := client.Send(model.Event{Type: model.EventError, Timestamp: h.clock.Now(), Err: err}); sendErr != nil {
		h.logger.Warn("error reply dropped",
			slog.String("conn_id", string(client.ID())),
			slog.String("error", sendErr.Error()))
	}
}
