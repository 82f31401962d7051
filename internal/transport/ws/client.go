package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/registry"
)

// Client is one websocket connection. It implements registry.Conn.
type Client struct {
	id     registry.ConnID
	conn   *websocket.Conn
	config Config
	logger *slog.Logger

	send chan model.Event
	done chan struct{}

	closeOnce sync.Once
	onClose   func()
}

var _ registry.Conn = (*Client)(nil)

func newClient(id registry.ConnID, conn *websocket.Conn, config Config, logger *slog.Logger, onClose func()) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		config:  config,
		logger:  logger.With(slog.String("conn_id", string(id))),
		send:    make(chan model.Event, config.SendBufferSize),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// ID returns the connection ID
func (c *Client) ID() registry.ConnID {
	return c.id
}

// Send queues an event for the write pump without blocking
func (c *Client) Send(event model.Event) error {
	select {
	case <-c.done:
		return registry.ErrConnClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return registry.ErrConnClosed
	default:
		return registry.ErrSendBufferFull
	}
}

// close tears the connection down. onClose runs once, whichever pump
// notices first.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteWait))
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
}

// readPump delivers inbound frames to handle, one at a time, until the
// connection fails
func (c *Client) readPump(handle func(data []byte)) {
	defer c.close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}
		handle(data)
	}
}

// writePump serialises queued events onto the connection and keeps it alive
// with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case event := <-c.send:
			data, err := json.Marshal(Encode(event))
			if err != nil {
				c.logger.Error("failed to encode event",
					slog.String("event", string(event.Type)),
					slog.String("error", err.Error()))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logWriteError(err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logWriteError(err)
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) logWriteError(err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	c.logger.Debug("websocket write failed", slog.String("error", err.Error()))
}
