// Package registry tracks live connections and which session each is bound to.
// Nothing here is persisted; it is rebuilt as clients reconnect.
package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/noughts/internal/model"
)

// Errors
var (
	ErrConnNotFound   = errors.New("connection not registered")
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// ConnID identifies a live connection
type ConnID string

// Conn is a live transport connection. Send must not block: it either
// enqueues the event or fails with ErrSendBufferFull or ErrConnClosed.
type Conn interface {
	ID() ConnID
	Send(event model.Event) error
}

// Binding ties a connection to its seat in a session
type Binding struct {
	ConnID      ConnID
	SessionCode model.SessionCode
	PlayerID    model.PlayerID
	DisplayName string
	Symbol      model.Symbol
}

type entry struct {
	conn        Conn
	binding     *Binding
	connectedAt time.Time
}

// Registry is the process-wide table of live connections
type Registry struct {
	mu        sync.RWMutex
	conns     map[ConnID]*entry
	bySession map[model.SessionCode]map[ConnID]struct{}
	logger    *slog.Logger
}

// New creates an empty Registry
func New(logger *slog.Logger) *Registry {
	return &Registry{
		conns:     make(map[ConnID]*entry),
		bySession: make(map[model.SessionCode]map[ConnID]struct{}),
		logger:    logger.With(slog.String("component", "registry")),
	}
}

// Register adds an unbound connection
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	r.conns[conn.ID()] = &entry{conn: conn, connectedAt: time.Now()}
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("connection registered",
		slog.String("conn_id", string(conn.ID())),
		slog.Int("total_connections", total))
}

// Unregister removes a connection, returning the binding it held if any
func (r *Registry) Unregister(id ConnID) (Binding, bool) {
	r.mu.Lock()
	e, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return Binding{}, false
	}
	delete(r.conns, id)
	binding := r.unbindLocked(id, e)
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("connection unregistered",
		slog.String("conn_id", string(id)),
		slog.Duration("connection_duration", time.Since(e.connectedAt)),
		slog.Int("total_connections", total))

	if binding == nil {
		return Binding{}, false
	}
	return *binding, true
}

// Bind seats a registered connection in a session, replacing any earlier binding
func (r *Registry) Bind(id ConnID, binding Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return ErrConnNotFound
	}
	r.unbindLocked(id, e)

	binding.ConnID = id
	e.binding = &binding
	members, ok := r.bySession[binding.SessionCode]
	if !ok {
		members = make(map[ConnID]struct{})
		r.bySession[binding.SessionCode] = members
	}
	members[id] = struct{}{}
	return nil
}

// Unbind clears a connection's binding. The connection stays registered.
func (r *Registry) Unbind(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		r.unbindLocked(id, e)
	}
}

func (r *Registry) unbindLocked(id ConnID, e *entry) *Binding {
	b := e.binding
	if b == nil {
		return nil
	}
	e.binding = nil
	if members, ok := r.bySession[b.SessionCode]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.bySession, b.SessionCode)
		}
	}
	return b
}

// Lookup returns a connection's binding
func (r *Registry) Lookup(id ConnID) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.binding == nil {
		return Binding{}, false
	}
	return *e.binding, true
}

// FindBySession returns the connections bound to a session, in ID order
func (r *Registry) FindBySession(code model.SessionCode) []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ConnID, 0, len(r.bySession[code]))
	for id := range r.bySession[code] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FindByIdentity returns the connection an identity holds in a session. If
// the identity holds several, the lowest ID wins.
func (r *Registry) FindByIdentity(code model.SessionCode, playerID model.PlayerID) (ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found ConnID
	for id := range r.bySession[code] {
		if b := r.conns[id].binding; b != nil && b.PlayerID == playerID {
			if found == "" || id < found {
				found = id
			}
		}
	}
	return found, found != ""
}

// Send delivers an event to one connection without blocking
func (r *Registry) Send(id ConnID, event model.Event) error {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return ErrConnNotFound
	}

	if err := e.conn.Send(event); err != nil {
		r.logger.Warn("event dropped",
			slog.String("conn_id", string(id)),
			slog.String("event", string(event.Type)),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Broadcast delivers an event to every connection bound to a session. A slow
// or closed recipient loses the event without affecting the others.
func (r *Registry) Broadcast(code model.SessionCode, event model.Event) int {
	ids := r.FindBySession(code)

	sent, dropped := 0, 0
	for _, id := range ids {
		if err := r.Send(id, event); err != nil {
			dropped++
			continue
		}
		sent++
	}
	if dropped > 0 {
		r.logger.Warn("broadcast partial failure",
			slog.String("session_code", string(code)),
			slog.Int("sent", sent),
			slog.Int("dropped", dropped))
	}
	return sent
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
