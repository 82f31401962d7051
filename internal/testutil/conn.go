package testutil

import (
	"sync"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/registry"
)

// FakeConn records events sent to it. Capacity bounds how many it accepts
// before reporting a full buffer; zero means unbounded.
type FakeConn struct {
	id       registry.ConnID
	capacity int

	mu     sync.Mutex
	events []model.Event
	closed bool
}

// NewFakeConn creates an unbounded FakeConn
func NewFakeConn(id string) *FakeConn {
	return &FakeConn{id: registry.ConnID(id)}
}

// NewBoundedFakeConn creates a FakeConn that fills up after capacity events
func NewBoundedFakeConn(id string, capacity int) *FakeConn {
	return &FakeConn{id: registry.ConnID(id), capacity: capacity}
}

func (c *FakeConn) ID() registry.ConnID { return c.id }

func (c *FakeConn) Send(event model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return registry.ErrConnClosed
	}
	if c.capacity > 0 && len(c.events) >= c.capacity {
		return registry.ErrSendBufferFull
	}
	c.events = append(c.events, event)
	return nil
}

// Close makes later sends fail
func (c *FakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Events returns a copy of everything received so far
func (c *FakeConn) Events() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Event(nil), c.events...)
}

// Types returns the types of received events in order
func (c *FakeConn) Types() []model.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]model.EventType, len(c.events))
	for i, e := range c.events {
		types[i] = e.Type
	}
	return types
}

// Last returns the most recent event, or the zero Event
func (c *FakeConn) Last() model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return model.Event{}
	}
	return c.events[len(c.events)-1]
}

// Clear forgets received events
func (c *FakeConn) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
