package clock

import "time"

// Clock provides the current time and can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time in UTC. The monotonic reading is stripped so
// timestamps compare equal after a round trip through storage.
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}
