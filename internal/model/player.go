package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player is a resolved identity. The core treats it as an immutable value.
type Player struct {
	ID          PlayerID
	DisplayName string
	CreatedAt   time.Time
}
