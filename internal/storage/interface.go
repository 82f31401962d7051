package storage

import (
	"context"
	"time"

	"github.com/mcoot/noughts/internal/model"
)

// Storage defines the interface for data persistence.
//
// Sessions carry an optimistic concurrency token in Session.Version. The
// store sets it on create and bumps it on every successful update; an update
// whose Version no longer matches the stored one fails with model.ErrConflict.
// Sessions are returned as fresh copies, so callers may mutate them freely.
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)

	// Session operations

	// CreateSession stores a new session. It fails with model.ErrSessionExists
	// if the code is taken.
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error)
	// UpdateSession replaces a session if its Version matches the stored one
	UpdateSession(ctx context.Context, session *model.Session) error
	DeleteSession(ctx context.Context, code model.SessionCode) error
	SessionExists(ctx context.Context, code model.SessionCode) (bool, error)

	// ListSessionsByStatus returns sessions in the given status, oldest first
	ListSessionsByStatus(ctx context.Context, status model.SessionStatus) ([]*model.Session, error)
	// ListSessionsByParticipant returns sessions the player took part in, oldest
	// first. With no statuses given, every status matches.
	ListSessionsByParticipant(ctx context.Context, playerID model.PlayerID, statuses ...model.SessionStatus) ([]*model.Session, error)

	// RenameParticipant rewrites the display name of a player in every session
	// they took part in, returning the number of sessions changed
	RenameParticipant(ctx context.Context, playerID model.PlayerID, displayName string) (int, error)
	// PurgeSessions deletes sessions in the given status last updated before olderThan
	PurgeSessions(ctx context.Context, status model.SessionStatus, olderThan time.Time) (int, error)
}

// MatchesStatus reports whether status is one of statuses. An empty list matches everything.
func MatchesStatus(status model.SessionStatus, statuses []model.SessionStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// RenameIn sets the display name of playerID within a session, reporting whether it changed
func RenameIn(session *model.Session, playerID model.PlayerID, displayName string) bool {
	p := session.GetParticipant(playerID)
	if p == nil || p.DisplayName == displayName {
		return false
	}
	p.DisplayName = displayName
	return true
}
