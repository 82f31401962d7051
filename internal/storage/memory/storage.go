package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players  map[model.PlayerID]*model.Player
	sessions map[model.SessionCode]*entry
	seq      uint64
}

// entry keeps the creation sequence alongside the session for FIFO listing
type entry struct {
	seq     uint64
	session *model.Session
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:  make(map[model.PlayerID]*model.Player),
		sessions: make(map[model.SessionCode]*entry),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *player
	s.players[player.ID] = &p
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *player
	return &p, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Code]; ok {
		return model.ErrSessionExists
	}
	s.seq++
	session.Version = 1
	s.sessions[session.Code] = &entry{seq: s.seq, session: session.Clone()}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[code]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

func (s *Storage) UpdateSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[session.Code]
	if !ok {
		return model.ErrSessionNotFound
	}
	if e.session.Version != session.Version {
		return model.ErrConflict
	}
	session.Version++
	e.session = session.Clone()
	return nil
}

func (s *Storage) DeleteSession(ctx context.Context, code model.SessionCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
	return nil
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[code]
	return ok, nil
}

func (s *Storage) ListSessionsByStatus(ctx context.Context, status model.SessionStatus) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(sess *model.Session) bool {
		return sess.Status == status
	}), nil
}

func (s *Storage) ListSessionsByParticipant(ctx context.Context, playerID model.PlayerID, statuses ...model.SessionStatus) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(sess *model.Session) bool {
		return sess.GetParticipant(playerID) != nil && storage.MatchesStatus(sess.Status, statuses)
	}), nil
}

func (s *Storage) RenameParticipant(ctx context.Context, playerID model.PlayerID, displayName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, e := range s.sessions {
		if storage.RenameIn(e.session, playerID, displayName) {
			e.session.Version++
			changed++
		}
	}
	return changed, nil
}

func (s *Storage) PurgeSessions(ctx context.Context, status model.SessionStatus, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for code, e := range s.sessions {
		if e.session.Status == status && e.session.UpdatedAt.Before(olderThan) {
			delete(s.sessions, code)
			purged++
		}
	}
	return purged, nil
}

// collect returns copies of matching sessions in creation order. Callers hold the lock.
func (s *Storage) collect(match func(*model.Session) bool) []*model.Session {
	var matched []*entry
	for _, e := range s.sessions {
		if match(e.session) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	result := make([]*model.Session, len(matched))
	for i, e := range matched {
		result[i] = e.session.Clone()
	}
	return result
}
