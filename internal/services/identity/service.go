// Package identity manages guest identities: the userId a connection
// presents, and the display name shown to its opponent.
package identity

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mcoot/noughts/internal/dependencies/clock"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage"
)

// MaxDisplayNameLength is the longest accepted display name, in characters
const MaxDisplayNameLength = 32

// Service creates and resolves guest identities
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new identity service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "identity")),
	}
}

// NormalizeDisplayName trims a display name and checks its length
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxDisplayNameLength {
		return "", model.ErrInvalidDisplayName
	}
	return name, nil
}

// CreateGuest creates an anonymous identity with the given display name
func (s *Service) CreateGuest(ctx context.Context, displayName string) (*model.Player, error) {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	player := &model.Player{
		ID:          model.PlayerID(uuid.NewString()),
		DisplayName: name,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("guest created", slog.String("player_id", string(player.ID)))
	return player, nil
}

// Get returns the identity with the given ID
func (s *Service) Get(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return s.storage.GetPlayer(ctx, id)
}

// Lookup resolves an identity for matchmaking
func (s *Service) Lookup(ctx context.Context, id model.PlayerID) (model.Player, error) {
	if id == "" {
		return model.Player{}, model.ErrPlayerNotFound
	}
	player, err := s.storage.GetPlayer(ctx, id)
	if err != nil {
		return model.Player{}, err
	}
	return *player, nil
}

// Rename changes an identity's display name and rewrites it in every session
// the identity took part in. Sessions already in memory elsewhere pick the
// new name up on their next read.
func (s *Service) Rename(ctx context.Context, id model.PlayerID, displayName string) (*model.Player, error) {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	player, err := s.storage.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	player.DisplayName = name
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	changed, err := s.storage.RenameParticipant(ctx, id, name)
	if err != nil {
		return nil, err
	}

	s.logger.Info("player renamed",
		slog.String("player_id", string(id)),
		slog.Int("sessions_updated", changed))
	return player, nil
}

// ServiceInterface for dependency injection
type ServiceInterface interface {
	CreateGuest(ctx context.Context, displayName string) (*model.Player, error)
	Get(ctx context.Context, id model.PlayerID) (*model.Player, error)
	Lookup(ctx context.Context, id model.PlayerID) (model.Player, error)
	Rename(ctx context.Context, id model.PlayerID, displayName string) (*model.Player, error)
}

var _ ServiceInterface = (*Service)(nil)
