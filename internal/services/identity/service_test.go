package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/noughts/internal/dependencies/mocks"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage/memory"
	"github.com/mcoot/noughts/internal/storage/storagetest"
	"github.com/mcoot/noughts/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

// CreateGuest tests

func (s *ServiceSuite) TestCreateGuestSucceeds() {
	player, err := s.service.CreateGuest(s.ctx, "  Alice ")
	s.Require().NoError(err)

	s.NotEmpty(player.ID)
	s.Equal("Alice", player.DisplayName)
	s.Equal(s.clock.Now(), player.CreatedAt)
}

func (s *ServiceSuite) TestCreateGuestPersistsPlayer() {
	player, _ := s.service.CreateGuest(s.ctx, "Alice")

	stored, err := s.storage.GetPlayer(s.ctx, player.ID)
	s.Require().NoError(err)
	s.Equal("Alice", stored.DisplayName)
}

func (s *ServiceSuite) TestCreateGuestIDsAreUnique() {
	a, _ := s.service.CreateGuest(s.ctx, "Alice")
	b, _ := s.service.CreateGuest(s.ctx, "Alice")
	s.NotEqual(a.ID, b.ID)
}

func (s *ServiceSuite) TestCreateGuestRejectsBadNames() {
	for _, name := range []string{"", "   ", strings.Repeat("x", MaxDisplayNameLength+1)} {
		_, err := s.service.CreateGuest(s.ctx, name)
		s.ErrorIs(err, model.ErrInvalidDisplayName, "name %q", name)
	}
}

// Lookup tests

func (s *ServiceSuite) TestLookupKnownPlayer() {
	created, _ := s.service.CreateGuest(s.ctx, "Alice")

	player, err := s.service.Lookup(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(*created, player)
}

func (s *ServiceSuite) TestLookupUnknownPlayer() {
	_, err := s.service.Lookup(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.service.Lookup(s.ctx, "")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Rename tests

func (s *ServiceSuite) TestRenameUpdatesPlayerAndSessions() {
	s.Require().NoError(s.storage.CreateSession(s.ctx, storagetest.CompletedSession("DONE22")))
	s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{ID: "alice", DisplayName: "Alice"}))

	player, err := s.service.Rename(s.ctx, "alice", "Alicia")
	s.Require().NoError(err)
	s.Equal("Alicia", player.DisplayName)

	stored, err := s.service.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("Alicia", stored.DisplayName)

	session, err := s.storage.GetSession(s.ctx, "DONE22")
	s.Require().NoError(err)
	s.Equal("Alicia", session.GetParticipant("alice").DisplayName)
}

func (s *ServiceSuite) TestRenameUnknownPlayer() {
	_, err := s.service.Rename(s.ctx, "nobody", "Name")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestRenameRejectsBadName() {
	created, _ := s.service.CreateGuest(s.ctx, "Alice")
	_, err := s.service.Rename(s.ctx, created.ID, "")
	s.ErrorIs(err, model.ErrInvalidDisplayName)
}
