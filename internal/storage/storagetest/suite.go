// Package storagetest holds the behavioural suite every storage backend must pass.
package storagetest

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage"
)

// Suite exercises a storage.Storage. Embedding suites set Storage and Ctx in SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var baseTime = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

// WaitingSession builds a waiting session hosted by playerID
func WaitingSession(code model.SessionCode, playerID model.PlayerID, createdAt time.Time) *model.Session {
	return &model.Session{
		Code:   code,
		Status: model.SessionWaiting,
		Participants: []model.Participant{
			{PlayerID: playerID, DisplayName: "Player " + string(playerID), Symbol: model.SymbolX},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// CompletedSession builds a fully populated completed session
func CompletedSession(code model.SessionCode) *model.Session {
	completedAt := at(3)
	final := model.Board{
		model.SymbolX, model.SymbolX, model.SymbolX,
		model.SymbolO, model.SymbolO, model.SymbolEmpty,
		model.SymbolEmpty, model.SymbolEmpty, model.SymbolEmpty,
	}
	return &model.Session{
		Code:   code,
		Status: model.SessionCompleted,
		Participants: []model.Participant{
			{PlayerID: "alice", DisplayName: "Alice", Symbol: model.SymbolX},
			{PlayerID: "bob", DisplayName: "Bob", Symbol: model.SymbolO},
		},
		Moves: []model.Move{
			{PlayerID: "alice", Position: 0, Symbol: model.SymbolX, Timestamp: at(1)},
			{PlayerID: "bob", Position: 3, Symbol: model.SymbolO, Timestamp: at(1).Add(time.Second)},
			{PlayerID: "alice", Position: 1, Symbol: model.SymbolX, Timestamp: at(2)},
			{PlayerID: "bob", Position: 4, Symbol: model.SymbolO, Timestamp: at(2).Add(time.Second)},
			{PlayerID: "alice", Position: 2, Symbol: model.SymbolX, Timestamp: at(3)},
		},
		TurnIndex:   0,
		Outcome:     &model.Outcome{Kind: model.OutcomeWin, Winner: "alice", Reason: model.ReasonLine},
		FinalBoard:  &final,
		RematchCode: "NEXT22",
		CreatedAt:   at(0),
		UpdatedAt:   completedAt,
		CompletedAt: &completedAt,
	}
}

func (s *Suite) create(session *model.Session) *model.Session {
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, session))
	return session
}

func codes(sessions []*model.Session) []model.SessionCode {
	out := make([]model.SessionCode, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.Code
	}
	return out
}

// Player tests

func (s *Suite) TestSaveAndGetPlayer() {
	player := &model.Player{ID: "player-1", DisplayName: "Alice", CreatedAt: baseTime}
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, player))

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(player.ID, retrieved.ID)
	s.Equal(player.DisplayName, retrieved.DisplayName)
	s.True(player.CreatedAt.Equal(retrieved.CreatedAt))
}

func (s *Suite) TestSavePlayerOverwrites() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &model.Player{ID: "player-1", DisplayName: "Alice"}))
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &model.Player{ID: "player-1", DisplayName: "Alicia"}))

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("Alicia", retrieved.DisplayName)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Session tests

func (s *Suite) TestCreateSessionSetsVersion() {
	session := s.create(WaitingSession("ABC234", "alice", baseTime))
	s.Equal(int64(1), session.Version)

	retrieved, err := s.Storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(int64(1), retrieved.Version)
	s.Equal(model.SessionWaiting, retrieved.Status)
	s.Require().Len(retrieved.Participants, 1)
	s.Equal(model.PlayerID("alice"), retrieved.Participants[0].PlayerID)
}

func (s *Suite) TestCreateSessionDuplicateCode() {
	s.create(WaitingSession("ABC234", "alice", baseTime))

	err := s.Storage.CreateSession(s.Ctx, WaitingSession("ABC234", "bob", baseTime))
	s.ErrorIs(err, model.ErrSessionExists)
}

func (s *Suite) TestGetSessionNotFound() {
	_, err := s.Storage.GetSession(s.Ctx, "NOPE22")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestSessionRoundTripPreservesFields() {
	original := CompletedSession("DONE22")
	s.create(original)

	retrieved, err := s.Storage.GetSession(s.Ctx, "DONE22")
	s.Require().NoError(err)
	s.Equal(original, retrieved)
}

func (s *Suite) TestReturnedSessionIsACopy() {
	s.create(WaitingSession("ABC234", "alice", baseTime))

	first, err := s.Storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)
	first.Participants[0].DisplayName = "Mallory"
	first.Status = model.SessionCompleted

	second, err := s.Storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal("Player alice", second.Participants[0].DisplayName)
	s.Equal(model.SessionWaiting, second.Status)
}

func (s *Suite) TestUpdateSessionBumpsVersion() {
	s.create(WaitingSession("ABC234", "alice", baseTime))

	session, err := s.Storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)
	session.Participants = append(session.Participants, model.Participant{PlayerID: "bob", DisplayName: "Bob", Symbol: model.SymbolO})
	session.Status = model.SessionInProgress

	s.Require().NoError(s.Storage.UpdateSession(s.Ctx, session))
	s.Equal(int64(2), session.Version)

	retrieved, err := s.Storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(int64(2), retrieved.Version)
	s.Equal(model.SessionInProgress, retrieved.Status)
	s.Len(retrieved.Participants, 2)
}

func (s *Suite) TestUpdateSessionStaleVersionConflicts() {
	s.create(WaitingSession("ABC234", "alice", baseTime))

	first, err := s.Storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)
	second, err := s.Storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)

	first.Status = model.SessionInProgress
	s.Require().NoError(s.Storage.UpdateSession(s.Ctx, first))

	second.Status = model.SessionCompleted
	err = s.Storage.UpdateSession(s.Ctx, second)
	s.ErrorIs(err, model.ErrConflict)
	s.Equal(int64(1), second.Version)

	retrieved, err := s.Storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.SessionInProgress, retrieved.Status)
}

func (s *Suite) TestUpdateSessionNotFound() {
	session := WaitingSession("GONE22", "alice", baseTime)
	session.Version = 1
	err := s.Storage.UpdateSession(s.Ctx, session)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestDeleteSession() {
	s.create(WaitingSession("ABC234", "alice", baseTime))

	exists, err := s.Storage.SessionExists(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.True(exists)

	s.Require().NoError(s.Storage.DeleteSession(s.Ctx, "ABC234"))

	exists, err = s.Storage.SessionExists(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.Storage.GetSession(s.Ctx, "ABC234")
	s.ErrorIs(err, model.ErrSessionNotFound)

	waiting, err := s.Storage.ListSessionsByStatus(s.Ctx, model.SessionWaiting)
	s.Require().NoError(err)
	s.Empty(waiting)

	mine, err := s.Storage.ListSessionsByParticipant(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Empty(mine)
}

func (s *Suite) TestDeleteMissingSessionIsNoop() {
	s.NoError(s.Storage.DeleteSession(s.Ctx, "NOPE22"))
}

func (s *Suite) TestListSessionsByStatusIsFIFO() {
	// Same creation time for all, so order must come from insertion
	for i, code := range []model.SessionCode{"CCC222", "AAA222", "BBB222"} {
		s.create(WaitingSession(code, model.PlayerID(fmt.Sprintf("p%d", i)), baseTime))
	}
	s.create(CompletedSession("DONE22"))

	waiting, err := s.Storage.ListSessionsByStatus(s.Ctx, model.SessionWaiting)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"CCC222", "AAA222", "BBB222"}, codes(waiting))

	completed, err := s.Storage.ListSessionsByStatus(s.Ctx, model.SessionCompleted)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"DONE22"}, codes(completed))
}

func (s *Suite) TestListSessionsByStatusFollowsUpdates() {
	s.create(WaitingSession("AAA222", "p1", baseTime))
	s.create(WaitingSession("BBB222", "p2", baseTime))

	session, err := s.Storage.GetSession(s.Ctx, "AAA222")
	s.Require().NoError(err)
	session.Status = model.SessionInProgress
	s.Require().NoError(s.Storage.UpdateSession(s.Ctx, session))

	waiting, err := s.Storage.ListSessionsByStatus(s.Ctx, model.SessionWaiting)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"BBB222"}, codes(waiting))

	inProgress, err := s.Storage.ListSessionsByStatus(s.Ctx, model.SessionInProgress)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"AAA222"}, codes(inProgress))
}

func (s *Suite) TestListSessionsByParticipant() {
	s.create(CompletedSession("DONE22"))
	s.create(WaitingSession("WAIT22", "alice", at(10)))
	s.create(WaitingSession("OTHR22", "carol", at(11)))

	all, err := s.Storage.ListSessionsByParticipant(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"DONE22", "WAIT22"}, codes(all))

	active, err := s.Storage.ListSessionsByParticipant(s.Ctx, "alice", model.SessionWaiting, model.SessionInProgress)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"WAIT22"}, codes(active))

	bobs, err := s.Storage.ListSessionsByParticipant(s.Ctx, "bob", model.SessionCompleted)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"DONE22"}, codes(bobs))

	none, err := s.Storage.ListSessionsByParticipant(s.Ctx, "dave")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *Suite) TestListSessionsByParticipantSeesJoins() {
	s.create(WaitingSession("WAIT22", "alice", baseTime))

	session, err := s.Storage.GetSession(s.Ctx, "WAIT22")
	s.Require().NoError(err)
	session.Participants = append(session.Participants, model.Participant{PlayerID: "bob", DisplayName: "Bob", Symbol: model.SymbolO})
	session.Status = model.SessionInProgress
	s.Require().NoError(s.Storage.UpdateSession(s.Ctx, session))

	bobs, err := s.Storage.ListSessionsByParticipant(s.Ctx, "bob", model.SessionInProgress)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"WAIT22"}, codes(bobs))
}

func (s *Suite) TestRenameParticipant() {
	s.create(CompletedSession("DONE22"))
	s.create(WaitingSession("WAIT22", "alice", at(10)))
	s.create(WaitingSession("OTHR22", "carol", at(11)))

	changed, err := s.Storage.RenameParticipant(s.Ctx, "alice", "Alicia")
	s.Require().NoError(err)
	s.Equal(2, changed)

	done, err := s.Storage.GetSession(s.Ctx, "DONE22")
	s.Require().NoError(err)
	s.Equal("Alicia", done.GetParticipant("alice").DisplayName)
	s.Equal("Bob", done.GetParticipant("bob").DisplayName)
	s.Equal(int64(2), done.Version)
	s.Equal(model.SymbolX, done.GetParticipant("alice").Symbol)
	s.Len(done.Moves, 5)
	s.Equal(model.PlayerID("alice"), done.Outcome.Winner)

	other, err := s.Storage.GetSession(s.Ctx, "OTHR22")
	s.Require().NoError(err)
	s.Equal(int64(1), other.Version)

	// Renaming to the same name changes nothing
	changed, err = s.Storage.RenameParticipant(s.Ctx, "alice", "Alicia")
	s.Require().NoError(err)
	s.Equal(0, changed)
}

func (s *Suite) TestPurgeSessions() {
	s.create(WaitingSession("OLD222", "p1", at(0)))
	s.create(WaitingSession("NEW222", "p2", at(10)))
	old := CompletedSession("DONE22")
	s.create(old)

	purged, err := s.Storage.PurgeSessions(s.Ctx, model.SessionWaiting, at(5))
	s.Require().NoError(err)
	s.Equal(1, purged)

	exists, err := s.Storage.SessionExists(s.Ctx, "OLD222")
	s.Require().NoError(err)
	s.False(exists)

	exists, err = s.Storage.SessionExists(s.Ctx, "NEW222")
	s.Require().NoError(err)
	s.True(exists)

	// Completed sessions are only purged when asked for by status
	exists, err = s.Storage.SessionExists(s.Ctx, "DONE22")
	s.Require().NoError(err)
	s.True(exists)

	p1, err := s.Storage.ListSessionsByParticipant(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Empty(p1)
}

func (s *Suite) TestPurgeSessionsKeepsRecentlyUpdated() {
	busy := s.create(WaitingSession("BUSY22", "p1", at(0)))
	busy.Status = model.SessionInProgress
	busy.Participants = append(busy.Participants, model.Participant{PlayerID: "p2", DisplayName: "Player p2", Symbol: model.SymbolO})
	busy.UpdatedAt = at(10)
	s.Require().NoError(s.Storage.UpdateSession(s.Ctx, busy))

	purged, err := s.Storage.PurgeSessions(s.Ctx, model.SessionInProgress, at(5))
	s.Require().NoError(err)
	s.Equal(0, purged)

	exists, err := s.Storage.SessionExists(s.Ctx, "BUSY22")
	s.Require().NoError(err)
	s.True(exists)

	purged, err = s.Storage.PurgeSessions(s.Ctx, model.SessionInProgress, at(11))
	s.Require().NoError(err)
	s.Equal(1, purged)
}

func (s *Suite) TestPurgeSessionsNothingToDo() {
	purged, err := s.Storage.PurgeSessions(s.Ctx, model.SessionInProgress, at(60))
	s.Require().NoError(err)
	s.Equal(0, purged)
}
