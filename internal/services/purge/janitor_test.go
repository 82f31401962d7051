package purge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/noughts/internal/dependencies/mocks"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage"
	"github.com/mcoot/noughts/internal/storage/memory"
	"github.com/mcoot/noughts/internal/storage/storagetest"
	"github.com/mcoot/noughts/internal/testutil"
)

type failingStorage struct {
	storage.Storage
}

func (failingStorage) PurgeSessions(context.Context, model.SessionStatus, time.Time) (int, error) {
	return 0, errors.New("store unavailable")
}

type JanitorSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	janitor *Janitor
	ctx     context.Context
	start   time.Time
}

func TestJanitorSuite(t *testing.T) {
	suite.Run(t, new(JanitorSuite))
}

func (s *JanitorSuite) SetupTest() {
	s.ctx = context.Background()
	s.start = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(s.start)
	s.janitor = New(s.storage, s.clock, testutil.NopLogger(), DefaultConfig())
}

func (s *JanitorSuite) create(code model.SessionCode, status model.SessionStatus, age time.Duration) {
	sess := storagetest.WaitingSession(code, "p-"+model.PlayerID(code), s.start.Add(-age))
	sess.Status = status
	s.Require().NoError(s.storage.CreateSession(s.ctx, sess))
}

func (s *JanitorSuite) exists(code model.SessionCode) bool {
	ok, err := s.storage.SessionExists(s.ctx, code)
	s.Require().NoError(err)
	return ok
}

func (s *JanitorSuite) TestRemovesOnlyStaleUnfinishedSessions() {
	s.create("OLDRUN", model.SessionInProgress, 6*time.Minute)
	s.create("OLDWAI", model.SessionWaiting, 10*time.Minute)
	s.create("NEWRUN", model.SessionInProgress, 4*time.Minute)
	s.create("OLDEND", model.SessionCompleted, time.Hour)

	n, err := s.janitor.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	s.False(s.exists("OLDRUN"))
	s.False(s.exists("OLDWAI"))
	s.True(s.exists("NEWRUN"))
	s.True(s.exists("OLDEND"))
}

func (s *JanitorSuite) TestCutoffFollowsClock() {
	s.create("GAME22", model.SessionInProgress, 0)

	n, err := s.janitor.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	s.clock.Advance(5*time.Minute + time.Second)
	n, err = s.janitor.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *JanitorSuite) TestKeepsLongGameStillBeingPlayed() {
	s.create("LONG22", model.SessionInProgress, time.Hour)

	sess, err := s.storage.GetSession(s.ctx, "LONG22")
	s.Require().NoError(err)
	sess.UpdatedAt = s.start.Add(-time.Minute)
	s.Require().NoError(s.storage.UpdateSession(s.ctx, sess))

	n, err := s.janitor.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
	s.True(s.exists("LONG22"))

	// Idle for the full threshold after its last move
	s.clock.Advance(4*time.Minute + time.Second)
	n, err = s.janitor.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *JanitorSuite) TestStoreFailure() {
	j := New(failingStorage{s.storage}, s.clock, testutil.NopLogger(), DefaultConfig())
	_, err := j.RunOnce(s.ctx)
	s.Error(err)
}

func (s *JanitorSuite) TestRunSweepsUntilCancelled() {
	s.create("OLDRUN", model.SessionInProgress, time.Hour)
	j := New(s.storage, s.clock, testutil.NopLogger(), Config{Interval: 10 * time.Millisecond, After: time.Minute})

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	s.Eventually(func() bool { return !s.exists("OLDRUN") }, time.Second, 5*time.Millisecond)
	cancel()
	s.Eventually(func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
