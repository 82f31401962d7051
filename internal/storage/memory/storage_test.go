package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.Storage = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TestCreatedSessionIsDetachedFromCaller() {
	session := storagetest.WaitingSession("ABC234", "alice", time.Now())
	s.Require().NoError(s.storage.CreateSession(s.Ctx, session))

	session.Participants[0].DisplayName = "Mallory"

	retrieved, err := s.storage.GetSession(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal("Player alice", retrieved.Participants[0].DisplayName)
}

func (s *StorageSuite) TestConcurrentUpdatesFromSameVersionOnlyOneWins() {
	s.Require().NoError(s.storage.CreateSession(s.Ctx, storagetest.WaitingSession("ABC234", "alice", time.Now())))

	const writers = 16
	var wg sync.WaitGroup
	var won, conflicted atomic.Int32
	for i := 0; i < writers; i++ {
		session, err := s.storage.GetSession(s.Ctx, "ABC234")
		s.Require().NoError(err)

		wg.Add(1)
		go func(session *model.Session) {
			defer wg.Done()
			session.Status = model.SessionInProgress
			err := s.storage.UpdateSession(context.Background(), session)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, model.ErrConflict):
				conflicted.Add(1)
			}
		}(session)
	}
	wg.Wait()

	s.Equal(int32(1), won.Load())
	s.Equal(int32(writers-1), conflicted.Load())
}
