package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage/storagetest"
	"github.com/mcoot/noughts/internal/testutil"
)

type StorageSuite struct {
	storagetest.Suite
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupSuite() {
	pg := testutil.NewPostgresContainer(s.T())

	cfg := DefaultConfig()
	cfg.DSN = pg.DSN
	cfg.MaxOpenConns = 4

	store, err := New(cfg)
	s.Require().NoError(err)
	s.storage = store
}

func (s *StorageSuite) TearDownSuite() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) SetupTest() {
	err := s.storage.DB().Exec("TRUNCATE sessions, session_participants, players RESTART IDENTITY").Error
	s.Require().NoError(err)

	s.Storage = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TestDocumentVersionMatchesColumn() {
	s.Require().NoError(s.storage.CreateSession(s.Ctx, storagetest.WaitingSession("WAIT22", "alice", time.Now().UTC())))

	session, err := s.storage.GetSession(s.Ctx, "WAIT22")
	s.Require().NoError(err)
	session.Status = model.SessionInProgress
	s.Require().NoError(s.storage.UpdateSession(s.Ctx, session))

	var row sessionRow
	s.Require().NoError(s.storage.DB().First(&row, "code = ?", "WAIT22").Error)
	s.Equal(int64(2), row.Version)
	s.Equal(string(model.SessionInProgress), row.Status)

	decoded, err := decodeSession(&row)
	s.Require().NoError(err)
	s.Equal(int64(2), decoded.Version)
}
