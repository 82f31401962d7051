package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage"
)

// Storage is a Postgres-backed implementation of the storage interface.
// Conditional updates are a single UPDATE guarded on the version column.
type Storage struct {
	db *gorm.DB
}

// New opens a connection and migrates the schema
func New(cfg Config) (*Storage, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return NewWithDB(db)
}

// NewWithDB creates a storage from an existing gorm DB and migrates the schema
func NewWithDB(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&playerRow{}, &sessionRow{}, &participantRow{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// DB exposes the underlying gorm DB instance
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	row := playerRow{
		ID:          string(player.ID),
		DisplayName: player.DisplayName,
		CreatedAt:   player.CreatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name"}),
		}).
		Create(&row).Error
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var row playerRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model.Player{
		ID:          model.PlayerID(row.ID),
		DisplayName: row.DisplayName,
		CreatedAt:   row.CreatedAt.UTC(),
	}, nil
}

// Session operations

func encodeSession(session *model.Session) (string, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	return string(data), nil
}

func decodeSession(row *sessionRow) (*model.Session, error) {
	var session model.Session
	if err := json.Unmarshal([]byte(row.Document), &session); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", row.Code, err)
	}
	session.Version = row.Version
	return &session, nil
}

func decodeSessions(rows []sessionRow) ([]*model.Session, error) {
	sessions := make([]*model.Session, 0, len(rows))
	for i := range rows {
		sess, err := decodeSession(&rows[i])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func participantRows(session *model.Session) []participantRow {
	rows := make([]participantRow, len(session.Participants))
	for i, p := range session.Participants {
		rows[i] = participantRow{SessionCode: string(session.Code), PlayerID: string(p.PlayerID)}
	}
	return rows
}

func indexParticipants(tx *gorm.DB, session *model.Session) error {
	rows := participantRows(session)
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (s *Storage) CreateSession(ctx context.Context, session *model.Session) error {
	stored := session.Clone()
	stored.Version = 1
	doc, err := encodeSession(stored)
	if err != nil {
		return err
	}

	row := sessionRow{
		Code:      string(stored.Code),
		Status:    string(stored.Status),
		Version:   stored.Version,
		Document:  doc,
		CreatedAt: stored.CreatedAt,
		ActiveAt:  stored.UpdatedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrSessionExists
		}
		return indexParticipants(tx, stored)
	})
	if err != nil {
		return err
	}

	session.Version = stored.Version
	return nil
}

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "code = ?", string(code)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(&row)
}

func (s *Storage) UpdateSession(ctx context.Context, session *model.Session) error {
	stored := session.Clone()
	stored.Version = session.Version + 1
	doc, err := encodeSession(stored)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&sessionRow{}).
			Where("code = ? AND version = ?", string(session.Code), session.Version).
			Updates(map[string]any{
				"status":    string(stored.Status),
				"version":   stored.Version,
				"document":  doc,
				"active_at": stored.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&sessionRow{}).Where("code = ?", string(session.Code)).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return model.ErrSessionNotFound
			}
			return model.ErrConflict
		}
		return indexParticipants(tx, stored)
	})
	if err != nil {
		return err
	}

	session.Version = stored.Version
	return nil
}

func (s *Storage) DeleteSession(ctx context.Context, code model.SessionCode) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteSessions(tx, []string{string(code)})
	})
}

func deleteSessions(tx *gorm.DB, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	if err := tx.Where("session_code IN ?", codes).Delete(&participantRow{}).Error; err != nil {
		return err
	}
	return tx.Where("code IN ?", codes).Delete(&sessionRow{}).Error
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&sessionRow{}).Where("code = ?", string(code)).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Storage) ListSessionsByStatus(ctx context.Context, status model.SessionStatus) ([]*model.Session, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Where("status = ?", string(status)).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeSessions(rows)
}

func (s *Storage) participantQuery(tx *gorm.DB, playerID model.PlayerID, statuses []model.SessionStatus) *gorm.DB {
	sub := tx.Model(&participantRow{}).Select("session_code").Where("player_id = ?", string(playerID))
	q := tx.Where("code IN (?)", sub)
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		q = q.Where("status IN ?", names)
	}
	return q.Order("seq")
}

func (s *Storage) ListSessionsByParticipant(ctx context.Context, playerID model.PlayerID, statuses ...model.SessionStatus) ([]*model.Session, error) {
	var rows []sessionRow
	db := s.db.WithContext(ctx)
	if err := s.participantQuery(db, playerID, statuses).Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeSessions(rows)
}

func (s *Storage) RenameParticipant(ctx context.Context, playerID model.PlayerID, displayName string) (int, error) {
	changed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []sessionRow
		err := s.participantQuery(tx, playerID, nil).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Find(&rows).Error
		if err != nil {
			return err
		}

		for i := range rows {
			sess, err := decodeSession(&rows[i])
			if err != nil {
				return err
			}
			if !storage.RenameIn(sess, playerID, displayName) {
				continue
			}
			sess.Version++
			doc, err := encodeSession(sess)
			if err != nil {
				return err
			}
			err = tx.Model(&sessionRow{}).
				Where("seq = ?", rows[i].Seq).
				Updates(map[string]any{"version": sess.Version, "document": doc}).Error
			if err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *Storage) PurgeSessions(ctx context.Context, status model.SessionStatus, olderThan time.Time) (int, error) {
	purged := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var codes []string
		err := tx.Model(&sessionRow{}).
			Where("status = ? AND active_at < ?", string(status), olderThan).
			Pluck("code", &codes).Error
		if err != nil {
			return err
		}
		purged = len(codes)
		return deleteSessions(tx, codes)
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}
