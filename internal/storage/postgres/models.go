package postgres

import "time"

// playerRow is a stored guest identity
type playerRow struct {
	ID          string `gorm:"primaryKey"`
	DisplayName string
	CreatedAt   time.Time
}

func (playerRow) TableName() string { return "players" }

// sessionRow holds the session document alongside the columns it is queried by.
// Seq orders sessions by creation.
type sessionRow struct {
	Seq       int64  `gorm:"primaryKey;autoIncrement"`
	Code      string `gorm:"size:16;uniqueIndex"`
	Status    string `gorm:"size:16;index"`
	Version   int64
	Document  string    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"index"`
	// ActiveAt mirrors the session's UpdatedAt. It is not named UpdatedAt so
	// gorm leaves it alone.
	ActiveAt time.Time `gorm:"index"`
}

func (sessionRow) TableName() string { return "sessions" }

// participantRow indexes sessions by the players in them
type participantRow struct {
	SessionCode string `gorm:"primaryKey;size:16"`
	PlayerID    string `gorm:"primaryKey;index"`
}

func (participantRow) TableName() string { return "session_participants" }
