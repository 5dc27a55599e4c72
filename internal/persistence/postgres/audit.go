// Package postgres provides an optional audit trail for sessions, persisted
// past process lifetime; durability beyond the in-memory stores is not
// required for correctness (spec Non-goal), but operators who set
// POSTGRES_DSN get a queryable history. Grounded on the teacher's
// internal/model/entity.go GORM struct-tag idiom.
package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"realtime-backend/internal/types"
)

// SessionRecord is one closed-or-active session's audit row.
type SessionRecord struct {
	ID                    uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID             string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	SpeakerUserID         string    `gorm:"type:varchar(128)"`
	SourceLanguage        string    `gorm:"type:varchar(16);not null"`
	QualityTier           string    `gorm:"type:varchar(32)"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	ClosedAt              *time.Time
	PeakListenerCount     int64
	TotalResultsForwarded int64
}

func (SessionRecord) TableName() string {
	return "session_history"
}

// Store persists session audit rows to Postgres via gorm.
type Store struct {
	db *gorm.DB
}

// Open connects and auto-migrates the audit schema. Returns (nil, nil) when
// dsn is empty, signaling the caller to skip the audit adapter entirely.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// RecordSessionCreated inserts the audit row for a newly created session.
func (s *Store) RecordSessionCreated(sess types.Session) error {
	return s.db.Create(&SessionRecord{
		SessionID:      sess.SessionID,
		SpeakerUserID:  sess.SpeakerUserID,
		SourceLanguage: sess.SourceLanguage,
		QualityTier:    sess.QualityTier,
	}).Error
}

// RecordSessionClosed stamps ClosedAt and the session's final listener peak.
func (s *Store) RecordSessionClosed(sessionID string, peakListeners, totalForwarded int64) error {
	now := time.Now()
	return s.db.Model(&SessionRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"closed_at":               now,
			"peak_listener_count":     peakListeners,
			"total_results_forwarded": totalForwarded,
		}).Error
}
