package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/debatearena/server/internal/debate"
)

var ErrNotFound = errors.New("debate not found")

// DebateRecord is one finished debate. Room codes are reused once a room is
// evicted, so records carry their own id and RoomID is only indexed.
type DebateRecord struct {
	ID              string `gorm:"primaryKey;size:36"`
	RoomID          string `gorm:"size:16;index"`
	Topic           string
	Ranked          bool
	ForUserID       string `gorm:"index"`
	ForUsername     string
	AgainstUserID   string `gorm:"index"`
	AgainstUsername string
	WinnerUserID    string
	LoserUserID     string
	Reason          string `gorm:"size:32"`
	ForScore        *int
	AgainstScore    *int
	ForFeedback     string `gorm:"type:text"`
	AgainstFeedback string `gorm:"type:text"`
	CreatedAt       time.Time
	FinishedAt      time.Time       `gorm:"index"`
	Messages        []MessageRecord `gorm:"foreignKey:DebateID;constraint:OnDelete:CASCADE"`
}

type MessageRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	DebateID     string `gorm:"size:36;index"`
	Seq          int
	AuthorUserID string
	Author       string
	Side         string `gorm:"size:8"`
	PhaseIndex   int
	Text         string `gorm:"type:text"`
	Timestamp    time.Time
}

// PostgresStore archives finished debates.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&DebateRecord{}, &MessageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Record(ctx context.Context, snap debate.Snapshot) error {
	rec := toRecord(snap)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("archive debate %s: %w", snap.ID, err)
	}
	return nil
}

// Latest returns the most recent archived debate held in room roomID.
func (s *PostgresStore) Latest(ctx context.Context, roomID string) (DebateRecord, error) {
	var rec DebateRecord
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Where("room_id = ?", roomID).
		Order("finished_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DebateRecord{}, ErrNotFound
	}
	return rec, err
}

// History lists a user's archived debates, newest first, without messages.
func (s *PostgresStore) History(ctx context.Context, userID string, limit int) ([]DebateRecord, error) {
	var recs []DebateRecord
	err := s.db.WithContext(ctx).
		Where("for_user_id = ? OR against_user_id = ?", userID, userID).
		Order("finished_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func toRecord(snap debate.Snapshot) DebateRecord {
	rec := DebateRecord{
		ID:        uuid.NewString(),
		RoomID:    snap.ID,
		Topic:     snap.Topic,
		Ranked:    snap.Ranked,
		CreatedAt: snap.CreatedAt,
	}
	if p, ok := snap.PlayerBySide(debate.SideFor); ok {
		rec.ForUserID, rec.ForUsername = p.UserID, p.Username
	}
	if p, ok := snap.PlayerBySide(debate.SideAgainst); ok {
		rec.AgainstUserID, rec.AgainstUsername = p.UserID, p.Username
	}
	if snap.FinishedAt != nil {
		rec.FinishedAt = *snap.FinishedAt
	}
	if res := snap.Result; res != nil {
		rec.WinnerUserID = res.WinnerUserID
		rec.LoserUserID = res.LoserUserID
		rec.Reason = res.Reason
		if res.Scores != nil {
			f, a := res.Scores.For, res.Scores.Against
			rec.ForScore, rec.AgainstScore = &f, &a
		}
		if res.Feedback != nil {
			rec.ForFeedback, rec.AgainstFeedback = res.Feedback.For, res.Feedback.Against
		}
	}
	for i, m := range snap.Transcript {
		rec.Messages = append(rec.Messages, MessageRecord{
			ID:           m.ID,
			DebateID:     rec.ID,
			Seq:          i,
			AuthorUserID: m.AuthorUserID,
			Author:       m.Author,
			Side:         string(m.Side),
			PhaseIndex:   m.PhaseIndex,
			Text:         m.Text,
			Timestamp:    m.Timestamp,
		})
	}
	return rec
}
