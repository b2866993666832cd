package subject

import (
	"context"

	"github.com/eidolon-live/eidolon/internal/shared"
	"gorm.io/gorm"
)

// Store persists the session journal: who entered the scene and what was
// said, in order.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&TransitionRecord{}, &UtteranceRecord{})
}

func (s *Store) RecordTransition(ctx context.Context, sessionID string, tr Transition) error {
	rec := &TransitionRecord{
		ID:            shared.NewID("trn_"),
		SessionID:     sessionID,
		PreviousLabel: tr.PreviousLabel,
		NewLabel:      tr.NewLabel,
		CreatedAt:     tr.Timestamp,
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) RecordUtterance(ctx context.Context, sessionID, subjectLabel, text string) error {
	rec := &UtteranceRecord{
		ID:           shared.NewID("utt_"),
		SessionID:    sessionID,
		SubjectLabel: subjectLabel,
		Text:         text,
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) ListTransitions(ctx context.Context, sessionID string) ([]TransitionRecord, error) {
	var records []TransitionRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (s *Store) ListUtterances(ctx context.Context, sessionID string, limit int) ([]UtteranceRecord, error) {
	q := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []UtteranceRecord
	err := q.Find(&records).Error
	return records, err
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&TransitionRecord{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&UtteranceRecord{}).Error
}
