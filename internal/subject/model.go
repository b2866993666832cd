package subject

import "time"

type TransitionRecord struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"not null;index" json:"session_id"`
	PreviousLabel string    `json:"previous_label,omitempty"`
	NewLabel      string    `gorm:"not null" json:"new_label"`
	CreatedAt     time.Time `json:"created_at"`
}

type UtteranceRecord struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	SessionID    string    `gorm:"not null;index" json:"session_id"`
	SubjectLabel string    `gorm:"not null" json:"subject_label"`
	Text         string    `gorm:"not null" json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}
