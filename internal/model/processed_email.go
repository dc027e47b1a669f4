package model

import (
	"time"
)

// ProcessedEmail records a reconciled Message-ID to ensure idempotency.
// Existence of a row is the sole dedup signal, independent of the
// mailbox \Seen flag.
type ProcessedEmail struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID   string    `json:"message_id" gorm:"type:varchar(500);not null;uniqueIndex"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TableName specifies the table name for ProcessedEmail
func (ProcessedEmail) TableName() string {
	return "processed_emails"
}
