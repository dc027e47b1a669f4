package model

import (
	"time"
)

// Bug status values. Stored as lowercase strings.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Bug priority values. Stored as lowercase strings.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidStatus reports whether s is a recognized bug status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a recognized bug priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Bug represents a tracked bug keyed by the identifier extracted from
// email subjects. Only the reconciler writes Bugs; the HTTP API reads
// them and may patch the status.
type Bug struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	BugID         string    `json:"bug_id" gorm:"type:varchar(100);not null;uniqueIndex"`
	Subject       string    `json:"subject" gorm:"type:varchar(255);not null"`
	Description   string    `json:"description" gorm:"type:text"`
	Status        string    `json:"status" gorm:"type:varchar(20);not null;default:open"`
	Priority      string    `json:"priority" gorm:"type:varchar(20);not null;default:medium"`
	Assignee      string    `json:"assignee" gorm:"type:varchar(255)"`
	ModifiedCount int       `json:"modified_count" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	ModificationLogs []BugModificationLog `json:"-" gorm:"foreignKey:BugID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Bug
func (Bug) TableName() string {
	return "bugs"
}
