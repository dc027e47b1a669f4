package model

import (
	"time"
)

// BugModificationLog is the append-only audit trail for bugs: exactly
// one row per successful email-driven update, never one on creation.
// Rows cascade-delete with their bug and are never mutated.
//
// The owning association lives on Bug.ModificationLogs; a back-reference
// here would collide with the Bug.BugID identifier column and make GORM
// misresolve the relation.
type BugModificationLog struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	BugID      uint      `json:"bug_id" gorm:"not null;index"`
	ModifiedAt time.Time `json:"modified_at" gorm:"not null;index"`
}

// TableName specifies the table name for BugModificationLog
func (BugModificationLog) TableName() string {
	return "bug_modification_logs"
}
