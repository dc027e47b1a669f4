// Package store owns all writes to bugs, modification logs, and the
// processed-email ledger, and exposes the read accessors the HTTP API
// consumes.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"email-bug-tracker-go/internal/model"
	"email-bug-tracker-go/internal/parser"
)

// ErrDuplicateMessage is returned by Reconcile when the message's
// Message-ID is already in the processed-email ledger. The caller
// treats it as a confirmed-duplicate skip, not a failure.
var ErrDuplicateMessage = errors.New("message already processed")

// ErrBugNotFound is returned by read accessors for unknown bug ids.
var ErrBugNotFound = errors.New("bug not found")

// Store wraps the database for the reconciliation pipeline and the
// read API.
type Store struct {
	db *gorm.DB
}

// New creates a Store on an initialized database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ReconcileResult reports what one reconcile transaction did.
type ReconcileResult struct {
	Created bool
	Bug     model.Bug
}

// HasProcessed reports whether the Message-ID is already in the ledger.
func (s *Store) HasProcessed(messageID string) (bool, error) {
	var processed model.ProcessedEmail
	result := s.db.Where("message_id = ?", messageID).First(&processed)
	if result.Error == nil {
		return true, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error checking processed email: %w", result.Error)
}

// Reconcile applies one message's extracted content to the bug store
// inside a single transaction: dedup re-check, create-or-update of the
// bug, one modification-log row on update, and the processed-email
// record. On any error the transaction rolls back entirely and the
// message stays eligible for retry.
//
// A create race on bug_id (two runs seeing the same new identifier) is
// resolved by the unique constraint: the losing insert is retried as
// an update.
func (s *Store) Reconcile(messageID, bugID, subject string, fields parser.Fields) (*ReconcileResult, error) {
	var res ReconcileResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var processed model.ProcessedEmail
		err := tx.Where("message_id = ?", messageID).First(&processed).Error
		if err == nil {
			return ErrDuplicateMessage
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check processed email: %w", err)
		}

		var bug model.Bug
		err = tx.Where("bug_id = ?", bugID).First(&bug).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			bug = model.Bug{
				BugID:       bugID,
				Subject:     subject,
				Description: fields.Description,
				Status:      model.StatusOpen,
				Priority:    model.PriorityMedium,
			}
			if fields.Priority != "" {
				bug.Priority = fields.Priority
			}
			if fields.Status != "" {
				bug.Status = fields.Status
			}
			if fields.HasAssignee {
				bug.Assignee = fields.Assignee
			}

			if err := tx.Create(&bug).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// Lost a create race; apply as an update instead.
					if err := tx.Where("bug_id = ?", bugID).First(&bug).Error; err != nil {
						return fmt.Errorf("failed to reload bug after create race: %w", err)
					}
					return s.applyUpdate(tx, &bug, subject, fields, &res)
				}
				return fmt.Errorf("failed to create bug: %w", err)
			}
			res.Created = true
			res.Bug = bug

		case err != nil:
			return fmt.Errorf("failed to look up bug: %w", err)

		default:
			if err := s.applyUpdate(tx, &bug, subject, fields, &res); err != nil {
				return err
			}
		}

		record := model.ProcessedEmail{MessageID: messageID, ProcessedAt: time.Now()}
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateMessage
			}
			return fmt.Errorf("failed to record processed email: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// applyUpdate overwrites subject and description unconditionally,
// priority/status/assignee only when newly parsed, increments
// modified_count by exactly one, and appends one modification-log row.
func (s *Store) applyUpdate(tx *gorm.DB, bug *model.Bug, subject string, fields parser.Fields, res *ReconcileResult) error {
	updates := map[string]interface{}{
		"subject":        subject,
		"description":    fields.Description,
		"modified_count": gorm.Expr("modified_count + 1"),
	}
	if fields.Priority != "" && fields.Priority != bug.Priority {
		updates["priority"] = fields.Priority
	}
	if fields.Status != "" && fields.Status != bug.Status {
		updates["status"] = fields.Status
	}
	if fields.HasAssignee {
		updates["assignee"] = fields.Assignee
	}

	if err := tx.Model(bug).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update bug: %w", err)
	}
	if err := tx.First(bug, bug.ID).Error; err != nil {
		return fmt.Errorf("failed to reload updated bug: %w", err)
	}

	entry := model.BugModificationLog{BugID: bug.ID, ModifiedAt: time.Now()}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to create modification log: %w", err)
	}

	res.Created = false
	res.Bug = *bug
	return nil
}

// GetBug returns a single bug by its external identifier.
func (s *Store) GetBug(bugID string) (*model.Bug, error) {
	var bug model.Bug
	err := s.db.Where("bug_id = ?", bugID).First(&bug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBugNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bug: %w", err)
	}
	return &bug, nil
}

// ListFilter narrows ListBugs results.
type ListFilter struct {
	Search   string
	Status   string
	Priority string
}

// ListBugs returns one page of bugs, newest first, with the total
// matching count for pagination.
func (s *Store) ListBugs(offset, limit int, filter ListFilter) ([]model.Bug, int64, error) {
	query := s.db.Model(&model.Bug{})

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("bug_id LIKE ? OR subject LIKE ? OR description LIKE ?", like, like, like)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bugs: %w", err)
	}

	var bugs []model.Bug
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&bugs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch bugs: %w", err)
	}
	return bugs, total, nil
}

// UpdateStatus patches a bug's status from the API. It deliberately
// does not touch modified_count and does not append a modification
// log: only email-driven updates feed the audit trail.
func (s *Store) UpdateStatus(bugID, status string) (*model.Bug, error) {
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	bug, err := s.GetBug(bugID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(bug).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update bug status: %w", err)
	}
	bug.Status = status
	return bug, nil
}

// ModificationCount is one point of the per-date aggregate.
type ModificationCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ModificationsByDate aggregates modification-log rows per calendar
// date, optionally filtered by the owning bug's priority.
func (s *Store) ModificationsByDate(priority string) ([]ModificationCount, error) {
	query := s.db.Model(&model.BugModificationLog{}).
		Select("DATE(bug_modification_logs.modified_at) AS date, COUNT(bug_modification_logs.id) AS count")

	if priority != "" {
		query = query.
			Joins("JOIN bugs ON bugs.id = bug_modification_logs.bug_id").
			Where("bugs.priority = ?", priority)
	}

	var counts []ModificationCount
	err := query.
		Group("DATE(bug_modification_logs.modified_at)").
		Order("date").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate modifications: %w", err)
	}

	// The mysql driver with parseTime scans DATE() as a full timestamp
	// while sqlite returns the bare date; normalize to YYYY-MM-DD.
	for i := range counts {
		if len(counts[i].Date) > 10 {
			counts[i].Date = counts[i].Date[:10]
		}
	}
	return counts, nil
}

// CountBugs returns the total number of bugs, used by the health
// endpoint.
func (s *Store) CountBugs() (int64, error) {
	var total int64
	if err := s.db.Model(&model.Bug{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count bugs: %w", err)
	}
	return total, nil
}
