package handler

import "time"

// BugResponse represents the response structure for bugs
type BugResponse struct {
	ID            uint      `json:"id"`
	BugID         string    `json:"bug_id"`
	Subject       string    `json:"subject"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	Assignee      string    `json:"assignee,omitempty"`
	ModifiedCount int       `json:"modified_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatusUpdateRequest is the PATCH body for a bug status change.
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
