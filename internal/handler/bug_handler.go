package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"email-bug-tracker-go/internal/model"
	"email-bug-tracker-go/internal/store"
)

func bugResponse(bug *model.Bug) BugResponse {
	return BugResponse{
		ID:            bug.ID,
		BugID:         bug.BugID,
		Subject:       bug.Subject,
		Description:   bug.Description,
		Status:        bug.Status,
		Priority:      bug.Priority,
		Assignee:      bug.Assignee,
		ModifiedCount: bug.ModifiedCount,
		CreatedAt:     bug.CreatedAt,
		UpdatedAt:     bug.UpdatedAt,
	}
}

// ListBugs returns bugs with pagination, optional search across
// bug_id/subject/description, and optional status/priority filters.
func (h *Handlers) ListBugs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset := (page - 1) * limit

	filter := store.ListFilter{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	}
	if filter.Status != "" && !model.ValidStatus(filter.Status) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid status filter",
			Code:    http.StatusBadRequest,
		})
		return
	}
	if filter.Priority != "" && !model.ValidPriority(filter.Priority) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid priority filter",
			Code:    http.StatusBadRequest,
		})
		return
	}

	bugs, total, err := h.store.ListBugs(offset, limit, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch bugs",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	responses := make([]BugResponse, 0, len(bugs))
	for i := range bugs {
		responses = append(responses, bugResponse(&bugs[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"bugs": responses,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetBug returns a single bug by its identifier.
func (h *Handlers) GetBug(c *gin.Context) {
	bug, err := h.store.GetBug(c.Param("bug_id"))
	if err != nil {
		if errors.Is(err, store.ErrBugNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Bug not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch bug",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, bugResponse(bug))
}

// UpdateBugStatus patches a bug's status. This does not touch the
// modification count or the audit trail.
func (h *Handlers) UpdateBugStatus(c *gin.Context) {
	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !model.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid status value",
			Code:    http.StatusBadRequest,
		})
		return
	}

	bug, err := h.store.UpdateStatus(c.Param("bug_id"), req.Status)
	if err != nil {
		if errors.Is(err, store.ErrBugNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Bug not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update bug status",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, bugResponse(bug))
}

// GetBugModifications returns modification counts aggregated per date,
// optionally filtered by bug priority.
func (h *Handlers) GetBugModifications(c *gin.Context) {
	priority := c.Query("priority")
	if priority != "" && !model.ValidPriority(priority) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid priority value. Choose from: low, medium, high",
			Code:    http.StatusBadRequest,
		})
		return
	}

	counts, err := h.store.ModificationsByDate(priority)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch modification counts",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, counts)
}
