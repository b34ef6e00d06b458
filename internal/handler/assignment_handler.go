package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/response"
	"github.com/stemsi/modexam-backend/internal/validator"
)

// AttemptGranter sets remaining attempts.
type AttemptGranter interface {
	SetAttempts(ctx context.Context, userID string, testUID uuid.UUID, count int) (*model.Assignment, error)
}

// ResultLister lists a student's sessions.
type ResultLister interface {
	FetchCompletedSessions(ctx context.Context, userID string) (*model.UserTestResults, error)
}

// AssignmentHandler handles admin endpoints about individual students.
type AssignmentHandler struct {
	assignments AttemptGranter
	results     ResultLister
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(assignments AttemptGranter, results ResultLister) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, results: results}
}

// SetAttempts godoc
// PUT /api/v1/admin/students/:user_id/assignments/:test_id
// Sets how many attempts the student has left for the test.
func (h *AssignmentHandler) SetAttempts(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	testUID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SetAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.assignments.SetAttempts(c.Request.Context(), userID, testUID, req.Count)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}

// ListResults godoc
// GET /api/v1/admin/students/:user_id/results
// Answer keys of unfinished sessions are withheld here as well.
func (h *AssignmentHandler) ListResults(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	results, err := h.results.FetchCompletedSessions(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, results)
}
