package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/middleware"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/response"
	"github.com/stemsi/modexam-backend/internal/scoring"
	"github.com/stemsi/modexam-backend/internal/service"
)

// StudentSessions is the part of the session service the student portal uses.
type StudentSessions interface {
	GetDashboard(ctx context.Context, userID string) (*service.Dashboard, error)
	StartSession(ctx context.Context, userID string, testID uuid.UUID) (*model.TestResult, bool, error)
	FetchSession(ctx context.Context, userID string, testID uuid.UUID) (*model.TestResult, error)
	GetResult(ctx context.Context, userID string, uid uuid.UUID) (*scoring.ResultView, error)
}

// StudentPortalHandler handles student-facing endpoints (dashboard, sessions, results).
type StudentPortalHandler struct {
	sessions StudentSessions
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(sessions StudentSessions) *StudentPortalHandler {
	return &StudentPortalHandler{sessions: sessions}
}

// GetDashboard godoc
// GET /api/v1/student/dashboard
// Returns assigned tests with remaining attempts, plus ongoing and completed sessions.
func (h *StudentPortalHandler) GetDashboard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	dash, err := h.sessions.GetDashboard(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, dash)
}

// StartTest godoc
// POST /api/v1/student/tests/:test_id/start
// Resumes the unfinished session or creates one, consuming an attempt.
func (h *StudentPortalHandler) StartTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, created, err := h.sessions.StartSession(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{"session": service.StudentView(session), "created": created})
}

// GetSession godoc
// GET /api/v1/student/tests/:test_id/session
// Returns the unfinished session for a test, without answer keys.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessions.FetchSession(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": service.StudentView(session)})
}

// GetResult godoc
// GET /api/v1/student/results/:uid
// Returns the scored view of a finished session.
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	uid, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessions.GetResult(c.Request.Context(), claims.UserID, uid)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
