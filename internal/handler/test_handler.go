package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/response"
	"github.com/stemsi/modexam-backend/internal/validator"
)

// TestComposer is the test composition service.
type TestComposer interface {
	Create(ctx context.Context, req model.SaveTestRequest) (*model.Test, error)
	Update(ctx context.Context, uid uuid.UUID, req model.SaveTestRequest) (*model.Test, error)
	Get(ctx context.Context, uid uuid.UUID) (*model.Test, error)
	List(ctx context.Context, page, perPage int) ([]model.Test, int, error)
	Delete(ctx context.Context, uid uuid.UUID) error
	TimeSummary(ctx context.Context, uid uuid.UUID) (*model.TimeSummary, error)
	AppendModuleStep(ctx context.Context, uid uuid.UUID, moduleUID string) (*model.Test, error)
	AppendBreakStep(ctx context.Context, uid uuid.UUID) (*model.Test, error)
	RemoveStep(ctx context.Context, uid uuid.UUID, index int) (*model.Test, error)
	MoveStep(ctx context.Context, uid uuid.UUID, from, to int) (*model.Test, error)
	SetStepTime(ctx context.Context, uid uuid.UUID, index int, minutes, seconds *string) (*model.Test, error)
}

// TestHandler handles test composition endpoints.
type TestHandler struct {
	tests TestComposer
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(tests TestComposer) *TestHandler {
	return &TestHandler{tests: tests}
}

// ListTests godoc
// GET /api/v1/admin/tests?page=&per_page=
func (h *TestHandler) ListTests(c *gin.Context) {
	var q listQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.defaults()

	tests, total, err := h.tests.List(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		fail(c, err)
		return
	}
	if tests == nil {
		tests = []model.Test{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, response.NewPagination(q.Page, q.PerPage, total))
}

// CreateTest godoc
// POST /api/v1/admin/tests
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req model.SaveTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.tests.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// GetTest godoc
// GET /api/v1/admin/tests/:id
func (h *TestHandler) GetTest(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}

	test, err := h.tests.Get(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// UpdateTest godoc
// PUT /api/v1/admin/tests/:id
func (h *TestHandler) UpdateTest(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}

	var req model.SaveTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.tests.Update(c.Request.Context(), uid, req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// DeleteTest godoc
// DELETE /api/v1/admin/tests/:id
// Tests that already have sessions cannot be deleted.
func (h *TestHandler) DeleteTest(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}

	if err := h.tests.Delete(c.Request.Context(), uid); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "test deleted"})
}

// GetTimeSummary godoc
// GET /api/v1/admin/tests/:id/time-summary
func (h *TestHandler) GetTimeSummary(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}

	sum, err := h.tests.TimeSummary(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, sum)
}

// AppendModuleStep godoc
// POST /api/v1/admin/tests/:id/steps/module
func (h *TestHandler) AppendModuleStep(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}

	var req model.AppendModuleStepRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.respond(c)(h.tests.AppendModuleStep(c.Request.Context(), uid, req.ModuleUID))
}

// AppendBreakStep godoc
// POST /api/v1/admin/tests/:id/steps/break
func (h *TestHandler) AppendBreakStep(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}

	h.respond(c)(h.tests.AppendBreakStep(c.Request.Context(), uid))
}

// RemoveStep godoc
// DELETE /api/v1/admin/tests/:id/steps/:index
func (h *TestHandler) RemoveStep(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}
	index, ok := stepIndex(c)
	if !ok {
		return
	}

	h.respond(c)(h.tests.RemoveStep(c.Request.Context(), uid, index))
}

// MoveStep godoc
// POST /api/v1/admin/tests/:id/steps/move
// An out-of-range target leaves the order unchanged.
func (h *TestHandler) MoveStep(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}

	var req model.MoveStepRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.respond(c)(h.tests.MoveStep(c.Request.Context(), uid, req.From, req.To))
}

// SetStepTime godoc
// PATCH /api/v1/admin/tests/:id/steps/:index/time
// Raw minute/second input is clamped rather than rejected.
func (h *TestHandler) SetStepTime(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}
	index, ok := stepIndex(c)
	if !ok {
		return
	}

	var req model.SetStepTimeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.respond(c)(h.tests.SetStepTime(c.Request.Context(), uid, index, req.Minutes, req.Seconds))
}

func (h *TestHandler) respond(c *gin.Context) func(*model.Test, error) {
	return func(test *model.Test, err error) {
		if err != nil {
			fail(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"test": test})
	}
}

func testID(c *gin.Context) (uuid.UUID, bool) {
	uid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return uid, true
}

func stepIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrStepOutOfRange)
		return 0, false
	}
	return index, true
}
