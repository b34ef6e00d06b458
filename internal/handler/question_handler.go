package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/repository"
	"github.com/stemsi/modexam-backend/internal/response"
	"github.com/stemsi/modexam-backend/internal/validator"
)

// QuestionAuthoring is the question and module side of the authoring service.
type QuestionAuthoring interface {
	CreateQuestion(ctx context.Context, req model.CreateQuestionRequest) (*model.Question, error)
	GetQuestion(ctx context.Context, uid uuid.UUID) (*model.Question, error)
	ListQuestions(ctx context.Context, f repository.QuestionFilter, page, perPage int) ([]model.Question, int, error)
	CreateModule(ctx context.Context, req model.CreateModuleRequest) (*model.Module, error)
	GetModule(ctx context.Context, uid uuid.UUID) (*model.Module, error)
	ListModules(ctx context.Context, section string, page, perPage int) ([]repository.ModuleSummary, int, error)
}

// QuestionHandler handles question and module management endpoints.
type QuestionHandler struct {
	questions QuestionAuthoring
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questions QuestionAuthoring) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

// CreateQuestion godoc
// POST /api/v1/admin/questions
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.questions.CreateQuestion(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// GetQuestion godoc
// GET /api/v1/admin/questions/:id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	q, err := h.questions.GetQuestion(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// ListQuestions godoc
// GET /api/v1/admin/questions?section=&level=&search=&page=&per_page=
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	var q listQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.defaults()

	filter := repository.QuestionFilter{Section: q.Section, Level: q.Level, Search: q.Search}
	questions, total, err := h.questions.ListQuestions(c.Request.Context(), filter, q.Page, q.PerPage)
	if err != nil {
		fail(c, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions}, response.NewPagination(q.Page, q.PerPage, total))
}

// CreateModule godoc
// POST /api/v1/admin/modules
// Groups existing questions, in request order, into a module.
func (h *QuestionHandler) CreateModule(c *gin.Context) {
	var req model.CreateModuleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	m, err := h.questions.CreateModule(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"module": m})
}

// GetModule godoc
// GET /api/v1/admin/modules/:id
func (h *QuestionHandler) GetModule(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	m, err := h.questions.GetModule(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"module": m})
}

// ListModules godoc
// GET /api/v1/admin/modules?section=&page=&per_page=
func (h *QuestionHandler) ListModules(c *gin.Context) {
	var q listQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.defaults()

	modules, total, err := h.questions.ListModules(c.Request.Context(), q.Section, q.Page, q.PerPage)
	if err != nil {
		fail(c, err)
		return
	}
	if modules == nil {
		modules = []repository.ModuleSummary{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"modules": modules}, response.NewPagination(q.Page, q.PerPage, total))
}
