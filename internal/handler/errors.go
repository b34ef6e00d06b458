package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/modexam-backend/internal/engine"
	"github.com/stemsi/modexam-backend/internal/response"
	"github.com/stemsi/modexam-backend/internal/service"
)

// errorStatus maps a domain error to its HTTP status and API code. Unknown
// errors map to 500.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrNotAssigned):
		return http.StatusForbidden, response.ErrNotAssigned
	case errors.Is(err, service.ErrNoAttemptsLeft):
		return http.StatusConflict, response.ErrNoAttemptsLeft
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrSessionCompleted), errors.Is(err, engine.ErrCompleted):
		return http.StatusConflict, response.ErrSessionCompleted
	case errors.Is(err, service.ErrSessionInProgress):
		return http.StatusConflict, response.ErrSessionInProgress
	case errors.Is(err, service.ErrSessionInUse):
		return http.StatusConflict, response.ErrSessionInUse
	case errors.Is(err, service.ErrTestNotFound),
		errors.Is(err, service.ErrModuleNotFound),
		errors.Is(err, service.ErrQuestionNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrTestInUse):
		return http.StatusConflict, response.ErrDependencyExists
	case errors.Is(err, service.ErrStepIndexOutOfRange):
		return http.StatusBadRequest, response.ErrStepOutOfRange
	case errors.Is(err, engine.ErrNotInModule):
		return http.StatusConflict, response.ErrNotInModule
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict, response.ErrInvalidTransition
	case errors.Is(err, engine.ErrQuestionOutOfRange):
		return http.StatusBadRequest, response.ErrQuestionOutOfRange
	case errors.Is(err, engine.ErrStepExpired):
		return http.StatusConflict, response.ErrStepExpired
	case errors.Is(err, engine.ErrContentUnavailable):
		return http.StatusServiceUnavailable, response.ErrContentUnavailable
	case errors.Is(err, engine.ErrPersistFailed):
		return http.StatusServiceUnavailable, response.ErrPersistFailed
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes err as an API error. Validation errors keep their field map.
func fail(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, verr.Fields)
		return
	}
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}

// listQuery is the common pagination query.
type listQuery struct {
	Page    int    `form:"page" binding:"omitempty,min=1"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=100"`
	Section string `form:"section" binding:"omitempty,max=100"`
	Level   int    `form:"level" binding:"omitempty,min=1,max=5"`
	Search  string `form:"search" binding:"omitempty,max=255"`
}

func (q *listQuery) defaults() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 20
	}
}
