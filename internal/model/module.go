package model

import (
	"time"

	"github.com/google/uuid"
)

// Module is a named, leveled group of questions. During a session it is the
// read-only content of a module step.
type Module struct {
	UID         uuid.UUID  `json:"uid"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Section     string     `json:"section"`
	Level       int        `json:"level"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CreateModuleRequest is the payload for grouping questions into a module.
type CreateModuleRequest struct {
	Title       string      `json:"title" binding:"required,max=255"`
	Description string      `json:"description" binding:"omitempty,max=2000"`
	Section     string      `json:"section" binding:"required,max=100"`
	Level       int         `json:"level" binding:"required,min=1,max=5"`
	Questions   []uuid.UUID `json:"questions" binding:"required,min=1"`
}

// Redacted returns a copy with answer keys and explanations removed, safe to
// send to a student while the session is still running.
func (m *Module) Redacted() *Module {
	if m == nil {
		return nil
	}
	out := *m
	out.Questions = make([]Question, len(m.Questions))
	for i, q := range m.Questions {
		q.Choices = append([]Choice(nil), q.Choices...)
		q.Answer = ""
		q.Explanation = ""
		out.Questions[i] = q
	}
	return &out
}
