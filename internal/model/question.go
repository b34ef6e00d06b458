package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType distinguishes choice questions from free-response ones.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeFreeResponse   QuestionType = "FREE_RESPONSE"
)

// Choice is one labeled option of a multiple-choice question.
type Choice struct {
	Seq     string `json:"seq" binding:"required,oneof=a b c d"`
	Content string `json:"content" binding:"required"`
}

// Question represents a single authored question.
type Question struct {
	UID         uuid.UUID    `json:"uid"`
	ManageTitle string       `json:"manageTitle"`
	Section     string       `json:"section"`
	Type        QuestionType `json:"type"`
	Level       int          `json:"level"`
	Paragraph   string       `json:"paragraph,omitempty"`
	Prompt      string       `json:"question"`
	Choices     []Choice     `json:"choices"`
	Answer      string       `json:"answer"`
	Explanation string       `json:"explanation"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// CreateQuestionRequest is the payload for authoring a question.
type CreateQuestionRequest struct {
	ManageTitle string   `json:"manageTitle" binding:"required,max=255"`
	Section     string   `json:"section" binding:"required,max=100"`
	Type        string   `json:"type" binding:"required,oneof=MULTIPLE_CHOICE FREE_RESPONSE"`
	Level       int      `json:"level" binding:"required,min=1,max=5"`
	Paragraph   string   `json:"paragraph" binding:"omitempty,max=20000"`
	Prompt      string   `json:"question" binding:"required,max=20000"`
	Choices     []Choice `json:"choices" binding:"omitempty,max=4,dive"`
	Answer      string   `json:"answer" binding:"required,max=255"`
	Explanation string   `json:"explanation" binding:"omitempty,max=20000"`
}
