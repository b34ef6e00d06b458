package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerRecord is one question's captured response within a module result.
type AnswerRecord struct {
	QuestionID     string `json:"questionId"`
	QuestionAnswer string `json:"questionAnswer,omitempty"`
	StudentAnswer  string `json:"studentAnswer"`
	SpendTime      int    `json:"spendTime"`
	IsMarked       bool   `json:"isMarked"`
}

// ModuleResult is the per-step slice of a session. Break steps carry an
// empty ModuleID and no answers.
type ModuleResult struct {
	ModuleID   string         `json:"moduleId"`
	RemainTime int            `json:"remainTime"`
	Answers    []AnswerRecord `json:"answers"`
}

// IsBreak reports whether the result belongs to a break step (or to a module
// step whose module reference is missing).
func (m ModuleResult) IsBreak() bool {
	return m.ModuleID == ""
}

// TestResult is the durable, resumable record of one student's progress
// through one test. EndAt is nil until the last step completes.
type TestResult struct {
	UID           uuid.UUID      `json:"uid"`
	UserID        string         `json:"userId"`
	ExamUID       uuid.UUID      `json:"examUid"`
	CurrentIndex  int            `json:"currentIndex"`
	ModuleResults []ModuleResult `json:"moduleResults"`
	StartAt       time.Time      `json:"startAt"`
	EndAt         *time.Time     `json:"endAt,omitempty"`
	// CheckpointSeq orders intermediate saves; a checkpoint is only written
	// over one with a lower sequence.
	CheckpointSeq int64 `json:"checkpointSeq,omitempty"`
}

// Completed reports whether the session has been finalized.
func (t *TestResult) Completed() bool {
	return t.EndAt != nil
}

// Clone returns a deep copy so snapshots never share slices with live state.
func (t *TestResult) Clone() *TestResult {
	if t == nil {
		return nil
	}
	out := *t
	if t.EndAt != nil {
		end := *t.EndAt
		out.EndAt = &end
	}
	out.ModuleResults = make([]ModuleResult, len(t.ModuleResults))
	for i, mr := range t.ModuleResults {
		out.ModuleResults[i] = ModuleResult{
			ModuleID:   mr.ModuleID,
			RemainTime: mr.RemainTime,
			Answers:    append([]AnswerRecord(nil), mr.Answers...),
		}
	}
	return &out
}

// Score is one module's scoreline entry.
type Score struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// CompletedExamView joins a session with its test metadata for listings.
type CompletedExamView struct {
	TestResult
	ExamInfo  Test    `json:"examInfo"`
	Scoreline []Score `json:"scoreline"`
}

// UserTestResults groups a student's sessions for the dashboard.
type UserTestResults struct {
	OnGoing   []CompletedExamView `json:"onGoing"`
	Completed []CompletedExamView `json:"completed"`
}
