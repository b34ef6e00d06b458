// Package scoring compares stored student answers with the stored correct
// answers of a finished session.
package scoring

import (
	"math"
	"time"

	"github.com/stemsi/modexam-backend/internal/model"
)

// ModuleStats is the correctness summary of one module step.
type ModuleStats struct {
	ModuleID       string `json:"moduleId"`
	TotalQuestions int    `json:"totalQuestions"`
	CorrectCount   int    `json:"correctCount"`
	IncorrectCount int    `json:"incorrectCount"`
	CorrectRate    int    `json:"correctRate"`
}

// QuestionResult is the per-question line of a result view.
type QuestionResult struct {
	model.AnswerRecord
	Correct bool `json:"correct"`
}

// ModuleView pairs a module's stats with its per-question results.
type ModuleView struct {
	ModuleStats
	RemainTime int              `json:"remainTime"`
	Questions  []QuestionResult `json:"questions"`
}

// ResultView is the scored, read-only view of a session.
type ResultView struct {
	UID         string       `json:"uid"`
	TestTitle   string       `json:"testTitle"`
	Description string       `json:"testDescription"`
	TestLevel   int          `json:"testLevel"`
	StartAt     string       `json:"startAt"`
	EndAt       string       `json:"endAt,omitempty"`
	Modules     []ModuleView `json:"modules"`
}

// IsCorrect is exact string equality. An empty answer against a non-empty
// key is simply wrong.
func IsCorrect(a model.AnswerRecord) bool {
	return a.StudentAnswer == a.QuestionAnswer
}

// Module computes the stats of one module result.
func Module(mr model.ModuleResult) ModuleStats {
	total := len(mr.Answers)
	correct := 0
	for _, a := range mr.Answers {
		if IsCorrect(a) {
			correct++
		}
	}
	rate := 0
	if total > 0 {
		rate = int(math.Round(float64(correct) * 100 / float64(total)))
	}
	return ModuleStats{
		ModuleID:       mr.ModuleID,
		TotalQuestions: total,
		CorrectCount:   correct,
		IncorrectCount: total - correct,
		CorrectRate:    rate,
	}
}

// Summarize returns per-module stats in step order, skipping break steps.
func Summarize(results []model.ModuleResult) []ModuleStats {
	stats := make([]ModuleStats, 0, len(results))
	for _, mr := range results {
		if mr.IsBreak() {
			continue
		}
		stats = append(stats, Module(mr))
	}
	return stats
}

// Scoreline is the compact {total, correct} form used by listings.
func Scoreline(results []model.ModuleResult) []model.Score {
	stats := Summarize(results)
	line := make([]model.Score, len(stats))
	for i, st := range stats {
		line[i] = model.Score{Total: st.TotalQuestions, Correct: st.CorrectCount}
	}
	return line
}

// BuildResult joins a session with its test metadata into a result view.
func BuildResult(session *model.TestResult, test *model.Test) ResultView {
	view := ResultView{
		UID:     session.UID.String(),
		StartAt: session.StartAt.UTC().Format(time.RFC3339),
		Modules: make([]ModuleView, 0, len(session.ModuleResults)),
	}
	if session.EndAt != nil {
		view.EndAt = session.EndAt.UTC().Format(time.RFC3339)
	}
	if test != nil {
		view.TestTitle = test.Title
		view.Description = test.Description
		view.TestLevel = test.Level
	}

	for _, mr := range session.ModuleResults {
		if mr.IsBreak() {
			continue
		}
		questions := make([]QuestionResult, len(mr.Answers))
		for i, a := range mr.Answers {
			questions[i] = QuestionResult{AnswerRecord: a, Correct: IsCorrect(a)}
		}
		view.Modules = append(view.Modules, ModuleView{
			ModuleStats: Module(mr),
			RemainTime:  mr.RemainTime,
			Questions:   questions,
		})
	}
	return view
}
