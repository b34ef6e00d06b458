package service

import (
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/timecodec"
)

// BuildSession seeds a fresh session for a test. Every step gets one module
// result carrying its full allotted time. Module steps are pre-seeded with one
// answer record per question holding the answer key; a module step without a
// module reference is seeded as a break. contents maps module uid to content.
func BuildSession(userID string, test *model.Test, contents map[string]*model.Module) *model.TestResult {
	session := &model.TestResult{
		UserID:        userID,
		ExamUID:       test.UID,
		ModuleResults: make([]model.ModuleResult, 0, len(test.Order)),
	}

	for _, step := range test.Order {
		mr := model.ModuleResult{
			RemainTime: timecodec.Parse(step.Time),
			Answers:    []model.AnswerRecord{},
		}
		if step.Kind == model.StepKindModule && step.ModuleUID != "" {
			mr.ModuleID = step.ModuleUID
			if content := contents[step.ModuleUID]; content != nil {
				for _, q := range content.Questions {
					mr.Answers = append(mr.Answers, model.AnswerRecord{
						QuestionID:     q.UID.String(),
						QuestionAnswer: q.Answer,
					})
				}
			}
		}
		session.ModuleResults = append(session.ModuleResults, mr)
	}
	return session
}

// moduleIDs lists the distinct module references of a test.
func moduleIDs(test *model.Test) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, step := range test.Order {
		if step.Kind != model.StepKindModule || step.ModuleUID == "" || seen[step.ModuleUID] {
			continue
		}
		seen[step.ModuleUID] = true
		ids = append(ids, step.ModuleUID)
	}
	return ids
}

// startDecision is the outcome of a start request given what is stored.
type startDecision int

const (
	startResume startDecision = iota
	startCreate
	startRejectNoAttempts
)

// decideStart applies the create-or-resume rule: an unfinished session is
// always resumed without consuming an attempt; otherwise a new one needs an
// attempt left.
func decideStart(open *model.TestResult, remaining int) startDecision {
	if open != nil && !open.Completed() {
		return startResume
	}
	if remaining <= 0 {
		return startRejectNoAttempts
	}
	return startCreate
}

// StudentView strips answer keys from an unfinished session before it leaves
// the service towards a student.
func StudentView(s *model.TestResult) *model.TestResult {
	if s == nil || s.Completed() {
		return s
	}
	out := s.Clone()
	for i := range out.ModuleResults {
		for j := range out.ModuleResults[i].Answers {
			out.ModuleResults[i].Answers[j].QuestionAnswer = ""
		}
	}
	return out
}
