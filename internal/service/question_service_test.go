package service

import (
	"testing"

	"github.com/stemsi/modexam-backend/internal/model"
)

func TestValidateQuestion(t *testing.T) {
	choices := []model.Choice{{Seq: "a", Content: "1"}, {Seq: "b", Content: "2"}, {Seq: "c", Content: "3"}, {Seq: "d", Content: "4"}}

	tests := []struct {
		name  string
		req   model.CreateQuestionRequest
		field string
	}{
		{"valid choice", model.CreateQuestionRequest{Type: "MULTIPLE_CHOICE", Choices: choices, Answer: "c"}, ""},
		{"answer not a label", model.CreateQuestionRequest{Type: "MULTIPLE_CHOICE", Choices: choices, Answer: "e"}, "answer"},
		{"too few choices", model.CreateQuestionRequest{Type: "MULTIPLE_CHOICE", Choices: choices[:1], Answer: "a"}, "choices"},
		{"duplicate label", model.CreateQuestionRequest{Type: "MULTIPLE_CHOICE", Choices: append(choices[:2:2], model.Choice{Seq: "a"}), Answer: "a"}, "choices"},
		{"free response", model.CreateQuestionRequest{Type: "FREE_RESPONSE", Answer: "42"}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := validateQuestion(tc.req)
			if tc.field == "" {
				if fields != nil {
					t.Errorf("unexpected errors %v", fields)
				}
				return
			}
			if _, ok := fields[tc.field]; !ok {
				t.Errorf("missing %s error in %v", tc.field, fields)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"title": "required", "level": "required"}}
	if got := err.Error(); got != "validation failed: level: required; title: required" {
		t.Errorf("Error() = %q", got)
	}
}
