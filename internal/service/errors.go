package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors matched by handlers with errors.Is.
var (
	ErrNoAttemptsLeft      = errors.New("no attempts left for this test")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionCompleted    = errors.New("session already completed")
	ErrSessionInProgress   = errors.New("session still in progress")
	ErrSessionInUse        = errors.New("session is attached to another connection")
	ErrNotAssigned         = errors.New("test not assigned to student")
	ErrTestNotFound        = errors.New("test not found")
	ErrModuleNotFound      = errors.New("module not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrTestInUse           = errors.New("test already has sessions")
	ErrStepIndexOutOfRange = errors.New("step index out of range")
)

// ValidationError carries field-level messages in the same shape as the
// request validator.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
