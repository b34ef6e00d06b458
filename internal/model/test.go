package model

import (
	"time"

	"github.com/google/uuid"
)

// StepKind enumerates the kinds of composition steps.
type StepKind string

const (
	StepKindModule StepKind = "module"
	StepKindBreak  StepKind = "break"
)

// Step is one ordered unit of a test: a module with its allotted time, or a
// break. Time is always "MM:SS".
type Step struct {
	Kind      StepKind `json:"kind"`
	Time      string   `json:"time"`
	ModuleUID string   `json:"moduleUid"`
}

// Test is an ordered composition of module and break steps.
type Test struct {
	UID         uuid.UUID `json:"uid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Level       int       `json:"level"`
	Order       []Step    `json:"order"`
	ExamModules []string  `json:"examModules"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SaveTestRequest is the payload for creating or replacing a test.
// Title/level/order rules are checked by composition.Validate so that the
// messages match the authoring rules exactly.
type SaveTestRequest struct {
	Title       string `json:"title" binding:"max=255"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	Level       int    `json:"level" binding:"min=0,max=5"`
	Order       []Step `json:"order"`
}

// AppendModuleStepRequest adds a module step to a test.
type AppendModuleStepRequest struct {
	ModuleUID string `json:"moduleUid" binding:"required,uuid"`
}

// MoveStepRequest reorders a test's steps.
type MoveStepRequest struct {
	From int `json:"from" binding:"min=0"`
	To   int `json:"to"`
}

// SetStepTimeRequest edits the minute and/or second component of a step.
// Values are raw input; they are clamped, not rejected.
type SetStepTimeRequest struct {
	Minutes *string `json:"minutes"`
	Seconds *string `json:"seconds"`
}

// TimeSummary is the module/break duration split of a test.
type TimeSummary struct {
	ModuleTime    string `json:"moduleTime"`
	BreakTime     string `json:"breakTime"`
	ModuleSeconds int    `json:"moduleSeconds"`
	BreakSeconds  int    `json:"breakSeconds"`
}
