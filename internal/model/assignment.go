package model

import (
	"time"

	"github.com/google/uuid"
)

// Assignment is the number of attempts a student has left for a test.
type Assignment struct {
	UserID    string    `json:"userId"`
	TestUID   uuid.UUID `json:"testUid"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssignedTest is an assignment joined with its test and duration summary.
type AssignedTest struct {
	Assignment
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Level       int         `json:"level"`
	Order       []Step      `json:"order"`
	TimeSummary TimeSummary `json:"timeSummary"`
}

// SetAssignmentRequest sets the remaining attempt count.
type SetAssignmentRequest struct {
	Count int `json:"count" binding:"min=0,max=100"`
}
