package model

import (
	"time"

	"github.com/google/uuid"
)

// MonitorEventType names a session lifecycle event published to admins.
type MonitorEventType string

const (
	MonitorSessionStarted   MonitorEventType = "session_started"
	MonitorSessionResumed   MonitorEventType = "session_resumed"
	MonitorStepAdvanced     MonitorEventType = "step_advanced"
	MonitorSessionCompleted MonitorEventType = "session_completed"
)

// MonitorEvent is the Pub/Sub payload sent when a session changes step.
type MonitorEvent struct {
	Type         MonitorEventType `json:"type"`
	SessionUID   uuid.UUID        `json:"sessionUid"`
	UserID       string           `json:"userId"`
	CurrentIndex int              `json:"currentIndex"`
}

// SessionProgress is one row of the live test monitor.
type SessionProgress struct {
	SessionUID   uuid.UUID  `json:"sessionUid"`
	UserID       string     `json:"userId"`
	CurrentIndex int        `json:"currentIndex"`
	Answered     int        `json:"answered"`
	StartAt      time.Time  `json:"startAt"`
	EndAt        *time.Time `json:"endAt,omitempty"`
	Attached     bool       `json:"attached"`
}

// MonitorStats counts a test's sessions by state.
type MonitorStats struct {
	TotalJoined     int `json:"totalJoined"`
	TotalInProgress int `json:"totalInProgress"`
	TotalCompleted  int `json:"totalCompleted"`
	TotalAttached   int `json:"totalAttached"`
}

// TestProgress is the full live monitor snapshot of one test.
type TestProgress struct {
	TestUID    uuid.UUID         `json:"testUid"`
	Title      string            `json:"title"`
	TotalSteps int               `json:"totalSteps"`
	Stats      MonitorStats      `json:"stats"`
	Sessions   []SessionProgress `json:"sessions"`
}
