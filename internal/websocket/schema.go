package websocket

import (
	"github.com/stemsi/modexam-backend/internal/engine"
	"github.com/stemsi/modexam-backend/internal/response"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer  Action = "answer"
	ActionMark    Action = "mark"
	ActionNext    Action = "next"
	ActionBack    Action = "back"
	ActionJump    Action = "jump"
	ActionAdvance Action = "advance"
	ActionRetry   Action = "retry"
	ActionPing    Action = "ping"
)

// Request is every client message. Q and Value are only read by the
// actions that need them.
type Request struct {
	Action Action `json:"action"`
	Q      *int   `json:"q,omitempty"`
	Value  string `json:"value,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventError     Event = "error"
	EventCompleted Event = "completed"
	EventPong      Event = "pong"
)

// StateResponse carries a snapshot after an action or a tick. Tick snapshots
// leave out the module content, which only changes on state events.
type StateResponse struct {
	Event    Event           `json:"event"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

type ErrorResponse struct {
	Event    Event            `json:"event"`
	Code     response.ErrCode `json:"code"`
	Error    string           `json:"error"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
