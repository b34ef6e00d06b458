// Package engine drives one student through one test session: step
// sequencing, the per-step countdown, per-question answer tracking and the
// durable hand-off at every step boundary.
//
// An Engine is safe for concurrent use. Every operation returns a Snapshot,
// which is a deep copy and never aliases live state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/model"
)

var (
	ErrNotInModule        = errors.New("engine: not in a module")
	ErrInvalidTransition  = errors.New("engine: invalid transition")
	ErrQuestionOutOfRange = errors.New("engine: question index out of range")
	ErrStepExpired        = errors.New("engine: step time has expired")
	ErrCompleted          = errors.New("engine: session already completed")
	ErrAlreadyRunning     = errors.New("engine: scheduler already running")
	ErrContentUnavailable = errors.New("engine: module content unavailable")
	ErrPersistFailed      = errors.New("engine: session persistence failed")
)

// Phase is the coarse position of the session.
type Phase string

const (
	PhaseAwaitingModule Phase = "AWAITING_MODULE"
	PhaseInModule       Phase = "IN_MODULE"
	PhaseReviewing      Phase = "REVIEWING"
	PhaseOnBreak        Phase = "ON_BREAK"
	PhaseCompleted      Phase = "COMPLETED"
)

// ExpiryPolicy decides what happens once the current step's timer hits zero.
type ExpiryPolicy string

const (
	// ExpiryDisplay only flags the step as expired.
	ExpiryDisplay ExpiryPolicy = "display"
	// ExpiryLock rejects answer and mark edits on an expired step.
	ExpiryLock ExpiryPolicy = "lock"
	// ExpiryAdvance makes the scheduler complete the step automatically.
	ExpiryAdvance ExpiryPolicy = "advance"
)

// ParseExpiryPolicy maps a config value to a policy. Unknown values fall back
// to ExpiryDisplay.
func ParseExpiryPolicy(s string) ExpiryPolicy {
	switch ExpiryPolicy(s) {
	case ExpiryLock, ExpiryAdvance:
		return ExpiryPolicy(s)
	default:
		return ExpiryDisplay
	}
}

// Backend is what the engine needs from the outside world. PersistSession
// returns an error wrapping ErrCompleted when the stored session was already
// finished by another writer.
type Backend interface {
	FetchModuleContent(ctx context.Context, moduleID string) (*model.Module, error)
	PersistSession(ctx context.Context, uid uuid.UUID, session *model.TestResult) error
}

// Options tunes an Engine.
type Options struct {
	Expiry ExpiryPolicy
	// Now is used to stamp endAt. Defaults to time.Now.
	Now func() time.Time
}

// Snapshot is an immutable view of the engine after an operation.
// Answer keys are stripped until the session is completed.
type Snapshot struct {
	Session  *model.TestResult `json:"session"`
	Phase    Phase             `json:"phase"`
	Question int               `json:"question"`
	Module   *model.Module     `json:"module,omitempty"`
	Expired  bool              `json:"expired"`
	Error    string            `json:"error,omitempty"`
}

// Engine is the exam session state machine.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	opts    Options

	session  *model.TestResult
	phase    Phase
	question int
	module   *model.Module
	lastErr  error

	running bool
	cancel  context.CancelFunc
}

// New builds an engine over a private copy of session. The engine starts in
// AWAITING_MODULE (or COMPLETED for a finished session); call Materialize to
// load the current step.
func New(backend Backend, session *model.TestResult, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Expiry == "" {
		opts.Expiry = ExpiryDisplay
	}
	e := &Engine{
		backend: backend,
		opts:    opts,
		session: session.Clone(),
		phase:   PhaseAwaitingModule,
	}
	if e.session.Completed() {
		e.phase = PhaseCompleted
	}
	return e
}

// Materialize loads the content of the current step. On fetch failure the
// engine stays in AWAITING_MODULE and the call may be repeated.
func (e *Engine) Materialize(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.materializeLocked(ctx)
	return e.snapshotLocked(), err
}

func (e *Engine) materializeLocked(ctx context.Context) error {
	if e.phase == PhaseCompleted {
		return nil
	}

	e.module = nil
	e.question = 0
	e.lastErr = nil

	idx := e.session.CurrentIndex
	if idx < 0 || idx >= len(e.session.ModuleResults) {
		e.phase = PhaseAwaitingModule
		e.lastErr = fmt.Errorf("%w: step %d of %d", ErrInvalidTransition, idx, len(e.session.ModuleResults))
		return e.lastErr
	}

	mr := &e.session.ModuleResults[idx]
	if mr.IsBreak() {
		e.phase = PhaseOnBreak
		return nil
	}

	content, err := e.backend.FetchModuleContent(ctx, mr.ModuleID)
	if err != nil {
		e.phase = PhaseAwaitingModule
		e.lastErr = fmt.Errorf("%w: %v", ErrContentUnavailable, err)
		return e.lastErr
	}

	reconcile(mr, content)
	e.module = content
	if len(content.Questions) == 0 {
		e.phase = PhaseReviewing
	} else {
		e.phase = PhaseInModule
	}
	return nil
}

// reconcile makes sure there is one answer record per question. Records are
// normally seeded at session creation; missing ones are appended and empty
// identity fields are filled in. Existing answers are never touched.
func reconcile(mr *model.ModuleResult, content *model.Module) {
	for i, q := range content.Questions {
		if i >= len(mr.Answers) {
			mr.Answers = append(mr.Answers, model.AnswerRecord{
				QuestionID:     q.UID.String(),
				QuestionAnswer: q.Answer,
			})
			continue
		}
		if mr.Answers[i].QuestionID == "" {
			mr.Answers[i].QuestionID = q.UID.String()
		}
		if mr.Answers[i].QuestionAnswer == "" {
			mr.Answers[i].QuestionAnswer = q.Answer
		}
	}
}

// Tick consumes one second of the current step. It never changes the step.
func (e *Engine) Tick() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseCompleted {
		return e.snapshotLocked()
	}
	mr := e.currentLocked()
	if mr == nil {
		return e.snapshotLocked()
	}
	if mr.RemainTime > 0 {
		mr.RemainTime--
	}
	if e.phase == PhaseInModule && e.question < len(mr.Answers) {
		mr.Answers[e.question].SpendTime++
	}
	return e.snapshotLocked()
}

// SetAnswer records the student's answer for question q of the current module.
func (e *Engine) SetAnswer(q int, value string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.editableLocked(q)
	if err != nil {
		return e.snapshotLocked(), err
	}
	rec.StudentAnswer = value
	return e.snapshotLocked(), nil
}

// ToggleMark flips the review flag of question q of the current module.
func (e *Engine) ToggleMark(q int) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.editableLocked(q)
	if err != nil {
		return e.snapshotLocked(), err
	}
	rec.IsMarked = !rec.IsMarked
	return e.snapshotLocked(), nil
}

func (e *Engine) editableLocked(q int) (*model.AnswerRecord, error) {
	if e.phase == PhaseCompleted {
		return nil, ErrCompleted
	}
	if e.phase != PhaseInModule {
		return nil, ErrNotInModule
	}
	mr := e.currentLocked()
	if q < 0 || q >= e.questionCountLocked() || q >= len(mr.Answers) {
		return nil, ErrQuestionOutOfRange
	}
	if e.opts.Expiry == ExpiryLock && mr.RemainTime == 0 {
		return nil, ErrStepExpired
	}
	return &mr.Answers[q], nil
}

// Next moves to the following question, to the review grid after the last
// question, or completes the step from the review grid.
func (e *Engine) Next(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case PhaseCompleted:
		return e.snapshotLocked(), ErrCompleted
	case PhaseInModule:
		if e.question < e.questionCountLocked()-1 {
			e.question++
		} else {
			e.phase = PhaseReviewing
		}
		return e.snapshotLocked(), nil
	case PhaseReviewing:
		err := e.advanceLocked(ctx)
		return e.snapshotLocked(), err
	default:
		return e.snapshotLocked(), ErrInvalidTransition
	}
}

// Back moves to the previous question, or from the review grid back to the
// last question.
func (e *Engine) Back() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case PhaseCompleted:
		return e.snapshotLocked(), ErrCompleted
	case PhaseInModule:
		if e.question == 0 {
			return e.snapshotLocked(), ErrInvalidTransition
		}
		e.question--
		return e.snapshotLocked(), nil
	case PhaseReviewing:
		n := e.questionCountLocked()
		if n == 0 {
			return e.snapshotLocked(), ErrInvalidTransition
		}
		e.phase = PhaseInModule
		e.question = n - 1
		return e.snapshotLocked(), nil
	default:
		return e.snapshotLocked(), ErrInvalidTransition
	}
}

// Jump navigates directly to question q from a module or its review grid.
func (e *Engine) Jump(q int) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case PhaseCompleted:
		return e.snapshotLocked(), ErrCompleted
	case PhaseInModule, PhaseReviewing:
	default:
		return e.snapshotLocked(), ErrInvalidTransition
	}
	if q < 0 || q >= e.questionCountLocked() {
		return e.snapshotLocked(), ErrQuestionOutOfRange
	}
	e.phase = PhaseInModule
	e.question = q
	return e.snapshotLocked(), nil
}

// Advance completes the current step: it ends a break, submits a module, or
// finalizes the session on the last step. The new state is persisted before
// it is committed locally; when persistence fails nothing changes and the
// call can be retried.
func (e *Engine) Advance(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.advanceLocked(ctx)
	return e.snapshotLocked(), err
}

func (e *Engine) advanceLocked(ctx context.Context) error {
	switch e.phase {
	case PhaseCompleted:
		return ErrCompleted
	case PhaseAwaitingModule:
		// The step was never shown; it cannot be submitted.
		if e.lastErr != nil {
			return e.lastErr
		}
		return ErrContentUnavailable
	}

	candidate := e.session.Clone()
	last := candidate.CurrentIndex >= len(candidate.ModuleResults)-1
	if last {
		end := e.opts.Now().UTC()
		candidate.EndAt = &end
	} else {
		candidate.CurrentIndex++
	}

	if err := e.backend.PersistSession(ctx, candidate.UID, candidate); err != nil {
		e.lastErr = fmt.Errorf("%w: %w", ErrPersistFailed, err)
		if errors.Is(err, ErrCompleted) {
			e.phase = PhaseCompleted
			e.module = nil
			e.question = 0
		}
		return e.lastErr
	}

	e.session = candidate
	e.lastErr = nil
	if last {
		e.phase = PhaseCompleted
		e.module = nil
		e.question = 0
		return nil
	}
	// The step boundary is already durable; a content failure here is
	// reported on the snapshot and recovered with Materialize.
	_ = e.materializeLocked(ctx)
	return nil
}

// Retry repeats whatever last failed: loading the current step's content, or
// persisting a step boundary. It is a no-op when nothing is pending.
func (e *Engine) Retry(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	switch {
	case e.phase == PhaseCompleted:
		err = ErrCompleted
	case e.phase == PhaseAwaitingModule:
		err = e.materializeLocked(ctx)
	case errors.Is(e.lastErr, ErrPersistFailed):
		err = e.advanceLocked(ctx)
	}
	return e.snapshotLocked(), err
}

// Checkpoint returns an unredacted copy of the session for intermediate saves,
// stamped with a sequence number higher than any earlier checkpoint of the
// session, including those taken by previous engines.
func (e *Engine) Checkpoint() *model.TestResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.opts.Now().UnixMicro()
	if seq <= e.session.CheckpointSeq {
		seq = e.session.CheckpointSeq + 1
	}
	e.session.CheckpointSeq = seq
	return e.session.Clone()
}

// Snapshot returns the current state without changing it.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Run ticks the engine every interval until ctx is cancelled, Stop is called
// or the session completes. onTick, if set, receives every tick's snapshot
// outside the engine lock. Only one scheduler may run per engine.
func (e *Engine) Run(ctx context.Context, interval time.Duration, onTick func(Snapshot)) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		snap := e.Tick()
		if snap.Expired && e.opts.Expiry == ExpiryAdvance && (snap.Phase == PhaseInModule ||
			snap.Phase == PhaseReviewing || snap.Phase == PhaseOnBreak) {
			// On failure the error is on the snapshot and the next tick retries.
			snap, _ = e.Advance(ctx)
		}
		if onTick != nil {
			onTick(snap)
		}
		if snap.Phase == PhaseCompleted {
			return nil
		}
	}
}

// Stop cancels a running scheduler. It is a no-op when none is running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Running reports whether the scheduler is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) currentLocked() *model.ModuleResult {
	idx := e.session.CurrentIndex
	if idx < 0 || idx >= len(e.session.ModuleResults) {
		return nil
	}
	return &e.session.ModuleResults[idx]
}

func (e *Engine) questionCountLocked() int {
	if e.module == nil {
		return 0
	}
	return len(e.module.Questions)
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Session:  e.session.Clone(),
		Phase:    e.phase,
		Question: e.question,
	}
	if e.lastErr != nil {
		snap.Error = e.lastErr.Error()
	}
	if e.phase == PhaseCompleted {
		return snap
	}

	snap.Module = e.module.Redacted()
	if mr := e.currentLocked(); mr != nil {
		snap.Expired = mr.RemainTime == 0
	}
	for i := range snap.Session.ModuleResults {
		answers := snap.Session.ModuleResults[i].Answers
		for j := range answers {
			answers[j].QuestionAnswer = ""
		}
	}
	return snap
}
