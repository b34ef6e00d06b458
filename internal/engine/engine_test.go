package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/model"
)

type fakeBackend struct {
	mu         sync.Mutex
	modules    map[string]*model.Module
	fetchErr   error
	persistErr error
	persisted  []*model.TestResult
}

func (f *fakeBackend) FetchModuleContent(_ context.Context, moduleID string) (*model.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	m, ok := f.modules[moduleID]
	if !ok {
		return nil, errors.New("module not found")
	}
	out := *m
	out.Questions = append([]model.Question(nil), m.Questions...)
	return &out, nil
}

func (f *fakeBackend) PersistSession(_ context.Context, _ uuid.UUID, s *model.TestResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = append(f.persisted, s.Clone())
	return nil
}

func (f *fakeBackend) setFetchErr(err error) {
	f.mu.Lock()
	f.fetchErr = err
	f.mu.Unlock()
}

func (f *fakeBackend) setPersistErr(err error) {
	f.mu.Lock()
	f.persistErr = err
	f.mu.Unlock()
}

func makeModule(id string, answers ...string) *model.Module {
	m := &model.Module{UID: uuid.MustParse(id), Title: "module " + id[:4]}
	for _, a := range answers {
		m.Questions = append(m.Questions, model.Question{UID: uuid.New(), Prompt: "q", Answer: a})
	}
	return m
}

const (
	modA = "aaaaaaaa-0000-0000-0000-000000000001"
	modB = "bbbbbbbb-0000-0000-0000-000000000002"
)

// newFixture builds a session of [module A (3 questions), break, module B (2 questions)].
func newFixture(t *testing.T, opts Options) (*Engine, *fakeBackend) {
	t.Helper()
	a := makeModule(modA, "a", "b", "c")
	b := makeModule(modB, "d", "a")
	backend := &fakeBackend{modules: map[string]*model.Module{modA: a, modB: b}}

	session := &model.TestResult{
		UID:     uuid.New(),
		UserID:  "student-1",
		ExamUID: uuid.New(),
		StartAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		ModuleResults: []model.ModuleResult{
			{ModuleID: modA, RemainTime: 1800},
			{ModuleID: "", RemainTime: 600},
			{ModuleID: modB, RemainTime: 2730},
		},
	}
	e := New(backend, session, opts)
	if _, err := e.Materialize(context.Background()); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	return e, backend
}

func TestMaterializeSeedsAnswers(t *testing.T) {
	e, _ := newFixture(t, Options{})
	snap := e.Snapshot()

	if snap.Phase != PhaseInModule || snap.Question != 0 {
		t.Fatalf("phase = %s q = %d", snap.Phase, snap.Question)
	}
	if got := len(snap.Session.ModuleResults[0].Answers); got != 3 {
		t.Fatalf("answers = %d, want 3", got)
	}
	if snap.Session.ModuleResults[0].Answers[0].QuestionAnswer != "" {
		t.Error("answer keys must be hidden from running snapshots")
	}
	if snap.Module.Questions[0].Answer != "" {
		t.Error("module answer keys must be hidden from running snapshots")
	}
	if e.Checkpoint().ModuleResults[0].Answers[0].QuestionAnswer != "a" {
		t.Error("checkpoint must keep answer keys")
	}
}

func TestCountdownFloorsAtZero(t *testing.T) {
	backend := &fakeBackend{modules: map[string]*model.Module{modA: makeModule(modA, "a")}}
	session := &model.TestResult{UID: uuid.New(), ModuleResults: []model.ModuleResult{{ModuleID: modA, RemainTime: 2}}}
	e := New(backend, session, Options{})
	if _, err := e.Materialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	var snap Snapshot
	for i := 0; i < 5; i++ {
		snap = e.Tick()
	}
	if got := snap.Session.ModuleResults[0].RemainTime; got != 0 {
		t.Errorf("remainTime = %d, want 0", got)
	}
	if !snap.Expired {
		t.Error("expected expired flag")
	}
	if snap.Phase != PhaseInModule {
		t.Errorf("display policy must not leave the step, phase = %s", snap.Phase)
	}
}

func TestTickNeverAdvances(t *testing.T) {
	e, backend := newFixture(t, Options{})
	for i := 0; i < 2000; i++ {
		e.Tick()
	}
	snap := e.Snapshot()
	if snap.Session.CurrentIndex != 0 || snap.Phase != PhaseInModule {
		t.Errorf("tick moved the session: index=%d phase=%s", snap.Session.CurrentIndex, snap.Phase)
	}
	if snap.Session.ModuleResults[0].Answers[0].SpendTime != 2000 {
		t.Errorf("spendTime = %d, want 2000", snap.Session.ModuleResults[0].Answers[0].SpendTime)
	}
	if len(backend.persisted) != 0 {
		t.Error("tick must not persist")
	}
}

func TestTickChargesCurrentQuestionOnly(t *testing.T) {
	e, _ := newFixture(t, Options{})
	e.Tick()
	if _, err := e.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.Tick()
	e.Tick()

	answers := e.Snapshot().Session.ModuleResults[0].Answers
	if answers[0].SpendTime != 1 || answers[1].SpendTime != 2 || answers[2].SpendTime != 0 {
		t.Errorf("spend times = %d/%d/%d", answers[0].SpendTime, answers[1].SpendTime, answers[2].SpendTime)
	}
}

func TestAnswerIsolation(t *testing.T) {
	e, _ := newFixture(t, Options{})
	before := e.Checkpoint()

	if _, err := e.SetAnswer(1, "c"); err != nil {
		t.Fatal(err)
	}
	after := e.Checkpoint()

	for i, mr := range after.ModuleResults {
		if mr.RemainTime != before.ModuleResults[i].RemainTime {
			t.Errorf("remainTime of step %d changed", i)
		}
	}
	for j, a := range after.ModuleResults[0].Answers {
		want := before.ModuleResults[0].Answers[j]
		if j == 1 {
			want.StudentAnswer = "c"
		}
		if a != want {
			t.Errorf("answer %d = %+v, want %+v", j, a, want)
		}
	}
}

func TestToggleMark(t *testing.T) {
	e, _ := newFixture(t, Options{})
	snap, _ := e.ToggleMark(2)
	if !snap.Session.ModuleResults[0].Answers[2].IsMarked {
		t.Error("expected marked")
	}
	snap, _ = e.ToggleMark(2)
	if snap.Session.ModuleResults[0].Answers[2].IsMarked {
		t.Error("expected unmarked")
	}
	if _, err := e.ToggleMark(3); !errors.Is(err, ErrQuestionOutOfRange) {
		t.Errorf("err = %v, want ErrQuestionOutOfRange", err)
	}
}

func TestNavigation(t *testing.T) {
	ctx := context.Background()
	e, _ := newFixture(t, Options{})

	if _, err := e.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("back at q0: err = %v", err)
	}

	e.Next(ctx)
	e.Next(ctx)
	snap, _ := e.Next(ctx)
	if snap.Phase != PhaseReviewing {
		t.Fatalf("after last question phase = %s, want REVIEWING", snap.Phase)
	}
	if _, err := e.SetAnswer(0, "a"); !errors.Is(err, ErrNotInModule) {
		t.Errorf("edit while reviewing: err = %v", err)
	}

	snap, _ = e.Back()
	if snap.Phase != PhaseInModule || snap.Question != 2 {
		t.Errorf("back from review = %s/%d", snap.Phase, snap.Question)
	}

	e.Next(ctx)
	snap, err := e.Jump(1)
	if err != nil || snap.Phase != PhaseInModule || snap.Question != 1 {
		t.Errorf("jump from review = %s/%d err=%v", snap.Phase, snap.Question, err)
	}
	if _, err := e.Jump(5); !errors.Is(err, ErrQuestionOutOfRange) {
		t.Errorf("jump out of range: err = %v", err)
	}
}

func TestAdvanceIsMonotonicAndFinalizes(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	e, backend := newFixture(t, Options{Now: func() time.Time { return fixed }})

	snap, err := e.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Session.CurrentIndex != 1 || snap.Phase != PhaseOnBreak {
		t.Fatalf("after module: index=%d phase=%s", snap.Session.CurrentIndex, snap.Phase)
	}
	if _, err := e.Next(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("next on break: err = %v", err)
	}

	snap, _ = e.Advance(ctx)
	if snap.Session.CurrentIndex != 2 || snap.Phase != PhaseInModule || snap.Question != 0 {
		t.Fatalf("after break: index=%d phase=%s q=%d", snap.Session.CurrentIndex, snap.Phase, snap.Question)
	}

	snap, _ = e.Advance(ctx)
	if snap.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want COMPLETED", snap.Phase)
	}
	if snap.Session.CurrentIndex != 2 {
		t.Errorf("final advance changed currentIndex to %d", snap.Session.CurrentIndex)
	}
	if snap.Session.EndAt == nil || !snap.Session.EndAt.Equal(fixed) {
		t.Errorf("endAt = %v, want %v", snap.Session.EndAt, fixed)
	}
	if snap.Session.ModuleResults[0].Answers[0].QuestionAnswer != "a" {
		t.Error("completed snapshots expose answer keys")
	}

	if len(backend.persisted) != 3 {
		t.Fatalf("persisted %d times, want 3", len(backend.persisted))
	}
	prev := -1
	for _, p := range backend.persisted {
		if p.CurrentIndex < prev {
			t.Errorf("currentIndex went backwards: %d after %d", p.CurrentIndex, prev)
		}
		prev = p.CurrentIndex
	}

	if _, err := e.Advance(ctx); !errors.Is(err, ErrCompleted) {
		t.Errorf("advance after completion: err = %v", err)
	}
	if _, err := e.SetAnswer(0, "x"); !errors.Is(err, ErrCompleted) {
		t.Errorf("edit after completion: err = %v", err)
	}
}

func TestNextFromReviewAdvances(t *testing.T) {
	ctx := context.Background()
	e, _ := newFixture(t, Options{})
	for i := 0; i < 3; i++ {
		e.Next(ctx)
	}
	snap, err := e.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Session.CurrentIndex != 1 || snap.Phase != PhaseOnBreak {
		t.Errorf("index=%d phase=%s", snap.Session.CurrentIndex, snap.Phase)
	}
}

func TestPersistFailureKeepsStep(t *testing.T) {
	ctx := context.Background()
	e, backend := newFixture(t, Options{})
	e.SetAnswer(0, "a")
	backend.setPersistErr(errors.New("connection reset"))

	snap, err := e.Advance(ctx)
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("err = %v, want ErrPersistFailed", err)
	}
	if snap.Session.CurrentIndex != 0 || snap.Phase != PhaseInModule {
		t.Errorf("failed advance moved the session: index=%d phase=%s", snap.Session.CurrentIndex, snap.Phase)
	}
	if snap.Error == "" {
		t.Error("snapshot should carry the persistence error")
	}

	backend.setPersistErr(nil)
	snap, err = e.Advance(ctx)
	if err != nil || snap.Session.CurrentIndex != 1 {
		t.Errorf("retry: index=%d err=%v", snap.Session.CurrentIndex, err)
	}
	if snap.Error != "" {
		t.Errorf("error should clear after success, got %q", snap.Error)
	}
	if backend.persisted[0].ModuleResults[0].Answers[0].StudentAnswer != "a" {
		t.Error("persisted session lost the answer")
	}
}

func TestFetchFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{modules: map[string]*model.Module{modA: makeModule(modA, "a")}}
	backend.setFetchErr(errors.New("timeout"))
	e := New(backend, &model.TestResult{UID: uuid.New(), ModuleResults: []model.ModuleResult{{ModuleID: modA, RemainTime: 60}}}, Options{})

	snap, err := e.Materialize(ctx)
	if !errors.Is(err, ErrContentUnavailable) || snap.Phase != PhaseAwaitingModule {
		t.Fatalf("phase=%s err=%v", snap.Phase, err)
	}
	if _, err := e.SetAnswer(0, "a"); !errors.Is(err, ErrNotInModule) {
		t.Errorf("edit while awaiting: err = %v", err)
	}
	if snap := e.Tick(); snap.Session.ModuleResults[0].RemainTime != 59 {
		t.Error("timer should keep running while content is unavailable")
	}

	backend.setFetchErr(nil)
	snap, err = e.Materialize(ctx)
	if err != nil || snap.Phase != PhaseInModule {
		t.Errorf("retry: phase=%s err=%v", snap.Phase, err)
	}
}

func TestAdvanceBlockedWhileContentUnavailable(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{modules: map[string]*model.Module{
		modA: makeModule(modA, "a"),
		modB: makeModule(modB, "b"),
	}}
	backend.setFetchErr(errors.New("timeout"))
	e := New(backend, &model.TestResult{UID: uuid.New(), ModuleResults: []model.ModuleResult{
		{ModuleID: modA, RemainTime: 60},
		{ModuleID: modB, RemainTime: 60},
	}}, Options{})
	e.Materialize(ctx)

	snap, err := e.Advance(ctx)
	if !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("advance: err = %v, want ErrContentUnavailable", err)
	}
	if snap.Phase != PhaseAwaitingModule || snap.Session.CurrentIndex != 0 {
		t.Errorf("advance moved the session: phase=%s index=%d", snap.Phase, snap.Session.CurrentIndex)
	}
	if _, err := e.Next(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("next: err = %v", err)
	}
	if len(backend.persisted) != 0 {
		t.Fatalf("unloaded step was persisted %d times", len(backend.persisted))
	}

	backend.setFetchErr(nil)
	snap, err = e.Retry(ctx)
	if err != nil || snap.Phase != PhaseInModule || snap.Session.CurrentIndex != 0 {
		t.Errorf("retry: phase=%s index=%d err=%v", snap.Phase, snap.Session.CurrentIndex, err)
	}
}

func TestRunDoesNotAdvanceUnloadedStep(t *testing.T) {
	backend := &fakeBackend{modules: map[string]*model.Module{modA: makeModule(modA, "a")}}
	backend.setFetchErr(errors.New("timeout"))
	e := New(backend, &model.TestResult{UID: uuid.New(), ModuleResults: []model.ModuleResult{
		{ModuleID: modA, RemainTime: 1},
		{ModuleID: "", RemainTime: 60},
	}}, Options{Expiry: ExpiryAdvance})
	e.Materialize(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx, time.Millisecond, nil); err != nil {
		t.Fatal(err)
	}

	snap := e.Snapshot()
	if snap.Phase != PhaseAwaitingModule || snap.Session.CurrentIndex != 0 || !snap.Expired {
		t.Errorf("phase=%s index=%d expired=%v", snap.Phase, snap.Session.CurrentIndex, snap.Expired)
	}
	if len(backend.persisted) != 0 {
		t.Errorf("expired unloaded step was persisted %d times", len(backend.persisted))
	}
}

func TestPersistOnFinishedSessionIsTerminal(t *testing.T) {
	ctx := context.Background()
	e, backend := newFixture(t, Options{})
	backend.setPersistErr(fmt.Errorf("save session: %w", ErrCompleted))

	snap, err := e.Advance(ctx)
	if !errors.Is(err, ErrPersistFailed) || !errors.Is(err, ErrCompleted) {
		t.Fatalf("err = %v, want ErrPersistFailed wrapping ErrCompleted", err)
	}
	if snap.Phase != PhaseCompleted {
		t.Errorf("phase = %s, want COMPLETED", snap.Phase)
	}

	backend.setPersistErr(nil)
	if _, err := e.Retry(ctx); !errors.Is(err, ErrCompleted) {
		t.Errorf("retry: err = %v, want ErrCompleted", err)
	}
	if len(backend.persisted) != 0 {
		t.Errorf("finished session was written again")
	}
}

func TestPersistErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	e, backend := newFixture(t, Options{})
	backend.setPersistErr(cause)

	_, err := e.Advance(context.Background())
	if !errors.Is(err, cause) {
		t.Errorf("err = %v does not wrap the backend error", err)
	}
}

func TestCheckpointSequence(t *testing.T) {
	clock := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	frozen := Options{Now: func() time.Time { return clock }}
	e, _ := newFixture(t, frozen)

	first := e.Checkpoint()
	second := e.Checkpoint()
	if second.CheckpointSeq <= first.CheckpointSeq {
		t.Fatalf("sequence did not increase: %d then %d", first.CheckpointSeq, second.CheckpointSeq)
	}

	// A reconnect rebuilds the engine from the stored record.
	reloaded := New(&fakeBackend{}, second, frozen)
	if got := reloaded.Checkpoint().CheckpointSeq; got <= second.CheckpointSeq {
		t.Errorf("new engine restarted the sequence: %d after %d", got, second.CheckpointSeq)
	}

	clock = clock.Add(time.Minute)
	if got := reloaded.Checkpoint().CheckpointSeq; got != clock.UnixMicro() {
		t.Errorf("seq = %d, want clock value %d", got, clock.UnixMicro())
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing pending", func(t *testing.T) {
		e, backend := newFixture(t, Options{})
		snap, err := e.Retry(ctx)
		if err != nil || snap.Session.CurrentIndex != 0 || len(backend.persisted) != 0 {
			t.Errorf("index=%d persisted=%d err=%v", snap.Session.CurrentIndex, len(backend.persisted), err)
		}
	})

	t.Run("repeats failed persistence", func(t *testing.T) {
		e, backend := newFixture(t, Options{})
		backend.setPersistErr(errors.New("connection reset"))
		if _, err := e.Advance(ctx); !errors.Is(err, ErrPersistFailed) {
			t.Fatalf("err = %v", err)
		}
		backend.setPersistErr(nil)

		snap, err := e.Retry(ctx)
		if err != nil || snap.Session.CurrentIndex != 1 || snap.Phase != PhaseOnBreak {
			t.Errorf("index=%d phase=%s err=%v", snap.Session.CurrentIndex, snap.Phase, err)
		}
	})

	t.Run("reloads missing content", func(t *testing.T) {
		backend := &fakeBackend{modules: map[string]*model.Module{modA: makeModule(modA, "a")}}
		backend.setFetchErr(errors.New("timeout"))
		e := New(backend, &model.TestResult{UID: uuid.New(), ModuleResults: []model.ModuleResult{{ModuleID: modA, RemainTime: 60}}}, Options{})
		e.Materialize(ctx)

		backend.setFetchErr(nil)
		snap, err := e.Retry(ctx)
		if err != nil || snap.Phase != PhaseInModule {
			t.Errorf("phase=%s err=%v", snap.Phase, err)
		}
	})
}

func TestEmptyModuleGoesToReview(t *testing.T) {
	backend := &fakeBackend{modules: map[string]*model.Module{modA: makeModule(modA)}}
	e := New(backend, &model.TestResult{UID: uuid.New(), ModuleResults: []model.ModuleResult{{ModuleID: modA}}}, Options{})
	snap, err := e.Materialize(context.Background())
	if err != nil || snap.Phase != PhaseReviewing {
		t.Errorf("phase=%s err=%v", snap.Phase, err)
	}
	if _, err := e.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("back from empty review: err = %v", err)
	}
}

func TestExpiryLockRejectsEdits(t *testing.T) {
	backend := &fakeBackend{modules: map[string]*model.Module{modA: makeModule(modA, "a")}}
	e := New(backend, &model.TestResult{UID: uuid.New(), ModuleResults: []model.ModuleResult{{ModuleID: modA, RemainTime: 1}}}, Options{Expiry: ExpiryLock})
	e.Materialize(context.Background())

	if _, err := e.SetAnswer(0, "a"); err != nil {
		t.Fatalf("edit before expiry: %v", err)
	}
	e.Tick()
	if _, err := e.SetAnswer(0, "b"); !errors.Is(err, ErrStepExpired) {
		t.Errorf("err = %v, want ErrStepExpired", err)
	}
	if _, err := e.ToggleMark(0); !errors.Is(err, ErrStepExpired) {
		t.Errorf("err = %v, want ErrStepExpired", err)
	}
	if got := e.Checkpoint().ModuleResults[0].Answers[0].StudentAnswer; got != "a" {
		t.Errorf("answer = %q, want a", got)
	}
}

func TestRunAdvancesOnExpiry(t *testing.T) {
	backend := &fakeBackend{modules: map[string]*model.Module{modA: makeModule(modA, "a")}}
	session := &model.TestResult{UID: uuid.New(), ModuleResults: []model.ModuleResult{
		{ModuleID: modA, RemainTime: 2},
		{ModuleID: "", RemainTime: 1},
	}}
	e := New(backend, session, Options{Expiry: ExpiryAdvance})
	e.Materialize(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var ticks int
	if err := e.Run(ctx, time.Millisecond, func(Snapshot) { ticks++ }); err != nil {
		t.Fatal(err)
	}
	snap := e.Snapshot()
	if snap.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want COMPLETED", snap.Phase)
	}
	if ticks != 3 {
		t.Errorf("ticks = %d, want 3", ticks)
	}
	if e.Running() {
		t.Error("scheduler should have stopped")
	}
}

func TestRunRejectsSecondScheduler(t *testing.T) {
	e, _ := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, time.Millisecond, func(Snapshot) {
			select {
			case <-started:
			default:
				close(started)
			}
		})
	}()
	<-started

	if err := e.Run(ctx, time.Millisecond, nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("err = %v, want ErrAlreadyRunning", err)
	}

	e.Stop()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestCompletedSessionStartsCompleted(t *testing.T) {
	end := time.Now()
	e := New(&fakeBackend{}, &model.TestResult{UID: uuid.New(), EndAt: &end, ModuleResults: []model.ModuleResult{{ModuleID: ""}}}, Options{})
	snap, err := e.Materialize(context.Background())
	if err != nil || snap.Phase != PhaseCompleted {
		t.Errorf("phase=%s err=%v", snap.Phase, err)
	}
}

func TestParseExpiryPolicy(t *testing.T) {
	tests := map[string]ExpiryPolicy{
		"display": ExpiryDisplay,
		"lock":    ExpiryLock,
		"advance": ExpiryAdvance,
		"":        ExpiryDisplay,
		"bogus":   ExpiryDisplay,
	}
	for in, want := range tests {
		if got := ParseExpiryPolicy(in); got != want {
			t.Errorf("ParseExpiryPolicy(%q) = %s, want %s", in, got, want)
		}
	}
}
