package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/composition"
	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/engine"
	"github.com/stemsi/modexam-backend/internal/metrics"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/repository"
	"github.com/stemsi/modexam-backend/internal/scoring"
)

// SessionService owns exam sessions: create-or-resume, module content,
// durable progress and the result views.
type SessionService struct {
	pool       *pgxpool.Pool
	resultRepo *repository.TestResultRepository
	assignRepo *repository.AssignmentRepository
	testRepo   *repository.TestRepository
	moduleRepo *repository.ModuleRepository
	rdb        *redis.Client
	moduleTTL  time.Duration
	log        zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	pool *pgxpool.Pool,
	resultRepo *repository.TestResultRepository,
	assignRepo *repository.AssignmentRepository,
	testRepo *repository.TestRepository,
	moduleRepo *repository.ModuleRepository,
	rdb *redis.Client,
	moduleTTL time.Duration,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		pool:       pool,
		resultRepo: resultRepo,
		assignRepo: assignRepo,
		testRepo:   testRepo,
		moduleRepo: moduleRepo,
		rdb:        rdb,
		moduleTTL:  moduleTTL,
		log:        log.With().Str("component", "session_service").Logger(),
	}
}

// StartSession returns the student's unfinished session for the test, or
// creates one and consumes an attempt. created reports which happened.
// Resuming never consumes an attempt.
func (s *SessionService) StartSession(ctx context.Context, userID string, testID uuid.UUID) (*model.TestResult, bool, error) {
	var (
		session *model.TestResult
		created bool
	)

	err := repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		assignRepo := s.assignRepo.WithTx(tx)
		resultRepo := s.resultRepo.WithTx(tx)

		// The row lock serializes concurrent starts of the same student and test.
		assignment, err := assignRepo.GetForUpdate(ctx, userID, testID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotAssigned
			}
			return fmt.Errorf("lock assignment: %w", err)
		}

		open, err := resultRepo.FindOpen(ctx, userID, testID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("find open session: %w", err)
		}

		switch decideStart(open, assignment.Count) {
		case startResume:
			session = open
			return nil
		case startRejectNoAttempts:
			return ErrNoAttemptsLeft
		}

		test, err := repository.NewTestRepository(tx).GetByUID(ctx, testID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTestNotFound
			}
			return fmt.Errorf("get test: %w", err)
		}

		contents := make(map[string]*model.Module)
		for _, id := range moduleIDs(test) {
			content, err := s.FetchModuleContent(ctx, id)
			if err != nil {
				return fmt.Errorf("module %s: %w", id, err)
			}
			contents[id] = content
		}

		fresh := BuildSession(userID, test, contents)
		if err := resultRepo.Create(ctx, fresh); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost a race against another insert; resume the winner.
				existing, fetchErr := resultRepo.FindOpen(ctx, userID, testID)
				if fetchErr != nil {
					return fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
				}
				session = existing
				return nil
			}
			return fmt.Errorf("create session: %w", err)
		}

		if err := assignRepo.Decrement(ctx, userID, testID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoAttemptsLeft
			}
			return fmt.Errorf("decrement attempts: %w", err)
		}

		session = fresh
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	metrics.SessionsStarted.WithLabelValues(strconv.FormatBool(created)).Inc()
	s.log.Info().
		Str("user_id", userID).
		Str("test_id", testID.String()).
		Str("session_uid", session.UID.String()).
		Bool("created", created).
		Msg("Session started")

	evType := model.MonitorSessionResumed
	if created {
		evType = model.MonitorSessionStarted
	}
	s.notify(ctx, session, evType)

	return session, created, nil
}

// CreateSession starts a fresh attempt, or resumes the unfinished one, and
// drops the created flag.
func (s *SessionService) CreateSession(ctx context.Context, userID string, testID uuid.UUID) (*model.TestResult, error) {
	session, _, err := s.StartSession(ctx, userID, testID)
	return session, err
}

// FetchSession returns the student's unfinished session for a test.
func (s *SessionService) FetchSession(ctx context.Context, userID string, testID uuid.UUID) (*model.TestResult, error) {
	session, err := s.resultRepo.FindOpen(ctx, userID, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return session, nil
}

// FetchModuleContent returns a module with its ordered questions, served from
// Redis when cached. Modules are immutable once created, so the cache is
// never invalidated.
func (s *SessionService) FetchModuleContent(ctx context.Context, moduleID string) (*model.Module, error) {
	uid, err := uuid.Parse(moduleID)
	if err != nil {
		return nil, ErrModuleNotFound
	}

	key := config.CacheKey.ModuleContentKey(uid.String())
	if raw, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var m model.Module
		if jsonErr := json.Unmarshal(raw, &m); jsonErr == nil {
			return &m, nil
		}
		s.log.Warn().Str("module_id", moduleID).Msg("Discarding unreadable cached module")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("module_id", moduleID).Msg("Module cache read failed")
	}

	m, err := s.moduleRepo.GetWithQuestions(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("load module: %w", err)
	}

	if raw, err := json.Marshal(m); err == nil {
		if err := s.rdb.Set(ctx, key, raw, s.moduleTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("module_id", moduleID).Msg("Module cache write failed")
		}
	}
	return m, nil
}

// PersistSession durably writes a session at a step boundary or completion.
// A session that is already finished is reported as engine.ErrCompleted so
// the engine stops retrying.
func (s *SessionService) PersistSession(ctx context.Context, uid uuid.UUID, session *model.TestResult) error {
	session.UID = uid
	applied, err := s.resultRepo.Save(ctx, session)
	if err != nil {
		metrics.PersistFailures.Inc()
		return fmt.Errorf("save session: %w", err)
	}
	if !applied {
		metrics.PersistFailures.Inc()
		return fmt.Errorf("%w: %w", ErrSessionCompleted, engine.ErrCompleted)
	}

	kind, evType := "step", model.MonitorStepAdvanced
	if session.Completed() {
		kind, evType = "final", model.MonitorSessionCompleted
	}
	metrics.StepsAdvanced.WithLabelValues(kind).Inc()
	s.notify(ctx, session, evType)
	return nil
}

func (s *SessionService) notify(ctx context.Context, session *model.TestResult, evType model.MonitorEventType) {
	err := publishMonitorEvent(ctx, s.rdb, session.ExamUID, model.MonitorEvent{
		Type:         evType,
		SessionUID:   session.UID,
		UserID:       session.UserID,
		CurrentIndex: session.CurrentIndex,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("session_uid", session.UID.String()).Msg("Monitor publish failed")
	}
}

// SaveCheckpoint writes intermediate progress. It reports false when the
// checkpoint was stale and skipped.
func (s *SessionService) SaveCheckpoint(ctx context.Context, session *model.TestResult) (bool, error) {
	applied, err := s.resultRepo.SaveCheckpoint(ctx, session)
	if err != nil {
		metrics.CheckpointsApplied.WithLabelValues("failed").Inc()
		return false, err
	}
	if applied {
		metrics.CheckpointsApplied.WithLabelValues("applied").Inc()
	} else {
		metrics.CheckpointsApplied.WithLabelValues("stale").Inc()
	}
	return applied, nil
}

// EnqueueCheckpoint hands a checkpoint to the background worker.
func (s *SessionService) EnqueueCheckpoint(ctx context.Context, session *model.TestResult) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistCheckpointsQueue, raw).Err()
}

// FetchCompletedSessions groups a student's sessions into unfinished and
// finished ones, each joined with its test and scoreline. Unfinished sessions
// never carry answer keys.
func (s *SessionService) FetchCompletedSessions(ctx context.Context, userID string) (*model.UserTestResults, error) {
	rows, err := s.resultRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := &model.UserTestResults{
		OnGoing:   []model.CompletedExamView{},
		Completed: []model.CompletedExamView{},
	}
	for _, row := range rows {
		view := model.CompletedExamView{
			TestResult: *StudentView(&row.Session),
			ExamInfo:   row.Test,
		}
		if row.Session.Completed() {
			view.Scoreline = scoring.Scoreline(row.Session.ModuleResults)
			out.Completed = append(out.Completed, view)
		} else {
			view.Scoreline = []model.Score{}
			out.OnGoing = append(out.OnGoing, view)
		}
	}
	return out, nil
}

// GetResult returns the scored view of one of the student's finished sessions.
func (s *SessionService) GetResult(ctx context.Context, userID string, uid uuid.UUID) (*scoring.ResultView, error) {
	session, err := s.resultRepo.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if !session.Completed() {
		return nil, ErrSessionInProgress
	}

	test, err := s.testRepo.GetByUID(ctx, session.ExamUID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get test: %w", err)
	}

	view := scoring.BuildResult(session, test)
	return &view, nil
}

// Dashboard is the student's landing view.
type Dashboard struct {
	Assigned  []model.AssignedTest      `json:"assigned"`
	OnGoing   []model.CompletedExamView `json:"onGoing"`
	Completed []model.CompletedExamView `json:"completed"`
}

// GetDashboard lists assigned tests with their remaining attempts and time
// summary next to the student's sessions.
func (s *SessionService) GetDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	assigned, err := s.assignRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	for i := range assigned {
		assigned[i].TimeSummary = composition.Aggregate(assigned[i].Order)
	}

	results, err := s.FetchCompletedSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Assigned:  assigned,
		OnGoing:   results.OnGoing,
		Completed: results.Completed,
	}, nil
}
