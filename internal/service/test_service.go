package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/composition"
	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/repository"
)

// TestService handles test composition: metadata, ordered steps and the
// derived module list and time summary.
type TestService struct {
	testRepo   *repository.TestRepository
	moduleRepo *repository.ModuleRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(
	testRepo *repository.TestRepository,
	moduleRepo *repository.ModuleRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		testRepo:   testRepo,
		moduleRepo: moduleRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "test_service").Logger(),
	}
}

// Create validates and stores a new test.
func (s *TestService) Create(ctx context.Context, req model.SaveTestRequest) (*model.Test, error) {
	test := &model.Test{
		Title:       req.Title,
		Description: req.Description,
		Level:       req.Level,
		Order:       req.Order,
	}
	if err := s.prepare(ctx, test); err != nil {
		return nil, err
	}
	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.log.Info().Str("test_id", test.UID.String()).Int("steps", len(test.Order)).Msg("Test created")
	return test, nil
}

// Update replaces a test's metadata and composition.
func (s *TestService) Update(ctx context.Context, uid uuid.UUID, req model.SaveTestRequest) (*model.Test, error) {
	test, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	test.Title = req.Title
	test.Description = req.Description
	test.Level = req.Level
	test.Order = req.Order
	return s.save(ctx, test)
}

// Get retrieves a test.
func (s *TestService) Get(ctx context.Context, uid uuid.UUID) (*model.Test, error) {
	test, err := s.testRepo.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return test, nil
}

// List retrieves a page of tests.
func (s *TestService) List(ctx context.Context, page, perPage int) ([]model.Test, int, error) {
	return s.testRepo.List(ctx, page, perPage)
}

// Delete removes a test that has no sessions.
func (s *TestService) Delete(ctx context.Context, uid uuid.UUID) error {
	err := s.testRepo.Delete(ctx, uid)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrTestNotFound
	case errors.Is(err, repository.ErrTestInUse):
		return ErrTestInUse
	case err != nil:
		return fmt.Errorf("delete test: %w", err)
	}
	s.forgetSummary(ctx, uid)
	return nil
}

// TimeSummary returns the module/break duration split of a test, cached in
// Redis until the composition changes.
func (s *TestService) TimeSummary(ctx context.Context, uid uuid.UUID) (*model.TimeSummary, error) {
	key := config.CacheKey.TestSummaryKey(uid.String())
	if raw, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var sum model.TimeSummary
		if json.Unmarshal(raw, &sum) == nil {
			return &sum, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("test_id", uid.String()).Msg("Summary cache read failed")
	}

	test, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	sum := composition.Aggregate(test.Order)
	if raw, err := json.Marshal(sum); err == nil {
		if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("test_id", uid.String()).Msg("Summary cache write failed")
		}
	}
	return &sum, nil
}

// AppendModuleStep adds a module step with the default allotted time.
func (s *TestService) AppendModuleStep(ctx context.Context, uid uuid.UUID, moduleUID string) (*model.Test, error) {
	return s.edit(ctx, uid, func(steps composition.Steps) (composition.Steps, error) {
		return steps.AppendModule(moduleUID), nil
	})
}

// AppendBreakStep adds a break step with the default duration.
func (s *TestService) AppendBreakStep(ctx context.Context, uid uuid.UUID) (*model.Test, error) {
	return s.edit(ctx, uid, func(steps composition.Steps) (composition.Steps, error) {
		return steps.AppendBreak(), nil
	})
}

// RemoveStep drops one step.
func (s *TestService) RemoveStep(ctx context.Context, uid uuid.UUID, index int) (*model.Test, error) {
	return s.edit(ctx, uid, func(steps composition.Steps) (composition.Steps, error) {
		if index < 0 || index >= len(steps) {
			return nil, ErrStepIndexOutOfRange
		}
		return steps.Remove(index), nil
	})
}

// MoveStep relocates one step. An out-of-range target leaves the order as it
// was.
func (s *TestService) MoveStep(ctx context.Context, uid uuid.UUID, from, to int) (*model.Test, error) {
	return s.edit(ctx, uid, func(steps composition.Steps) (composition.Steps, error) {
		return steps.Move(from, to), nil
	})
}

// SetStepTime edits the minute and/or second component of one step. Values
// are clamped, never rejected.
func (s *TestService) SetStepTime(ctx context.Context, uid uuid.UUID, index int, minutes, seconds *string) (*model.Test, error) {
	return s.edit(ctx, uid, func(steps composition.Steps) (composition.Steps, error) {
		if index < 0 || index >= len(steps) {
			return nil, ErrStepIndexOutOfRange
		}
		if minutes != nil {
			steps = steps.SetMinutes(index, *minutes)
		}
		if seconds != nil {
			steps = steps.SetSeconds(index, *seconds)
		}
		return steps, nil
	})
}

func (s *TestService) edit(ctx context.Context, uid uuid.UUID, fn func(composition.Steps) (composition.Steps, error)) (*model.Test, error) {
	test, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	steps, err := fn(composition.Steps(test.Order))
	if err != nil {
		return nil, err
	}
	test.Order = steps
	return s.save(ctx, test)
}

func (s *TestService) save(ctx context.Context, test *model.Test) (*model.Test, error) {
	if err := s.prepare(ctx, test); err != nil {
		return nil, err
	}
	if err := s.testRepo.Update(ctx, test); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("update test: %w", err)
	}
	s.forgetSummary(ctx, test.UID)
	return test, nil
}

// prepare validates a test, canonicalizes its step times, derives its module
// list and checks every referenced module exists.
func (s *TestService) prepare(ctx context.Context, test *model.Test) error {
	if fields := composition.Validate(test.Title, test.Level, test.Order); fields != nil {
		return &ValidationError{Fields: fields}
	}

	test.Order = composition.Normalize(test.Order)
	test.ExamModules = composition.ExamModules(test.Order)

	uids := make([]uuid.UUID, 0, len(test.ExamModules))
	seen := make(map[uuid.UUID]bool)
	for i, id := range test.ExamModules {
		uid, err := uuid.Parse(id)
		if err != nil {
			return &ValidationError{Fields: map[string]string{
				fmt.Sprintf("examModules[%d]", i): "moduleUid must be a valid UUID",
			}}
		}
		if !seen[uid] {
			seen[uid] = true
			uids = append(uids, uid)
		}
	}
	if len(uids) == 0 {
		return nil
	}

	n, err := s.moduleRepo.CountExisting(ctx, uids)
	if err != nil {
		return fmt.Errorf("check modules: %w", err)
	}
	if n != len(uids) {
		return ErrModuleNotFound
	}
	return nil
}

func (s *TestService) forgetSummary(ctx context.Context, uid uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.TestSummaryKey(uid.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("test_id", uid.String()).Msg("Summary cache invalidation failed")
	}
}
