package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/repository"
)

// AssignmentService grants test attempts to students.
type AssignmentService struct {
	assignRepo *repository.AssignmentRepository
	testRepo   *repository.TestRepository
	log        zerolog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(assignRepo *repository.AssignmentRepository, testRepo *repository.TestRepository, log zerolog.Logger) *AssignmentService {
	return &AssignmentService{
		assignRepo: assignRepo,
		testRepo:   testRepo,
		log:        log.With().Str("component", "assignment_service").Logger(),
	}
}

// SetAttempts sets how many attempts a student has left for a test.
func (s *AssignmentService) SetAttempts(ctx context.Context, userID string, testUID uuid.UUID, count int) (*model.Assignment, error) {
	if _, err := s.testRepo.GetByUID(ctx, testUID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	a := &model.Assignment{UserID: userID, TestUID: testUID, Count: count}
	if err := s.assignRepo.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("upsert assignment: %w", err)
	}

	s.log.Info().Str("user_id", userID).Str("test_id", testUID.String()).Int("count", count).Msg("Attempts set")
	return a, nil
}
