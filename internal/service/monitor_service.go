package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/repository"
)

// MonitorService assembles the live progress view of a test for admins.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	testRepo    *repository.TestRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	monitorRepo *repository.MonitorRepository,
	testRepo *repository.TestRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *MonitorService {
	return &MonitorService{
		monitorRepo: monitorRepo,
		testRepo:    testRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

// TestProgress loads the test and its sessions concurrently, then decorates
// the sessions with their attached state. Attached state is best-effort.
func (s *MonitorService) TestProgress(ctx context.Context, testUID uuid.UUID) (*model.TestProgress, error) {
	var (
		test        *model.Test
		sessions    []model.SessionProgress
		testErr     error
		sessionsErr error
		wg          sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		test, testErr = s.testRepo.GetByUID(ctx, testUID)
	}()
	go func() {
		defer wg.Done()
		sessions, sessionsErr = s.monitorRepo.ListSessionProgress(ctx, testUID)
	}()
	wg.Wait()

	if testErr != nil {
		if errors.Is(testErr, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", testErr)
	}
	if sessionsErr != nil {
		return nil, fmt.Errorf("list sessions: %w", sessionsErr)
	}

	open := make([]uuid.UUID, 0, len(sessions))
	for _, p := range sessions {
		if p.EndAt == nil {
			open = append(open, p.SessionUID)
		}
	}
	attached, err := s.monitorRepo.AttachedSessions(ctx, open)
	if err != nil {
		s.log.Warn().Err(err).Str("test_id", testUID.String()).Msg("Lease lookup failed")
		attached = nil
	}

	return summarizeProgress(test, sessions, attached), nil
}

// Watch subscribes to the session events of a test and yields their raw
// JSON payloads until ctx ends. The returned func closes the subscription.
func (s *MonitorService) Watch(ctx context.Context, testUID uuid.UUID) (<-chan string, func() error) {
	pubsub := s.rdb.Subscribe(ctx, config.CacheKey.TestMonitorChannel(testUID.String()))
	out := make(chan string)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, pubsub.Close
}

func summarizeProgress(test *model.Test, sessions []model.SessionProgress, attached map[uuid.UUID]bool) *model.TestProgress {
	out := &model.TestProgress{
		TestUID:    test.UID,
		Title:      test.Title,
		TotalSteps: len(test.Order),
		Sessions:   sessions,
	}
	out.Stats.TotalJoined = len(sessions)
	for i := range out.Sessions {
		p := &out.Sessions[i]
		if p.EndAt != nil {
			out.Stats.TotalCompleted++
			continue
		}
		out.Stats.TotalInProgress++
		if attached[p.SessionUID] {
			p.Attached = true
			out.Stats.TotalAttached++
		}
	}
	return out
}

// publishMonitorEvent notifies admins watching a test. Delivery is
// fire-and-forget; nobody listening is not an error.
func publishMonitorEvent(ctx context.Context, rdb *redis.Client, testUID uuid.UUID, ev model.MonitorEvent) error {
	if rdb == nil {
		return nil
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, config.CacheKey.TestMonitorChannel(testUID.String()), raw).Err()
}
