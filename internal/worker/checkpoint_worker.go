package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/model"
)

// CheckpointSaver writes intermediate session progress.
type CheckpointSaver interface {
	SaveCheckpoint(ctx context.Context, session *model.TestResult) (bool, error)
}

// CheckpointQueue is the Redis list the worker consumes. *redis.Client
// satisfies it.
type CheckpointQueue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// CheckpointWorker consumes persist_checkpoints_queue and writes in-step
// progress to PostgreSQL. Stale checkpoints are skipped by the store. A
// failed checkpoint goes back to the head of the queue so checkpoints of a
// session are always applied in the order they were taken.
type CheckpointWorker struct {
	saver      CheckpointSaver
	rdb        CheckpointQueue
	queue      string
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewCheckpointWorker creates a new CheckpointWorker.
func NewCheckpointWorker(saver CheckpointSaver, rdb CheckpointQueue, log zerolog.Logger) *CheckpointWorker {
	return &CheckpointWorker{
		saver:      saver,
		rdb:        rdb,
		queue:      config.WorkerKey.PersistCheckpointsQueue,
		retryDelay: 5 * time.Second,
		log:        log.With().Str("component", "checkpoint_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *CheckpointWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *CheckpointWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the timeout passes.
	result, err := w.rdb.BLPop(ctx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying")
		if err := w.rdb.LPush(context.Background(), w.queue, result[1]).Err(); err != nil {
			w.log.Error().Err(err).Msg("Requeue failed, checkpoint lost")
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// handle applies one queued checkpoint. Unreadable payloads are dropped.
func (w *CheckpointWorker) handle(ctx context.Context, raw string) error {
	var session model.TestResult
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		w.log.Error().Err(err).Msg("Dropping unreadable checkpoint")
		return nil
	}

	applied, err := w.saver.SaveCheckpoint(ctx, &session)
	if err != nil {
		return err
	}
	w.log.Debug().
		Str("session_uid", session.UID.String()).
		Int("current_index", session.CurrentIndex).
		Bool("applied", applied).
		Msg("Checkpoint processed")
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *CheckpointWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		if err := w.handle(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.LPush(ctx, w.queue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
