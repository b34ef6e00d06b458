package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/model"
)

// MonitorRepository provides data access for the live test monitor.
// It combines PostgreSQL (session progress) and Redis (engine leases).
type MonitorRepository struct {
	db  DBTX
	rdb *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(db DBTX, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{db: db, rdb: rdb}
}

// ListSessionProgress returns every session of a test with its answered
// question count, newest first. Break results carry a null answers list.
func (r *MonitorRepository) ListSessionProgress(ctx context.Context, testUID uuid.UUID) ([]model.SessionProgress, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.uid, r.user_id, r.current_index, r.start_at, r.end_at,
		        (SELECT COUNT(*)
		         FROM jsonb_array_elements(r.module_results) mr,
		              jsonb_array_elements(CASE WHEN jsonb_typeof(mr->'answers') = 'array'
		                                        THEN mr->'answers' ELSE '[]'::jsonb END) a
		         WHERE COALESCE(a->>'studentAnswer', '') <> '') AS answered
		 FROM test_results r
		 WHERE r.exam_uid = $1
		 ORDER BY r.start_at DESC`,
		testUID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SessionProgress{}
	for rows.Next() {
		var p model.SessionProgress
		if err := rows.Scan(&p.SessionUID, &p.UserID, &p.CurrentIndex, &p.StartAt, &p.EndAt, &p.Answered); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AttachedSessions reports which sessions currently hold an engine lease,
// i.e. have a live WebSocket stream somewhere in the cluster.
func (r *MonitorRepository) AttachedSessions(ctx context.Context, sessionUIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	attached := make(map[uuid.UUID]bool, len(sessionUIDs))
	if len(sessionUIDs) == 0 {
		return attached, nil
	}

	cmds := make([]*redis.IntCmd, len(sessionUIDs))
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, uid := range sessionUIDs {
			cmds[i] = pipe.Exists(ctx, config.CacheKey.EngineLeaseKey(uid.String()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, cmd := range cmds {
		attached[sessionUIDs[i]] = cmd.Val() > 0
	}
	return attached, nil
}
