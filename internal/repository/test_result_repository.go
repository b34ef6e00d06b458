package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/modexam-backend/internal/model"
)

const resultColumns = `uid, user_id, exam_uid, current_index, module_results, start_at, end_at, checkpoint_seq`

// SessionWithTest is a session joined with the test it belongs to.
type SessionWithTest struct {
	Session model.TestResult
	Test    model.Test
}

// TestResultRepository handles exam session records.
type TestResultRepository struct {
	db DBTX
}

// NewTestResultRepository creates a new TestResultRepository.
func NewTestResultRepository(db DBTX) *TestResultRepository {
	return &TestResultRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *TestResultRepository) WithTx(tx pgx.Tx) *TestResultRepository {
	return &TestResultRepository{db: tx}
}

// Create inserts a new session. When an unfinished session for the same
// student and test already exists the insert is skipped and pgx.ErrNoRows is
// returned.
func (r *TestResultRepository) Create(ctx context.Context, s *model.TestResult) error {
	results, err := json.Marshal(nonNil(s.ModuleResults))
	if err != nil {
		return fmt.Errorf("encode module results: %w", err)
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO test_results (user_id, exam_uid, current_index, module_results)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, exam_uid) WHERE end_at IS NULL DO NOTHING
		 RETURNING uid, start_at`,
		s.UserID, s.ExamUID, s.CurrentIndex, results,
	).Scan(&s.UID, &s.StartAt)
}

// FindOpen returns the most recent unfinished session of a student for a test.
func (r *TestResultRepository) FindOpen(ctx context.Context, userID string, examUID uuid.UUID) (*model.TestResult, error) {
	s := &model.TestResult{}
	err := r.db.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM test_results
		 WHERE user_id = $1 AND exam_uid = $2 AND end_at IS NULL
		 ORDER BY start_at DESC
		 LIMIT 1`, userID, examUID,
	).Scan(resultDest(s)...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByUID retrieves a single session.
func (r *TestResultRepository) GetByUID(ctx context.Context, uid uuid.UUID) (*model.TestResult, error) {
	s := &model.TestResult{}
	err := r.db.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM test_results WHERE uid = $1`, uid,
	).Scan(resultDest(s)...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the full session state. Finished sessions are never rewritten
// and currentIndex never moves backwards; it returns false when the row was
// left untouched for either reason.
func (r *TestResultRepository) Save(ctx context.Context, s *model.TestResult) (bool, error) {
	results, err := json.Marshal(nonNil(s.ModuleResults))
	if err != nil {
		return false, fmt.Errorf("encode module results: %w", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE test_results
		 SET current_index = $1, module_results = $2, end_at = $3,
		     checkpoint_seq = GREATEST(checkpoint_seq, $5), updated_at = NOW()
		 WHERE uid = $4 AND end_at IS NULL AND current_index <= $1`,
		s.CurrentIndex, results, s.EndAt, s.UID, s.CheckpointSeq,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SaveCheckpoint writes intermediate progress of the current step. It only
// applies while the stored session is still unfinished, on the same step and
// behind the checkpoint's sequence, so a late or retried checkpoint can never
// undo an advance or a newer checkpoint.
func (r *TestResultRepository) SaveCheckpoint(ctx context.Context, s *model.TestResult) (bool, error) {
	results, err := json.Marshal(nonNil(s.ModuleResults))
	if err != nil {
		return false, fmt.Errorf("encode module results: %w", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE test_results
		 SET module_results = $1, checkpoint_seq = $4, updated_at = NOW()
		 WHERE uid = $2 AND current_index = $3 AND end_at IS NULL AND checkpoint_seq < $4`,
		results, s.UID, s.CurrentIndex, s.CheckpointSeq,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser retrieves every session of a student joined with its test,
// newest first.
func (r *TestResultRepository) ListByUser(ctx context.Context, userID string) ([]SessionWithTest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.uid, r.user_id, r.exam_uid, r.current_index, r.module_results, r.start_at, r.end_at, r.checkpoint_seq,
		        t.uid, t.title, t.description, t.level, t.steps, t.exam_modules, t.created_at, t.updated_at
		 FROM test_results r
		 JOIN tests t ON t.uid = r.exam_uid
		 WHERE r.user_id = $1
		 ORDER BY r.start_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SessionWithTest{}
	for rows.Next() {
		var row SessionWithTest
		dest := append(resultDest(&row.Session), testDest(&row.Test)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func resultDest(s *model.TestResult) []any {
	return []any{&s.UID, &s.UserID, &s.ExamUID, &s.CurrentIndex, &s.ModuleResults, &s.StartAt, &s.EndAt, &s.CheckpointSeq}
}
