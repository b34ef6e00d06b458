package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/modexam-backend/internal/model"
)

// AssignmentRepository handles per-student attempt counts.
type AssignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(db DBTX) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *AssignmentRepository) WithTx(tx pgx.Tx) *AssignmentRepository {
	return &AssignmentRepository{db: tx}
}

// Upsert sets the remaining attempt count of a student for a test.
func (r *AssignmentRepository) Upsert(ctx context.Context, a *model.Assignment) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO student_exam_assignments (user_id, test_uid, count)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, test_uid) DO UPDATE SET count = EXCLUDED.count, updated_at = NOW()
		 RETURNING updated_at`,
		a.UserID, a.TestUID, a.Count,
	).Scan(&a.UpdatedAt)
}

// GetForUpdate locks and returns an assignment row. Must run inside a
// transaction.
func (r *AssignmentRepository) GetForUpdate(ctx context.Context, userID string, testUID uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := r.db.QueryRow(ctx,
		`SELECT user_id, test_uid, count, updated_at
		 FROM student_exam_assignments
		 WHERE user_id = $1 AND test_uid = $2
		 FOR UPDATE`, userID, testUID,
	).Scan(&a.UserID, &a.TestUID, &a.Count, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Decrement consumes one attempt. It never drops below zero.
func (r *AssignmentRepository) Decrement(ctx context.Context, userID string, testUID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE student_exam_assignments
		 SET count = count - 1, updated_at = NOW()
		 WHERE user_id = $1 AND test_uid = $2 AND count > 0`,
		userID, testUID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByUser retrieves a student's assignments joined with their tests.
func (r *AssignmentRepository) ListByUser(ctx context.Context, userID string) ([]model.AssignedTest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT a.user_id, a.test_uid, a.count, a.updated_at, t.title, t.description, t.level, t.steps
		 FROM student_exam_assignments a
		 JOIN tests t ON t.uid = a.test_uid
		 WHERE a.user_id = $1
		 ORDER BY t.title`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AssignedTest{}
	for rows.Next() {
		var at model.AssignedTest
		if err := rows.Scan(&at.UserID, &at.TestUID, &at.Count, &at.UpdatedAt,
			&at.Title, &at.Description, &at.Level, &at.Order); err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}
