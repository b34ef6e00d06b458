package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/model"
)

// ErrTestInUse is returned when deleting a test that already has sessions.
var ErrTestInUse = errors.New("test has sessions")

const testColumns = `uid, title, description, level, steps, exam_modules, created_at, updated_at`

// TestRepository handles test composition data access.
type TestRepository struct {
	db DBTX
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(db DBTX) *TestRepository {
	return &TestRepository{db: db}
}

// Create inserts a new test. Order and ExamModules must already be normalized.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	steps, modules, err := encodeComposition(t)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO tests (title, description, level, steps, exam_modules)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING uid, created_at, updated_at`,
		t.Title, t.Description, t.Level, steps, modules,
	).Scan(&t.UID, &t.CreatedAt, &t.UpdatedAt)
}

// Update replaces a test's metadata and composition.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	steps, modules, err := encodeComposition(t)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx,
		`UPDATE tests
		 SET title = $1, description = $2, level = $3, steps = $4, exam_modules = $5, updated_at = NOW()
		 WHERE uid = $6
		 RETURNING created_at, updated_at`,
		t.Title, t.Description, t.Level, steps, modules, t.UID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// GetByUID retrieves a single test.
func (r *TestRepository) GetByUID(ctx context.Context, uid uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.db.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE uid = $1`, uid,
	).Scan(testDest(t)...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List retrieves tests, newest first.
func (r *TestRepository) List(ctx context.Context, page, perPage int) ([]model.Test, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tests`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+testColumns+` FROM tests ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		perPage, pageOffset(page, perPage),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(testDest(&t)...); err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}

// Delete removes a test. Returns ErrTestInUse when sessions reference it and
// pgx.ErrNoRows when it does not exist.
func (r *TestRepository) Delete(ctx context.Context, uid uuid.UUID) error {
	var deleted uuid.UUID
	err := r.db.QueryRow(ctx, `DELETE FROM tests WHERE uid = $1 RETURNING uid`, uid).Scan(&deleted)
	if err != nil && isPgError(err, pgForeignKeyViolation) {
		return ErrTestInUse
	}
	return err
}

func testDest(t *model.Test) []any {
	return []any{&t.UID, &t.Title, &t.Description, &t.Level, &t.Order, &t.ExamModules, &t.CreatedAt, &t.UpdatedAt}
}

func encodeComposition(t *model.Test) ([]byte, []byte, error) {
	steps, err := json.Marshal(nonNil(t.Order))
	if err != nil {
		return nil, nil, fmt.Errorf("encode steps: %w", err)
	}
	modules, err := json.Marshal(nonNil(t.ExamModules))
	if err != nil {
		return nil, nil, fmt.Errorf("encode exam modules: %w", err)
	}
	return steps, modules, nil
}
