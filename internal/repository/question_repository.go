package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/model"
)

const questionColumns = `uid, manage_title, section, type, level, paragraph, prompt, choices, answer, explanation, created_at, updated_at`

// QuestionFilter narrows question listings. Zero values match everything.
type QuestionFilter struct {
	Section string
	Level   int
	Search  string
}

// QuestionRepository handles question data access.
type QuestionRepository struct {
	db DBTX
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	choices, err := json.Marshal(nonNil(q.Choices))
	if err != nil {
		return fmt.Errorf("encode choices: %w", err)
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO questions (manage_title, section, type, level, paragraph, prompt, choices, answer, explanation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING uid, created_at, updated_at`,
		q.ManageTitle, q.Section, q.Type, q.Level, q.Paragraph, q.Prompt, choices, q.Answer, q.Explanation,
	).Scan(&q.UID, &q.CreatedAt, &q.UpdatedAt)
}

// GetByUID retrieves a single question.
func (r *QuestionRepository) GetByUID(ctx context.Context, uid uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.db.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE uid = $1`, uid,
	).Scan(questionDest(q)...)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// CountExisting returns how many of uids exist.
func (r *QuestionRepository) CountExisting(ctx context.Context, uids []uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT uid) FROM questions WHERE uid = ANY($1)`, uids,
	).Scan(&n)
	return n, err
}

// List retrieves questions matching the filter, newest first.
func (r *QuestionRepository) List(ctx context.Context, f QuestionFilter, page, perPage int) ([]model.Question, int, error) {
	where := ` FROM questions WHERE 1=1`
	args := []any{}
	if f.Section != "" {
		args = append(args, f.Section)
		where += fmt.Sprintf(" AND section = $%d", len(args))
	}
	if f.Level > 0 {
		args = append(args, f.Level)
		where += fmt.Sprintf(" AND level = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (manage_title ILIKE $%d OR prompt ILIKE $%d)", len(args), len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, pageOffset(page, perPage))
	rows, err := r.db.Query(ctx,
		`SELECT `+questionColumns+where+
			fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(questionDest(&q)...); err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

func questionDest(q *model.Question) []any {
	return []any{
		&q.UID, &q.ManageTitle, &q.Section, &q.Type, &q.Level, &q.Paragraph,
		&q.Prompt, &q.Choices, &q.Answer, &q.Explanation, &q.CreatedAt, &q.UpdatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
