package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/modexam-backend/internal/model"
)

// ErrUnknownQuestion is returned when a module references a missing question.
var ErrUnknownQuestion = errors.New("module references an unknown question")

// ModuleSummary is a module row without its questions.
type ModuleSummary struct {
	UID           uuid.UUID `json:"uid"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Section       string    `json:"section"`
	Level         int       `json:"level"`
	QuestionCount int       `json:"questionCount"`
}

// ModuleRepository handles module data access.
type ModuleRepository struct {
	db DBTX
}

// NewModuleRepository creates a new ModuleRepository.
func NewModuleRepository(db DBTX) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ModuleRepository) WithTx(tx pgx.Tx) *ModuleRepository {
	return &ModuleRepository{db: tx}
}

// Create inserts the module row and its ordered question links. Run it inside
// a transaction so a bad question reference leaves nothing behind.
func (r *ModuleRepository) Create(ctx context.Context, m *model.Module, questionUIDs []uuid.UUID) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO modules (title, description, section, level)
		 VALUES ($1, $2, $3, $4)
		 RETURNING uid, created_at, updated_at`,
		m.Title, m.Description, m.Section, m.Level,
	).Scan(&m.UID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return err
	}

	for pos, qid := range questionUIDs {
		_, err := r.db.Exec(ctx,
			`INSERT INTO module_questions (module_uid, question_uid, position) VALUES ($1, $2, $3)`,
			m.UID, qid, pos,
		)
		if err != nil {
			if isPgError(err, pgForeignKeyViolation) {
				return ErrUnknownQuestion
			}
			return err
		}
	}
	return nil
}

// GetWithQuestions retrieves a module and its questions in position order.
func (r *ModuleRepository) GetWithQuestions(ctx context.Context, uid uuid.UUID) (*model.Module, error) {
	m := &model.Module{}
	err := r.db.QueryRow(ctx,
		`SELECT uid, title, description, section, level, created_at, updated_at
		 FROM modules WHERE uid = $1`, uid,
	).Scan(&m.UID, &m.Title, &m.Description, &m.Section, &m.Level, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT q.uid, q.manage_title, q.section, q.type, q.level, q.paragraph, q.prompt,
		        q.choices, q.answer, q.explanation, q.created_at, q.updated_at
		 FROM module_questions mq
		 JOIN questions q ON q.uid = mq.question_uid
		 WHERE mq.module_uid = $1
		 ORDER BY mq.position`, uid,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m.Questions = []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(questionDest(&q)...); err != nil {
			return nil, err
		}
		m.Questions = append(m.Questions, q)
	}
	return m, rows.Err()
}

// List retrieves module summaries, optionally filtered by section.
func (r *ModuleRepository) List(ctx context.Context, section string, page, perPage int) ([]ModuleSummary, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM modules WHERE ($1 = '' OR section = $1)`, section,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT m.uid, m.title, m.description, m.section, m.level,
		        (SELECT COUNT(*) FROM module_questions mq WHERE mq.module_uid = m.uid)
		 FROM modules m
		 WHERE ($1 = '' OR m.section = $1)
		 ORDER BY m.created_at DESC
		 LIMIT $2 OFFSET $3`, section, perPage, pageOffset(page, perPage),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	modules := []ModuleSummary{}
	for rows.Next() {
		var s ModuleSummary
		if err := rows.Scan(&s.UID, &s.Title, &s.Description, &s.Section, &s.Level, &s.QuestionCount); err != nil {
			return nil, 0, err
		}
		modules = append(modules, s)
	}
	return modules, total, rows.Err()
}

// CountExisting returns how many of uids exist.
func (r *ModuleRepository) CountExisting(ctx context.Context, uids []uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT uid) FROM modules WHERE uid = ANY($1)`, uids,
	).Scan(&n)
	return n, err
}
