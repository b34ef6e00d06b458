package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/repository"
)

// QuestionService handles the authoring of questions and modules.
type QuestionService struct {
	pool         *pgxpool.Pool
	questionRepo *repository.QuestionRepository
	moduleRepo   *repository.ModuleRepository
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(
	pool *pgxpool.Pool,
	questionRepo *repository.QuestionRepository,
	moduleRepo *repository.ModuleRepository,
	log zerolog.Logger,
) *QuestionService {
	return &QuestionService{
		pool:         pool,
		questionRepo: questionRepo,
		moduleRepo:   moduleRepo,
		log:          log.With().Str("component", "question_service").Logger(),
	}
}

// CreateQuestion validates and stores a question.
func (s *QuestionService) CreateQuestion(ctx context.Context, req model.CreateQuestionRequest) (*model.Question, error) {
	if fields := validateQuestion(req); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	q := &model.Question{
		ManageTitle: req.ManageTitle,
		Section:     req.Section,
		Type:        model.QuestionType(req.Type),
		Level:       req.Level,
		Paragraph:   req.Paragraph,
		Prompt:      req.Prompt,
		Choices:     req.Choices,
		Answer:      req.Answer,
		Explanation: req.Explanation,
	}
	if q.Type == model.QuestionTypeFreeResponse {
		q.Choices = nil
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// validateQuestion checks the rules binding tags cannot express: choice
// questions need distinct labels and an answer naming one of them.
func validateQuestion(req model.CreateQuestionRequest) map[string]string {
	if model.QuestionType(req.Type) != model.QuestionTypeMultipleChoice {
		return nil
	}
	fields := make(map[string]string)
	if len(req.Choices) < 2 {
		fields["choices"] = "choices must contain at least 2 items"
	}
	seqs := make([]string, 0, len(req.Choices))
	for _, c := range req.Choices {
		if slices.Contains(seqs, c.Seq) {
			fields["choices"] = fmt.Sprintf("duplicate choice %q", c.Seq)
		}
		seqs = append(seqs, c.Seq)
	}
	if !slices.Contains(seqs, req.Answer) {
		fields["answer"] = "answer must be one of the choice labels"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// GetQuestion retrieves a question.
func (s *QuestionService) GetQuestion(ctx context.Context, uid uuid.UUID) (*model.Question, error) {
	q, err := s.questionRepo.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// ListQuestions retrieves a filtered page of questions.
func (s *QuestionService) ListQuestions(ctx context.Context, f repository.QuestionFilter, page, perPage int) ([]model.Question, int, error) {
	return s.questionRepo.List(ctx, f, page, perPage)
}

// CreateModule groups existing questions, in the given order, into a module.
func (s *QuestionService) CreateModule(ctx context.Context, req model.CreateModuleRequest) (*model.Module, error) {
	m := &model.Module{
		Title:       req.Title,
		Description: req.Description,
		Section:     req.Section,
		Level:       req.Level,
	}

	err := repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.moduleRepo.WithTx(tx).Create(ctx, m, req.Questions)
	})
	if err != nil {
		if errors.Is(err, repository.ErrUnknownQuestion) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("create module: %w", err)
	}

	s.log.Info().Str("module_id", m.UID.String()).Int("questions", len(req.Questions)).Msg("Module created")
	return s.GetModule(ctx, m.UID)
}

// GetModule retrieves a module with its questions, answer keys included.
func (s *QuestionService) GetModule(ctx context.Context, uid uuid.UUID) (*model.Module, error) {
	m, err := s.moduleRepo.GetWithQuestions(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("get module: %w", err)
	}
	return m, nil
}

// ListModules retrieves a page of module summaries.
func (s *QuestionService) ListModules(ctx context.Context, section string, page, perPage int) ([]repository.ModuleSummary, int, error) {
	return s.moduleRepo.List(ctx, section, page, perPage)
}
