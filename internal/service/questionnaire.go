package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgo/nemesis/api/internal/model"
)

// QuestionRepository defines the interface for question storage
type QuestionRepository interface {
	List(ctx context.Context, includeInactive bool) ([]*model.Question, error)
	GetByID(ctx context.Context, id string) (*model.Question, error)
	GetMany(ctx context.Context, ids []string) (map[string]*model.Question, error)
	Count(ctx context.Context) (int, error)
	CreateMany(ctx context.Context, texts []string) ([]*model.Question, error)
}

// AnswerStore is the write side of survey answers
type AnswerStore interface {
	ListByUser(ctx context.Context, userID string) ([]*model.Answer, error)
	// Upsert writes all answers in one transaction, overwriting earlier
	// values for the same (user, question).
	Upsert(ctx context.Context, userID string, answers []model.AnswerRequest) ([]*model.Answer, error)
}

// QuestionnaireService handles questions and survey answers
type QuestionnaireService struct {
	questions QuestionRepository
	answers   AnswerStore
}

// QuestionnaireServiceConfig holds configuration for the questionnaire service
type QuestionnaireServiceConfig struct {
	QuestionRepo QuestionRepository
	AnswerStore  AnswerStore
}

// NewQuestionnaireService creates a new questionnaire service
func NewQuestionnaireService(cfg QuestionnaireServiceConfig) *QuestionnaireService {
	return &QuestionnaireService{
		questions: cfg.QuestionRepo,
		answers:   cfg.AnswerStore,
	}
}

// ListQuestions retrieves questions, active only unless includeInactive
func (s *QuestionnaireService) ListQuestions(ctx context.Context, includeInactive bool) ([]*model.Question, error) {
	return s.questions.List(ctx, includeInactive)
}

// GetQuestion retrieves a question by ID
func (s *QuestionnaireService) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, ErrQuestionNotFound
	}
	return question, nil
}

// GetUserAnswers retrieves all answers for a user
func (s *QuestionnaireService) GetUserAnswers(ctx context.Context, userID string) ([]*model.Answer, error) {
	return s.answers.ListByUser(ctx, userID)
}

// SubmitAnswer records or overwrites a single answer
func (s *QuestionnaireService) SubmitAnswer(ctx context.Context, userID string, req *model.AnswerRequest) (*model.Answer, error) {
	answers, err := s.SubmitSurvey(ctx, userID, &model.SurveyRequest{Answers: []model.AnswerRequest{*req}})
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("answer was not stored")
	}
	return answers[0], nil
}

// SubmitSurvey records several answers at once. Every value and question is
// checked before anything is written; the write itself is atomic.
func (s *QuestionnaireService) SubmitSurvey(ctx context.Context, userID string, req *model.SurveyRequest) ([]*model.Answer, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidSurvey, errs[0].Field, errs[0].Message)
	}

	ids := make([]string, len(req.Answers))
	for i, a := range req.Answers {
		ids[i] = a.QuestionID
	}
	questions, err := s.questions.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		q, ok := questions[id]
		if !ok || q == nil {
			return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
		}
		if !q.Active {
			return nil, fmt.Errorf("%w: %s", ErrQuestionInactive, id)
		}
	}

	return s.answers.Upsert(ctx, userID, req.Answers)
}

// SeedQuestions inserts the given questions when the catalog is empty.
// It returns how many were created.
func (s *QuestionnaireService) SeedQuestions(ctx context.Context, texts []string) (int, error) {
	count, err := s.questions.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	cleaned := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return 0, nil
	}

	created, err := s.questions.CreateMany(ctx, cleaned)
	if err != nil {
		return 0, err
	}
	return len(created), nil
}

// DefaultSeedQuestions is the starter catalog
var DefaultSeedQuestions = []string{
	"Pineapple belongs on pizza",
	"The Oxford comma is unnecessary",
	"Hot dogs are sandwiches",
	"Cereal is a soup",
	"Ketchup belongs on hot dogs",
	"The toilet paper should hang over, not under",
	"Cilantro tastes like soap",
	"Breakfast foods can be eaten at any time of day",
	"The best way to eat a Kit Kat is to break it apart",
	"Pineapple on pizza is a crime against food",
}
