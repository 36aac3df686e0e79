package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/nemesis/api/internal/model"
)

type mockQuestionRepo struct {
	questions map[string]*model.Question
	created   []string
}

func (m *mockQuestionRepo) List(_ context.Context, includeInactive bool) ([]*model.Question, error) {
	var out []*model.Question
	for _, q := range m.questions {
		if q.Active || includeInactive {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockQuestionRepo) GetByID(_ context.Context, id string) (*model.Question, error) {
	return m.questions[id], nil
}

func (m *mockQuestionRepo) GetMany(_ context.Context, ids []string) (map[string]*model.Question, error) {
	out := make(map[string]*model.Question)
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (m *mockQuestionRepo) Count(context.Context) (int, error) {
	return len(m.questions), nil
}

func (m *mockQuestionRepo) CreateMany(_ context.Context, texts []string) ([]*model.Question, error) {
	m.created = append(m.created, texts...)
	out := make([]*model.Question, len(texts))
	for i, text := range texts {
		out[i] = &model.Question{ID: fmt.Sprintf("question:%d", i+1), Text: text, Active: true, SortOrder: i + 1}
	}
	return out, nil
}

type mockAnswerStore struct {
	upserts [][]model.AnswerRequest
}

func (m *mockAnswerStore) ListByUser(context.Context, string) ([]*model.Answer, error) {
	return nil, nil
}

func (m *mockAnswerStore) Upsert(_ context.Context, userID string, answers []model.AnswerRequest) ([]*model.Answer, error) {
	m.upserts = append(m.upserts, answers)
	out := make([]*model.Answer, len(answers))
	for i, a := range answers {
		out[i] = &model.Answer{UserID: userID, QuestionID: a.QuestionID, Value: a.Value}
	}
	return out, nil
}

func newQuestionnaireFixture() (*QuestionnaireService, *mockQuestionRepo, *mockAnswerStore) {
	questions := &mockQuestionRepo{questions: map[string]*model.Question{
		"question:1": {ID: "question:1", Text: "Hot dogs are sandwiches", Active: true},
		"question:2": {ID: "question:2", Text: "Cereal is a soup", Active: true},
		"question:3": {ID: "question:3", Text: "Retired", Active: false},
	}}
	answers := &mockAnswerStore{}
	svc := NewQuestionnaireService(QuestionnaireServiceConfig{QuestionRepo: questions, AnswerStore: answers})
	return svc, questions, answers
}

func TestSubmitSurvey_StoresAllAnswers(t *testing.T) {
	t.Parallel()

	svc, _, store := newQuestionnaireFixture()

	stored, err := svc.SubmitSurvey(context.Background(), "user:a", &model.SurveyRequest{
		Answers: []model.AnswerRequest{
			{QuestionID: "question:1", Value: 1},
			{QuestionID: "question:2", Value: 10},
		},
	})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	require.Len(t, store.upserts, 1)
}

func TestSubmitSurvey_RejectsWholeBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		answers []model.AnswerRequest
		wantErr error
	}{
		{"value out of range", []model.AnswerRequest{{QuestionID: "question:1", Value: 5}, {QuestionID: "question:2", Value: 11}}, ErrInvalidSurvey},
		{"empty", nil, ErrInvalidSurvey},
		{"unknown question", []model.AnswerRequest{{QuestionID: "question:1", Value: 5}, {QuestionID: "question:9", Value: 5}}, ErrQuestionNotFound},
		{"inactive question", []model.AnswerRequest{{QuestionID: "question:3", Value: 5}}, ErrQuestionInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, store := newQuestionnaireFixture()
			_, err := svc.SubmitSurvey(context.Background(), "user:a", &model.SurveyRequest{Answers: tt.answers})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.upserts)
		})
	}
}

func TestSubmitAnswer(t *testing.T) {
	t.Parallel()

	svc, _, _ := newQuestionnaireFixture()

	answer, err := svc.SubmitAnswer(context.Background(), "user:a", &model.AnswerRequest{QuestionID: "question:2", Value: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, answer.Value)
	assert.Equal(t, "user:a", answer.UserID)

	_, err = svc.SubmitAnswer(context.Background(), "user:a", &model.AnswerRequest{QuestionID: "question:2", Value: 0})
	assert.ErrorIs(t, err, ErrInvalidSurvey)
}

func TestGetQuestion_NotFound(t *testing.T) {
	t.Parallel()

	svc, _, _ := newQuestionnaireFixture()

	_, err := svc.GetQuestion(context.Background(), "question:404")
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestListQuestions_ActiveOnly(t *testing.T) {
	t.Parallel()

	svc, _, _ := newQuestionnaireFixture()

	active, err := svc.ListQuestions(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := svc.ListQuestions(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSeedQuestions(t *testing.T) {
	t.Parallel()

	empty := &mockQuestionRepo{questions: map[string]*model.Question{}}
	svc := NewQuestionnaireService(QuestionnaireServiceConfig{QuestionRepo: empty, AnswerStore: &mockAnswerStore{}})

	n, err := svc.SeedQuestions(context.Background(), []string{" First ", "", "Second"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"First", "Second"}, empty.created)

	seeded, questions, _ := newQuestionnaireFixture()
	n, err = seeded.SeedQuestions(context.Background(), DefaultSeedQuestions)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, questions.created)
}
