package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/forgo/nemesis/api/internal/jobs"
	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/internal/testing/helpers"
)

// ============================================================================
// Mock MatchService
// ============================================================================

type mockMatchService struct {
	findEnemyFunc      func(ctx context.Context, userID string) (*model.MatchView, error)
	getMatchesFunc     func(ctx context.Context, userID string, limit int) ([]*model.MatchView, error)
	getLatestMatchFunc func(ctx context.Context, userID string) (*model.MatchView, error)
}

func (m *mockMatchService) FindEnemy(ctx context.Context, userID string) (*model.MatchView, error) {
	if m.findEnemyFunc != nil {
		return m.findEnemyFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockMatchService) GetMatches(ctx context.Context, userID string, limit int) ([]*model.MatchView, error) {
	if m.getMatchesFunc != nil {
		return m.getMatchesFunc(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockMatchService) GetLatestMatch(ctx context.Context, userID string) (*model.MatchView, error) {
	if m.getLatestMatchFunc != nil {
		return m.getLatestMatchFunc(ctx, userID)
	}
	return nil, nil
}

// ============================================================================
// Mock QuestionnaireService
// ============================================================================

type mockQuestionnaireService struct {
	listQuestionsFunc  func(ctx context.Context, includeInactive bool) ([]*model.Question, error)
	getQuestionFunc    func(ctx context.Context, id string) (*model.Question, error)
	getUserAnswersFunc func(ctx context.Context, userID string) ([]*model.Answer, error)
	submitAnswerFunc   func(ctx context.Context, userID string, req *model.AnswerRequest) (*model.Answer, error)
	submitSurveyFunc   func(ctx context.Context, userID string, req *model.SurveyRequest) ([]*model.Answer, error)
}

func (m *mockQuestionnaireService) ListQuestions(ctx context.Context, includeInactive bool) ([]*model.Question, error) {
	if m.listQuestionsFunc != nil {
		return m.listQuestionsFunc(ctx, includeInactive)
	}
	return nil, nil
}

func (m *mockQuestionnaireService) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	if m.getQuestionFunc != nil {
		return m.getQuestionFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockQuestionnaireService) GetUserAnswers(ctx context.Context, userID string) ([]*model.Answer, error) {
	if m.getUserAnswersFunc != nil {
		return m.getUserAnswersFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockQuestionnaireService) SubmitAnswer(ctx context.Context, userID string, req *model.AnswerRequest) (*model.Answer, error) {
	if m.submitAnswerFunc != nil {
		return m.submitAnswerFunc(ctx, userID, req)
	}
	return nil, nil
}

func (m *mockQuestionnaireService) SubmitSurvey(ctx context.Context, userID string, req *model.SurveyRequest) ([]*model.Answer, error) {
	if m.submitSurveyFunc != nil {
		return m.submitSurveyFunc(ctx, userID, req)
	}
	return nil, nil
}

// ============================================================================
// Mock cycle administration
// ============================================================================

type mockCycleAdmin struct {
	triggerFunc      func(ctx context.Context, trigger string) (*model.CycleResult, error)
	recentCyclesFunc func(ctx context.Context, limit int) ([]*model.Cycle, error)
	getCycleFunc     func(ctx context.Context, cycleID string) (*model.Cycle, error)
	status           jobs.SchedulerStatus
}

func (m *mockCycleAdmin) Trigger(ctx context.Context, trigger string) (*model.CycleResult, error) {
	if m.triggerFunc != nil {
		return m.triggerFunc(ctx, trigger)
	}
	return nil, nil
}

func (m *mockCycleAdmin) Status() jobs.SchedulerStatus {
	return m.status
}

func (m *mockCycleAdmin) RecentCycles(ctx context.Context, limit int) ([]*model.Cycle, error) {
	if m.recentCyclesFunc != nil {
		return m.recentCyclesFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockCycleAdmin) GetCycle(ctx context.Context, cycleID string) (*model.Cycle, error) {
	if m.getCycleFunc != nil {
		return m.getCycleFunc(ctx, cycleID)
	}
	return nil, nil
}

// ============================================================================
// Test fixture
// ============================================================================

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	mux           http.Handler
	jwt           *helpers.JWTHelper
	matches       *mockMatchService
	questionnaire *mockQuestionnaireService
	admin         *mockCycleAdmin
	alice         *model.User
	bob           *model.User
	root          *model.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		jwt:           helpers.NewJWTHelper(t),
		matches:       &mockMatchService{},
		questionnaire: &mockQuestionnaireService{},
		admin:         &mockCycleAdmin{},
		alice:         &model.User{ID: "alice", Email: "alice@example.com", Username: "alice", Role: model.UserRoleUser},
		bob:           &model.User{ID: "bob", Email: "bob@example.com", Username: "bob", Role: model.UserRoleUser},
		root:          &model.User{ID: "root", Email: "root@example.com", Username: "root", Role: model.UserRoleAdmin},
	}
	ts.mux = NewRouter(RouterConfig{
		Validator:     ts.jwt.Service,
		Health:        NewHealthHandler(map[string]Pinger{"database": pingFunc(func(context.Context) error { return nil })}),
		Questionnaire: NewQuestionnaireHandler(ts.questionnaire),
		Match:         NewMatchHandler(ts.matches),
		Admin:         NewAdminHandler(ts.admin, ts.admin),
	})
	return ts
}

func testView(userID, enemyID string, score int) *model.MatchView {
	return &model.MatchView{
		MatchRecord: model.MatchRecord{
			ID:        "m-" + enemyID,
			UserID:    userID,
			EnemyID:   enemyID,
			Score:     score,
			Overlap:   4,
			CycleID:   model.AdHocCycleID,
			MatchedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		EnemyUsername: enemyID,
		EnemyEmail:    enemyID + "@example.com",
	}
}
