package handler

import (
	"net/http"

	"github.com/forgo/nemesis/api/internal/middleware"
)

// RouterConfig holds everything the route table needs
type RouterConfig struct {
	Validator        middleware.TokenValidator
	AdminKeyHash     string
	FindEnemyLimiter *middleware.RateLimiter // nil disables the limit

	Health        *HealthHandler
	Questionnaire *QuestionnaireHandler
	Match         *MatchHandler
	Admin         *AdminHandler // nil when the scheduler is not wired
	Metrics       http.Handler  // nil hides /metrics
}

// NewRouter registers every route on a fresh mux
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	user := func(h http.HandlerFunc) http.Handler {
		return middleware.Auth(cfg.Validator)(h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.FindEnemyLimiter == nil {
			return user(h)
		}
		return middleware.Chain(h, middleware.Auth(cfg.Validator), middleware.RateLimit(cfg.FindEnemyLimiter))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.AdminAuth(cfg.Validator, cfg.AdminKeyHash)(h)
	}

	// Public
	if cfg.Health != nil {
		mux.HandleFunc("GET /health", cfg.Health.Health)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	// Questionnaire
	mux.Handle("GET /v1/questions", user(cfg.Questionnaire.ListQuestions))
	mux.Handle("GET /v1/questions/{id}", user(cfg.Questionnaire.GetQuestion))
	mux.Handle("POST /v1/answers", user(cfg.Questionnaire.SubmitAnswer))
	mux.Handle("POST /v1/answers/survey", user(cfg.Questionnaire.SubmitSurvey))
	mux.Handle("GET /v1/answers/user", user(cfg.Questionnaire.GetUserAnswers))

	// Matches
	mux.Handle("POST /v1/matches/user/find-enemy", limited(cfg.Match.FindEnemy))
	mux.Handle("POST /v1/matches/user/{id}/find-enemy", limited(cfg.Match.FindEnemy))
	mux.Handle("GET /v1/matches/user", user(cfg.Match.ListMatches))
	mux.Handle("GET /v1/matches/user/latest", user(cfg.Match.LatestMatch))
	mux.Handle("GET /v1/matches/user/{id}", user(cfg.Match.ListMatches))

	// Admin
	if cfg.Admin != nil {
		mux.Handle("POST /v1/admin/cycles/run", admin(cfg.Admin.RunCycle))
		mux.Handle("GET /v1/admin/cycles", admin(cfg.Admin.ListCycles))
		mux.Handle("GET /v1/admin/cycles/{id}", admin(cfg.Admin.GetCycle))
		mux.Handle("GET /v1/admin/scheduler", admin(cfg.Admin.SchedulerStatus))
	}

	return mux
}
