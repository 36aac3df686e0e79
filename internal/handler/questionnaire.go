package handler

import (
	"context"
	"net/http"

	"github.com/forgo/nemesis/api/internal/middleware"
	"github.com/forgo/nemesis/api/internal/model"
)

// QuestionnaireService serves the question catalog and stores answers
type QuestionnaireService interface {
	ListQuestions(ctx context.Context, includeInactive bool) ([]*model.Question, error)
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
	GetUserAnswers(ctx context.Context, userID string) ([]*model.Answer, error)
	SubmitAnswer(ctx context.Context, userID string, req *model.AnswerRequest) (*model.Answer, error)
	SubmitSurvey(ctx context.Context, userID string, req *model.SurveyRequest) ([]*model.Answer, error)
}

// QuestionnaireHandler handles questionnaire endpoints
type QuestionnaireHandler struct {
	questionnaireService QuestionnaireService
}

// NewQuestionnaireHandler creates a new questionnaire handler
func NewQuestionnaireHandler(questionnaireService QuestionnaireService) *QuestionnaireHandler {
	return &QuestionnaireHandler{questionnaireService: questionnaireService}
}

// ListQuestions handles GET /v1/questions - list questions
func (h *QuestionnaireHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("all") == "true"

	questions, err := h.questionnaireService.ListQuestions(r.Context(), includeInactive)
	if err != nil {
		WriteError(w, model.NewInternalError("failed to list questions"))
		return
	}

	WriteCollection(w, http.StatusOK, questions, map[string]string{
		"self":    "/v1/questions",
		"answers": "/v1/answers/user",
	})
}

// GetQuestion handles GET /v1/questions/{id} - get a specific question
func (h *QuestionnaireHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("id")
	if questionID == "" {
		WriteError(w, model.NewBadRequestError("question ID required"))
		return
	}

	question, err := h.questionnaireService.GetQuestion(r.Context(), questionID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusOK, question, map[string]string{
		"self": "/v1/questions/" + questionID,
	})
}

// GetUserAnswers handles GET /v1/answers/user - get own answers
func (h *QuestionnaireHandler) GetUserAnswers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	answers, err := h.questionnaireService.GetUserAnswers(r.Context(), userID)
	if err != nil {
		WriteError(w, model.NewInternalError("failed to get answers"))
		return
	}

	WriteCollection(w, http.StatusOK, answers, map[string]string{
		"self": "/v1/answers/user",
	})
}

// SubmitAnswer handles POST /v1/answers - record or overwrite one answer
func (h *QuestionnaireHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	var req model.AnswerRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return
	}

	answer, err := h.questionnaireService.SubmitAnswer(r.Context(), userID, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "submit answer"))
		return
	}

	WriteData(w, http.StatusOK, answer, map[string]string{
		"self":    "/v1/answers/user",
		"matches": "/v1/matches/user/find-enemy",
	})
}

// SubmitSurvey handles POST /v1/answers/survey - submit many answers at once.
// One bad answer rejects the whole survey and nothing is written.
func (h *QuestionnaireHandler) SubmitSurvey(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	var req model.SurveyRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return
	}

	answers, err := h.questionnaireService.SubmitSurvey(r.Context(), userID, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "submit survey"))
		return
	}

	WriteCollection(w, http.StatusOK, answers, map[string]string{
		"self": "/v1/answers/user",
	})
}
