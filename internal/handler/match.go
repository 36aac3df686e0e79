package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/forgo/nemesis/api/internal/middleware"
	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/internal/service"
)

// MatchService is the part of the matching engine the match endpoints use
type MatchService interface {
	FindEnemy(ctx context.Context, userID string) (*model.MatchView, error)
	GetMatches(ctx context.Context, userID string, limit int) ([]*model.MatchView, error)
	GetLatestMatch(ctx context.Context, userID string) (*model.MatchView, error)
}

// MatchHandler handles on-demand matching and match history endpoints
type MatchHandler struct {
	matchService MatchService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchService MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// FindEnemy handles POST /v1/matches/user/{id}/find-enemy
// and POST /v1/matches/user/find-enemy (token-scoped).
func (h *MatchHandler) FindEnemy(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	view, err := h.matchService.FindEnemy(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "find enemy"))
		return
	}

	WriteData(w, http.StatusOK, view.ToResponse(), map[string]string{
		"self":    "/v1/matches/user/" + userID,
		"history": "/v1/matches/user/" + userID,
	})
}

// ListMatches handles GET /v1/matches/user/{id} and GET /v1/matches/user.
// Most recent first; ?limit caps the page.
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, model.NewBadRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	views, err := h.matchService.GetMatches(r.Context(), userID, limit)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list matches"))
		return
	}

	matches := make([]model.MatchResponse, 0, len(views))
	for _, v := range views {
		matches = append(matches, v.ToResponse())
	}

	WriteCollection(w, http.StatusOK, matches, map[string]string{
		"self":   "/v1/matches/user/" + userID,
		"latest": "/v1/matches/user/latest",
	})
}

// LatestMatch handles GET /v1/matches/user/latest
func (h *MatchHandler) LatestMatch(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	view, err := h.matchService.GetLatestMatch(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "latest match"))
		return
	}

	WriteData(w, http.StatusOK, view.ToResponse(), map[string]string{
		"self": "/v1/matches/user/latest",
	})
}

// targetUser resolves whose matches a request is about. Without an {id}
// segment it is the caller. A caller may name someone else only as admin.
func (h *MatchHandler) targetUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	callerID := middleware.GetUserID(r.Context())
	if callerID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return "", false
	}

	userID := r.PathValue("id")
	if userID == "" {
		return callerID, true
	}
	if userID != callerID && !middleware.IsAdmin(r.Context()) {
		WriteError(w, MapServiceError(service.ErrNotMatchOwner))
		return "", false
	}
	return userID, true
}
