package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/forgo/nemesis/api/internal/jobs"
	"github.com/forgo/nemesis/api/internal/model"
)

// CycleTrigger starts a matching cycle through the scheduler's run path
type CycleTrigger interface {
	Trigger(ctx context.Context, trigger string) (*model.CycleResult, error)
	Status() jobs.SchedulerStatus
}

// CycleReader reads committed cycles from the ledger
type CycleReader interface {
	RecentCycles(ctx context.Context, limit int) ([]*model.Cycle, error)
	GetCycle(ctx context.Context, cycleID string) (*model.Cycle, error)
}

// AdminHandler handles cycle administration endpoints
type AdminHandler struct {
	trigger CycleTrigger
	cycles  CycleReader
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(trigger CycleTrigger, cycles CycleReader) *AdminHandler {
	return &AdminHandler{
		trigger: trigger,
		cycles:  cycles,
	}
}

// RunCycle handles POST /v1/admin/cycles/run. It runs synchronously and
// returns the committed cycle, or 409 while another run holds the lock.
func (h *AdminHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.trigger.Trigger(r.Context(), model.TriggerAdmin)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "run cycle"))
		return
	}

	WriteData(w, http.StatusOK, result, map[string]string{
		"self":   "/v1/admin/cycles/" + result.Cycle.ID,
		"cycles": "/v1/admin/cycles",
	})
}

// ListCycles handles GET /v1/admin/cycles
func (h *AdminHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, model.NewBadRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	cycles, err := h.cycles.RecentCycles(r.Context(), limit)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list cycles"))
		return
	}

	WriteCollection(w, http.StatusOK, cycles, map[string]string{
		"self":      "/v1/admin/cycles",
		"scheduler": "/v1/admin/scheduler",
	})
}

// GetCycle handles GET /v1/admin/cycles/{id}
func (h *AdminHandler) GetCycle(w http.ResponseWriter, r *http.Request) {
	cycleID := r.PathValue("id")
	if cycleID == "" {
		WriteError(w, model.NewBadRequestError("cycle ID required"))
		return
	}

	cycle, err := h.cycles.GetCycle(r.Context(), cycleID)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get cycle"))
		return
	}

	WriteData(w, http.StatusOK, cycle, map[string]string{
		"self": "/v1/admin/cycles/" + cycleID,
	})
}

// SchedulerStatus handles GET /v1/admin/scheduler
func (h *AdminHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, h.trigger.Status(), map[string]string{
		"self": "/v1/admin/scheduler",
		"run":  "/v1/admin/cycles/run",
	})
}
