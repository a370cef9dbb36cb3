package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
	"github.com/siot-decada-robotics/rmf-ros2/internal/service"
)

type Handlers struct {
	svc *service.Dispatcher
}

func NewHandlers(svc *service.Dispatcher) *Handlers {
	return &Handlers{svc: svc}
}

// HandleSubmitTask handles POST /v1/tasks
func (h *Handlers) HandleSubmitTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req model.TaskSubmission
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.svc.SubmitTask(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "failed to submit task", "error", err)
		http.Error(w, "failed to submit task", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleGetTask handles GET /v1/tasks/{task_id}
func (h *Handlers) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := extractTaskID(r.URL.Path)
	if taskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	outcome, err := h.svc.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to get task", "error", err)
		http.Error(w, "failed to get task", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// HandleCancelTask handles POST /v1/tasks/{task_id}/cancel
func (h *Handlers) HandleCancelTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := extractTaskID(r.URL.Path)
	if taskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	outcome, err := h.svc.CancelTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrInvalidState) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		slog.ErrorContext(ctx, "failed to cancel task", "error", err)
		http.Error(w, "failed to cancel task", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// HandleReportResult handles POST /v1/tasks/{task_id}/result
func (h *Handlers) HandleReportResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := extractTaskID(r.URL.Path)
	if taskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	var report model.ExecutionReport
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&report); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	outcome, err := h.svc.ReportExecution(ctx, taskID, report)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrInvalidState) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		slog.ErrorContext(ctx, "failed to record execution result", "error", err)
		http.Error(w, "failed to record execution result", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// HandleListTasks handles GET /v1/tasks
func (h *Handlers) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := model.AuctionState(r.URL.Query().Get("state"))
	outcomes, err := h.svc.ListTasks(ctx, state, 0)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list tasks", "error", err)
		http.Error(w, "failed to list tasks", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": outcomes})
}

// HandleFleetTotals handles GET /v1/fleets/totals
func (h *Handlers) HandleFleetTotals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fleets": h.svc.Ledger().Totals()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func extractTaskID(path string) string {
	// Extract task_id from paths like:
	// /v1/tasks/{task_id}
	// /v1/tasks/{task_id}/cancel
	// /v1/tasks/{task_id}/result
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
