package httpapi

import (
	"net/http"
	"strings"

	"github.com/siot-decada-robotics/rmf-ros2/internal/service"
)

func NewRouter(svc *service.Dispatcher) http.Handler {
	h := NewHandlers(svc)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/tasks", h.HandleSubmitTask)
	mux.HandleFunc("GET /v1/tasks", h.HandleListTasks)
	mux.HandleFunc("GET /v1/tasks/", h.HandleGetTask)       // /v1/tasks/{task_id}
	mux.HandleFunc("POST /v1/tasks/", dispatchTaskPOST(h))  // /v1/tasks/{task_id}/{cancel,result}
	mux.HandleFunc("GET /v1/fleets/totals", h.HandleFleetTotals)

	mux.HandleFunc("GET /health", handleHealth)

	return Recovery(Logging(mux))
}

func dispatchTaskPOST(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/cancel"):
			h.HandleCancelTask(w, r)
		case strings.HasSuffix(r.URL.Path, "/result"):
			h.HandleReportResult(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"rmf-dispatcher"}`))
}
