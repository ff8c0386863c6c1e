// Package api exposes the serve-mode HTTP surface: a manual sync trigger and
// a health endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

// ErrRunInFlight is returned by a Runner that refuses to start because
// another run is already active. The trigger endpoint maps it to 409.
var ErrRunInFlight = errors.New("a sync run is already in progress")

// Runner executes one reconciliation run. Implementations own the notion of
// "in flight" across every trigger path and return ErrRunInFlight when a run
// is already active, so scheduled and HTTP-triggered runs share one gate.
type Runner interface {
	Run(ctx context.Context, dryRun bool) (domain.RunStats, error)
}

// HealthChecker reports feed database connectivity for verbose health
// responses.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Handler serves the sync trigger and health endpoints. Runs are strictly
// serial: a trigger while a run is active gets 409.
type Handler struct {
	runner Runner
	db     HealthChecker
}

func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// WithHealthChecker sets the database health checker for verbose /health
// responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case r.URL.Path == "/sync" && r.Method == http.MethodPost:
		h.triggerSync(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SyncResponse reports the outcome of a triggered run.
type SyncResponse struct {
	DryRun    bool `json:"dryRun"`
	Read      int  `json:"read"`
	Upserts   int  `json:"upserts"`
	Unchanged int  `json:"unchanged"`
	Errors    int  `json:"errors"`
	Deleted   int  `json:"deleted"`
}

// triggerSync runs a reconciliation synchronously and reports its counts.
// ?dryRun=true previews without mutating the platform.
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dryRun") == "true"

	stats, err := h.runner.Run(r.Context(), dryRun)
	if errors.Is(err, ErrRunInFlight) {
		writeError(w, http.StatusConflict, ErrRunInFlight.Error())
		return
	}
	if err != nil {
		log.Printf("api: triggered run failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		DryRun:    dryRun,
		Read:      stats.Read,
		Upserts:   stats.Upserts,
		Unchanged: stats.Unchanged,
		Errors:    stats.Errors,
		Deleted:   stats.Deleted,
	})
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
