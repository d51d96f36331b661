package http

import (
	"net/http"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/internal/authsim/store"
	"github.com/devharness/authsim/pkg/httpx"
)

type healthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *healthChecks `json:"checks,omitempty"`
}

type healthChecks struct {
	Database string `json:"database"`
}

// LivezHandler always returns 200 while the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler checks the store before reporting ready.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{Database: "ok"}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

// StatsHandler serves GET /v1/stats with session and lockout aggregates.
type StatsHandler struct {
	AuthService    *service.AuthService
	SessionService *service.SessionService
	LockoutService *service.LockoutService
}

type statsResponse struct {
	Sessions domain.SessionStats `json:"sessions"`
	Lockouts domain.LockoutStats `json:"lockouts"`
	Audit    auditStats          `json:"audit"`
}

type auditStats struct {
	DroppedEvents uint64 `json:"dropped_events"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessions, err := h.SessionService.Stats(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	lockouts, err := h.LockoutService.Stats(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, statsResponse{
		Sessions: sessions,
		Lockouts: lockouts,
		Audit:    auditStats{DroppedEvents: h.AuthService.Audit.Dropped()},
	})
}
