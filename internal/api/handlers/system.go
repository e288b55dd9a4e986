package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/trustdirectory/internal/apierror"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/orchestrator"
)

// SystemHandler serves the ingestion-stats and manual-refresh endpoints
// (section 6).
type SystemHandler struct {
	Repo      facility.Repository
	Scheduler *orchestrator.Scheduler
	Env       string
}

func NewSystemHandler(repo facility.Repository, scheduler *orchestrator.Scheduler, env string) *SystemHandler {
	return &SystemHandler{Repo: repo, Scheduler: scheduler, Env: env}
}

type connectorStatusResponse struct {
	Source         string `json:"source"`
	FetchedRecords int    `json:"fetched_records"`
	Error          string `json:"error,omitempty"`
	RanAt          string `json:"ran_at"`
}

type ingestionStatsResponse struct {
	LastRefreshAt    string                     `json:"last_refresh_at"`
	UniqueFacilities int                        `json:"unique_facilities"`
	ConnectorStats   []connectorStatusResponse `json:"connector_stats"`
}

// Ingestion handles GET /api/v1/system/ingestion.
func (h *SystemHandler) Ingestion(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Repo.IngestionStats(r.Context())
	if err != nil {
		apierror.Write(w, r, apierror.KindRepository, "ingestion stats failed", err, h.Env)
		return
	}

	resp := ingestionStatsResponse{UniqueFacilities: stats.UniqueFacilities}
	if !stats.LastRefreshAt.IsZero() {
		resp.LastRefreshAt = stats.LastRefreshAt.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, stat := range stats.ConnectorStats {
		resp.ConnectorStats = append(resp.ConnectorStats, connectorStatusResponse{
			Source:         stat.Source,
			FetchedRecords: stat.FetchedRecords,
			Error:          stat.Error,
			RanAt:          stat.RanAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/v1/system/refresh: it queues a manual refresh
// and returns immediately rather than blocking on completion (section 9).
func (h *SystemHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		apierror.Write(w, r, apierror.KindUnavailable, "refresh unavailable in this process mode", nil, h.Env)
		return
	}

	queued := h.Scheduler.RequestRefresh()
	status := http.StatusAccepted
	message := "refresh queued"
	if !queued {
		message = "refresh already pending"
	}
	writeJSON(w, status, struct {
		Queued  bool   `json:"queued"`
		Message string `json:"message"`
	}{Queued: queued, Message: message})
}

// Health handles GET /health: a liveness probe with no external dependency
// checks, since both repository backends already fail fast at startup if
// unreachable (section 6).
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}
