package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/internal/s3_store"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// RunLog reads the run audit log
type RunLog interface {
	ListRuns(ctx context.Context, limit int) ([]s3_store.RunRecord, error)
}

// StatusResponse summarizes recent runs and the newest report's source status
type StatusResponse struct {
	LastRun      *s3_store.RunRecord        `json:"last_run"`
	Runs         []s3_store.RunRecord       `json:"runs"`
	MarketDate   string                     `json:"market_date,omitempty"`
	SourceStatus *contracts.StatusMap       `json:"source_status,omitempty"`
	Failures     map[contracts.Field]string `json:"failures,omitempty"`
}

// StatusHandler serves pipeline run status
type StatusHandler struct {
	runs    RunLog
	reports ReportSource
	logger  *logger.Logger
}

// NewStatusHandler creates a new status handler. runs may be nil when persistence is off.
func NewStatusHandler(runs RunLog, reports ReportSource, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		runs:    runs,
		reports: reports,
		logger:  log,
	}
}

// GetStatus returns recent runs and source status
// GET /api/status?limit=10
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Runs: []s3_store.RunRecord{}}

	if h.runs != nil {
		runs, err := h.runs.ListRuns(r.Context(), queryInt(r, "limit", 10))
		if err != nil {
			h.logger.WithError(err).Error("Failed to list runs")
			respondError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		if len(runs) > 0 {
			resp.Runs = runs
			resp.LastRun = &runs[0]
		}
	}

	report, err := h.reports.Latest()
	switch {
	case err == nil:
		resp.MarketDate = report.MarketDate
		resp.SourceStatus = &report.SourceStatus
		resp.Failures = report.SourceStatus.Failures()
	case !errors.Is(err, pipeline.ErrNoReport):
		h.logger.WithError(err).Warn("Failed to load latest report for status")
	}

	respondJSON(w, http.StatusOK, resp)
}
