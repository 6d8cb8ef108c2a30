package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/pkg/logger"
	"github.com/wonny/aegis-committee/pkg/redis"
)

// ReportSource reads published reports
type ReportSource interface {
	Load(date string) (*contracts.Report, error)
	Latest() (*contracts.Report, error)
	Dates() ([]string, error)
}

// ReportHandler serves published committee reports
// ⭐ SSOT: 리포트 조회 API는 여기서만
type ReportHandler struct {
	reports ReportSource
	cache   *redis.Cache
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler. cache may be nil.
func NewReportHandler(reports ReportSource, cache *redis.Cache, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		cache:   cache,
		logger:  log,
	}
}

// GetLatest returns the newest published report
// GET /api/reports/latest
func (h *ReportHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Latest()
	if errors.Is(err, pipeline.ErrNoReport) {
		respondError(w, http.StatusNotFound, "no report published yet")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest report")
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetByDate returns the report of one market date, cache first
// GET /api/reports/{date}
func (h *ReportHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !validDate(date) {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	var report *contracts.Report
	var err error
	if h.cache != nil {
		report = &contracts.Report{}
		err = h.cache.GetOrSet(r.Context(), redis.ReportKey(date), report, redis.TTLDaily, func() (interface{}, error) {
			return h.reports.Load(date)
		})
	} else {
		report, err = h.reports.Load(date)
	}

	if errors.Is(err, pipeline.ErrNoReport) {
		respondError(w, http.StatusNotFound, "no report for "+date)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("date", date).Error("Failed to load report")
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// ListDates returns the published market dates, oldest first
// GET /api/reports
func (h *ReportHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.reports.Dates()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reports")
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if dates == nil {
		dates = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dates": dates,
	})
}
