package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/aegis-committee/internal/api/handlers"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// ServiceName is reported by /health
const ServiceName = "aegis-committee-api"

// Handlers groups the route handlers. Market is nil when no store is configured.
type Handlers struct {
	Reports *handlers.ReportHandler
	Market  *handlers.MarketHandler
	Status  *handlers.StatusHandler
}

// NewRouter builds the read-only route table. Anything but GET on a known path gets 405.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, recoveryMiddleware(log), loggingMiddleware(log))
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/health", healthHandler(h.Market != nil)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	// 서브라우터는 자체 핸들러가 없으면 메서드 불일치를 404로 처리
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// 발행된 리포트 (runs/<date>/report.json)
	api.HandleFunc("/reports", h.Reports.ListDates).Methods(http.MethodGet)
	api.HandleFunc("/reports/latest", h.Reports.GetLatest).Methods(http.MethodGet)
	api.HandleFunc("/reports/{date}", h.Reports.GetByDate).Methods(http.MethodGet)

	// SQLite 저장소 조회
	if h.Market != nil {
		api.HandleFunc("/market/{date}", h.Market.GetMarket).Methods(http.MethodGet)
		api.HandleFunc("/rolling/{column}", h.Market.GetRolling).Methods(http.MethodGet)
	}

	api.HandleFunc("/status", h.Status.GetStatus).Methods(http.MethodGet)

	return r
}

func healthHandler(store bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"service": ServiceName,
			"store":   store,
		})
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Allow", http.MethodGet)
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
}

// requestIDMiddleware echoes X-Request-ID, generating one when absent
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := log.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"request_id": r.Header.Get("X-Request-ID"),
				"duration":   time.Since(start),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("HTTP request")
				return
			}
			entry.Debug("HTTP request")
		})
	}
}

func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error":      err,
						"path":       r.URL.Path,
						"request_id": r.Header.Get("X-Request-ID"),
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
