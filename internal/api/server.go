package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/aegis-committee/internal/api/handlers"
	"github.com/wonny/aegis-committee/internal/pipeline"
	"github.com/wonny/aegis-committee/pkg/config"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// ShutdownTimeout bounds how long in-flight requests get after cancellation
const ShutdownTimeout = 15 * time.Second

// Server is the read-only report API
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// New creates a server listening on cfg.Port
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: log.WithComponent("api"),
	}
}

// NewFromComponents wires the handlers of a built application
func NewFromComponents(c *pipeline.Components, log *logger.Logger) *Server {
	h := Handlers{Reports: handlers.NewReportHandler(c.Publisher, c.Cache, log)}

	// a nil *Store must stay a nil interface
	var runs handlers.RunLog
	if c.Store != nil {
		runs = c.Store
		h.Market = handlers.NewMarketHandler(c.Store, log)
	}
	h.Status = handlers.NewStatusHandler(runs, c.Publisher, log)

	return New(c.Config, log, NewRouter(h, log))
}

// Addr is the listen address (":8089")
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Serve listens until ctx is canceled, then drains in-flight requests
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("API server stopped")
	return <-errCh
}
