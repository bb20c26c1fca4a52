// Package api serves the hiring pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

const (
	defaultApplyLimit     = 5
	defaultApplyWindow    = time.Hour
	defaultMaxUpload      = 10 << 20
	defaultShutdownPeriod = 10 * time.Second
	maxJSONBody           = 1 << 20
)

type Config struct {
	Addr        string        `mapstructure:"addr"`
	RedisURL    string        `mapstructure:"redis-url"`
	ApplyLimit  int           `mapstructure:"apply-limit"`
	ApplyWindow time.Duration `mapstructure:"apply-window"`
	// MaxUploadBytes caps the multipart body of a public application.
	MaxUploadBytes int64 `mapstructure:"max-upload-bytes"`
}

type Server struct {
	svc     *pipeline.Service
	limiter Limiter
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// New builds the API server. A nil limiter disables rate limiting.
func New(svc *pipeline.Service, limiter Limiter, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ApplyLimit <= 0 {
		cfg.ApplyLimit = defaultApplyLimit
	}
	if cfg.ApplyWindow <= 0 {
		cfg.ApplyWindow = defaultApplyWindow
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}

	return &Server{
		svc:     svc,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("POST /api/jobs", s.createJob)
	mux.HandleFunc("GET /api/jobs", s.listJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.getJob)
	mux.HandleFunc("POST /api/jobs/{id}/status", s.setJobStatus)

	mux.HandleFunc("POST /api/public/apply", s.publicApply)

	mux.HandleFunc("POST /api/applications", s.createApplication)
	mux.HandleFunc("GET /api/applications", s.listApplications)
	mux.HandleFunc("GET /api/applications/stats", s.applicationStats)
	mux.HandleFunc("GET /api/applications/export", s.exportApplications)
	mux.HandleFunc("POST /api/applications/bulk-invite-screening", s.bulkInvite)
	mux.HandleFunc("POST /api/applications/auto-invite", s.autoInvite)
	mux.HandleFunc("GET /api/applications/{id}", s.getApplication)
	mux.HandleFunc("PUT /api/applications/{id}", s.updateApplication)
	mux.HandleFunc("DELETE /api/applications/{id}", s.deleteApplication)
	mux.HandleFunc("POST /api/applications/{id}/shortlist", s.shortlist)
	mux.HandleFunc("POST /api/applications/{id}/reject", s.reject)

	mux.HandleFunc("POST /api/screenings", s.createScreening)
	mux.HandleFunc("GET /api/screenings", s.listScreenings)
	mux.HandleFunc("GET /api/screenings/stats", s.screeningStats)
	mux.HandleFunc("GET /api/screenings/{id}", s.getScreening)
	mux.HandleFunc("PUT /api/screenings/{id}", s.updateScreening)
	mux.HandleFunc("POST /api/screenings/{id}/start", s.startScreening)
	mux.HandleFunc("POST /api/screenings/{id}/complete", s.completeScreening)
	mux.HandleFunc("POST /api/screenings/{id}/cancel", s.cancelScreening)

	mux.HandleFunc("GET /api/settings", s.getSettings)
	mux.HandleFunc("PUT /api/settings", s.putSettings)
	mux.HandleFunc("GET /api/activity", s.activity)

	return withRequestID(s.withLogging(s.withRecover(mux)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownPeriod)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
