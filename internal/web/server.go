package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/metrics"
	"github.com/camuig/sol-tracker/internal/storage"
)

//go:embed templates/dashboard.html
var templates embed.FS

type Server struct {
	httpServer *http.Server
	repo       *storage.Repository
	metrics    *metrics.Metrics
	config     *config.Config
	logger     *logger.Logger
	dashboard  *template.Template
}

func NewServer(repo *storage.Repository, m *metrics.Metrics, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		repo:    repo,
		metrics: m,
		config:  cfg,
		logger:  log.Component("web"),
		dashboard: template.Must(template.New("dashboard.html").
			Funcs(templateFuncs).
			ParseFS(templates, "templates/dashboard.html")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/api/holdings", s.handleHoldings)
	mux.HandleFunc("/api/closed", s.handleClosed)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", m.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
