package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/target/karmabot/internal/app"
	"github.com/target/karmabot/internal/domain"
	"github.com/target/karmabot/internal/platform/config"
)

type eventService interface {
	HandleMessageEvent(ctx context.Context, msg domain.Message) error
	HandleCommand(ctx context.Context, cmd app.Command) error
	HandleMention(ctx context.Context, cmd app.Command) error
}

type requestVerifier interface {
	Verify(timestamp, signature string, body []byte) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app      eventService
	verifier requestVerifier

	// workers bounds the number of in-flight event goroutines so a
	// webhook flood cannot exhaust memory.
	workers *semaphore.Weighted

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, app eventService, verifier requestVerifier, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		verifier:     verifier,
		workers:      semaphore.NewWeighted(cfg.MaxConcurrentEvents),
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
