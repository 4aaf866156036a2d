// Package api wires the HTTP surface: webhook intake, cleanup
// triggers, and status endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/cleanup"
	"github.com/showkeeper/showkeeper/internal/intake"
)

// Server handles HTTP requests for the ShowKeeper API.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger

	intakeHandlers  *intake.Handlers
	cleanupHandlers *cleanup.Handlers
}

// NewServer creates a new API server instance.
func NewServer(intakeHandlers *intake.Handlers, cleanupHandlers *cleanup.Handlers, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:            e,
		logger:          logger.With().Str("component", "api").Logger(),
		intakeHandlers:  intakeHandlers,
		cleanupHandlers: cleanupHandlers,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.BodyLimit("1M"))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := s.echo.Group("/api/v1")
	s.intakeHandlers.RegisterRoutes(api)
	s.cleanupHandlers.RegisterRoutes(api.Group("/cleanup"))
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}
