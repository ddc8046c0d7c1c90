// Package api serves scan results and completion state over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhcgn/patent-reminders/scan"
	"github.com/dhcgn/patent-reminders/store"
)

// Scanner runs one scan per request.
type Scanner interface {
	Scan(ctx context.Context, opts scan.Options) (scan.Result, error)
}

// StatusStore records which reminders have been handled.
type StatusStore interface {
	MarkCompleted(ctx context.Context, applicationNo, filePath, subject, deadline string) (bool, error)
	MarkUncompleted(ctx context.Context, applicationNo, filePath string) (bool, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Resolver maps a download reference to a stored file.
type Resolver interface {
	Resolve(ref string) (string, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Listen string
}

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	scanner Scanner
	status  StatusStore
	files   Resolver
	logger  *slog.Logger
	config  *Config
}

// Response is the JSON envelope of every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer wires the routes. files and gatherer may be nil, which disables
// downloads and /metrics.
func NewServer(scanner Scanner, status StatusStore, files Resolver, gatherer prometheus.Gatherer, logger *slog.Logger, cfg *Config) (*Server, error) {
	if scanner == nil {
		return nil, fmt.Errorf("scanner cannot be nil")
	}
	if status == nil {
		return nil, fmt.Errorf("status store cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg == nil {
		cfg = &Config{Listen: "127.0.0.1:5000"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return err
		}
	})

	s := &Server{
		echo:    e,
		scanner: scanner,
		status:  status,
		files:   files,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes(gatherer)
	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.GET("/patent-examination-reminders", s.handleReminders)
	api.GET("/patent-certificates", s.handleCertificates)
	api.GET("/patent-invoices", s.handleInvoices)
	api.GET("/software-notices", s.handleNotices)
	api.GET("/stats", s.handleStats)
	api.GET("/completion-stats", s.handleCompletionStats)
	api.POST("/reminders/complete", s.handleComplete)
	api.POST("/reminders/uncomplete", s.handleUncomplete)

	if s.files != nil {
		s.echo.GET("/download/:ref", s.handleDownload)
	}
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving on the configured address.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.config.Listen)
	if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func list[T any](c echo.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return c.JSON(http.StatusOK, Response{Success: true, Data: items, Count: &n})
}

// errorHandler renders errors inside the envelope.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		} else {
			logger.Error("request failed", "uri", c.Request().RequestURI, "err", err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, Response{Success: false, Error: msg})
		}
		if err != nil {
			logger.Warn("writing error response failed", "err", err)
		}
	}
}
