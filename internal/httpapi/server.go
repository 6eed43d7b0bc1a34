package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pfrederiksen/weekly-events/internal/canonical"
	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/filter"
	"github.com/pfrederiksen/weekly-events/internal/logger"
	"github.com/pfrederiksen/weekly-events/internal/metrics"
	"github.com/pfrederiksen/weekly-events/internal/pipeline"
	"github.com/pfrederiksen/weekly-events/internal/storage"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type Options struct {
	Addr            string
	MaxCount        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the read and enrichment API over the canonical store.
type Server struct {
	store   *canonical.Store
	metrics *metrics.Metrics
	log     *logger.Logger
	opts    Options
	echo    *echo.Echo
}

type enrichmentRequest struct {
	Translation     *string `json:"translation"`
	ShortSummary    *string `json:"short_summary"`
	DetailedSummary *string `json:"detailed_summary"`
}

type weekEventsResponse struct {
	Week   string          `json:"week_identifier"`
	Filter string          `json:"filter"`
	Count  int             `json:"count"`
	Events []*event.Record `json:"events"`
}

func NewServer(store *canonical.Store, m *metrics.Metrics, log *logger.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.Addr) == "" {
		opts.Addr = ":8080"
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = 20
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		store:   store,
		metrics: m,
		log:     log.With(logger.Fields{"component": "httpapi"}),
		opts:    opts,
	}
	s.echo = s.routes()
	return s
}

// Handler returns the configured router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := logger.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			}
			if v.Error != nil {
				s.log.Error("http request failed", fields, v.Error)
				return nil
			}
			s.log.Debug("http request", fields)
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api")
	api.GET("/weeks/:week/events", s.handleWeekEvents)
	api.GET("/weeks/:week/candidates", s.handleCandidates)
	api.GET("/events/:id", s.handleEvent)
	api.PUT("/events/:id/enrichment", s.handleEnrich)
	api.GET("/scrape-logs", s.handleScrapeLogs)

	return e
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.echo,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown failed", nil, err)
		}
	}()

	s.log.Info("HTTP API started", logger.Fields{"addr": s.opts.Addr})
	if err := s.echo.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.log.Info("HTTP API stopped", nil)
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if v, ok := he.Message.(string); ok && strings.TrimSpace(v) != "" {
			message = v
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.log.Error("health check failed", nil, err)
		return c.JSON(http.StatusServiceUnavailable, jsendResponse{
			Status:  "error",
			Message: "Store unavailable",
			Code:    http.StatusServiceUnavailable,
		})
	}
	return success(c, map[string]any{
		"service": "weekly-events",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleWeekEvents(c echo.Context) error {
	week := c.Param("week")
	if _, _, err := event.ParseWeek(week); err != nil {
		return failValidation(c, map[string]string{"week": err.Error()})
	}

	f, err := filter.FromValues(c.QueryParams())
	if err != nil {
		return failValidation(c, map[string]string{"filter": err.Error()})
	}

	recs, err := s.store.GetWeekEvents(c.Request().Context(), week)
	if err != nil {
		s.log.Error("load week events failed", logger.Fields{"week": week}, err)
		return internalError(c, "Failed to load events")
	}
	recs = f.Apply(recs)
	if recs == nil {
		recs = []*event.Record{}
	}

	return success(c, weekEventsResponse{
		Week:   week,
		Filter: f.String(),
		Count:  len(recs),
		Events: recs,
	})
}

func (s *Server) handleCandidates(c echo.Context) error {
	week := c.Param("week")
	if _, _, err := event.ParseWeek(week); err != nil {
		return failValidation(c, map[string]string{"week": err.Error()})
	}

	maxCount := s.opts.MaxCount
	if raw := c.QueryParam("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return failValidation(c, map[string]string{"max": "must be a positive integer"})
		}
		maxCount = n
	}

	set, err := pipeline.Candidates(c.Request().Context(), s.store, week, maxCount, time.Now())
	if err != nil {
		s.log.Error("select candidates failed", logger.Fields{"week": week}, err)
		return internalError(c, "Failed to select candidates")
	}
	if set.Candidates == nil {
		set.Candidates = []*event.Record{}
	}
	return success(c, set)
}

func (s *Server) handleEvent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	rec, err := s.store.Get(c.Request().Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return failNotFound(c, "Event not found")
	}
	if err != nil {
		s.log.Error("load event failed", logger.Fields{"id": id}, err)
		return internalError(c, "Failed to load event")
	}
	return success(c, rec)
}

func (s *Server) handleEnrich(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	var req enrichmentRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON"})
	}

	rec, err := s.store.Enrich(c.Request().Context(), id, event.Enrichment{
		Translation:     req.Translation,
		ShortSummary:    req.ShortSummary,
		DetailedSummary: req.DetailedSummary,
	})
	switch {
	case errors.Is(err, canonical.ErrEmptyEnrichment):
		return failValidation(c, map[string]string{"body": "at least one of translation, short_summary, detailed_summary is required"})
	case errors.Is(err, storage.ErrNotFound):
		return failNotFound(c, "Event not found")
	case err != nil:
		s.log.Error("enrich event failed", logger.Fields{"id": id}, err)
		return internalError(c, "Failed to update event")
	}
	return success(c, rec)
}

func (s *Server) handleScrapeLogs(c echo.Context) error {
	q := storage.ScrapeLogQuery{
		Source: strings.TrimSpace(c.QueryParam("source")),
		Week:   strings.TrimSpace(c.QueryParam("week")),
		Limit:  defaultLogLimit,
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return failValidation(c, map[string]string{"limit": "must be a positive integer"})
		}
		q.Limit = min(n, maxLogLimit)
	}

	logs, err := s.store.ScrapeLogs(c.Request().Context(), q)
	if err != nil {
		s.log.Error("load scrape logs failed", nil, err)
		return internalError(c, "Failed to load scrape logs")
	}
	if logs == nil {
		logs = []*storage.ScrapeLog{}
	}
	return success(c, map[string]any{
		"items": logs,
	})
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return id, nil
}
