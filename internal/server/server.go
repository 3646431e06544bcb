package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uccc/cloud-cost-ledger/internal/analytics"
	"github.com/uccc/cloud-cost-ledger/internal/clock"
	"github.com/uccc/cloud-cost-ledger/internal/collector"
	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// HTTP server timeout constants
const (
	DefaultReadTimeout  = 15 * time.Second // Maximum duration for reading the entire request
	DefaultWriteTimeout = 30 * time.Second // Maximum duration before timing out writes of the response
	DefaultIdleTimeout  = 60 * time.Second // Maximum amount of time to wait for the next request
)

// Server exposes the ledger's reporting and collection API.
type Server struct {
	echo   *echo.Echo
	agg    *analytics.Aggregator
	orch   *collector.Orchestrator
	cfg    *config.Config
	logger *logger.Logger
	clock  clock.Clock
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg *config.Config, agg *analytics.Aggregator, orch *collector.Orchestrator, log *logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = DefaultReadTimeout
	e.Server.WriteTimeout = DefaultWriteTimeout
	e.Server.IdleTimeout = DefaultIdleTimeout

	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		agg:    agg,
		orch:   orch,
		cfg:    cfg,
		logger: log,
		clock:  clock.RealClock{},
	}
	s.registerRoutes()
	return s
}

// WithClock replaces the time source, for tests.
func (s *Server) WithClock(c clock.Clock) *Server {
	s.clock = c
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/health", s.handleHealth)
	e.GET("/ready", s.handleReady)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")

	api.GET("/costs/total", s.handleTotal)
	api.GET("/costs/daily", s.handleDaily)
	api.GET("/costs/by-provider", s.handleGrouped(analytics.GroupByProvider))
	api.GET("/costs/by-service", s.handleGrouped(analytics.GroupByService))
	api.GET("/costs/by-account", s.handleGrouped(analytics.GroupByAccount))
	api.GET("/costs/by-tag/:tag", s.handleGroupedByTag)
	api.GET("/costs/top-services", s.handleTopServices)
	api.GET("/export/costs.csv", s.handleExportCSV)

	api.GET("/deltas", s.handleDeltas)
	api.GET("/anomalies", s.handleAnomalies)
	api.GET("/signals", s.handleSignals)

	api.GET("/tag-hygiene", s.handleHygiene)
	api.GET("/tag-hygiene/by-provider", s.handleHygieneByProvider)
	api.GET("/tag-hygiene/untagged", s.handleUntagged)

	api.GET("/freshness", s.handleFreshness)
	api.GET("/snapshot", s.handleSnapshot)

	api.POST("/collect", s.handleCollect)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
	s.logger.Info("Starting HTTP server", "address", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// window resolves the reporting window from from/to query parameters,
// defaulting to the configured lookback ending today.
func (s *Server) window(c echo.Context) (ledger.Window, error) {
	w := ledger.LastNDays(s.clock.Now(), s.cfg.LookbackDays)
	if from := c.QueryParam("from"); from != "" {
		w.Start = from
	}
	if to := c.QueryParam("to"); to != "" {
		w.End = to
	}
	if err := w.Validate(); err != nil {
		return ledger.Window{}, err
	}
	return w, nil
}

func intParam(c echo.Context, name string, fallback int) int {
	val := c.QueryParam(name)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return i
}

func floatParam(c echo.Context, name string, fallback float64) float64 {
	val := c.QueryParam(name)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}

// fail maps internal errors to HTTP responses: validation errors are
// the caller's fault, everything else is ours.
func (s *Server) fail(c echo.Context, err error) error {
	if _, ok := err.(*ledger.ValidationError); ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	s.logger.Error("Request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness by touching the store.
func (s *Server) handleReady(c echo.Context) error {
	if _, err := s.agg.Freshness(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleTotal(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}
	total, err := s.agg.Total(c.Request().Context(), w)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"from":     w.Start,
		"to":       w.End,
		"currency": s.agg.BaseCurrency(),
		"total":    total,
	})
}

func (s *Server) handleDaily(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	if c.QueryParam("by_provider") == "true" {
		series, err := s.agg.DailyTotalsByProvider(ctx, w)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, series)
	}

	totals, err := s.agg.DailyTotals(ctx, w)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, totals)
}

func (s *Server) handleGrouped(key analytics.GroupKey) echo.HandlerFunc {
	return func(c echo.Context) error {
		w, err := s.window(c)
		if err != nil {
			return s.fail(c, err)
		}
		rows, err := s.agg.Grouped(c.Request().Context(), w, key, analytics.GroupedOptions{
			Provider: c.QueryParam("provider"),
			Search:   c.QueryParam("search"),
			Limit:    intParam(c, "limit", 0),
			Offset:   intParam(c, "offset", 0),
		})
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, rows)
	}
}

func (s *Server) handleGroupedByTag(c echo.Context) error {
	return s.handleGrouped(analytics.TagKey(c.Param("tag")))(c)
}

func (s *Server) handleTopServices(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}
	rows, err := s.agg.TopServices(c.Request().Context(), w, intParam(c, "n", 5))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleDeltas(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}

	key := analytics.GroupByService
	switch c.QueryParam("group") {
	case "", "service":
	case "account":
		key = analytics.GroupByAccount
	case "provider":
		key = analytics.GroupByProvider
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "group must be service, account, or provider"})
	}

	// Comparison window defaults to the equal-length window preceding
	// the reporting window.
	timeframe, err := analytics.BuildTimeframe(w)
	if err != nil {
		return s.fail(c, err)
	}
	comparison := ledger.Window{Start: timeframe.CompareStart, End: timeframe.CompareEnd}
	if from := c.QueryParam("compare_from"); from != "" {
		comparison.Start = from
	}
	if to := c.QueryParam("compare_to"); to != "" {
		comparison.End = to
	}

	deltas, err := s.agg.GroupedDelta(c.Request().Context(), w, comparison, key,
		c.QueryParam("provider"), intParam(c, "limit", 0))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"timeframe": timeframe,
		"group":     string(key),
		"entries":   deltas,
	})
}

func (s *Server) handleAnomalies(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}
	deltas, err := s.agg.DayOverDayDeltas(c.Request().Context(), w)
	if err != nil {
		return s.fail(c, err)
	}
	threshold := floatParam(c, "threshold", s.cfg.AnomalyThreshold)
	flagged := analytics.FlagAnomalies(deltas, threshold, c.QueryParam("provider"))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"from":      w.Start,
		"to":        w.End,
		"threshold": threshold,
		"anomalies": flagged,
	})
}

func (s *Server) handleSignals(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}
	floors := analytics.SeverityFloors{
		HighCost:   s.cfg.Severity.HighCostFloor,
		MediumCost: s.cfg.Severity.MediumCostFloor,
	}
	signals, err := s.agg.BuildSignals(c.Request().Context(), w,
		floatParam(c, "threshold", s.cfg.AnomalyThreshold),
		intParam(c, "limit", 10),
		c.QueryParam("provider"),
		floors)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, signals)
}

func (s *Server) handleHygiene(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}
	provider := c.QueryParam("provider")
	records, err := s.agg.Records(c.Request().Context(), w, provider)
	if err != nil {
		return s.fail(c, err)
	}

	required := s.cfg.RequiredTags
	if provider != "" {
		required = s.cfg.RequiredTagsFor(provider)
	}
	return c.JSON(http.StatusOK, analytics.BuildHygiene(records, required))
}

func (s *Server) handleHygieneByProvider(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}
	records, err := s.agg.Records(c.Request().Context(), w, "")
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, analytics.BuildHygieneByProvider(records, s.cfg.RequiredTagsFor))
}

func (s *Server) handleUntagged(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}

	group := analytics.GroupByService
	if c.QueryParam("group") == "account" {
		group = analytics.GroupByAccount
	}

	provider := c.QueryParam("provider")
	records, err := s.agg.Records(c.Request().Context(), w, provider)
	if err != nil {
		return s.fail(c, err)
	}

	required := s.cfg.RequiredTags
	if provider != "" {
		required = s.cfg.RequiredTagsFor(provider)
	}
	return c.JSON(http.StatusOK, analytics.UntaggedBreakdown(records, required, group))
}

func (s *Server) handleFreshness(c echo.Context) error {
	freshness, err := s.agg.Freshness(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, freshness)
}

func (s *Server) handleSnapshot(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}
	snapshot, err := s.agg.BuildSnapshot(c.Request().Context(), w, s.cfg.RequiredTagsFor)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

// collectRequest is the optional POST body selecting providers.
type collectRequest struct {
	Providers []string `json:"providers"`
}

func (s *Server) handleCollect(c echo.Context) error {
	var req collectRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	runID, err := s.orch.Trigger(c.Request().Context(), req.Providers)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleListRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Registry().List())
}

func (s *Server) handleGetRun(c echo.Context) error {
	snap, ok := s.orch.Registry().Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, snap)
}
