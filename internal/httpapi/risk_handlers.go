package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/prwatch/prwatch/internal/backtest"
	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/globaltime"
	"github.com/prwatch/prwatch/internal/risk"
)

type backtestRequest struct {
	IP          string           `json:"ip"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	WindowHours int              `json:"window_hours"`
	StepHours   int              `json:"step_hours"`
	Weights     *backtestWeights `json:"weights"`
	Persist     bool             `json:"persist"`
}

type backtestWeights struct {
	Sentiment float64 `json:"sentiment"`
	Volume    float64 `json:"volume"`
	Theme     float64 `json:"theme"`
	Outlet    float64 `json:"outlet"`
}

type catalogEntry struct {
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

func (s *Server) handleRiskCatalog(c echo.Context) error {
	entries := catalog.Entries()
	items := make([]catalogEntry, 0, len(entries))
	for _, ip := range entries {
		items = append(items, catalogEntry{Slug: ip.Slug, Name: ip.Name, Keywords: ip.Keywords})
	}

	themes := make([]map[string]any, 0)
	for _, theme := range catalog.Themes() {
		themes = append(themes, map[string]any{
			"key":      theme.Key,
			"keywords": theme.Keywords,
			"weight":   theme.Weight,
		})
	}

	return success(c, map[string]any{"items": items, "themes": themes})
}

func (s *Server) handleRiskLive(c echo.Context) error {
	ip, err := catalog.Resolve(c.QueryParam("ip"))
	if err != nil {
		return failNotFound(c, "Unknown IP")
	}

	days := parseIntParam(c.QueryParam("days"), 7)
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}

	now := globaltime.UTC()
	ctx := c.Request().Context()

	latest, err := s.pool.LatestRiskPoint(ctx, ip.Slug)
	if err != nil {
		s.logger.Error().Err(err).Str("ip", ip.Slug).Msg("query latest risk point failed")
		return internalError(c, "Failed to load risk data")
	}

	series, err := s.pool.RiskSeries(ctx, ip.Slug, now.Add(-time.Duration(days)*24*time.Hour), now)
	if err != nil {
		s.logger.Error().Err(err).Str("ip", ip.Slug).Msg("query risk series failed")
		return internalError(c, "Failed to load risk data")
	}

	return success(c, map[string]any{
		"ip":     ip.Slug,
		"latest": latest,
		"series": series,
	})
}

func (s *Server) handleRiskBacktest(c echo.Context) error {
	var req backtestRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON body"})
	}

	fieldErrors := map[string]string{}
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(req.From))
	if err != nil {
		fieldErrors["from"] = "must be an RFC3339 timestamp"
	}
	to, err := time.Parse(time.RFC3339, strings.TrimSpace(req.To))
	if err != nil {
		fieldErrors["to"] = "must be an RFC3339 timestamp"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	stepHours := req.StepHours
	if stepHours == 0 {
		stepHours = 1
	}

	var weights *risk.Weights
	if req.Weights != nil {
		weights = &risk.Weights{
			Sentiment: req.Weights.Sentiment,
			Volume:    req.Weights.Volume,
			Theme:     req.Weights.Theme,
			Outlet:    req.Weights.Outlet,
		}
	}

	result, err := s.runner.Run(c.Request().Context(), backtest.Params{
		IP:          req.IP,
		From:        from,
		To:          to,
		WindowHours: req.WindowHours,
		StepHours:   stepHours,
		Weights:     weights,
		Persist:     req.Persist,
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnsupportedIP):
			return failNotFound(c, "Unknown IP")
		case errors.Is(err, risk.ErrInvalidRange):
			return failValidation(c, map[string]string{"range": err.Error()})
		default:
			s.logger.Error().Err(err).Msg("backtest failed")
			return internalError(c, "Backtest failed")
		}
	}

	return success(c, result)
}

func (s *Server) handleRiskBursts(c echo.Context) error {
	ipID := ""
	if slug := strings.TrimSpace(c.QueryParam("ip")); slug != "" {
		ip, err := catalog.Resolve(slug)
		if err != nil {
			return failNotFound(c, "Unknown IP")
		}
		ipID = ip.Slug
	}

	limit := parseIntParam(c.QueryParam("limit"), 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	events, err := s.pool.RecentBurstEvents(c.Request().Context(), ipID, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query burst events failed")
		return internalError(c, "Failed to load burst events")
	}

	return success(c, map[string]any{"items": events})
}

func (s *Server) handleDashboardRisk(c echo.Context) error {
	view, err := s.reports.Dashboard(c.Request().Context(), c.QueryParam("ip"), parseIntParam(c.QueryParam("days"), 7))
	if err != nil {
		if errors.Is(err, catalog.ErrUnsupportedIP) {
			return failNotFound(c, "Unknown IP")
		}
		s.logger.Error().Err(err).Msg("build dashboard failed")
		return internalError(c, "Failed to build dashboard")
	}
	return success(c, view)
}

func (s *Server) handleDashboardClusters(c echo.Context) error {
	clusters, err := s.reports.Clusters(
		c.Request().Context(),
		c.QueryParam("ip"),
		parseIntParam(c.QueryParam("days"), 7),
		parseIntParam(c.QueryParam("limit"), 20),
	)
	if err != nil {
		if errors.Is(err, catalog.ErrUnsupportedIP) {
			return failNotFound(c, "Unknown IP")
		}
		s.logger.Error().Err(err).Msg("build clusters failed")
		return internalError(c, "Failed to build clusters")
	}
	return success(c, map[string]any{"items": clusters})
}

func (s *Server) handleArticles(c echo.Context) error {
	page := parseIntParam(c.QueryParam("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := parseIntParam(c.QueryParam("page_size"), defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	opts := db.ArticleListOptions{
		Company:   strings.TrimSpace(c.QueryParam("company")),
		Sentiment: strings.TrimSpace(c.QueryParam("sentiment")),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	}
	fieldErrors := map[string]string{}
	if raw := strings.TrimSpace(c.QueryParam("from")); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			fieldErrors["from"] = "must be YYYY-MM-DD"
		} else {
			opts.From = t
		}
	}
	if raw := strings.TrimSpace(c.QueryParam("to")); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			fieldErrors["to"] = "must be YYYY-MM-DD"
		} else {
			opts.To = t
		}
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	ctx := c.Request().Context()
	items, err := s.pool.ListArticles(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("query articles failed")
		return internalError(c, "Failed to load articles")
	}
	total, err := s.pool.CountArticles(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("count articles failed")
		return internalError(c, "Failed to load articles")
	}

	return success(c, map[string]any{
		"items":     items,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}

func parseIntParam(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
