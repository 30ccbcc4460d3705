package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/config"
	"github.com/prwatch/prwatch/internal/db"
)

// ErrInvalidRange rejects replay and query ranges whose bounds are reversed
// or whose step or window is out of bounds.
var ErrInvalidRange = errors.New("invalid time range")

// Mention window bounds for a single scoring pass.
const (
	MinWindow = time.Hour
	MaxWindow = 7 * 24 * time.Hour
)

// Store is the persistence surface the engine reads and writes.
type Store interface {
	CompanyArticlesInRange(ctx context.Context, company string, from, to time.Time) ([]db.ArticleScope, error)
	LatestGroupSentiments(ctx context.Context, groupIDs []string) (map[string]db.GroupSentiment, error)
	LatestRiskPoint(ctx context.Context, ipID string) (*db.RiskPointItem, error)
	UpsertRiskPoint(ctx context.Context, row db.UpsertRiskRow) error
}

// Engine computes risk points for one company's IPs.
type Engine struct {
	store   Store
	company string
	window  time.Duration
	params  Params
	logger  zerolog.Logger
}

func NewEngine(store Store, cfg *config.Config, logger zerolog.Logger) *Engine {
	params := DefaultParams()
	company := ""
	window := 24 * time.Hour
	if cfg != nil {
		params = Params{
			Weights: Weights{
				Sentiment: cfg.WeightSentiment,
				Volume:    cfg.WeightVolume,
				Theme:     cfg.WeightTheme,
				Outlet:    cfg.WeightOutlet,
			},
			EMAAlpha:       cfg.EMAAlpha,
			LowSampleAlpha: cfg.LowSampleAlpha,
			LowSampleCount: cfg.LowSampleCount,
		}
		company = cfg.Company
		if cfg.RiskWindowHours > 0 {
			window = time.Duration(cfg.RiskWindowHours) * time.Hour
		}
	}
	return &Engine{
		store:   store,
		company: company,
		window:  window,
		params:  params,
		logger:  logger,
	}
}

// Params exposes the engine's scoring knobs, for replay parity.
func (e *Engine) Params() Params {
	return e.params
}

// Window exposes the engine's configured mention window, for replay parity.
func (e *Engine) Window() time.Duration {
	return e.window
}

// Company exposes the monitored company name.
func (e *Engine) Company() string {
	return e.company
}

// Compute computes the risk point for an IP at the given instant without
// writing anything. A zero window uses the configured one. The previous
// smoothed score is read from storage; with no scoped articles at all the
// point is forced to zero with smoothing skipped, while an empty mention
// window over a live baseline still scores the volume component.
func (e *Engine) Compute(ctx context.Context, ip catalog.IP, at time.Time, window time.Duration) (Point, error) {
	window, err := e.resolveWindow(window)
	if err != nil {
		return Point{}, err
	}

	at = at.UTC()
	historyFrom := at.Add(-BaselineDays * 24 * time.Hour)

	articles, err := e.store.CompanyArticlesInRange(ctx, e.company, historyFrom, at)
	if err != nil {
		return Point{}, err
	}
	scoped := FilterByIP(articles, ip)

	if len(scoped) == 0 {
		return Point{
			TS:          at,
			AlertLevel:  AlertP3,
			QualityFlag: QualityLowSample,
		}, nil
	}

	var prev *float64
	if last, err := e.store.LatestRiskPoint(ctx, ip.Slug); err != nil {
		return Point{}, err
	} else if last != nil {
		score := last.RiskScore
		prev = &score
	}

	windowed := inWindow(scoped, at.Add(-window), at)
	mentions, err := e.BuildMentions(ctx, windowed)
	if err != nil {
		return Point{}, err
	}

	in := StepInput{
		At:           at,
		Mentions:     mentions,
		OutletHosts:  OutletHosts(windowed),
		HourlyCounts: HourlyCounts(scoped),
		HistoryFrom:  historyFrom,
		Count1h:      Count1h(scoped, at),
		PrevScore:    prev,
	}
	return ComputeStep(e.params, in), nil
}

func (e *Engine) resolveWindow(window time.Duration) (time.Duration, error) {
	if window == 0 {
		return e.window, nil
	}
	if window < MinWindow || window > MaxWindow {
		return 0, fmt.Errorf("%w: window must be between 1 hour and 7 days", ErrInvalidRange)
	}
	return window, nil
}

// Persist writes one computed point for an IP.
func (e *Engine) Persist(ctx context.Context, ip catalog.IP, point Point) error {
	return e.store.UpsertRiskPoint(ctx, db.UpsertRiskRow{
		IPID:           ip.Slug,
		TS:             point.TS,
		RiskRaw:        point.RiskRaw,
		RiskScore:      point.RiskScore,
		SentimentComp:  point.SentimentComp,
		VolumeComp:     point.VolumeComp,
		ThemeComp:      point.ThemeComp,
		OutletComp:     point.OutletComp,
		AlertLevel:     point.AlertLevel,
		SampleSize:     point.SampleSize,
		UncertainRatio: point.UncertainRatio,
		QualityFlag:    point.QualityFlag,
	})
}

// ComputeAndPersist runs one live scoring pass for an IP.
func (e *Engine) ComputeAndPersist(ctx context.Context, ip catalog.IP, at time.Time, window time.Duration) (Point, error) {
	point, err := e.Compute(ctx, ip, at, window)
	if err != nil {
		return Point{}, err
	}
	if err := e.Persist(ctx, ip, point); err != nil {
		return Point{}, err
	}

	e.logger.Info().
		Str("ip", ip.Slug).
		Time("ts", point.TS).
		Float64("risk_score", point.RiskScore).
		Str("alert_level", point.AlertLevel).
		Int("sample_size", point.SampleSize).
		Msg("risk point computed")

	return point, nil
}

// BuildMentions collapses windowed articles into one mention per source
// group, carrying the latest stored sentiment for the group. Groups without
// a stored result score as uncertain; ungrouped rows become singleton
// mentions.
func (e *Engine) BuildMentions(ctx context.Context, articles []db.ArticleScope) ([]GroupMention, error) {
	byGroup := make(map[string]db.ArticleScope, len(articles))
	order := make([]string, 0, len(articles))
	groupIDs := make([]string, 0, len(articles))

	for _, a := range articles {
		gid := a.SourceGroupID
		if gid == "" {
			gid = fmt.Sprintf("legacy:%d", a.ArticleID)
		}
		if _, seen := byGroup[gid]; seen {
			continue
		}
		byGroup[gid] = a
		order = append(order, gid)
		if a.SourceGroupID != "" {
			groupIDs = append(groupIDs, gid)
		}
	}

	stored, err := e.store.LatestGroupSentiments(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	mentions := make([]GroupMention, 0, len(order))
	for _, gid := range order {
		a := byGroup[gid]
		mention := GroupMention{
			GroupID:     gid,
			Title:       a.Title,
			Description: a.Description,
			Outlet:      a.Outlet,
		}
		if result, ok := stored[gid]; ok {
			mention.SentimentScore = result.Score
			mention.SentimentLabel = result.Label
			mention.Confidence = result.Confidence
		} else {
			mention.SentimentLabel = "uncertain"
		}
		mentions = append(mentions, mention)
	}

	return mentions, nil
}

// FilterByIP narrows company articles to one IP by keyword match. The
// aggregate IP keeps everything.
func FilterByIP(articles []db.ArticleScope, ip catalog.IP) []db.ArticleScope {
	if ip.IsAggregate() {
		return articles
	}
	scoped := make([]db.ArticleScope, 0, len(articles))
	for _, a := range articles {
		text := strings.ToLower(a.Title + " " + a.Description)
		if ip.Matches(text) {
			scoped = append(scoped, a)
		}
	}
	return scoped
}

// HourlyCounts buckets article arrivals into UTC hours, falling back to the
// publish date midnight when no timestamp was delivered.
func HourlyCounts(articles []db.ArticleScope) map[time.Time]int {
	counts := make(map[time.Time]int, len(articles))
	for _, a := range articles {
		counts[articleInstant(a).Truncate(time.Hour)]++
	}
	return counts
}

// Count1h counts raw article arrivals in the rolling hour ending at the
// given instant.
func Count1h(articles []db.ArticleScope, at time.Time) int {
	at = at.UTC()
	from := at.Add(-time.Hour)
	count := 0
	for _, a := range articles {
		ts := articleInstant(a)
		if ts.After(from) && !ts.After(at) {
			count++
		}
	}
	return count
}

// OutletHosts lists each windowed article's outlet host, one entry per raw
// article. Articles with no outlet still take a slot so the share math sees
// every raw arrival.
func OutletHosts(articles []db.ArticleScope) []string {
	hosts := make([]string, 0, len(articles))
	for _, a := range articles {
		hosts = append(hosts, a.Outlet)
	}
	return hosts
}

func inWindow(articles []db.ArticleScope, from, to time.Time) []db.ArticleScope {
	var out []db.ArticleScope
	for _, a := range articles {
		ts := articleInstant(a)
		if !ts.Before(from) && !ts.After(to) {
			out = append(out, a)
		}
	}
	return out
}

func articleInstant(a db.ArticleScope) time.Time {
	if a.PublishedAt != nil {
		return a.PublishedAt.UTC()
	}
	return a.PublishedDate.UTC()
}
