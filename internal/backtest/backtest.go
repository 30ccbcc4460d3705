package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/globaltime"
	"github.com/prwatch/prwatch/internal/risk"
	"github.com/prwatch/prwatch/internal/sentiment"
)

// Event types emitted when a replayed score crosses an alert band.
const (
	EventP1Enter = "P1_enter"
	EventP1Exit  = "P1_exit"
	EventP2Enter = "P2_enter"
	EventP2Exit  = "P2_exit"
)

// Store is the persistence surface replay needs beyond the engine's reads.
type Store interface {
	risk.Store
	GroupsMissingSentiment(ctx context.Context, groupIDs []string) ([]string, error)
	CanonicalArticleForGroup(ctx context.Context, groupID string) (*db.ArticleScope, error)
	InsertSentimentResult(ctx context.Context, row db.InsertSentimentRow) error
}

// Params configures one replay. WindowHours and Weights override the
// engine's configured values when set, so formula changes can be validated
// against history without redeploying.
type Params struct {
	IP          string
	From        time.Time
	To          time.Time
	WindowHours int
	StepHours   int
	Weights     *risk.Weights
	Persist     bool
}

// Event is one alert band crossing inside a replay.
type Event struct {
	TS    time.Time `json:"ts"`
	Type  string    `json:"type"`
	Score float64   `json:"score"`
}

// Summary aggregates one replay.
type Summary struct {
	Points            int       `json:"points"`
	MaxScore          float64   `json:"max_score"`
	MaxRiskAt         time.Time `json:"max_risk_at"`
	AvgScore          float64   `json:"avg_score"`
	P1Count           int       `json:"p1_count"`
	P2Count           int       `json:"p2_count"`
	DominantComponent string    `json:"dominant_component"`
}

// Result is one finished replay.
type Result struct {
	IP      string       `json:"ip"`
	From    time.Time    `json:"from"`
	To      time.Time    `json:"to"`
	Points  []risk.Point `json:"points"`
	Events  []Event      `json:"events"`
	Summary Summary      `json:"summary"`
}

// Runner replays historical article data through the scoring step.
type Runner struct {
	store  Store
	engine *risk.Engine
	logger zerolog.Logger
}

func NewRunner(store Store, engine *risk.Engine, logger zerolog.Logger) *Runner {
	return &Runner{
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// Run replays [From, To] at the configured step. Each step scores the same
// mention window the live path would have seen at that instant, chained
// through the same smoothing, so a replay over live history reproduces the
// stored curve. Equal endpoints replay a single step.
func (r *Runner) Run(ctx context.Context, params Params) (*Result, error) {
	ip, err := catalog.Resolve(params.IP)
	if err != nil {
		return nil, err
	}

	from := params.From.UTC()
	to := params.To.UTC()
	if from.IsZero() || to.IsZero() || from.After(to) {
		return nil, fmt.Errorf("%w: from must not exceed to", risk.ErrInvalidRange)
	}
	if params.StepHours < 1 || params.StepHours > 24 {
		return nil, fmt.Errorf("%w: step must be between 1 and 24 hours", risk.ErrInvalidRange)
	}
	step := time.Duration(params.StepHours) * time.Hour

	window := r.engine.Window()
	if params.WindowHours != 0 {
		window = time.Duration(params.WindowHours) * time.Hour
		if window < risk.MinWindow || window > risk.MaxWindow {
			return nil, fmt.Errorf("%w: window must be between 1 hour and 7 days", risk.ErrInvalidRange)
		}
	}

	stepParams := r.engine.Params()
	if params.Weights != nil {
		if !params.Weights.Valid() {
			return nil, fmt.Errorf("%w: weights must be non-negative with a positive sum", risk.ErrInvalidRange)
		}
		stepParams.Weights = *params.Weights
	}

	baselineFrom := from.Add(-risk.BaselineDays * 24 * time.Hour)
	articles, err := r.store.CompanyArticlesInRange(ctx, r.engine.Company(), baselineFrom, to)
	if err != nil {
		return nil, err
	}
	scoped := risk.FilterByIP(articles, ip)

	if err := r.ensureGroupSentiments(ctx, scoped); err != nil {
		return nil, err
	}

	hourly := risk.HourlyCounts(scoped)

	result := &Result{IP: ip.Slug, From: from, To: to}
	var prev *float64

	for at := from; !at.After(to); at = at.Add(step) {
		windowed := articlesInWindow(scoped, at.Add(-window), at)

		var point risk.Point
		if len(windowed) == 0 {
			prevScore := 0.0
			if prev != nil {
				prevScore = *prev
			}
			point = decayedPoint(at, prevScore)
		} else {
			mentions, err := r.engine.BuildMentions(ctx, windowed)
			if err != nil {
				return nil, err
			}
			point = risk.ComputeStep(stepParams, risk.StepInput{
				At:           at,
				Mentions:     mentions,
				OutletHosts:  risk.OutletHosts(windowed),
				HourlyCounts: hourly,
				HistoryFrom:  at.Add(-risk.BaselineDays * 24 * time.Hour),
				Count1h:      risk.Count1h(scoped, at),
				PrevScore:    prev,
			})
		}

		if len(result.Points) > 0 {
			result.Events = append(result.Events, diffEvents(result.Points[len(result.Points)-1], point)...)
		}
		result.Points = append(result.Points, point)

		score := point.RiskScore
		prev = &score

		if params.Persist {
			if err := r.engine.Persist(ctx, ip, point); err != nil {
				return nil, err
			}
		}
	}

	result.Summary = summarize(result.Points, stepParams.Weights.Normalized())

	r.logger.Info().
		Str("ip", ip.Slug).
		Time("from", from).
		Time("to", to).
		Int("points", result.Summary.Points).
		Int("events", len(result.Events)).
		Float64("max_score", result.Summary.MaxScore).
		Msg("backtest finished")

	return result, nil
}

// ensureGroupSentiments backfills sentiment for groups whose articles
// predate the classifier, scoring the group's canonical article.
func (r *Runner) ensureGroupSentiments(ctx context.Context, articles []db.ArticleScope) error {
	seen := make(map[string]struct{}, len(articles))
	var groupIDs []string
	for _, a := range articles {
		if a.SourceGroupID == "" {
			continue
		}
		if _, ok := seen[a.SourceGroupID]; ok {
			continue
		}
		seen[a.SourceGroupID] = struct{}{}
		groupIDs = append(groupIDs, a.SourceGroupID)
	}

	missing, err := r.store.GroupsMissingSentiment(ctx, groupIDs)
	if err != nil {
		return err
	}

	for _, gid := range missing {
		canonical, err := r.store.CanonicalArticleForGroup(ctx, gid)
		if err != nil {
			return err
		}
		if canonical == nil {
			continue
		}
		scored := sentiment.Analyze(canonical.Title, canonical.Description)
		if err := r.store.InsertSentimentResult(ctx, db.InsertSentimentRow{
			ArticleID:     canonical.ArticleID,
			SourceGroupID: gid,
			Score:         scored.Score,
			Label:         scored.Label,
			Confidence:    scored.Confidence,
			Method:        scored.Method,
			AnalyzedAt:    globaltime.UTC(),
		}); err != nil {
			return err
		}
	}

	return nil
}

// decayedPoint is the replay-only empty-window step: components zero, score
// decaying toward quiet.
func decayedPoint(at time.Time, prevScore float64) risk.Point {
	score := math.Min(100, math.Max(0, prevScore*0.9))
	return risk.Point{
		TS:          at.UTC(),
		RiskScore:   round1(score),
		AlertLevel:  risk.AlertLevelFor(score),
		QualityFlag: risk.QualityLowSample,
	}
}

// diffEvents emits enter and exit events for the exclusive alert bands a
// score moved between across two consecutive points. A P2 to P1 jump leaves
// the P2 band and enters the P1 band, so it carries both events.
func diffEvents(prev, next risk.Point) []Event {
	prevP1 := prev.AlertLevel == risk.AlertP1
	nextP1 := next.AlertLevel == risk.AlertP1
	prevP2 := prev.AlertLevel == risk.AlertP2
	nextP2 := next.AlertLevel == risk.AlertP2

	var events []Event
	if nextP1 && !prevP1 {
		events = append(events, Event{TS: next.TS, Type: EventP1Enter, Score: next.RiskScore})
	}
	if prevP1 && !nextP1 {
		events = append(events, Event{TS: next.TS, Type: EventP1Exit, Score: next.RiskScore})
	}
	if nextP2 && !prevP2 {
		events = append(events, Event{TS: next.TS, Type: EventP2Enter, Score: next.RiskScore})
	}
	if prevP2 && !nextP2 {
		events = append(events, Event{TS: next.TS, Type: EventP2Exit, Score: next.RiskScore})
	}
	return events
}

// summarize aggregates a replayed series. The dominant component compares
// weighted contributions, so a middling component with a heavy weight can
// outrank a saturated one with a light weight.
func summarize(points []risk.Point, w risk.Weights) Summary {
	summary := Summary{Points: len(points)}
	if len(points) == 0 {
		return summary
	}

	summary.MaxRiskAt = points[0].TS

	var total float64
	var sums [4]float64
	for _, p := range points {
		total += p.RiskScore
		if p.RiskScore > summary.MaxScore {
			summary.MaxScore = p.RiskScore
			summary.MaxRiskAt = p.TS
		}
		switch p.AlertLevel {
		case risk.AlertP1:
			summary.P1Count++
		case risk.AlertP2:
			summary.P2Count++
		}
		sums[0] += p.SentimentComp * w.Sentiment
		sums[1] += p.VolumeComp * w.Volume
		sums[2] += p.ThemeComp * w.Theme
		sums[3] += p.OutletComp * w.Outlet
	}

	summary.AvgScore = round1(total / float64(len(points)))

	names := [4]string{"S", "V", "T", "M"}
	best := 0
	for i := 1; i < len(sums); i++ {
		if sums[i] > sums[best] {
			best = i
		}
	}
	summary.DominantComponent = names[best]

	return summary
}

func articlesInWindow(articles []db.ArticleScope, from, to time.Time) []db.ArticleScope {
	var out []db.ArticleScope
	for _, a := range articles {
		ts := articleTimestamp(a)
		if !ts.Before(from) && !ts.After(to) {
			out = append(out, a)
		}
	}
	return out
}

func articleTimestamp(a db.ArticleScope) time.Time {
	if a.PublishedAt != nil {
		return a.PublishedAt.UTC()
	}
	return a.PublishedDate.UTC()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
