package backtest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/config"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/risk"
)

type fakeStore struct {
	articles   []db.ArticleScope
	sentiments map[string]db.GroupSentiment
	inserted   []db.InsertSentimentRow
	upserts    []db.UpsertRiskRow
}

func (f *fakeStore) CompanyArticlesInRange(_ context.Context, _ string, _, _ time.Time) ([]db.ArticleScope, error) {
	return f.articles, nil
}

func (f *fakeStore) LatestGroupSentiments(_ context.Context, groupIDs []string) (map[string]db.GroupSentiment, error) {
	out := make(map[string]db.GroupSentiment, len(groupIDs))
	for _, id := range groupIDs {
		if s, ok := f.sentiments[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStore) LatestRiskPoint(_ context.Context, _ string) (*db.RiskPointItem, error) {
	return nil, nil
}

func (f *fakeStore) UpsertRiskPoint(_ context.Context, row db.UpsertRiskRow) error {
	f.upserts = append(f.upserts, row)
	return nil
}

func (f *fakeStore) GroupsMissingSentiment(_ context.Context, groupIDs []string) ([]string, error) {
	var missing []string
	for _, id := range groupIDs {
		if _, ok := f.sentiments[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (f *fakeStore) CanonicalArticleForGroup(_ context.Context, groupID string) (*db.ArticleScope, error) {
	for _, a := range f.articles {
		if a.SourceGroupID == groupID {
			copied := a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertSentimentResult(_ context.Context, row db.InsertSentimentRow) error {
	f.inserted = append(f.inserted, row)
	if f.sentiments == nil {
		f.sentiments = make(map[string]db.GroupSentiment)
	}
	f.sentiments[row.SourceGroupID] = db.GroupSentiment{
		SourceGroupID: row.SourceGroupID,
		Score:         row.Score,
		Label:         row.Label,
		Confidence:    row.Confidence,
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Company:         "넥슨",
		RiskWindowHours: 24,
		WeightSentiment: 0.45,
		WeightVolume:    0.25,
		WeightTheme:     0.20,
		WeightOutlet:    0.10,
		EMAAlpha:        0.3,
		LowSampleAlpha:  0.1,
		LowSampleCount:  10,
	}
}

func newTestRunner(store *fakeStore) *Runner {
	engine := risk.NewEngine(store, testConfig(), zerolog.Nop())
	return NewRunner(store, engine, zerolog.Nop())
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func negativeArticle(id int64, gid string, at time.Time) db.ArticleScope {
	published := at
	return db.ArticleScope{
		ArticleID:     id,
		Title:         "넥슨 확률 조작 논란 소송",
		Outlet:        "yna.co.kr",
		PublishedAt:   &published,
		PublishedDate: at.Truncate(24 * time.Hour),
		SourceGroupID: gid,
	}
}

func TestRun_RejectsInvalidParams(t *testing.T) {
	t.Parallel()

	runner := newTestRunner(&fakeStore{})
	ctx := context.Background()
	from := ts("2026-08-01T00:00:00Z")
	to := ts("2026-08-03T00:00:00Z")

	if _, err := runner.Run(ctx, Params{IP: "all", From: to, To: from, StepHours: 1}); !errors.Is(err, risk.ErrInvalidRange) {
		t.Fatalf("reversed range: err = %v, want ErrInvalidRange", err)
	}
	if _, err := runner.Run(ctx, Params{IP: "all", From: from, To: to, StepHours: 0}); !errors.Is(err, risk.ErrInvalidRange) {
		t.Fatalf("step 0: err = %v, want ErrInvalidRange", err)
	}
	if _, err := runner.Run(ctx, Params{IP: "all", From: from, To: to, StepHours: 25}); !errors.Is(err, risk.ErrInvalidRange) {
		t.Fatalf("step 25: err = %v, want ErrInvalidRange", err)
	}
	if _, err := runner.Run(ctx, Params{IP: "no-such-ip", From: from, To: to, StepHours: 1}); !errors.Is(err, catalog.ErrUnsupportedIP) {
		t.Fatalf("unknown ip: err = %v, want ErrUnsupportedIP", err)
	}
}

func TestRun_EmptyHistoryStaysQuiet(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	runner := newTestRunner(store)

	result, err := runner.Run(context.Background(), Params{
		IP:        "all",
		From:      ts("2026-08-01T00:00:00Z"),
		To:        ts("2026-08-02T00:00:00Z"),
		StepHours: 6,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Summary.Points != 5 {
		t.Fatalf("points = %d, want 5", result.Summary.Points)
	}
	for _, p := range result.Points {
		if p.RiskScore != 0 || p.AlertLevel != risk.AlertP3 {
			t.Fatalf("quiet replay produced %+v", p)
		}
	}
	if len(result.Events) != 0 {
		t.Fatalf("quiet replay emitted %d events", len(result.Events))
	}
	if len(store.upserts) != 0 {
		t.Fatalf("replay without Persist wrote %d rows", len(store.upserts))
	}
}

func TestRun_SpikeRaisesAlertsAndEvents(t *testing.T) {
	t.Parallel()

	store := &fakeStore{sentiments: map[string]db.GroupSentiment{}}
	spikeAt := ts("2026-08-02T11:30:00Z")
	for i := int64(0); i < 15; i++ {
		gid := "g" + string(rune('a'+i))
		store.articles = append(store.articles, negativeArticle(i+1, gid, spikeAt))
		store.sentiments[gid] = db.GroupSentiment{SourceGroupID: gid, Score: -1.0, Label: "negative", Confidence: 1.0}
	}

	runner := newTestRunner(store)
	result, err := runner.Run(context.Background(), Params{
		IP:        "all",
		From:      ts("2026-08-01T00:00:00Z"),
		To:        ts("2026-08-03T00:00:00Z"),
		StepHours: 1,
		Persist:   true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Summary.MaxScore < risk.AlertP2Threshold {
		t.Fatalf("max score = %v, want a visible spike", result.Summary.MaxScore)
	}
	if result.Summary.P1Count+result.Summary.P2Count == 0 {
		t.Fatalf("spike produced no alert points")
	}

	var sawEnter bool
	for _, e := range result.Events {
		if e.Type == EventP2Enter || e.Type == EventP1Enter {
			sawEnter = true
		}
	}
	if !sawEnter {
		t.Fatalf("spike emitted no enter events: %+v", result.Events)
	}

	if len(store.upserts) != result.Summary.Points {
		t.Fatalf("persisted %d rows, want %d", len(store.upserts), result.Summary.Points)
	}
}

func TestRun_BackfillsMissingGroupSentiment(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		articles: []db.ArticleScope{
			negativeArticle(1, "g1", ts("2026-08-01T12:00:00Z")),
		},
	}
	runner := newTestRunner(store)

	if _, err := runner.Run(context.Background(), Params{
		IP:        "all",
		From:      ts("2026-08-01T00:00:00Z"),
		To:        ts("2026-08-02T00:00:00Z"),
		StepHours: 6,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("backfilled %d sentiment rows, want 1", len(store.inserted))
	}
	if store.inserted[0].SourceGroupID != "g1" {
		t.Fatalf("backfilled group = %q, want g1", store.inserted[0].SourceGroupID)
	}
}

func TestRun_SingleInstant(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-01T12:00:00Z")
	store := &fakeStore{
		articles: []db.ArticleScope{
			negativeArticle(1, "g1", at.Add(-time.Hour)),
		},
		sentiments: map[string]db.GroupSentiment{
			"g1": {SourceGroupID: "g1", Score: -1.0, Label: "negative", Confidence: 1.0},
		},
	}
	runner := newTestRunner(store)

	// Equal endpoints are a valid range: one step scoring that instant.
	result, err := runner.Run(context.Background(), Params{
		IP:        "all",
		From:      at,
		To:        at,
		StepHours: 1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Points) != 1 {
		t.Fatalf("points = %d, want 1", len(result.Points))
	}
	if result.Points[0].SampleSize != 1 {
		t.Fatalf("single step saw %d mentions, want 1", result.Points[0].SampleSize)
	}
}

func TestRun_WindowOverride(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-02T00:00:00Z")
	build := func() *fakeStore {
		return &fakeStore{
			articles: []db.ArticleScope{
				negativeArticle(1, "g1", at.Add(-10*time.Hour)),
			},
			sentiments: map[string]db.GroupSentiment{
				"g1": {SourceGroupID: "g1", Score: -1.0, Label: "negative", Confidence: 1.0},
			},
		}
	}

	params := Params{IP: "all", From: at, To: at, StepHours: 1}

	wide, err := newTestRunner(build()).Run(context.Background(), params)
	if err != nil {
		t.Fatalf("default window: %v", err)
	}
	if wide.Points[0].SampleSize != 1 {
		t.Fatalf("24h window missed the mention: %+v", wide.Points[0])
	}

	params.WindowHours = 6
	narrow, err := newTestRunner(build()).Run(context.Background(), params)
	if err != nil {
		t.Fatalf("narrow window: %v", err)
	}
	if narrow.Points[0].SampleSize != 0 {
		t.Fatalf("6h window still saw the 10h-old mention: %+v", narrow.Points[0])
	}

	params.WindowHours = 200
	if _, err := newTestRunner(build()).Run(context.Background(), params); !errors.Is(err, risk.ErrInvalidRange) {
		t.Fatalf("oversized window: err = %v, want ErrInvalidRange", err)
	}
}

func TestRun_WeightsOverride(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-01T12:00:00Z")
	build := func() *fakeStore {
		return &fakeStore{
			articles: []db.ArticleScope{
				negativeArticle(1, "g1", at.Add(-time.Hour)),
			},
			sentiments: map[string]db.GroupSentiment{
				"g1": {SourceGroupID: "g1", Score: -1.0, Label: "negative", Confidence: 1.0},
			},
		}
	}

	params := Params{IP: "all", From: at, To: at, StepHours: 1}

	baseline, err := newTestRunner(build()).Run(context.Background(), params)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}

	// All weight on sentiment: the same mention must score higher than under
	// the configured split.
	params.Weights = &risk.Weights{Sentiment: 1}
	heavy, err := newTestRunner(build()).Run(context.Background(), params)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if heavy.Points[0].RiskRaw <= baseline.Points[0].RiskRaw {
		t.Fatalf("sentiment-only weights raw = %v, want above baseline %v",
			heavy.Points[0].RiskRaw, baseline.Points[0].RiskRaw)
	}
	if heavy.Summary.DominantComponent != "S" {
		t.Fatalf("dominant = %q, want S", heavy.Summary.DominantComponent)
	}

	params.Weights = &risk.Weights{Sentiment: -0.5, Volume: 1}
	if _, err := newTestRunner(build()).Run(context.Background(), params); !errors.Is(err, risk.ErrInvalidRange) {
		t.Fatalf("negative weight: err = %v, want ErrInvalidRange", err)
	}
}

func TestDiffEvents_BandTransitions(t *testing.T) {
	t.Parallel()

	point := func(level string) risk.Point {
		return risk.Point{TS: ts("2026-08-01T12:00:00Z"), AlertLevel: level}
	}
	types := func(events []Event) []string {
		var out []string
		for _, e := range events {
			out = append(out, e.Type)
		}
		return out
	}

	cases := []struct {
		name string
		prev string
		next string
		want []string
	}{
		{"quiet to P2", risk.AlertP3, risk.AlertP2, []string{EventP2Enter}},
		{"P2 to P1", risk.AlertP2, risk.AlertP1, []string{EventP1Enter, EventP2Exit}},
		{"P1 back to P2", risk.AlertP1, risk.AlertP2, []string{EventP1Exit, EventP2Enter}},
		{"P1 straight to quiet", risk.AlertP1, risk.AlertP3, []string{EventP1Exit}},
		{"quiet jump to P1", risk.AlertP3, risk.AlertP1, []string{EventP1Enter}},
		{"steady P2", risk.AlertP2, risk.AlertP2, nil},
	}
	for _, tc := range cases {
		got := types(diffEvents(point(tc.prev), point(tc.next)))
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: events = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSummarize_WeightedDominantAndMaxRiskAt(t *testing.T) {
	t.Parallel()

	early := ts("2026-08-01T00:00:00Z")
	peak := ts("2026-08-01T06:00:00Z")

	// V saturates higher than S in raw terms, but S carries almost twice the
	// weight, so the weighted comparison must still pick S.
	points := []risk.Point{
		{TS: early, RiskScore: 40, SentimentComp: 0.6, VolumeComp: 0.9, AlertLevel: risk.AlertP3},
		{TS: peak, RiskScore: 55, SentimentComp: 0.6, VolumeComp: 0.9, AlertLevel: risk.AlertP2},
	}
	summary := summarize(points, risk.DefaultWeights.Normalized())

	if summary.DominantComponent != "S" {
		t.Fatalf("dominant = %q, want S from the weighted comparison", summary.DominantComponent)
	}
	if !summary.MaxRiskAt.Equal(peak) {
		t.Fatalf("max_risk_at = %v, want %v", summary.MaxRiskAt, peak)
	}
	if summary.MaxScore != 55 {
		t.Fatalf("max score = %v, want 55", summary.MaxScore)
	}
	if summary.P2Count != 1 {
		t.Fatalf("p2 count = %d, want 1", summary.P2Count)
	}
}

func TestDecayedPoint(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-01T12:00:00Z")
	point := decayedPoint(at, 50)

	if point.RiskScore != 45 {
		t.Fatalf("decayed score = %v, want 45", point.RiskScore)
	}
	if point.AlertLevel != risk.AlertP2 {
		t.Fatalf("alert = %s, want P2", point.AlertLevel)
	}
	if point.QualityFlag != risk.QualityLowSample {
		t.Fatalf("quality flag = %q, want %s", point.QualityFlag, risk.QualityLowSample)
	}
	if point.SentimentComp != 0 || point.VolumeComp != 0 || point.ThemeComp != 0 || point.OutletComp != 0 {
		t.Fatalf("decayed point carried components: %+v", point)
	}
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() *fakeStore {
		store := &fakeStore{sentiments: map[string]db.GroupSentiment{
			"g1": {SourceGroupID: "g1", Score: -0.7, Label: "negative", Confidence: 0.9},
		}}
		store.articles = []db.ArticleScope{
			negativeArticle(1, "g1", ts("2026-08-01T15:00:00Z")),
		}
		return store
	}

	params := Params{
		IP:        "all",
		From:      ts("2026-08-01T00:00:00Z"),
		To:        ts("2026-08-02T12:00:00Z"),
		StepHours: 3,
	}

	first, err := newTestRunner(build()).Run(context.Background(), params)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := newTestRunner(build()).Run(context.Background(), params)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first.Points, second.Points) {
		t.Fatalf("replays over identical data diverged")
	}
	if first.Summary != second.Summary {
		t.Fatalf("summaries diverged: %+v vs %+v", first.Summary, second.Summary)
	}
}
