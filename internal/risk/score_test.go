package risk

import (
	"math"
	"testing"
	"time"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSentimentComponent(t *testing.T) {
	t.Parallel()

	mentions := []GroupMention{
		{SentimentScore: -0.8, SentimentLabel: "negative", Confidence: 0.9},
		{SentimentScore: 0.5, SentimentLabel: "positive", Confidence: 1.0},
	}
	// max(0, 0.8)*0.9 = 0.72 and the positive mention contributes nothing.
	if got := sentimentComponent(mentions); !almostEqual(got, 0.36) {
		t.Fatalf("sentiment component = %v, want 0.36", got)
	}
}

func TestSentimentComponent_UncertainDiscount(t *testing.T) {
	t.Parallel()

	mentions := []GroupMention{
		{SentimentScore: -1.0, SentimentLabel: "uncertain", Confidence: 0.9},
	}
	if got := sentimentComponent(mentions); !almostEqual(got, 0.3) {
		t.Fatalf("uncertain mention = %v, want 0.3", got)
	}
	if got := sentimentComponent(nil); got != 0 {
		t.Fatalf("empty mentions = %v, want 0", got)
	}
}

func TestVolumeComponent_SpikeSaturates(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:30:00Z")
	historyFrom := at.Add(-BaselineDays * 24 * time.Hour)

	// Quiet baseline, then a large arrival burst in the rolling hour.
	v, z := volumeComponent(at, historyFrom, map[time.Time]int{}, 40)
	if v < 0.99 {
		t.Fatalf("spike over a silent baseline = %v, want near 1", v)
	}
	if z < 2 {
		t.Fatalf("spike z = %v, want the raw z-score, not a squashed value", z)
	}
}

func TestVolumeComponent_FlatBaselineIsNeutral(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:30:00Z")
	historyFrom := at.Add(-BaselineDays * 24 * time.Hour)

	hourly := make(map[time.Time]int)
	for h := historyFrom; h.Before(at); h = h.Add(time.Hour) {
		hourly[h.Truncate(time.Hour)] = 2
	}

	// The rolling count equals the baseline mean, so z is 0.
	v, z := volumeComponent(at, historyFrom, hourly, 2)
	if !almostEqual(v, 0.5) {
		t.Fatalf("flat baseline = %v, want 0.5", v)
	}
	if z != 0 {
		t.Fatalf("flat baseline z = %v, want 0", z)
	}
}

func TestVolumeComponent_Monotonic(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:30:00Z")
	historyFrom := at.Add(-2 * 24 * time.Hour)

	low, _ := volumeComponent(at, historyFrom, nil, 3)
	high, _ := volumeComponent(at, historyFrom, nil, 9)
	if high <= low {
		t.Fatalf("a larger rolling count must not lower the volume component")
	}
}

func TestVolumeComponent_CurrentHourExcludedFromBaseline(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:30:00Z")
	historyFrom := at.Add(-2 * 24 * time.Hour)

	// A busy current hour bucket must not inflate its own baseline.
	withCurrent := map[time.Time]int{at.Truncate(time.Hour): 50}
	vCurrent, _ := volumeComponent(at, historyFrom, withCurrent, 50)
	vEmpty, _ := volumeComponent(at, historyFrom, nil, 50)
	if vCurrent != vEmpty {
		t.Fatalf("current partial hour leaked into the baseline: %v vs %v", vCurrent, vEmpty)
	}
}

func TestThemeComponent(t *testing.T) {
	t.Parallel()

	mentions := []GroupMention{
		{Title: "확률형 아이템 논란"},  // monetization, weight 1.0
		{Title: "신작 출시 일정 공개"}, // launch news, weight 0.4
		{Title: "주가 전망"},       // no theme
	}
	// (1.0 + 0.4 + 0) / 3, the unthemed mention contributes nothing.
	want := 1.4 / 3
	if got := themeComponent(mentions); !almostEqual(got, want) {
		t.Fatalf("theme component = %v, want %v", got, want)
	}
}

func TestThemeComponent_UnthemedTextScoresZero(t *testing.T) {
	t.Parallel()

	mentions := []GroupMention{
		{Title: "주가 전망"},
		{Title: "사옥 이전 소식"},
	}
	if got := themeComponent(mentions); got != 0 {
		t.Fatalf("theme component over unthemed coverage = %v, want 0", got)
	}
}

func TestOutletComponent(t *testing.T) {
	t.Parallel()

	hosts := []string{"yna.co.kr", "inven.co.kr", "smallblog.example.com"}
	// (1.0 + 0.7 + 0.4) / 3
	if got := outletComponent(hosts); !almostEqual(got, 0.7) {
		t.Fatalf("outlet component = %v, want 0.7", got)
	}
	// A raw article with no resolvable outlet takes the floor weight.
	if got := outletComponent([]string{""}); !almostEqual(got, 0.4) {
		t.Fatalf("unknown outlet = %v, want 0.4", got)
	}
	if got := outletComponent(nil); got != 0 {
		t.Fatalf("empty hosts = %v, want 0", got)
	}
}

func TestComputeStep_ColdStartUsesRaw(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:00:00Z")
	in := StepInput{
		At: at,
		Mentions: []GroupMention{
			{Title: "확률 조작 소송", SentimentScore: -1.0, SentimentLabel: "negative", Confidence: 1.0},
		},
		OutletHosts: []string{"yna.co.kr"},
		HistoryFrom: at.Add(-BaselineDays * 24 * time.Hour),
		Count1h:     30,
	}

	point := ComputeStep(DefaultParams(), in)

	if point.RiskRaw != point.RiskScore {
		t.Fatalf("cold start: raw %v must equal smoothed %v", point.RiskRaw, point.RiskScore)
	}
	// S=1.0, V~1, T=1.0, M=1.0 puts the raw score near 100.
	if point.RiskScore < AlertP1Threshold {
		t.Fatalf("score = %v, want >= %v", point.RiskScore, AlertP1Threshold)
	}
	if point.AlertLevel != AlertP1 {
		t.Fatalf("alert = %s, want P1", point.AlertLevel)
	}
	if point.QualityFlag != "" {
		t.Fatalf("a window with mentions must not flag %s, got %q", QualityLowSample, point.QualityFlag)
	}
}

func TestComputeStep_EMASmoothing(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:00:00Z")
	prev := 50.0

	mentions := []GroupMention{
		{Title: "신작 출시", SentimentLabel: "positive", Confidence: 1.0},
		{Title: "신작 흥행", SentimentLabel: "positive", Confidence: 1.0},
		{Title: "신작 매출", SentimentLabel: "positive", Confidence: 1.0},
	}

	in := StepInput{
		At:          at,
		Mentions:    mentions,
		HistoryFrom: at.Add(-24 * time.Hour),
		Count1h:     12,
		PrevScore:   &prev,
	}

	params := DefaultParams()
	full := ComputeStep(params, in)

	// Twelve raw arrivals clear the low-sample floor, so alpha is 0.3.
	want := round1(0.7*prev + 0.3*full.RiskRaw)
	if full.RiskScore != want {
		t.Fatalf("smoothed = %v, want %v", full.RiskScore, want)
	}

	in.Count1h = 3
	low := ComputeStep(params, in)
	wantLow := round1(0.9*prev + 0.1*low.RiskRaw)
	if low.RiskScore != wantLow {
		t.Fatalf("low-sample smoothed = %v, want %v", low.RiskScore, wantLow)
	}
}

func TestComputeStep_SyndicatedSpikeSmoothsAtFullAlpha(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:00:00Z")
	prev := 0.0

	// A wire story echoed by 40 outlets collapses to 3 groups, but the raw
	// arrival count is what gates the damping.
	in := StepInput{
		At: at,
		Mentions: []GroupMention{
			{Title: "확률 조작 논란", SentimentScore: -1.0, SentimentLabel: "negative", Confidence: 1.0},
			{Title: "확률 조작 파문", SentimentScore: -0.9, SentimentLabel: "negative", Confidence: 0.9},
			{Title: "확률 조작 후폭풍", SentimentScore: -0.8, SentimentLabel: "negative", Confidence: 0.8},
		},
		HistoryFrom: at.Add(-BaselineDays * 24 * time.Hour),
		Count1h:     40,
		PrevScore:   &prev,
	}

	point := ComputeStep(DefaultParams(), in)
	if math.Abs(point.RiskScore-0.3*point.RiskRaw) > 0.1 {
		t.Fatalf("smoothed = %v, want about %v at alpha 0.3", point.RiskScore, 0.3*point.RiskRaw)
	}
	if point.RiskScore <= 0.2*point.RiskRaw {
		t.Fatalf("smoothed = %v looks damped at the low-sample alpha for raw %v", point.RiskScore, point.RiskRaw)
	}
}

func TestComputeStep_BreakdownFields(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:00:00Z")
	in := StepInput{
		At: at,
		Mentions: []GroupMention{
			{Title: "서버 장애", SentimentScore: -0.5, SentimentLabel: "negative", Confidence: 0.8},
			{Title: "보상안 발표", SentimentScore: -0.2, SentimentLabel: "negative", Confidence: 0.6},
		},
		OutletHosts: []string{"yna.co.kr", "a.com", "b.com", "c.com", "d.com", "e.com"},
		HistoryFrom: at.Add(-BaselineDays * 24 * time.Hour),
		Count1h:     6,
	}

	point := ComputeStep(DefaultParams(), in)

	if point.Count1h != 6 {
		t.Fatalf("count_1h = %d, want 6", point.Count1h)
	}
	// 6 raw articles over 2 groups.
	if !almostEqual(point.SpreadRatio, 3) {
		t.Fatalf("spread ratio = %v, want 3", point.SpreadRatio)
	}
	if point.ZScore <= 0 {
		t.Fatalf("z-score = %v, want positive for arrivals over a silent baseline", point.ZScore)
	}
}

func TestComputeStep_EmptyWindowFlagsLowSample(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:00:00Z")
	point := ComputeStep(DefaultParams(), StepInput{
		At:          at,
		HistoryFrom: at.Add(-BaselineDays * 24 * time.Hour),
	})

	if point.QualityFlag != QualityLowSample {
		t.Fatalf("zero groups must flag %s, got %q", QualityLowSample, point.QualityFlag)
	}
	if point.SampleSize != 0 || point.SpreadRatio != 0 {
		t.Fatalf("empty window point = %+v, want zero sample and spread", point)
	}
}

func TestComputeStep_Deterministic(t *testing.T) {
	t.Parallel()

	at := ts("2026-08-10T12:00:00Z")
	prev := 33.3
	in := StepInput{
		At: at,
		Mentions: []GroupMention{
			{Title: "서버 장애 불만", SentimentScore: -0.4, SentimentLabel: "negative", Confidence: 0.7},
			{Title: "보상안 발표", SentimentScore: -0.1, SentimentLabel: "uncertain", Confidence: 0.3},
		},
		OutletHosts: []string{"inven.co.kr", "inven.co.kr"},
		HistoryFrom: at.Add(-BaselineDays * 24 * time.Hour),
		Count1h:     2,
		PrevScore:   &prev,
	}

	params := DefaultParams()
	a := ComputeStep(params, in)
	b := ComputeStep(params, in)
	if a != b {
		t.Fatalf("identical inputs produced different points: %+v vs %+v", a, b)
	}
	if a.UncertainRatio != 0.5 {
		t.Fatalf("uncertain ratio = %v, want 0.5", a.UncertainRatio)
	}
}

func TestWeightsRenormalize(t *testing.T) {
	t.Parallel()

	w := Weights{Sentiment: 9, Volume: 5, Theme: 4, Outlet: 2}.Normalized()
	sum := w.Sentiment + w.Volume + w.Theme + w.Outlet
	if !almostEqual(sum, 1) {
		t.Fatalf("normalized weights sum = %v, want 1", sum)
	}
	if !almostEqual(w.Sentiment, 0.45) {
		t.Fatalf("sentiment weight = %v, want 0.45", w.Sentiment)
	}

	if (Weights{}).Normalized() != DefaultWeights {
		t.Fatalf("degenerate weights should fall back to defaults")
	}
}

func TestWeightsValid(t *testing.T) {
	t.Parallel()

	if !DefaultWeights.Valid() {
		t.Fatalf("default weights must be valid")
	}
	if (Weights{Sentiment: -0.1, Volume: 0.5, Theme: 0.4, Outlet: 0.2}).Valid() {
		t.Fatalf("negative weight must be invalid")
	}
	if (Weights{}).Valid() {
		t.Fatalf("all-zero weights must be invalid")
	}
}

func TestAlertLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  string
	}{
		{score: 85, want: AlertP1},
		{score: 70, want: AlertP1},
		{score: 69.9, want: AlertP2},
		{score: 45, want: AlertP2},
		{score: 44.9, want: AlertP3},
		{score: 0, want: AlertP3},
	}
	for _, tt := range tests {
		if got := AlertLevelFor(tt.score); got != tt.want {
			t.Fatalf("AlertLevelFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
