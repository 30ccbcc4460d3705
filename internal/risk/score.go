package risk

import (
	"math"
	"time"

	"github.com/prwatch/prwatch/internal/catalog"
)

// Alert levels ordered by severity.
const (
	AlertP1 = "P1"
	AlertP2 = "P2"
	AlertP3 = "P3"
)

// Alert thresholds on the smoothed score.
const (
	AlertP1Threshold = 70.0
	AlertP2Threshold = 45.0
)

// QualityLowSample marks points computed with no representative groups in
// the window, distinguishing "genuinely quiet" from "no data collected yet".
const QualityLowSample = "LOW_SAMPLE"

// uncertainWeight discounts mentions whose sentiment label is uncertain.
const uncertainWeight = 0.3

// BaselineDays is how much hourly history feeds the volume z-score.
const BaselineDays = 7

// minSameHourBuckets is how many same-hour-of-day baseline buckets must
// exist before the z-score narrows to them.
const minSameHourBuckets = 3

// Weights splits the raw score across the four components. Values are
// renormalized before use, so only their ratios matter.
type Weights struct {
	Sentiment float64
	Volume    float64
	Theme     float64
	Outlet    float64
}

// DefaultWeights is the production component split.
var DefaultWeights = Weights{Sentiment: 0.45, Volume: 0.25, Theme: 0.20, Outlet: 0.10}

// Valid reports whether the weights can be renormalized: none negative and
// the sum positive.
func (w Weights) Valid() bool {
	if w.Sentiment < 0 || w.Volume < 0 || w.Theme < 0 || w.Outlet < 0 {
		return false
	}
	return w.Sentiment+w.Volume+w.Theme+w.Outlet > 0
}

// Normalized rescales the weights to sum to 1, falling back to the defaults
// on a degenerate sum.
func (w Weights) Normalized() Weights {
	sum := w.Sentiment + w.Volume + w.Theme + w.Outlet
	if sum <= 0 {
		return DefaultWeights
	}
	return Weights{
		Sentiment: w.Sentiment / sum,
		Volume:    w.Volume / sum,
		Theme:     w.Theme / sum,
		Outlet:    w.Outlet / sum,
	}
}

// Params are the scoring knobs shared by the live path and replay.
type Params struct {
	Weights        Weights
	EMAAlpha       float64
	LowSampleAlpha float64
	LowSampleCount int
}

// DefaultParams mirrors the production configuration defaults.
func DefaultParams() Params {
	return Params{
		Weights:        DefaultWeights,
		EMAAlpha:       0.3,
		LowSampleAlpha: 0.1,
		LowSampleCount: 10,
	}
}

// GroupMention is one deduplicated story inside the scoring window.
type GroupMention struct {
	GroupID        string
	Title          string
	Description    string
	Outlet         string
	SentimentScore float64
	SentimentLabel string
	Confidence     float64
}

// StepInput is everything one scoring step reads.
type StepInput struct {
	At           time.Time
	Mentions     []GroupMention
	OutletHosts  []string          // one entry per raw article in the window
	HourlyCounts map[time.Time]int // UTC hour-truncated arrival counts
	HistoryFrom  time.Time         // start of the hourly baseline range
	Count1h      int               // raw articles in the rolling last hour
	PrevScore    *float64          // last smoothed score, nil on cold start
}

// Point is one computed risk sample.
type Point struct {
	TS             time.Time `json:"ts"`
	RiskRaw        float64   `json:"risk_raw"`
	RiskScore      float64   `json:"risk_score"`
	SentimentComp  float64   `json:"s_comp"`
	VolumeComp     float64   `json:"v_comp"`
	ThemeComp      float64   `json:"t_comp"`
	OutletComp     float64   `json:"m_comp"`
	ZScore         float64   `json:"z_score"`
	AlertLevel     string    `json:"alert_level"`
	SampleSize     int       `json:"sample_size"`
	Count1h        int       `json:"count_1h"`
	SpreadRatio    float64   `json:"spread_ratio"`
	UncertainRatio float64   `json:"uncertain_ratio"`
	QualityFlag    string    `json:"quality_flag,omitempty"`
}

// ComputeStep runs one scoring step. It is pure: replayed history and the
// live path produce identical points for identical inputs.
func ComputeStep(p Params, in StepInput) Point {
	s := sentimentComponent(in.Mentions)
	v, z := volumeComponent(in.At, in.HistoryFrom, in.HourlyCounts, in.Count1h)
	t := themeComponent(in.Mentions)
	m := outletComponent(in.OutletHosts)

	w := p.Weights.Normalized()
	raw := 100 * (w.Sentiment*s + w.Volume*v + w.Theme*t + w.Outlet*m)
	raw = clampScore(raw)

	sample := len(in.Mentions)
	smoothed := raw
	if in.PrevScore != nil {
		alpha := p.EMAAlpha
		if in.Count1h < p.LowSampleCount {
			alpha = p.LowSampleAlpha
		}
		smoothed = (1-alpha)*(*in.PrevScore) + alpha*raw
	}
	smoothed = clampScore(smoothed)

	uncertain := 0
	for _, mention := range in.Mentions {
		if mention.SentimentLabel == "uncertain" {
			uncertain++
		}
	}
	uncertainRatio := 0.0
	if sample > 0 {
		uncertainRatio = float64(uncertain) / float64(sample)
	}

	quality := ""
	if sample == 0 {
		quality = QualityLowSample
	}

	return Point{
		TS:             in.At.UTC(),
		RiskRaw:        round1(raw),
		RiskScore:      round1(smoothed),
		SentimentComp:  round3(s),
		VolumeComp:     round3(v),
		ThemeComp:      round3(t),
		OutletComp:     round3(m),
		ZScore:         round3(z),
		AlertLevel:     AlertLevelFor(smoothed),
		SampleSize:     sample,
		Count1h:        in.Count1h,
		SpreadRatio:    round3(float64(len(in.OutletHosts)) / math.Max(float64(sample), 1)),
		UncertainRatio: round3(uncertainRatio),
		QualityFlag:    quality,
	}
}

// sentimentComponent averages the negative pull of each mention, weighted by
// classifier confidence. Uncertain mentions carry a fixed discount instead.
func sentimentComponent(mentions []GroupMention) float64 {
	if len(mentions) == 0 {
		return 0
	}
	total := 0.0
	for _, m := range mentions {
		weight := m.Confidence
		if m.SentimentLabel == "uncertain" {
			weight = uncertainWeight
		}
		total += math.Max(0, -m.SentimentScore) * weight
	}
	return total / float64(len(mentions))
}

// volumeComponent maps the rolling last-hour arrival count onto a z-score
// against the hourly baseline histogram, narrowed to same-hour-of-day
// buckets when enough exist, then squashes it through a sigmoid. The
// current partial hour never feeds the baseline.
func volumeComponent(at, historyFrom time.Time, hourly map[time.Time]int, count1h int) (float64, float64) {
	at = at.UTC()
	currentHour := at.Truncate(time.Hour)
	current := float64(count1h)

	if historyFrom.IsZero() || !historyFrom.Before(currentHour) {
		return sigmoid(0), 0
	}

	var sameHour, all []float64
	for h := historyFrom.UTC().Truncate(time.Hour); h.Before(currentHour); h = h.Add(time.Hour) {
		count := float64(hourly[h])
		all = append(all, count)
		if h.Hour() == currentHour.Hour() {
			sameHour = append(sameHour, count)
		}
	}

	baseline := all
	if len(sameHour) >= minSameHourBuckets {
		baseline = sameHour
	}
	if len(baseline) == 0 {
		return sigmoid(0), 0
	}

	mean := 0.0
	for _, c := range baseline {
		mean += c
	}
	mean /= float64(len(baseline))

	variance := 0.0
	for _, c := range baseline {
		variance += (c - mean) * (c - mean)
	}
	std := math.Sqrt(variance / float64(len(baseline)))

	z := (current - mean) / math.Max(std, 1)
	return sigmoid(z), z
}

// themeComponent weights each mention by its first matching theme and takes
// the weighted share across the window. Mentions matching no theme
// contribute nothing.
func themeComponent(mentions []GroupMention) float64 {
	if len(mentions) == 0 {
		return 0
	}
	total := 0.0
	for _, m := range mentions {
		if theme, ok := catalog.ClassifyTheme(m.Title + " " + m.Description); ok {
			total += theme.Weight
		}
	}
	return total / float64(len(mentions))
}

// outletComponent averages outlet tier weights over raw articles, so a wire
// story echoed by many small sites does not read like tier-1 coverage.
// Articles with no resolvable outlet count at the floor weight.
func outletComponent(hosts []string) float64 {
	if len(hosts) == 0 {
		return 0
	}
	total := 0.0
	for _, host := range hosts {
		total += catalog.OutletWeight(host)
	}
	return total / float64(len(hosts))
}

// AlertLevelFor classifies a smoothed score into an alert level.
func AlertLevelFor(score float64) string {
	switch {
	case score >= AlertP1Threshold:
		return AlertP1
	case score >= AlertP2Threshold:
		return AlertP2
	default:
		return AlertP3
	}
}

func sigmoid(z float64) float64 {
	if z > 12 {
		z = 12
	} else if z < -12 {
		z = -12
	}
	return 1 / (1 + math.Exp(-z))
}

func clampScore(score float64) float64 {
	return math.Min(100, math.Max(0, score))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
