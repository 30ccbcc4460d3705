package burst

import (
	"time"

	"github.com/prwatch/prwatch/internal/config"
)

// Polling modes.
const (
	ModeBase  = "base"
	ModeBurst = "burst"
)

// Event types recorded on mode transitions.
const (
	EventEnter = "enter"
	EventExit  = "exit"
)

// Trigger reasons, in reporting priority order within each transition.
const (
	ReasonRisk         = "risk_70"
	ReasonVolumeSpike  = "volume_spike"
	ReasonHardCap      = "hard_cap"
	ReasonSustainedLow = "sustained_low"
)

// Options are the state machine knobs.
type Options struct {
	BaseInterval      time.Duration
	BurstInterval     time.Duration
	MaxBurstDuration  time.Duration
	RiskThreshold     float64
	SpikeZThreshold   float64
	LowThreshold      float64
	LowSamples        int
	LowWindow         time.Duration
}

// DefaultOptions mirrors the production configuration defaults.
func DefaultOptions() Options {
	return Options{
		BaseInterval:     10 * time.Minute,
		BurstInterval:    2 * time.Minute,
		MaxBurstDuration: 2 * time.Hour,
		RiskThreshold:    70,
		SpikeZThreshold:  2.0,
		LowThreshold:     55,
		LowSamples:       6,
		LowWindow:        30 * time.Minute,
	}
}

// OptionsFromConfig builds state machine knobs from the app configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	if cfg.BaseIntervalSeconds > 0 {
		opts.BaseInterval = time.Duration(cfg.BaseIntervalSeconds) * time.Second
	}
	if cfg.BurstIntervalSeconds > 0 {
		opts.BurstInterval = time.Duration(cfg.BurstIntervalSeconds) * time.Second
	}
	if cfg.MaxBurstSeconds > 0 {
		opts.MaxBurstDuration = time.Duration(cfg.MaxBurstSeconds) * time.Second
	}
	if cfg.SpikeZThreshold > 0 {
		opts.SpikeZThreshold = cfg.SpikeZThreshold
	}
	if cfg.SustainedLowThreshold > 0 {
		opts.LowThreshold = cfg.SustainedLowThreshold
	}
	if cfg.SustainedLowSamples > 0 {
		opts.LowSamples = cfg.SustainedLowSamples
	}
	if cfg.SustainedLowWindowMins > 0 {
		opts.LowWindow = time.Duration(cfg.SustainedLowWindowMins) * time.Minute
	}
	return opts
}

// Sample is one smoothed risk observation feeding the release check.
type Sample struct {
	At    time.Time
	Score float64
}

// Input is everything one evaluation reads.
type Input struct {
	Now           time.Time
	RiskScore     float64
	VolumeZ       float64
	RecentSamples []Sample
}

// Decision is one evaluation outcome.
type Decision struct {
	Mode           string        `json:"mode"`
	Interval       time.Duration `json:"-"`
	IntervalSecs   int           `json:"interval_seconds"`
	Changed        bool          `json:"changed"`
	EventType      string        `json:"event_type,omitempty"`
	TriggerReason  string        `json:"trigger_reason,omitempty"`
	BurstRemaining time.Duration `json:"-"`
}

// Manager is the per-IP polling state machine. It is not safe for
// concurrent use; the registry serializes access.
type Manager struct {
	opts    Options
	mode    string
	burstAt time.Time
}

func NewManager(opts Options) *Manager {
	if opts.BaseInterval <= 0 {
		opts.BaseInterval = DefaultOptions().BaseInterval
	}
	if opts.BurstInterval <= 0 {
		opts.BurstInterval = DefaultOptions().BurstInterval
	}
	if opts.MaxBurstDuration <= 0 {
		opts.MaxBurstDuration = DefaultOptions().MaxBurstDuration
	}
	return &Manager{opts: opts, mode: ModeBase}
}

// Mode returns the current polling mode.
func (m *Manager) Mode() string {
	return m.mode
}

// Evaluate advances the state machine one step. Base mode escalates on a
// high risk score or a volume spike, with the risk trigger winning the
// reason when both fire. Burst mode releases on the hard duration cap or on
// a sustained run of low scores, with the cap winning the reason.
func (m *Manager) Evaluate(in Input) Decision {
	now := in.Now.UTC()

	switch m.mode {
	case ModeBurst:
		elapsed := now.Sub(m.burstAt)
		capped := elapsed >= m.opts.MaxBurstDuration
		low := m.sustainedLow(now, in.RecentSamples)

		if capped || low {
			m.mode = ModeBase
			m.burstAt = time.Time{}
			reason := ReasonSustainedLow
			if capped {
				reason = ReasonHardCap
			}
			return Decision{
				Mode:          ModeBase,
				Interval:      m.opts.BaseInterval,
				IntervalSecs:  int(m.opts.BaseInterval / time.Second),
				Changed:       true,
				EventType:     EventExit,
				TriggerReason: reason,
			}
		}

		return Decision{
			Mode:           ModeBurst,
			Interval:       m.opts.BurstInterval,
			IntervalSecs:   int(m.opts.BurstInterval / time.Second),
			BurstRemaining: m.opts.MaxBurstDuration - elapsed,
		}

	default:
		highRisk := in.RiskScore >= m.opts.RiskThreshold
		spike := in.VolumeZ >= m.opts.SpikeZThreshold

		if highRisk || spike {
			m.mode = ModeBurst
			m.burstAt = now
			reason := ReasonVolumeSpike
			if highRisk {
				reason = ReasonRisk
			}
			return Decision{
				Mode:           ModeBurst,
				Interval:       m.opts.BurstInterval,
				IntervalSecs:   int(m.opts.BurstInterval / time.Second),
				Changed:        true,
				EventType:      EventEnter,
				TriggerReason:  reason,
				BurstRemaining: m.opts.MaxBurstDuration,
			}
		}

		return Decision{
			Mode:         ModeBase,
			Interval:     m.opts.BaseInterval,
			IntervalSecs: int(m.opts.BaseInterval / time.Second),
		}
	}
}

// sustainedLow reports whether the last LowSamples observations all fall
// inside the release window and below the release threshold.
func (m *Manager) sustainedLow(now time.Time, samples []Sample) bool {
	if m.opts.LowSamples <= 0 || len(samples) < m.opts.LowSamples {
		return false
	}

	cutoff := now.Add(-m.opts.LowWindow)
	recent := samples[len(samples)-m.opts.LowSamples:]
	for _, s := range recent {
		if s.At.Before(cutoff) {
			return false
		}
		if s.Score >= m.opts.LowThreshold {
			return false
		}
	}
	return true
}
