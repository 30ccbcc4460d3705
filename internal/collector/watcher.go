package collector

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/burst"
	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/config"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/globaltime"
	"github.com/prwatch/prwatch/internal/risk"
)

const (
	jobStatusSuccess = "success"
	jobStatusError   = "error"

	// Failed passes are retried once before the run is logged as an error.
	jobAttempts = 2

	watchFetchLimit = 100

	// retentionSpec runs the cleanup daily at 04:00.
	retentionSpec = "0 4 * * *"
)

// WatchStore is the persistence surface the watch daemon needs beyond the
// collector and engine.
type WatchStore interface {
	RiskSeries(ctx context.Context, ipID string, from, to time.Time) ([]db.RiskPointItem, error)
	InsertBurstEvent(ctx context.Context, ipID, eventType, triggerReason string, riskAtEvent float64, occurredAt time.Time) error
	InsertSchedulerLog(ctx context.Context, jobID, status, errorMessage string, runTime time.Time) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (db.PurgeResult, error)
}

// Watcher polls every cataloged IP on an adaptive schedule: base cadence
// when quiet, burst cadence while the risk engine or volume triggers hold.
type Watcher struct {
	store     WatchStore
	collector *Service
	engine    *risk.Engine
	registry  *burst.Registry
	opts      burst.Options
	retention time.Duration
	logger    zerolog.Logger
}

func NewWatcher(store WatchStore, collectorSvc *Service, engine *risk.Engine, cfg *config.Config, logger zerolog.Logger) *Watcher {
	opts := burst.OptionsFromConfig(cfg)
	retention := 180 * 24 * time.Hour
	if cfg != nil && cfg.RetentionDays > 0 {
		retention = time.Duration(cfg.RetentionDays) * 24 * time.Hour
	}
	return &Watcher{
		store:     store,
		collector: collectorSvc,
		engine:    engine,
		registry:  burst.NewRegistry(opts),
		opts:      opts,
		retention: retention,
		logger:    logger,
	}
}

// Run watches all cataloged IPs until the context is canceled. Each IP gets
// its own loop so a burst on one IP does not speed up the others.
func (w *Watcher) Run(ctx context.Context) error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(retentionSpec, func() {
		w.runRetention(ctx)
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	var wg sync.WaitGroup
	for _, ip := range catalog.Entries() {
		wg.Add(1)
		go func(ip catalog.IP) {
			defer wg.Done()
			w.watchIP(ctx, ip)
		}(ip)
	}
	wg.Wait()

	return ctx.Err()
}

func (w *Watcher) watchIP(ctx context.Context, ip catalog.IP) {
	logger := w.logger.With().Str("ip", ip.Slug).Logger()
	interval := w.opts.BaseInterval

	for {
		decision, err := w.runPass(ctx, ip)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("watch pass failed")
		} else {
			interval = decision.Interval
			if decision.Changed {
				logger.Info().
					Str("mode", decision.Mode).
					Str("event", decision.EventType).
					Str("reason", decision.TriggerReason).
					Msg("polling mode changed")
			}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runPass runs one collect-score-evaluate pass for an IP, retrying once on
// failure and recording the outcome in the scheduler log.
func (w *Watcher) runPass(ctx context.Context, ip catalog.IP) (burst.Decision, error) {
	jobID := "watch:" + ip.Slug

	var decision burst.Decision
	var lastErr error
	for attempt := 1; attempt <= jobAttempts; attempt++ {
		decision, lastErr = w.passOnce(ctx, ip)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return burst.Decision{}, lastErr
		}
	}

	runTime := globaltime.UTC()
	if lastErr != nil {
		if err := w.store.InsertSchedulerLog(ctx, jobID, jobStatusError, lastErr.Error(), runTime); err != nil {
			w.logger.Error().Err(err).Str("job_id", jobID).Msg("scheduler log write failed")
		}
		return burst.Decision{}, lastErr
	}

	if err := w.store.InsertSchedulerLog(ctx, jobID, jobStatusSuccess, "", runTime); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("scheduler log write failed")
	}
	return decision, nil
}

func (w *Watcher) passOnce(ctx context.Context, ip catalog.IP) (burst.Decision, error) {
	if _, err := w.collector.CollectOnce(ctx, ip, watchFetchLimit); err != nil {
		return burst.Decision{}, err
	}

	now := globaltime.UTC()
	point, err := w.engine.ComputeAndPersist(ctx, ip, now, 0)
	if err != nil {
		return burst.Decision{}, err
	}

	series, err := w.store.RiskSeries(ctx, ip.Slug, now.Add(-w.opts.LowWindow), now)
	if err != nil {
		return burst.Decision{}, err
	}
	samples := make([]burst.Sample, 0, len(series))
	for _, item := range series {
		samples = append(samples, burst.Sample{At: item.TS, Score: item.RiskScore})
	}

	decision := w.registry.Evaluate(ip.Slug, burst.Input{
		Now:           now,
		RiskScore:     point.RiskScore,
		VolumeZ:       point.ZScore,
		RecentSamples: samples,
	})

	if decision.Changed {
		if err := w.store.InsertBurstEvent(ctx, ip.Slug, decision.EventType, decision.TriggerReason, point.RiskScore, now); err != nil {
			return burst.Decision{}, err
		}
	}

	return decision, nil
}

func (w *Watcher) runRetention(ctx context.Context) {
	cutoff := globaltime.UTC().Add(-w.retention)
	result, err := w.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Msg("retention purge failed")
		return
	}
	w.logger.Info().
		Time("cutoff", cutoff).
		Int64("articles", result.Articles).
		Int64("risk_points", result.RiskPoints).
		Msg("retention purge finished")
}
