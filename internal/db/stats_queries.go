package db

import (
	"context"
	"fmt"
	"time"
)

// Stats summarizes stored data volumes, used by the health command and the
// stats API.
type Stats struct {
	Articles        int64      `json:"articles"`
	SourceGroups    int64      `json:"source_groups"`
	Sentiments      int64      `json:"sentiments"`
	RiskPoints      int64      `json:"risk_points"`
	BurstEvents     int64      `json:"burst_events"`
	LatestArticleAt *time.Time `json:"latest_article_at,omitempty"`
	LatestRiskAt    *time.Time `json:"latest_risk_at,omitempty"`
}

// CollectStats gathers row counts and freshness marks across the schema.
func (p *Pool) CollectStats(ctx context.Context) (Stats, error) {
	const q = `
SELECT
	(SELECT COUNT(*)::BIGINT FROM pr.articles WHERE is_test = FALSE),
	(SELECT COUNT(*)::BIGINT FROM pr.source_groups),
	(SELECT COUNT(*)::BIGINT FROM pr.sentiment_results),
	(SELECT COUNT(*)::BIGINT FROM pr.risk_points),
	(SELECT COUNT(*)::BIGINT FROM pr.burst_events),
	(SELECT MAX(created_at) FROM pr.articles WHERE is_test = FALSE),
	(SELECT MAX(ts) FROM pr.risk_points)
`

	var stats Stats
	err := p.QueryRow(ctx, q).Scan(
		&stats.Articles,
		&stats.SourceGroups,
		&stats.Sentiments,
		&stats.RiskPoints,
		&stats.BurstEvents,
		&stats.LatestArticleAt,
		&stats.LatestRiskAt,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}
	return stats, nil
}

// Ping verifies database connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return p.sqlDB.PingContext(ctx)
}
