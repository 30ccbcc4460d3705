package db

import (
	"context"
	"fmt"
	"time"
)

// UpsertRiskRow carries one risk point write. A replay over an existing
// (ip_id, ts) pair overwrites the earlier values.
type UpsertRiskRow struct {
	IPID           string
	TS             time.Time
	RiskRaw        float64
	RiskScore      float64
	SentimentComp  float64
	VolumeComp     float64
	ThemeComp      float64
	OutletComp     float64
	AlertLevel     string
	SampleSize     int
	UncertainRatio float64
	QualityFlag    string
}

// RiskPointItem is one stored risk sample, used by the risk API and CLI.
type RiskPointItem struct {
	IPID           string    `json:"ip_id"`
	TS             time.Time `json:"ts"`
	RiskRaw        float64   `json:"risk_raw"`
	RiskScore      float64   `json:"risk_score"`
	SentimentComp  float64   `json:"s"`
	VolumeComp     float64   `json:"v"`
	ThemeComp      float64   `json:"t"`
	OutletComp     float64   `json:"m"`
	AlertLevel     string    `json:"alert_level"`
	SampleSize     int       `json:"sample_size"`
	UncertainRatio float64   `json:"uncertain_ratio"`
	QualityFlag    string    `json:"quality_flag,omitempty"`
}

// UpsertRiskPoint stores one risk sample, replacing any earlier sample for
// the same IP and timestamp.
func (p *Pool) UpsertRiskPoint(ctx context.Context, row UpsertRiskRow) error {
	const q = `
INSERT INTO pr.risk_points (
	ip_id, ts, risk_raw, risk_score, s_comp, v_comp, t_comp, m_comp,
	alert_level, sample_size, uncertain_ratio, quality_flag, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
ON CONFLICT (ip_id, ts) DO UPDATE
SET risk_raw = EXCLUDED.risk_raw,
    risk_score = EXCLUDED.risk_score,
    s_comp = EXCLUDED.s_comp,
    v_comp = EXCLUDED.v_comp,
    t_comp = EXCLUDED.t_comp,
    m_comp = EXCLUDED.m_comp,
    alert_level = EXCLUDED.alert_level,
    sample_size = EXCLUDED.sample_size,
    uncertain_ratio = EXCLUDED.uncertain_ratio,
    quality_flag = EXCLUDED.quality_flag
`

	_, err := p.Exec(ctx, q,
		row.IPID,
		row.TS.UTC(),
		row.RiskRaw,
		row.RiskScore,
		row.SentimentComp,
		row.VolumeComp,
		row.ThemeComp,
		row.OutletComp,
		row.AlertLevel,
		row.SampleSize,
		row.UncertainRatio,
		row.QualityFlag,
	)
	if err != nil {
		return fmt.Errorf("upsert risk point: %w", err)
	}
	return nil
}

// LatestRiskPoint returns the newest stored risk sample for an IP, or nil
// when none exists.
func (p *Pool) LatestRiskPoint(ctx context.Context, ipID string) (*RiskPointItem, error) {
	const q = `
SELECT ip_id, ts, risk_raw, risk_score, s_comp, v_comp, t_comp, m_comp,
       alert_level, sample_size, uncertain_ratio, quality_flag
FROM pr.risk_points
WHERE ip_id = $1
ORDER BY ts DESC
LIMIT 1
`

	var row RiskPointItem
	err := p.QueryRow(ctx, q, ipID).Scan(
		&row.IPID,
		&row.TS,
		&row.RiskRaw,
		&row.RiskScore,
		&row.SentimentComp,
		&row.VolumeComp,
		&row.ThemeComp,
		&row.OutletComp,
		&row.AlertLevel,
		&row.SampleSize,
		&row.UncertainRatio,
		&row.QualityFlag,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest risk point: %w", err)
	}
	return &row, nil
}

// RiskSeries returns stored risk samples for an IP over [from, to],
// oldest first.
func (p *Pool) RiskSeries(ctx context.Context, ipID string, from, to time.Time) ([]RiskPointItem, error) {
	const q = `
SELECT ip_id, ts, risk_raw, risk_score, s_comp, v_comp, t_comp, m_comp,
       alert_level, sample_size, uncertain_ratio, quality_flag
FROM pr.risk_points
WHERE ip_id = $1
  AND ts >= $2
  AND ts <= $3
ORDER BY ts ASC
`

	rows, err := p.Query(ctx, q, ipID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query risk series: %w", err)
	}
	defer rows.Close()

	var items []RiskPointItem
	for rows.Next() {
		var row RiskPointItem
		if err := rows.Scan(
			&row.IPID,
			&row.TS,
			&row.RiskRaw,
			&row.RiskScore,
			&row.SentimentComp,
			&row.VolumeComp,
			&row.ThemeComp,
			&row.OutletComp,
			&row.AlertLevel,
			&row.SampleSize,
			&row.UncertainRatio,
			&row.QualityFlag,
		); err != nil {
			return nil, fmt.Errorf("scan risk point row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk point rows: %w", err)
	}

	return items, nil
}
