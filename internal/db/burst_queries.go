package db

import (
	"context"
	"fmt"
	"time"
)

// BurstEventItem is one stored mode transition, used by the bursts API.
type BurstEventItem struct {
	ID            int64     `json:"id"`
	IPID          string    `json:"ip_id"`
	EventType     string    `json:"event_type"`
	TriggerReason string    `json:"trigger_reason"`
	RiskAtEvent   float64   `json:"risk_at_event"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// InsertBurstEvent records one polling mode transition.
func (p *Pool) InsertBurstEvent(ctx context.Context, ipID, eventType, triggerReason string, riskAtEvent float64, occurredAt time.Time) error {
	const q = `
INSERT INTO pr.burst_events (ip_id, event_type, trigger_reason, risk_at_event, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`

	_, err := p.Exec(ctx, q, ipID, eventType, triggerReason, riskAtEvent, occurredAt.UTC())
	if err != nil {
		return fmt.Errorf("insert burst event: %w", err)
	}
	return nil
}

// RecentBurstEvents lists recent mode transitions, newest first. An empty
// ipID lists transitions across all IPs.
func (p *Pool) RecentBurstEvents(ctx context.Context, ipID string, limit int) ([]BurstEventItem, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT id, ip_id, event_type, trigger_reason, risk_at_event, occurred_at
FROM pr.burst_events
WHERE ($1 = '' OR ip_id = $1)
ORDER BY occurred_at DESC, id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, ipID, limit)
	if err != nil {
		return nil, fmt.Errorf("query burst events: %w", err)
	}
	defer rows.Close()

	items := make([]BurstEventItem, 0, limit)
	for rows.Next() {
		var row BurstEventItem
		if err := rows.Scan(
			&row.ID,
			&row.IPID,
			&row.EventType,
			&row.TriggerReason,
			&row.RiskAtEvent,
			&row.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan burst event row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate burst event rows: %w", err)
	}

	return items, nil
}
