package db

import (
	"context"
	"fmt"
	"time"
)

// SchedulerLogItem is one stored job run.
type SchedulerLogItem struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	RunTime      time.Time `json:"run_time"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// InsertSchedulerLog records one collector job run.
func (p *Pool) InsertSchedulerLog(ctx context.Context, jobID, status, errorMessage string, runTime time.Time) error {
	const q = `
INSERT INTO pr.scheduler_logs (job_id, run_time, status, error_message)
VALUES ($1, $2, $3, $4)
`

	_, err := p.Exec(ctx, q, jobID, runTime.UTC(), status, errorMessage)
	if err != nil {
		return fmt.Errorf("insert scheduler log: %w", err)
	}
	return nil
}

// LatestSchedulerLog returns the most recent run for a job, or nil when the
// job has never run.
func (p *Pool) LatestSchedulerLog(ctx context.Context, jobID string) (*SchedulerLogItem, error) {
	const q = `
SELECT id, job_id, run_time, status, error_message
FROM pr.scheduler_logs
WHERE job_id = $1
ORDER BY run_time DESC, id DESC
LIMIT 1
`

	var row SchedulerLogItem
	err := p.QueryRow(ctx, q, jobID).Scan(
		&row.ID,
		&row.JobID,
		&row.RunTime,
		&row.Status,
		&row.ErrorMessage,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest scheduler log: %w", err)
	}
	return &row, nil
}
