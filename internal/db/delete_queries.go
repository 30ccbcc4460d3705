package db

import (
	"context"
	"fmt"
	"time"
)

// PurgeResult summarizes one purge pass.
type PurgeResult struct {
	Articles      int64 `json:"articles"`
	SourceGroups  int64 `json:"source_groups"`
	Sentiments    int64 `json:"sentiments"`
	RiskPoints    int64 `json:"risk_points"`
	SchedulerLogs int64 `json:"scheduler_logs"`
}

// PurgeTestArticles deletes articles flagged as test data, along with their
// sentiment results and any source groups left empty. The pass runs in one
// transaction so a failed step leaves the tables untouched.
func (p *Pool) PurgeTestArticles(ctx context.Context) (PurgeResult, error) {
	var result PurgeResult

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return result, fmt.Errorf("begin purge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const sentimentsQ = `
DELETE FROM pr.sentiment_results sr
USING pr.articles a
WHERE sr.article_id = a.article_id
  AND a.is_test = TRUE
`
	tag, err := tx.Exec(ctx, sentimentsQ)
	if err != nil {
		return result, fmt.Errorf("purge test sentiment results: %w", err)
	}
	result.Sentiments = tag.RowsAffected()

	const articlesQ = `
DELETE FROM pr.articles
WHERE is_test = TRUE
`
	tag, err = tx.Exec(ctx, articlesQ)
	if err != nil {
		return result, fmt.Errorf("purge test articles: %w", err)
	}
	result.Articles = tag.RowsAffected()

	orphans, err := deleteOrphanGroups(ctx, tx)
	if err != nil {
		return result, err
	}
	result.SourceGroups = orphans

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit purge transaction: %w", err)
	}
	return result, nil
}

// PurgeOlderThan deletes articles published before the cutoff date together
// with their sentiment results, emptied source groups, and risk points and
// scheduler logs older than the cutoff.
func (p *Pool) PurgeOlderThan(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	var result PurgeResult
	cutoff = cutoff.UTC()

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return result, fmt.Errorf("begin purge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const sentimentsQ = `
DELETE FROM pr.sentiment_results sr
USING pr.articles a
WHERE sr.article_id = a.article_id
  AND a.published_date < $1::date
`
	tag, err := tx.Exec(ctx, sentimentsQ, cutoff)
	if err != nil {
		return result, fmt.Errorf("purge old sentiment results: %w", err)
	}
	result.Sentiments = tag.RowsAffected()

	const articlesQ = `
DELETE FROM pr.articles
WHERE published_date < $1::date
`
	tag, err = tx.Exec(ctx, articlesQ, cutoff)
	if err != nil {
		return result, fmt.Errorf("purge old articles: %w", err)
	}
	result.Articles = tag.RowsAffected()

	orphans, err := deleteOrphanGroups(ctx, tx)
	if err != nil {
		return result, err
	}
	result.SourceGroups = orphans

	const riskQ = `
DELETE FROM pr.risk_points
WHERE ts < $1
`
	tag, err = tx.Exec(ctx, riskQ, cutoff)
	if err != nil {
		return result, fmt.Errorf("purge old risk points: %w", err)
	}
	result.RiskPoints = tag.RowsAffected()

	const logsQ = `
DELETE FROM pr.scheduler_logs
WHERE run_time < $1
`
	tag, err = tx.Exec(ctx, logsQ, cutoff)
	if err != nil {
		return result, fmt.Errorf("purge old scheduler logs: %w", err)
	}
	result.SchedulerLogs = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit purge transaction: %w", err)
	}
	return result, nil
}

func deleteOrphanGroups(ctx context.Context, tx Tx) (int64, error) {
	const q = `
DELETE FROM pr.source_groups g
WHERE NOT EXISTS (
	SELECT 1 FROM pr.articles a WHERE a.source_group_id = g.group_id
)
`
	tag, err := tx.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("purge orphan source groups: %w", err)
	}
	return tag.RowsAffected(), nil
}
