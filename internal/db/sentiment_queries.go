package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InsertSentimentRow carries one sentiment result insert.
type InsertSentimentRow struct {
	ArticleID     int64
	SourceGroupID string
	Score         float64
	Label         string
	Confidence    float64
	Method        string
	AnalyzedAt    time.Time
}

// GroupSentiment is the latest sentiment known for a source group.
type GroupSentiment struct {
	SourceGroupID string
	Score         float64
	Label         string
	Confidence    float64
	AnalyzedAt    time.Time
}

// InsertSentimentResult stores one scoring pass over an article.
func (p *Pool) InsertSentimentResult(ctx context.Context, row InsertSentimentRow) error {
	const q = `
INSERT INTO pr.sentiment_results (article_id, source_group_id, score, label, confidence, method, analyzed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

	_, err := p.Exec(ctx, q,
		row.ArticleID,
		row.SourceGroupID,
		row.Score,
		row.Label,
		row.Confidence,
		row.Method,
		row.AnalyzedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert sentiment result: %w", err)
	}
	return nil
}

// LatestGroupSentiments returns the newest sentiment per source group for
// the given group IDs. Groups without any result are absent.
func (p *Pool) LatestGroupSentiments(ctx context.Context, groupIDs []string) (map[string]GroupSentiment, error) {
	results := make(map[string]GroupSentiment, len(groupIDs))
	if len(groupIDs) == 0 {
		return results, nil
	}

	placeholders := make([]string, 0, len(groupIDs))
	args := make([]any, 0, len(groupIDs))
	for i, id := range groupIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}

	q := fmt.Sprintf(`
SELECT DISTINCT ON (sr.source_group_id)
	sr.source_group_id,
	sr.score,
	sr.label,
	sr.confidence,
	sr.analyzed_at
FROM pr.sentiment_results sr
WHERE sr.source_group_id IN (%s)
ORDER BY sr.source_group_id, sr.analyzed_at DESC, sr.id DESC
`, strings.Join(placeholders, ", "))

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest group sentiments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row GroupSentiment
		if err := rows.Scan(
			&row.SourceGroupID,
			&row.Score,
			&row.Label,
			&row.Confidence,
			&row.AnalyzedAt,
		); err != nil {
			return nil, fmt.Errorf("scan group sentiment row: %w", err)
		}
		results[row.SourceGroupID] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group sentiment rows: %w", err)
	}

	return results, nil
}

// GroupsMissingSentiment filters the given group IDs down to those without
// any stored sentiment result.
func (p *Pool) GroupsMissingSentiment(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	known, err := p.LatestGroupSentiments(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range groupIDs {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CanonicalArticleForGroup returns the canonical article's text fields for a
// group, falling back to the oldest grouped article when the group row has
// no canonical pointer.
func (p *Pool) CanonicalArticleForGroup(ctx context.Context, groupID string) (*ArticleScope, error) {
	const q = `
SELECT
	a.article_id,
	a.title,
	a.description,
	a.outlet,
	a.published_at,
	a.published_date,
	a.source_group_id
FROM pr.articles a
LEFT JOIN pr.source_groups g ON g.group_id = $1
WHERE a.article_id = g.canonical_article_id
   OR (g.canonical_article_id IS NULL AND a.source_group_id = $1)
ORDER BY a.article_id ASC
LIMIT 1
`

	var row ArticleScope
	err := p.QueryRow(ctx, q, groupID).Scan(
		&row.ArticleID,
		&row.Title,
		&row.Description,
		&row.Outlet,
		&row.PublishedAt,
		&row.PublishedDate,
		&row.SourceGroupID,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query canonical article: %w", err)
	}
	return &row, nil
}
