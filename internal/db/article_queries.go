package db

import (
	"context"
	"fmt"
	"time"
)

// ArticleListOptions controls article listing queries.
type ArticleListOptions struct {
	Company   string
	Sentiment string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// ArticleListItem is used by the articles CLI command and the articles API.
type ArticleListItem struct {
	ArticleID     int64      `json:"article_id"`
	Company       string     `json:"company"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	OriginalLink  string     `json:"original_link,omitempty"`
	Outlet        string     `json:"outlet,omitempty"`
	Language      string     `json:"language"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	PublishedDate time.Time  `json:"published_date"`
	Sentiment     string     `json:"sentiment,omitempty"`
	SourceGroupID string     `json:"source_group_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ArticleScope is the slim projection the scoring paths operate on.
type ArticleScope struct {
	ArticleID     int64
	Title         string
	Description   string
	Outlet        string
	PublishedAt   *time.Time
	PublishedDate time.Time
	SourceGroupID string
}

// InsertArticleRow carries one article insert.
type InsertArticleRow struct {
	Company       string
	Title         string
	Description   string
	OriginalLink  string
	MirrorLink    string
	Outlet        string
	Language      string
	PublishedAt   *time.Time
	PublishedDate time.Time
	Sentiment     string
	IsTest        bool
	ContentHash   string
	SourceGroupID string
}

// InsertArticleIgnore inserts one article, skipping rows whose content hash
// already exists. Returns the new article ID and true on insert, or the
// existing row's ID and false on a duplicate.
func (p *Pool) InsertArticleIgnore(ctx context.Context, row InsertArticleRow) (int64, bool, error) {
	const insertQ = `
INSERT INTO pr.articles (
	company, title, description, original_link, mirror_link, outlet,
	language, published_at, published_date, sentiment, is_test,
	content_hash, source_group_id, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (content_hash) DO NOTHING
RETURNING article_id
`

	var articleID int64
	err := p.QueryRow(ctx, insertQ,
		row.Company,
		row.Title,
		row.Description,
		row.OriginalLink,
		row.MirrorLink,
		row.Outlet,
		row.Language,
		row.PublishedAt,
		row.PublishedDate,
		row.Sentiment,
		row.IsTest,
		row.ContentHash,
		row.SourceGroupID,
	).Scan(&articleID)
	if err == nil {
		return articleID, true, nil
	}
	if !IsNoRows(err) {
		return 0, false, fmt.Errorf("insert article: %w", err)
	}

	const existingQ = `
SELECT article_id
FROM pr.articles
WHERE content_hash = $1
`
	if err := p.QueryRow(ctx, existingQ, row.ContentHash).Scan(&articleID); err != nil {
		return 0, false, fmt.Errorf("look up duplicate article: %w", err)
	}
	return articleID, false, nil
}

// ListArticles lists stored articles, newest first.
func (p *Pool) ListArticles(ctx context.Context, opts ArticleListOptions) ([]ArticleListItem, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0")
	}

	const q = `
SELECT
	a.article_id,
	a.company,
	a.title,
	a.description,
	a.original_link,
	a.outlet,
	a.language,
	a.published_at,
	a.published_date,
	a.sentiment,
	a.source_group_id,
	a.created_at
FROM pr.articles a
WHERE a.is_test = FALSE
  AND ($1 = '' OR a.company = $1)
  AND ($2 = '' OR a.sentiment = $2)
  AND ($3::timestamptz IS NULL OR a.published_date >= $3::date)
  AND ($4::timestamptz IS NULL OR a.published_date <= $4::date)
ORDER BY a.published_date DESC, a.article_id DESC
LIMIT $5 OFFSET $6
`

	rows, err := p.Query(ctx, q,
		opts.Company,
		opts.Sentiment,
		nullableTime(opts.From),
		nullableTime(opts.To),
		opts.Limit,
		opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleListItem, 0, opts.Limit)
	for rows.Next() {
		var row ArticleListItem
		if err := rows.Scan(
			&row.ArticleID,
			&row.Company,
			&row.Title,
			&row.Description,
			&row.OriginalLink,
			&row.Outlet,
			&row.Language,
			&row.PublishedAt,
			&row.PublishedDate,
			&row.Sentiment,
			&row.SourceGroupID,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}

	return items, nil
}

// CountArticles counts stored non-test articles with the same filters as
// ListArticles.
func (p *Pool) CountArticles(ctx context.Context, opts ArticleListOptions) (int64, error) {
	const q = `
SELECT COUNT(*)::BIGINT
FROM pr.articles a
WHERE a.is_test = FALSE
  AND ($1 = '' OR a.company = $1)
  AND ($2 = '' OR a.sentiment = $2)
  AND ($3::timestamptz IS NULL OR a.published_date >= $3::date)
  AND ($4::timestamptz IS NULL OR a.published_date <= $4::date)
`

	var count int64
	err := p.QueryRow(ctx, q,
		opts.Company,
		opts.Sentiment,
		nullableTime(opts.From),
		nullableTime(opts.To),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

// CompanyArticlesInRange returns every non-test article for a company whose
// publish date falls inside [from, to], oldest first. Both bounds are
// date-granular and inclusive.
func (p *Pool) CompanyArticlesInRange(ctx context.Context, company string, from, to time.Time) ([]ArticleScope, error) {
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
WHERE a.is_test = FALSE
  AND a.company = $1
  AND a.published_date >= $2::date
  AND a.published_date <= $3::date
ORDER BY a.published_date ASC, a.article_id ASC
`

	rows, err := p.Query(ctx, q, company, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query company articles: %w", err)
	}
	defer rows.Close()

	var items []ArticleScope
	for rows.Next() {
		var row ArticleScope
		if err := rows.Scan(
			&row.ArticleID,
			&row.Title,
			&row.Description,
			&row.Outlet,
			&row.PublishedAt,
			&row.PublishedDate,
			&row.SourceGroupID,
		); err != nil {
			return nil, fmt.Errorf("scan company article row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company article rows: %w", err)
	}

	return items, nil
}

// GroupCandidate is one grouped article considered for fuzzy matching.
type GroupCandidate struct {
	SourceGroupID string
	Title         string
}

// GroupCandidatesNearDate returns recently grouped articles for a company
// whose publish date is within one day of the given date, newest first.
func (p *Pool) GroupCandidatesNearDate(ctx context.Context, company string, date time.Time, limit int) ([]GroupCandidate, error) {
	if limit <= 0 {
		limit = 500
	}

	const q = `
SELECT a.source_group_id, a.title
FROM pr.articles a
WHERE a.company = $1
  AND a.source_group_id <> ''
  AND a.published_date >= ($2::date - INTERVAL '1 day')
  AND a.published_date <= ($2::date + INTERVAL '1 day')
ORDER BY a.article_id DESC
LIMIT $3
`

	rows, err := p.Query(ctx, q, company, date.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query group candidates: %w", err)
	}
	defer rows.Close()

	var items []GroupCandidate
	for rows.Next() {
		var row GroupCandidate
		if err := rows.Scan(&row.SourceGroupID, &row.Title); err != nil {
			return nil, fmt.Errorf("scan group candidate row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group candidate rows: %w", err)
	}

	return items, nil
}

// ArticleCountsByHour buckets non-test article arrivals for a company into
// hourly counts over [from, to), keyed on the UTC truncated hour.
func (p *Pool) ArticleCountsByHour(ctx context.Context, company string, from, to time.Time) (map[time.Time]int, error) {
	const q = `
SELECT date_trunc('hour', COALESCE(a.published_at, a.created_at)) AS bucket, COUNT(*)::BIGINT
FROM pr.articles a
WHERE a.is_test = FALSE
  AND a.company = $1
  AND COALESCE(a.published_at, a.created_at) >= $2
  AND COALESCE(a.published_at, a.created_at) < $3
GROUP BY bucket
`

	rows, err := p.Query(ctx, q, company, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query hourly article counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[time.Time]int)
	for rows.Next() {
		var bucket time.Time
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan hourly count row: %w", err)
		}
		counts[bucket.UTC()] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly count rows: %w", err)
	}

	return counts, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
