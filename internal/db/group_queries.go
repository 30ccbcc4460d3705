package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GroupExists reports whether a source group row already exists.
func (p *Pool) GroupExists(ctx context.Context, groupID string) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1 FROM pr.source_groups WHERE group_id = $1
)
`

	var exists bool
	if err := p.QueryRow(ctx, q, groupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check source group exists: %w", err)
	}
	return exists, nil
}

// CreateGroup creates a source group with the given canonical article.
// Returns false when the group already existed.
func (p *Pool) CreateGroup(ctx context.Context, groupID string, canonicalArticleID int64, at time.Time) (bool, error) {
	const q = `
INSERT INTO pr.source_groups (group_id, canonical_article_id, repost_count, first_seen_at, last_seen_at)
VALUES ($1, $2, 1, $3, $3)
ON CONFLICT (group_id) DO NOTHING
`

	tag, err := p.Exec(ctx, q, groupID, canonicalArticleID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("create source group: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementGroupRepost bumps the repost count for an existing group. If the
// group row is missing it is recreated from the articles already pointing at
// it, so the count stays consistent after partial failures.
func (p *Pool) IncrementGroupRepost(ctx context.Context, groupID string, at time.Time) error {
	const updateQ = `
UPDATE pr.source_groups
SET repost_count = repost_count + 1,
    last_seen_at = $2
WHERE group_id = $1
`

	tag, err := p.Exec(ctx, updateQ, groupID, at.UTC())
	if err != nil {
		return fmt.Errorf("increment source group repost: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	const rebuildQ = `
INSERT INTO pr.source_groups (group_id, canonical_article_id, repost_count, first_seen_at, last_seen_at)
SELECT
	$1,
	MIN(a.article_id),
	GREATEST(COUNT(*)::integer, 2),
	$2,
	$2
FROM pr.articles a
WHERE a.source_group_id = $1
ON CONFLICT (group_id) DO UPDATE
SET repost_count = pr.source_groups.repost_count + 1,
    last_seen_at = EXCLUDED.last_seen_at
`

	if _, err := p.Exec(ctx, rebuildQ, groupID, at.UTC()); err != nil {
		return fmt.Errorf("rebuild source group: %w", err)
	}
	return nil
}

// GroupRepostCounts returns repost counts for the given group IDs. Missing
// groups are absent from the result.
func (p *Pool) GroupRepostCounts(ctx context.Context, groupIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(groupIDs))
	if len(groupIDs) == 0 {
		return counts, nil
	}

	placeholders := make([]string, 0, len(groupIDs))
	args := make([]any, 0, len(groupIDs))
	for i, id := range groupIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}

	q := fmt.Sprintf(`
SELECT group_id, repost_count
FROM pr.source_groups
WHERE group_id IN (%s)
`, strings.Join(placeholders, ", "))

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query group repost counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan group repost row: %w", err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group repost rows: %w", err)
	}

	return counts, nil
}
