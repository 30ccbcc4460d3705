// Package report builds the read-side views served by the dashboard API.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/globaltime"
	"github.com/prwatch/prwatch/internal/ingest"
	"github.com/prwatch/prwatch/internal/keywords"
	"github.com/prwatch/prwatch/internal/risk"
)

const (
	defaultRangeDays = 7
	maxRangeDays     = 90
	topKeywordCount  = 10
	defaultClusters  = 20
	maxClusters      = 100
)

// Store is the read surface the report service needs.
type Store interface {
	CompanyArticlesInRange(ctx context.Context, company string, from, to time.Time) ([]db.ArticleScope, error)
	RiskSeries(ctx context.Context, ipID string, from, to time.Time) ([]db.RiskPointItem, error)
	LatestRiskPoint(ctx context.Context, ipID string) (*db.RiskPointItem, error)
	GroupRepostCounts(ctx context.Context, groupIDs []string) (map[string]int, error)
	LatestGroupSentiments(ctx context.Context, groupIDs []string) (map[string]db.GroupSentiment, error)
	ArticleCountsByHour(ctx context.Context, company string, from, to time.Time) (map[time.Time]int, error)
}

// ThemeShare is one theme's slice of the window.
type ThemeShare struct {
	Theme  string  `json:"theme"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
	Weight float64 `json:"weight"`
}

// HourBucket is one hour of company-wide article arrivals.
type HourBucket struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

// Dashboard is the risk overview for one IP.
type Dashboard struct {
	IP          string             `json:"ip"`
	IPName      string             `json:"ip_name"`
	GeneratedAt time.Time          `json:"generated_at"`
	Latest      *db.RiskPointItem  `json:"latest,omitempty"`
	Series      []db.RiskPointItem `json:"series"`
	Volume      ingest.Volume      `json:"volume"`
	Themes      []ThemeShare       `json:"themes"`
	Keywords    []keywords.Keyword `json:"keywords"`
	Arrivals    []HourBucket       `json:"arrivals"`
}

// Cluster is one syndication group ranked for the cluster view.
type Cluster struct {
	GroupID        string             `json:"group_id"`
	Title          string             `json:"title"`
	Outlet         string             `json:"outlet,omitempty"`
	RepostCount    int                `json:"repost_count"`
	SentimentLabel string             `json:"sentiment_label,omitempty"`
	SentimentScore float64            `json:"sentiment_score"`
	Theme          string             `json:"theme,omitempty"`
	Keywords       []keywords.Keyword `json:"keywords"`
}

// Service assembles dashboard and cluster views.
type Service struct {
	store   Store
	ingest  *ingest.Service
	company string
	logger  zerolog.Logger
}

func NewService(store Store, ingestSvc *ingest.Service, company string, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		ingest:  ingestSvc,
		company: company,
		logger:  logger,
	}
}

// Dashboard builds the risk overview for one IP over the trailing range.
func (s *Service) Dashboard(ctx context.Context, ipSlug string, days int) (*Dashboard, error) {
	ip, err := catalog.Resolve(ipSlug)
	if err != nil {
		return nil, err
	}
	days = clampDays(days)

	now := globaltime.UTC()
	from := now.Add(-time.Duration(days) * 24 * time.Hour)

	articles, err := s.store.CompanyArticlesInRange(ctx, s.company, from, now)
	if err != nil {
		return nil, err
	}
	scoped := risk.FilterByIP(articles, ip)

	series, err := s.store.RiskSeries(ctx, ip.Slug, from, now)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestRiskPoint(ctx, ip.Slug)
	if err != nil {
		return nil, err
	}

	volume, err := s.ingest.GroupVolume(ctx, scoped)
	if err != nil {
		return nil, err
	}

	hourly, err := s.store.ArticleCountsByHour(ctx, s.company, from, now)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(scoped))
	for _, a := range scoped {
		titles = append(titles, a.Title+" "+a.Description)
	}

	return &Dashboard{
		IP:          ip.Slug,
		IPName:      ip.Name,
		GeneratedAt: now,
		Latest:      latest,
		Series:      series,
		Volume:      volume,
		Themes:      themeShares(scoped),
		Keywords:    keywords.Extract(titles, topKeywordCount),
		Arrivals:    sortedArrivals(hourly),
	}, nil
}

// Clusters lists the window's syndication groups, biggest first.
func (s *Service) Clusters(ctx context.Context, ipSlug string, days, limit int) ([]Cluster, error) {
	ip, err := catalog.Resolve(ipSlug)
	if err != nil {
		return nil, err
	}
	days = clampDays(days)
	if limit <= 0 {
		limit = defaultClusters
	}
	if limit > maxClusters {
		limit = maxClusters
	}

	now := globaltime.UTC()
	from := now.Add(-time.Duration(days) * 24 * time.Hour)

	articles, err := s.store.CompanyArticlesInRange(ctx, s.company, from, now)
	if err != nil {
		return nil, err
	}
	scoped := risk.FilterByIP(articles, ip)

	type groupAgg struct {
		first  db.ArticleScope
		titles []string
	}
	groups := make(map[string]*groupAgg)
	var order []string
	for _, a := range scoped {
		if a.SourceGroupID == "" {
			continue
		}
		agg, ok := groups[a.SourceGroupID]
		if !ok {
			agg = &groupAgg{first: a}
			groups[a.SourceGroupID] = agg
			order = append(order, a.SourceGroupID)
		}
		agg.titles = append(agg.titles, a.Title+" "+a.Description)
	}

	counts, err := s.store.GroupRepostCounts(ctx, order)
	if err != nil {
		return nil, err
	}
	sentiments, err := s.store.LatestGroupSentiments(ctx, order)
	if err != nil {
		return nil, err
	}

	clusters := make([]Cluster, 0, len(order))
	for _, gid := range order {
		agg := groups[gid]
		cluster := Cluster{
			GroupID:     gid,
			Title:       agg.first.Title,
			Outlet:      agg.first.Outlet,
			RepostCount: max(counts[gid], 1),
			Keywords:    keywords.Extract(agg.titles, 5),
		}
		if result, ok := sentiments[gid]; ok {
			cluster.SentimentLabel = result.Label
			cluster.SentimentScore = result.Score
		}
		if theme, ok := catalog.ClassifyTheme(agg.first.Title + " " + agg.first.Description); ok {
			cluster.Theme = theme.Key
		}
		clusters = append(clusters, cluster)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].RepostCount > clusters[j].RepostCount
	})
	if len(clusters) > limit {
		clusters = clusters[:limit]
	}
	return clusters, nil
}

func themeShares(articles []db.ArticleScope) []ThemeShare {
	seen := make(map[string]struct{}, len(articles))
	counts := make(map[string]int)
	total := 0

	for _, a := range articles {
		gid := a.SourceGroupID
		if gid == "" {
			gid = "legacy"
		}
		key := gid + "|" + a.Title
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		total++

		name := "기타"
		if theme, ok := catalog.ClassifyTheme(a.Title + " " + a.Description); ok {
			name = theme.Key
		}
		counts[name]++
	}

	shares := make([]ThemeShare, 0, len(counts))
	for name, count := range counts {
		share := 0.0
		if total > 0 {
			share = float64(count) / float64(total)
		}
		shares = append(shares, ThemeShare{
			Theme:  name,
			Count:  count,
			Share:  share,
			Weight: catalog.ThemeWeight(name),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Theme < shares[j].Theme
	})
	return shares
}

func sortedArrivals(hourly map[time.Time]int) []HourBucket {
	buckets := make([]HourBucket, 0, len(hourly))
	for hour, count := range hourly {
		buckets = append(buckets, HourBucket{Hour: hour, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Hour.Before(buckets[j].Hour)
	})
	return buckets
}

func clampDays(days int) int {
	if days <= 0 {
		return defaultRangeDays
	}
	if days > maxRangeDays {
		return maxRangeDays
	}
	return days
}
