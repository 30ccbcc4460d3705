package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/globaltime"
	"github.com/prwatch/prwatch/internal/ingest"
)

// Fetcher is the search surface the collector polls.
type Fetcher interface {
	Search(ctx context.Context, query string, maxItems int) ([]NaverItem, error)
}

// Result summarizes one collection pass.
type Result struct {
	IP         string `json:"ip"`
	Query      string `json:"query"`
	Fetched    int    `json:"fetched"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
}

// Service fetches search results and routes them through ingest.
type Service struct {
	fetcher Fetcher
	ingest  *ingest.Service
	company string
	logger  zerolog.Logger
}

func NewService(fetcher Fetcher, ingestSvc *ingest.Service, company string, logger zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		ingest:  ingestSvc,
		company: company,
		logger:  logger,
	}
}

// Query builds the search query for an IP. The aggregate IP searches on the
// company name alone; named IPs narrow the search with the IP name.
func (s *Service) Query(ip catalog.IP) string {
	if ip.IsAggregate() {
		return s.company
	}
	return s.company + " " + ip.Name
}

// CollectOnce runs one fetch-and-ingest pass for an IP.
func (s *Service) CollectOnce(ctx context.Context, ip catalog.IP, maxItems int) (Result, error) {
	query := s.Query(ip)
	result := Result{IP: ip.Slug, Query: query}

	items, err := s.fetcher.Search(ctx, query, maxItems)
	if err != nil {
		return result, err
	}
	result.Fetched = len(items)

	for _, item := range items {
		publishedAt := ParsePubDate(item.PubDate)
		var date time.Time
		if publishedAt != nil {
			date = publishedAt.Truncate(24 * time.Hour)
		} else {
			date = globaltime.UTC().Truncate(24 * time.Hour)
		}

		outcome, err := s.ingest.InsertArticle(ctx, ingest.IncomingArticle{
			Company:       s.company,
			Title:         item.Title,
			Description:   item.Description,
			OriginalLink:  item.OriginalLink,
			MirrorLink:    item.Link,
			PublishedAt:   publishedAt,
			PublishedDate: date,
		})
		if err != nil {
			return result, err
		}
		if outcome.Inserted {
			result.Inserted++
		} else {
			result.Duplicates++
		}
	}

	s.logger.Info().
		Str("ip", ip.Slug).
		Str("query", query).
		Int("fetched", result.Fetched).
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Msg("collection pass finished")

	return result, nil
}
