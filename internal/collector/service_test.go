package collector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/ingest"
)

type fakeFetcher struct {
	items   []NaverItem
	queries []string
}

func (f *fakeFetcher) Search(_ context.Context, query string, _ int) ([]NaverItem, error) {
	f.queries = append(f.queries, query)
	return f.items, nil
}

type memStore struct {
	nextID     int64
	articles   map[string]int64
	groups     map[string]int
	sentiments int
}

func newMemStore() *memStore {
	return &memStore{
		articles: make(map[string]int64),
		groups:   make(map[string]int),
	}
}

func (m *memStore) InsertArticleIgnore(_ context.Context, row db.InsertArticleRow) (int64, bool, error) {
	if id, ok := m.articles[row.ContentHash]; ok {
		return id, false, nil
	}
	m.nextID++
	m.articles[row.ContentHash] = m.nextID
	return m.nextID, true, nil
}

func (m *memStore) GroupExists(_ context.Context, groupID string) (bool, error) {
	_, ok := m.groups[groupID]
	return ok, nil
}

func (m *memStore) GroupCandidatesNearDate(_ context.Context, _ string, _ time.Time, _ int) ([]db.GroupCandidate, error) {
	return nil, nil
}

func (m *memStore) CreateGroup(_ context.Context, groupID string, _ int64, _ time.Time) (bool, error) {
	if _, ok := m.groups[groupID]; ok {
		return false, nil
	}
	m.groups[groupID] = 1
	return true, nil
}

func (m *memStore) IncrementGroupRepost(_ context.Context, groupID string, _ time.Time) error {
	m.groups[groupID]++
	return nil
}

func (m *memStore) InsertSentimentResult(_ context.Context, _ db.InsertSentimentRow) error {
	m.sentiments++
	return nil
}

func (m *memStore) GroupRepostCounts(_ context.Context, _ []string) (map[string]int, error) {
	return nil, nil
}

func TestCollectOnce(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{items: []NaverItem{
		{
			Title:        "넥슨 <b>메이플스토리</b> 확률 논란",
			OriginalLink: "https://example.com/news/1",
			Link:         "https://n.news.naver.com/article/1",
			PubDate:      "Mon, 10 Aug 2026 09:00:00 +0900",
		},
		{
			Title:        "넥슨 <b>메이플스토리</b> 확률 논란",
			OriginalLink: "https://example.com/news/1?utm_source=rss",
			Link:         "https://n.news.naver.com/article/2",
			PubDate:      "Mon, 10 Aug 2026 10:00:00 +0900",
		},
	}}

	store := newMemStore()
	ingestSvc := ingest.NewService(store, nil, ingest.DefaultTitleSimilarityThreshold, zerolog.Nop())
	svc := NewService(fetcher, ingestSvc, "넥슨", zerolog.Nop())

	ip, err := catalog.Resolve("maplestory")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	result, err := svc.CollectOnce(context.Background(), ip, 100)
	if err != nil {
		t.Fatalf("CollectOnce: %v", err)
	}

	if result.Fetched != 2 || result.Inserted != 1 || result.Duplicates != 1 {
		t.Fatalf("result = %+v, want 2 fetched, 1 inserted, 1 duplicate", result)
	}
	if len(fetcher.queries) != 1 || fetcher.queries[0] != "넥슨 메이플스토리" {
		t.Fatalf("queries = %v, want [넥슨 메이플스토리]", fetcher.queries)
	}
	if store.sentiments != 1 {
		t.Fatalf("sentiment rows = %d, want 1", store.sentiments)
	}
}

func TestQuery_Aggregate(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, nil, "넥슨", zerolog.Nop())
	all, err := catalog.Resolve("all")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := svc.Query(all); got != "넥슨" {
		t.Fatalf("aggregate query = %q, want 넥슨", got)
	}
}
