package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/catalog"
	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/ingest"
)

type fakeStore struct {
	articles   []db.ArticleScope
	series     []db.RiskPointItem
	latest     *db.RiskPointItem
	counts     map[string]int
	sentiments map[string]db.GroupSentiment
}

func (f *fakeStore) CompanyArticlesInRange(_ context.Context, _ string, _, _ time.Time) ([]db.ArticleScope, error) {
	return f.articles, nil
}

func (f *fakeStore) RiskSeries(_ context.Context, _ string, _, _ time.Time) ([]db.RiskPointItem, error) {
	return f.series, nil
}

func (f *fakeStore) LatestRiskPoint(_ context.Context, _ string) (*db.RiskPointItem, error) {
	return f.latest, nil
}

func (f *fakeStore) GroupRepostCounts(_ context.Context, groupIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(groupIDs))
	for _, id := range groupIDs {
		if c, ok := f.counts[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeStore) LatestGroupSentiments(_ context.Context, groupIDs []string) (map[string]db.GroupSentiment, error) {
	out := make(map[string]db.GroupSentiment, len(groupIDs))
	for _, id := range groupIDs {
		if s, ok := f.sentiments[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStore) ArticleCountsByHour(_ context.Context, _ string, _, _ time.Time) (map[time.Time]int, error) {
	return nil, nil
}

// ingestStoreShim adapts fakeStore to the ingest service for GroupVolume.
type ingestStoreShim struct{ *fakeStore }

func (s ingestStoreShim) InsertArticleIgnore(context.Context, db.InsertArticleRow) (int64, bool, error) {
	return 0, false, errors.New("not supported")
}
func (s ingestStoreShim) GroupExists(context.Context, string) (bool, error) { return false, nil }
func (s ingestStoreShim) GroupCandidatesNearDate(context.Context, string, time.Time, int) ([]db.GroupCandidate, error) {
	return nil, nil
}
func (s ingestStoreShim) CreateGroup(context.Context, string, int64, time.Time) (bool, error) {
	return false, nil
}
func (s ingestStoreShim) IncrementGroupRepost(context.Context, string, time.Time) error { return nil }
func (s ingestStoreShim) InsertSentimentResult(context.Context, db.InsertSentimentRow) error {
	return nil
}

func newTestService(store *fakeStore) *Service {
	ingestSvc := ingest.NewService(ingestStoreShim{store}, nil, 0, zerolog.Nop())
	return NewService(store, ingestSvc, "넥슨", zerolog.Nop())
}

func scoped(id int64, gid, title string) db.ArticleScope {
	return db.ArticleScope{
		ArticleID:     id,
		Title:         title,
		Outlet:        "inven.co.kr",
		PublishedDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		SourceGroupID: gid,
	}
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		articles: []db.ArticleScope{
			scoped(1, "g1", "메이플스토리 확률형 아이템 논란"),
			scoped(2, "g2", "메이플스토리 신작 발표"),
			scoped(3, "g3", "메이플스토리 확률 정보 공개 요구"),
		},
		latest: &db.RiskPointItem{IPID: "maplestory", RiskScore: 62.5, AlertLevel: "P2"},
		counts: map[string]int{"g1": 4, "g2": 1, "g3": 1},
	}

	view, err := newTestService(store).Dashboard(context.Background(), "maplestory", 7)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if view.IP != "maplestory" || view.IPName != "메이플스토리" {
		t.Fatalf("view identity = %s/%s", view.IP, view.IPName)
	}
	if view.Latest == nil || view.Latest.RiskScore != 62.5 {
		t.Fatalf("latest = %+v", view.Latest)
	}
	if view.Volume.UniqueArticles != 3 || view.Volume.TotalMentions != 6 {
		t.Fatalf("volume = %+v, want 3 unique / 6 total", view.Volume)
	}
	if len(view.Themes) == 0 || view.Themes[0].Theme != "확률형/BM" {
		t.Fatalf("themes = %+v, want 확률형/BM ranked", view.Themes)
	}
	if len(view.Keywords) == 0 {
		t.Fatalf("keywords missing")
	}
}

func TestDashboard_UnknownIP(t *testing.T) {
	t.Parallel()

	_, err := newTestService(&fakeStore{}).Dashboard(context.Background(), "no-such-ip", 7)
	if !errors.Is(err, catalog.ErrUnsupportedIP) {
		t.Fatalf("err = %v, want ErrUnsupportedIP", err)
	}
}

func TestClusters_RankedByRepostCount(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		articles: []db.ArticleScope{
			scoped(1, "g1", "확률형 아이템 논란"),
			scoped(2, "g2", "서버 점검 안내"),
		},
		counts: map[string]int{"g1": 2, "g2": 7},
		sentiments: map[string]db.GroupSentiment{
			"g1": {SourceGroupID: "g1", Score: -0.7, Label: "negative", Confidence: 0.9},
		},
	}

	clusters, err := newTestService(store).Clusters(context.Background(), "all", 7, 10)
	if err != nil {
		t.Fatalf("Clusters: %v", err)
	}

	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
	if clusters[0].GroupID != "g2" || clusters[0].RepostCount != 7 {
		t.Fatalf("top cluster = %+v, want g2 with 7 reposts", clusters[0])
	}
	if clusters[1].SentimentLabel != "negative" {
		t.Fatalf("g1 sentiment = %q, want negative", clusters[1].SentimentLabel)
	}
	if clusters[1].Theme != "확률형/BM" {
		t.Fatalf("g1 theme = %q, want 확률형/BM", clusters[1].Theme)
	}
}

func TestClusters_ThemeMismatch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		articles: []db.ArticleScope{scoped(1, "g1", "주가 전망 보고서")},
		counts:   map[string]int{"g1": 1},
	}
	clusters, err := newTestService(store).Clusters(context.Background(), "all", 7, 10)
	if err != nil {
		t.Fatalf("Clusters: %v", err)
	}
	if clusters[0].Theme != "" {
		t.Fatalf("unthemed cluster = %q, want empty", clusters[0].Theme)
	}
}
