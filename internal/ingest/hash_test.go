package ingest

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestContentHash_URLVariantsCollapse(t *testing.T) {
	t.Parallel()

	date := day("2026-08-01")
	a := ContentHash("넥슨", "https://www.example.com/news/1?utm_source=rss", "", "제목 A", date)
	b := ContentHash("넥슨", "https://example.com/news/1", "", "제목 B", date)
	if a != b {
		t.Fatalf("tracking-param variants should hash identically: %s vs %s", a, b)
	}

	c := ContentHash("넥슨", "http://example.com/news/1", "", "제목 C", date)
	if a != c {
		t.Fatalf("http and https variants should hash identically: %s vs %s", a, c)
	}

	other := ContentHash("넥슨", "https://example.com/news/2", "", "제목 A", date)
	if a == other {
		t.Fatalf("distinct URLs should hash differently")
	}
}

func TestContentHash_MirrorFallback(t *testing.T) {
	t.Parallel()

	date := day("2026-08-01")
	mirror := "https://n.news.naver.com/article/001/001"

	a := ContentHash("넥슨", "", mirror, "제목 A", date)
	b := ContentHash("넥슨", "not a url", mirror, "제목 B", date)
	if a != b {
		t.Fatalf("missing original should fall back to the mirror link: %s vs %s", a, b)
	}

	titled := ContentHash("넥슨", "", "", "제목 A", date)
	if a == titled {
		t.Fatalf("mirror-keyed hash must differ from the title fallback")
	}
}

func TestContentHash_TitleFallback(t *testing.T) {
	t.Parallel()

	date := day("2026-08-01")
	a := ContentHash("넥슨", "", "", "[단독] 확률 공개", date)
	b := ContentHash("넥슨", "not a url", "", "확률   공개", date)
	if a != b {
		t.Fatalf("normalized-title fallbacks should hash identically")
	}

	nextDay := ContentHash("넥슨", "", "", "[단독] 확률 공개", day("2026-08-02"))
	if a == nextDay {
		t.Fatalf("title fallback must include the date")
	}
}

func TestSourceGroupID_IgnoresQuery(t *testing.T) {
	t.Parallel()

	date := day("2026-08-01")
	a := SourceGroupID("https://example.com/news/1?page=2", "", "t", date)
	b := SourceGroupID("https://www.example.com/news/1/", "", "t", date)
	if a != b {
		t.Fatalf("same host and path should share a group: %s vs %s", a, b)
	}

	c := SourceGroupID("https://other.com/news/1", "", "t", date)
	if a == c {
		t.Fatalf("different hosts must not share a group")
	}
}

func TestSourceGroupID_MirrorFallback(t *testing.T) {
	t.Parallel()

	date := day("2026-08-01")
	a := SourceGroupID("", "https://n.news.naver.com/article/001/001?sid=105", "제목 A", date)
	b := SourceGroupID("", "https://n.news.naver.com/article/001/001", "제목 B", date)
	if a != b {
		t.Fatalf("mirror-keyed groups should collapse on host and path: %s vs %s", a, b)
	}

	titled := SourceGroupID("", "", "제목 A", date)
	if a == titled {
		t.Fatalf("mirror-keyed group must differ from the title fallback")
	}
}
