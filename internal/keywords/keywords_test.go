package keywords

import "testing"

func TestExtract_RanksByFrequency(t *testing.T) {
	t.Parallel()

	texts := []string{
		"메이플스토리 확률형 아이템 논란",
		"메이플스토리 보상안 발표",
		"확률형 아이템 정보 공개",
	}

	got := Extract(texts, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Count != 2 {
		t.Fatalf("top count = %d, want 2", got[0].Count)
	}
	// 메이플스토리, 아이템, 확률형 all appear twice; ties break lexicographically.
	if got[0].Term != "메이플스토리" {
		t.Fatalf("top term = %q, want 메이플스토리", got[0].Term)
	}
}

func TestExtract_SkipsStopwordsAndShortRuns(t *testing.T) {
	t.Parallel()

	got := Extract([]string{"넥슨 이번 주 實적 발표 기자 간담회"}, 10)
	for _, kw := range got {
		if kw.Term == "이번" || kw.Term == "기자" {
			t.Fatalf("stopword %q leaked into results", kw.Term)
		}
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	t.Parallel()

	if got := Extract(nil, 5); len(got) != 0 {
		t.Fatalf("empty input = %+v, want none", got)
	}
}
