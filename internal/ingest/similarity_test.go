package ingest

import "testing"

func TestTitleSimilarity(t *testing.T) {
	t.Parallel()

	if got := TitleSimilarity("넥슨 확률형 아이템 논란", "넥슨 확률형 아이템 논란"); got != 1 {
		t.Fatalf("identical titles = %v, want 1", got)
	}
	if got := TitleSimilarity("", ""); got != 0 {
		t.Fatalf("empty titles = %v, want 0", got)
	}
	if got := TitleSimilarity("가나다라", "마바사아"); got != 0 {
		t.Fatalf("disjoint titles = %v, want 0", got)
	}
}

func TestTitleSimilarity_NearDuplicateScoresHigh(t *testing.T) {
	t.Parallel()

	a := "넥슨 메이플스토리 확률형 아이템 정보 전면 공개한다"
	b := "넥슨 메이플스토리 확률형 아이템 정보 전면 공개한다."
	if got := TitleSimilarity(a, b); got < 0.95 {
		t.Fatalf("near-duplicate = %v, want >= 0.95", got)
	}

	c := "던전앤파이터 여름 업데이트 일정 발표"
	if got := TitleSimilarity(a, c); got > 0.5 {
		t.Fatalf("unrelated titles = %v, want <= 0.5", got)
	}
}

func TestTitleSimilarity_Symmetric(t *testing.T) {
	t.Parallel()

	a := "넥슨 신작 흥행 기대감"
	b := "넥슨 신작 흥행"
	if TitleSimilarity(a, b) != TitleSimilarity(b, a) {
		t.Fatalf("similarity must be symmetric")
	}
}
