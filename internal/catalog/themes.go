package catalog

import "strings"

// Theme is one keyword-defined risk theme. Themes are checked in slice order
// and the first match wins, so higher-priority themes come first.
type Theme struct {
	Key      string
	Keywords []string
	Weight   float64
}

// DefaultThemeWeight applies to text that matches no theme table entry.
const DefaultThemeWeight = 0.4

// Ordered by severity: monetization and regulatory issues drive the most PR
// damage for gacha titles, launch/revenue news the least.
var themes = []Theme{
	{Key: "확률형/BM", Keywords: []string{"확률", "확률형", "가챠", "과금", "bm", "뽑기"}, Weight: 1.0},
	{Key: "운영/장애", Keywords: []string{"점검", "장애", "오류", "버그", "접속", "서버", "롤백"}, Weight: 0.7},
	{Key: "보상/환불", Keywords: []string{"보상", "환불", "배상", "보상안", "환급"}, Weight: 0.8},
	{Key: "규제/법적", Keywords: []string{"공정위", "소송", "제재", "법원", "과징금", "규제"}, Weight: 0.9},
	{Key: "여론/논란", Keywords: []string{"논란", "비판", "불만", "시위", "잡음"}, Weight: 0.7},
	{Key: "신작/성과", Keywords: []string{"신작", "출시", "흥행", "매출", "사전예약", "수상"}, Weight: 0.4},
}

// Themes returns the theme table in priority order.
func Themes() []Theme {
	out := make([]Theme, len(themes))
	copy(out, themes)
	return out
}

// ClassifyTheme returns the first theme whose keywords appear in the
// lower-cased text.
func ClassifyTheme(text string) (Theme, bool) {
	low := strings.ToLower(text)
	for _, theme := range themes {
		for _, kw := range theme.Keywords {
			if strings.Contains(low, strings.ToLower(kw)) {
				return theme, true
			}
		}
	}
	return Theme{}, false
}

// ThemeWeight returns the configured weight for a theme key, or the default
// for unknown keys.
func ThemeWeight(key string) float64 {
	for _, theme := range themes {
		if theme.Key == key {
			return theme.Weight
		}
	}
	return DefaultThemeWeight
}
