// Package keywords extracts ranked Korean keywords from article text, used
// by the dashboard cluster view.
package keywords

import (
	"regexp"
	"sort"
	"strings"
)

var hangulToken = regexp.MustCompile(`[가-힣]{2,6}`)

// Particles and filler terms that dominate raw frequency counts.
var stopwords = map[string]struct{}{
	"있다": {}, "있는": {}, "했다": {}, "하는": {}, "한다": {}, "위해": {},
	"통해": {}, "대한": {}, "대해": {}, "관련": {}, "지난": {}, "이번": {},
	"오늘": {}, "기자": {}, "뉴스": {}, "기사": {}, "제공": {}, "이날": {},
	"밝혔다": {}, "말했다": {}, "전했다": {}, "따르면": {}, "것으로": {},
	"있으며": {}, "됐다": {}, "된다": {}, "등을": {}, "등의": {},
}

// Keyword is one ranked term.
type Keyword struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Extract tokenizes Hangul runs of two to six syllables, drops stopwords,
// and returns the top terms by frequency. Ties break lexicographically so
// the ranking is stable.
func Extract(texts []string, limit int) []Keyword {
	if limit <= 0 {
		limit = 10
	}

	counts := make(map[string]int)
	for _, text := range texts {
		for _, token := range hangulToken.FindAllString(text, -1) {
			token = strings.TrimSpace(token)
			if _, banned := stopwords[token]; banned {
				continue
			}
			counts[token]++
		}
	}

	ranked := make([]Keyword, 0, len(counts))
	for term, count := range counts {
		ranked = append(ranked, Keyword{Term: term, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Term < ranked[j].Term
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
