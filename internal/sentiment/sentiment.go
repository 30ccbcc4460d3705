// Package sentiment scores article text with a fixed keyword-weight lexicon.
package sentiment

import (
	"math"
	"strings"
)

// Labels produced by the classifier.
const (
	LabelPositive  = "positive"
	LabelNeutral   = "neutral"
	LabelNegative  = "negative"
	LabelUncertain = "uncertain"
)

// Method identifies the active lexicon revision in persisted results.
const Method = "rule_v1"

// Result is one scoring outcome.
type Result struct {
	Score           float64
	Label           string
	Confidence      float64
	Method          string
	MatchedKeywords int
	HasConflict     bool
}

var negativeLexicon = map[string]float64{
	"먹튀":       1.0,
	"소송":       1.0,
	"사기":       1.0,
	"개인정보유출": 1.0,
	"논란":       0.7,
	"분노":       0.7,
	"환불":       0.7,
	"항의":       0.7,
	"버그":       0.7,
	"장애":       0.7,
	"오류":       0.7,
	"불만":       0.4,
	"지적":       0.4,
	"우려":       0.4,
	"하락":       0.4,
	"감소":       0.4,
}

var positiveLexicon = map[string]float64{
	"기대":     0.4,
	"관심":     0.4,
	"성장":     0.4,
	"증가":     0.4,
	"흥행":     0.7,
	"수상":     0.7,
	"신기록":   0.7,
	"호평":     0.7,
	"대박":     0.7,
	"역대급":   1.0,
	"글로벌1위": 1.0,
}

// Mitigation terms halve the negative score: "환불 + 보상안" coverage is a
// company responding, not a story escalating.
var mitigationTerms = []string{"개선", "해결", "대응", "조치", "보상안", "재발방지", "정상화", "복구"}

// Analyze scores the concatenated title and description.
func Analyze(title, description string) Result {
	text := strings.TrimSpace(title + " " + description)

	var posScore, negScore float64
	matched := 0
	for kw, w := range positiveLexicon {
		if strings.Contains(text, kw) {
			posScore += w
			matched++
		}
	}
	for kw, w := range negativeLexicon {
		if strings.Contains(text, kw) {
			negScore += w
			matched++
		}
	}

	if negScore > 0 && containsAny(text, mitigationTerms) {
		negScore *= 0.5
	}

	raw := math.Max(-1.0, math.Min(1.0, posScore-negScore))

	hasConflict := posScore > 0 && negScore > 0
	confidence := 1.0
	if matched == 0 {
		confidence *= 0.3
	}
	if hasConflict {
		confidence *= 0.5
	}
	confidence = math.Round(math.Max(0, math.Min(1, confidence))*100) / 100

	label := LabelNeutral
	switch {
	case raw <= -0.3:
		label = LabelNegative
	case raw >= 0.3:
		label = LabelPositive
	}

	return Result{
		Score:           math.Round(raw*1000) / 1000,
		Label:           label,
		Confidence:      confidence,
		Method:          Method,
		MatchedKeywords: matched,
		HasConflict:     hasConflict,
	}
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
