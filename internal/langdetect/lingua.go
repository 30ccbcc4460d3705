package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Detector tags article text with an ISO 639-1 code, "und" when detection
// is not possible. It satisfies the ingest service's LanguageDetector.
type Detector struct{}

func (Detector) Detect(text string) string {
	if code := DetectISO6391(text); code != "" {
		return code
	}
	return "und"
}

func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// The candidate set is restricted to the languages the monitored press
// corpus actually produces, which keeps model load fast and avoids
// misreads on short mixed-script headlines.
func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.Korean,
				lingua.English,
				lingua.Japanese,
				lingua.Chinese,
			).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
