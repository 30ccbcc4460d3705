package ingest

// TitleSimilarity scores two normalized titles in [0, 1] using the Dice
// coefficient over rune bigrams. Identical strings score 1; titles shorter
// than two runes compare by equality only.
func TitleSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}

	aBigrams := runeBigrams(a)
	bBigrams := runeBigrams(b)
	if len(aBigrams) == 0 || len(bBigrams) == 0 {
		return 0
	}

	counts := make(map[string]int, len(aBigrams))
	for _, bg := range aBigrams {
		counts[bg]++
	}

	overlap := 0
	for _, bg := range bBigrams {
		if counts[bg] > 0 {
			counts[bg]--
			overlap++
		}
	}

	return 2 * float64(overlap) / float64(len(aBigrams)+len(bBigrams))
}

func runeBigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	bigrams := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		bigrams = append(bigrams, string(runes[i:i+2]))
	}
	return bigrams
}
