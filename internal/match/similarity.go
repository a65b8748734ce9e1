package match

import "strings"

// Similarity scores two normalized titles in [0,1] by blending token-set
// overlap with character-bigram overlap. Token overlap dominates so word
// order doesn't matter; bigrams catch near-miss spellings.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return 0.7*jaccardTokens(a, b) + 0.3*diceBigrams(a, b)
}

func jaccardTokens(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		set[token] = true
	}
	return set
}

func diceBigrams(a, b string) float64 {
	bigramsA := bigramCounts(a)
	bigramsB := bigramCounts(b)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	totalA, totalB, overlap := 0, 0, 0
	for bigram, countA := range bigramsA {
		totalA += countA
		if countB, ok := bigramsB[bigram]; ok {
			if countA < countB {
				overlap += countA
			} else {
				overlap += countB
			}
		}
	}
	for _, countB := range bigramsB {
		totalB += countB
	}
	return 2 * float64(overlap) / float64(totalA+totalB)
}

func bigramCounts(s string) map[string]int {
	counts := make(map[string]int)
	runes := []rune(strings.ReplaceAll(s, " ", ""))
	for i := 0; i+1 < len(runes); i++ {
		counts[string(runes[i:i+2])]++
	}
	return counts
}
