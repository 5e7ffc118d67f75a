package dedupe

import "strings"

// Similarity returns the normalized Levenshtein similarity of a and b in
// [0, 1]. Comparison is case-insensitive and ignores surrounding space.
// Strings that are equal after trimming score exactly 1, including two
// empty strings; one empty side scores 0.
func Similarity(a, b string) float64 {
	source := []rune(strings.ToLower(strings.TrimSpace(a)))
	target := []rune(strings.ToLower(strings.TrimSpace(b)))

	if string(source) == string(target) {
		return 1
	}
	if len(source) == 0 || len(target) == 0 {
		return 0
	}

	distance := levenshtein(source, target)
	return 1 - float64(distance)/float64(max(len(source), len(target)))
}

// levenshtein computes the edit distance with unit costs for insertion,
// deletion and substitution. Only two rows of the table are kept.
func levenshtein(s, t []rune) int {
	prev := make([]int, len(t)+1)
	curr := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s); i++ {
		curr[0] = i
		for j := 1; j <= len(t); j++ {
			if s[i-1] == t[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = min(
				prev[j]+1,   // deletion
				curr[j-1]+1, // insertion
				prev[j-1]+1, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(t)]
}
