package reconcile

import (
	"math"
	"strings"
)

// Similarity scores two descriptions on a 0-100 scale.
type Similarity func(a, b string) int

// PartialRatio scores how well the shorter string aligns with its best
// matching window of the longer string. Each window is scored by the indel
// ratio 2*LCS/(len(a)+len(b)); windows hanging off either end of the longer
// string are included so near-prefix and near-suffix matches count.
func PartialRatio(a, b string) int {
	s1, s2 := []rune(a), []rune(b)
	if len(s1) == 0 && len(s2) == 0 {
		return 100
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}
	if strings.Contains(string(s2), string(s1)) {
		return 100
	}

	best := partialRatio(s1, s2)
	if len(s1) == len(s2) {
		// Edge windows are not symmetric for equal lengths; score both ways.
		best = math.Max(best, partialRatio(s2, s1))
	}
	return int(math.Round(best))
}

// partialRatio assumes len(short) <= len(long) and both are non-empty
func partialRatio(short, long []rune) float64 {
	m, n := len(short), len(long)
	best := 0.0

	consider := func(window []rune) bool {
		if r := indelRatio(short, window); r > best {
			best = r
		}
		return best >= 100
	}

	for i := 1; i < m; i++ {
		if consider(long[:i]) {
			return best
		}
	}
	for i := 0; i+m <= n; i++ {
		if consider(long[i : i+m]) {
			return best
		}
	}
	for i := n - m + 1; i < n; i++ {
		if i <= 0 {
			continue
		}
		if consider(long[i:]) {
			return best
		}
	}
	return best
}

// indelRatio returns 100 * 2*LCS / (len(a)+len(b))
func indelRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*lcsLength(a, b)) / float64(total)
}

// lcsLength is the length of the longest common subsequence
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
