package match

import (
	"github.com/hbollon/go-edlib"
)

// DefaultThreshold is the pass mark for fuzzy comparisons. Scores must be strictly greater.
const DefaultThreshold = 80.0

// Similarity scores how well the shorter of a and b appears inside the longer, from 0 to 100.
//
// Every window of the longer string with the length of the shorter one is compared using an
// LCS-based ratio and the best window wins, so "let it be" against "let it be naked" scores 100.
// Empty input scores 0. The result does not depend on argument order.
func Similarity(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) == 0 || len(long) == 0 {
		return 0
	}
	if len(short) > len(long) {
		short, long = long, short
	}

	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if r := ratio(s, long[i:i+len(short)], len(short)); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func ratio(a string, window []rune, n int) float64 {
	lcs := edlib.LCS(a, string(window))
	return 100 * 2 * float64(lcs) / float64(n+len(window))
}
