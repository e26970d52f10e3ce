package inference

import (
	"time"

	"github.com/jonnison/tower-jumps/internal/model"
)

// plurality returns the most frequent non-empty region and its count. Exact
// ties go to the lexicographically lowest region. Empty regions never win;
// if every entry is empty the result is ("", 0).
func plurality(regions []string) (string, int) {
	counts := make(map[string]int, 4)
	for _, r := range regions {
		if r == "" {
			continue
		}
		counts[r]++
	}

	var best string
	var bestN int
	for r, n := range counts {
		if n > bestN || (n == bestN && r < best) {
			best, bestN = r, n
		}
	}
	return best, bestN
}

// span returns the earliest and latest ping time.
func span(pings []model.Ping) (start, end time.Time) {
	start, end = pings[0].Time, pings[0].Time
	for _, p := range pings[1:] {
		if p.Time.Before(start) {
			start = p.Time
		}
		if p.Time.After(end) {
			end = p.Time
		}
	}
	return start, end
}
