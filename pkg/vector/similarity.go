package vector

import (
	"math"
	"sort"
)

// Cosine returns (a·b)/(‖a‖‖b‖). Vectors of different length or with zero
// norm have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SortResults orders results by descending score, then ascending ID.
func SortResults(results []QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// TopK sorts results and truncates them to k.
func TopK(results []QueryResult, k int) []QueryResult {
	if k <= 0 {
		return []QueryResult{}
	}
	SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}
