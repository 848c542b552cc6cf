package vector

import (
	"math"
	"sort"
)

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 when either is zero.
func CosineSimilarity(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}

// L2Distance returns the euclidean distance between a and b.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Score returns the similarity of a and b under m; higher is more similar.
func Score(m Metric, a, b []float32) float64 {
	switch m {
	case MetricInnerProduct:
		return InnerProduct(a, b)
	case MetricL2:
		return distanceToScore(L2Distance(a, b))
	default:
		return CosineSimilarity(a, b)
	}
}

func distanceToScore(d float64) float64 {
	return 1 / (1 + d)
}

type scoredRow struct {
	pk  int64
	hit Hit
}

// topK sorts rows by descending score, insertion order breaking ties, and keeps k.
func topK(rows []scoredRow, k int) []Hit {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].hit.Score != rows[j].hit.Score {
			return rows[i].hit.Score > rows[j].hit.Score
		}
		return rows[i].pk < rows[j].pk
	})
	if k > len(rows) {
		k = len(rows)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = rows[i].hit
	}
	return hits
}
