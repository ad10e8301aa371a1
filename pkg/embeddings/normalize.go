// Package embeddings holds small vector helpers shared by the embedding backends and tests.
package embeddings

import "math"

// NormalizeL2 scales vector to unit length in place. All-zero vectors are left as is,
// which keeps the zero vector returned for blank input intact.
func NormalizeL2(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// Zero returns an all-zero vector of the given dimension.
func Zero(dimensions int) []float32 {
	if dimensions <= 0 {
		return []float32{}
	}
	return make([]float32, dimensions)
}

// IsZero reports whether every component is zero.
func IsZero(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}
	return true
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when the lengths
// differ or either vector has no magnitude. For unit vectors it equals 1 - pgvector's <=> distance.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
