// Package vecmath provides the vector primitives used by similarity
// ranking and edge derivation.
package vecmath

import "math"

// normEpsilon guards degenerate vectors: when either norm falls below
// this, cosine similarity is defined as 0.0 instead of dividing by a
// near-zero denominator.
const normEpsilon = 1e-9

// Dot returns the dot product of a and b. Vectors must be the same
// length (caller's responsibility).
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|), or 0.0 when either
// norm is below 1e-9.
func CosineSimilarity(a, b []float32) float64 {
	denom := Norm(a) * Norm(b)
	if denom < normEpsilon {
		return 0.0
	}
	return Dot(a, b) / denom
}
