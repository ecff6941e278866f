package embedding

import (
	"math"

	"imagematch/types"
)

// Norm returns the Euclidean norm of v, accumulated in float64.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize copies raw into a unit-length embedding. A zero vector is
// returned unchanged.
func Normalize(raw []float32) types.Embedding {
	out := make(types.Embedding, len(raw))
	copy(out, raw)

	norm := Norm(raw)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

// Dot is the inner product of two equal-length vectors. Inputs of
// different length are compared over the shorter prefix.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	i := 0
	for ; i <= n-4; i += 4 {
		sum += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3]
	}
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
