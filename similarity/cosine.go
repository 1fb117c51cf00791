// Package similarity scores how alike two embedding vectors are.
package similarity

import "math"

type Float interface {
	~float32 | ~float64
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
//
// Only the shared prefix min(len(a), len(b)) is compared; trailing elements of
// the longer vector are ignored. NaN elements count as zero. If either vector
// is all zeros over the compared prefix the result is 0.
func CosineSimilarity[T Float](a, b []T) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := value(a[i]), value(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func value[T Float](v T) float64 {
	f := float64(v)
	if math.IsNaN(f) {
		return 0
	}
	return f
}
