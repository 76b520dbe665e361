package utils

import "math"

// L2Norm returns the Euclidean norm of x.
func L2Norm(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Cosine turns a dot product and the two operand norms into a cosine similarity.
// If either norm is zero the similarity is 0.
func Cosine(dot, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}
