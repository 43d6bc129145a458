package fingerprint

import (
	"math"
	"strconv"
	"strings"
)

// QuantizeVector rounds each dimension to the given number of decimal places
// and truncates the result to the leading dims dimensions. Near-identical
// embeddings collide after quantization, which is what makes the semantic
// hash a usable bucket key despite floating-point noise.
func QuantizeVector(vec []float32, precision, dims int) []float32 {
	if len(vec) == 0 {
		return nil
	}
	if dims > len(vec) {
		dims = len(vec)
	}

	scale := math.Pow(10, float64(precision))
	quantized := make([]float32, dims)
	for i := 0; i < dims; i++ {
		rounded := math.Round(float64(vec[i])*scale) / scale
		if rounded == 0 {
			rounded = 0 // normalize -0 so formatting stays stable
		}
		quantized[i] = float32(rounded)
	}

	return quantized
}

// formatVector renders a quantized vector as a canonical comma-separated
// string with fixed precision, suitable for hashing.
func formatVector(vec []float32, precision int) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', precision, 32)
	}
	return strings.Join(parts, ",")
}
