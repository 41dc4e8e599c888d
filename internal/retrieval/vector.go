// Package retrieval implements the similarity search over persisted document
// chunks: a hard service-ownership filter applied in SQL, followed by cosine
// ranking of the eligible embeddings.
package retrieval

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes a float32 vector as little-endian bytes for blob
// storage.
func EncodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DecodeVector deserializes a blob produced by EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// CosineDistance returns 1 - cosine similarity of a and b. Vectors of
// mismatched length or zero magnitude yield the maximum distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
