package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultHashingDimensions = 256

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashingEmbedder is a stateless bag-of-words embedder using the hashing trick.
// It needs no model download, which makes it the offline and test fallback.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder creates a hashing embedder producing vectors of the given length
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashingDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Name returns the embedder name
func (e *HashingEmbedder) Name() string {
	return "hashing"
}

// Dimensions returns the vector length
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed returns L2-normalized term-count vectors
func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectorize(text)
	}
	return out, nil
}

func (e *HashingEmbedder) vectorize(text string) []float32 {
	vec := make([]float32, e.dimensions)
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32()%uint32(e.dimensions))]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
