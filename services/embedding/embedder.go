// Package embedding provides clients for the sentence embedding models used to
// vectorise recipe documents and user queries.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Embedder turns texts into fixed-length vectors.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Name identifies the model behind the embedder
	Name() string

	// Dimensions returns the vector length, or 0 when unknown until the first call
	Dimensions() int

	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOne embeds a single text
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatched embeds texts in chunks of batchSize with at most concurrency
// chunks in flight. Output order matches input order.
func EmbedBatched(ctx context.Context, e Embedder, texts []string, batchSize, concurrency int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vectors, err := e.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
			}
			if len(vectors) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), end-start)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchedEmbedder splits large Embed calls into concurrent batches
type BatchedEmbedder struct {
	next        Embedder
	batchSize   int
	concurrency int
}

// NewBatchedEmbedder wraps next so calls larger than batchSize fan out
// over at most concurrency goroutines
func NewBatchedEmbedder(next Embedder, batchSize, concurrency int) *BatchedEmbedder {
	return &BatchedEmbedder{next: next, batchSize: batchSize, concurrency: concurrency}
}

// Name returns the wrapped embedder's name
func (b *BatchedEmbedder) Name() string {
	return b.next.Name()
}

// Dimensions returns the wrapped embedder's vector length
func (b *BatchedEmbedder) Dimensions() int {
	return b.next.Dimensions()
}

// Embed embeds texts, batching only when there is more than one batch
func (b *BatchedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if b.batchSize <= 0 || len(texts) <= b.batchSize {
		return b.next.Embed(ctx, texts)
	}
	return EmbedBatched(ctx, b.next, texts, b.batchSize, b.concurrency)
}
