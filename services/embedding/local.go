package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"go.uber.org/zap"
)

// LocalEmbedder runs a sentence-transformer ONNX export in-process.
// The default model is paraphrase-multilingual-MiniLM-L12-v2.
type LocalEmbedder struct {
	mu         sync.Mutex
	session    *hugot.Session
	run        func(texts []string) ([][]float32, error)
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewLocalEmbedder loads the model found at modelPath with the pure Go backend
func NewLocalEmbedder(modelPath, modelName string, dimensions int, logger *zap.Logger) (*LocalEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("local embedding model path is required")
	}

	if modelName == "" {
		modelName = filepath.Base(modelPath)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "recipe-embedder",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	logger.Info("local embedding model loaded",
		zap.String("model", modelName),
		zap.String("path", modelPath))

	return &LocalEmbedder{
		session: session,
		run: func(texts []string) ([][]float32, error) {
			result, err := sentencePipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		model:      modelName,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// Name returns the embedding model name
func (e *LocalEmbedder) Name() string {
	return e.model
}

// Dimensions returns the vector length observed so far or the configured value
func (e *LocalEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// Embed runs the pipeline over texts. Calls are serialized on the session.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	vectors, err := e.run(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("pipeline returned %d embeddings for %d texts", len(vectors), len(texts))
	}
	if len(vectors) > 0 && e.dimensions == 0 {
		e.dimensions = len(vectors[0])
	}
	return vectors, nil
}

// Close releases the ONNX session
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
