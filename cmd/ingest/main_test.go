package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const recipesJSON = `[
	{"nama": "Nasi Goreng", "kategori": "Nasi", "bahan": ["nasi putih", "kecap manis"], "langkah": ["Tumis bawang", "Masukkan nasi"]},
	{"nama": "Soto Ayam", "kategori": "Sup", "bahan": ["ayam", "kunyit"], "langkah": ["Rebus ayam"]},
	{"nama": "Rendang", "kategori": "Daging", "bahan": ["daging sapi", "santan"], "langkah": ["Masak santan"]}
]`

func TestIngest(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "resep.json")
	require.NoError(t, os.WriteFile(dataPath, []byte(recipesJSON), 0o644))

	t.Run("loads recipes and runs the test search", func(t *testing.T) {
		var out bytes.Buffer
		err := ingest(context.Background(), testConfig(t), options{dataPath: dataPath}, &out, zap.NewNop())
		require.NoError(t, err)

		output := out.String()
		assert.Contains(t, output, "added 3 recipes")
		assert.Contains(t, output, "Total recipes: 3")
		assert.Contains(t, output, "Available categories: Daging, Nasi, Sup")
		assert.Contains(t, output, `Query: "cara membuat nasi goreng"`)
		assert.Contains(t, output, "1. Nasi Goreng (similarity: ")
		assert.Contains(t, output, "SETUP COMPLETE")
	})

	t.Run("skip test search", func(t *testing.T) {
		var out bytes.Buffer
		err := ingest(context.Background(), testConfig(t), options{dataPath: dataPath, skipTest: true}, &out, zap.NewNop())
		require.NoError(t, err)
		assert.NotContains(t, out.String(), "Test search")
	})

	t.Run("replaces an existing sqlite collection", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Index.Backend = config.IndexBackendSQLite
		cfg.Index.PersistDir = t.TempDir()

		require.NoError(t, ingest(context.Background(), cfg, options{dataPath: dataPath, skipTest: true}, &bytes.Buffer{}, zap.NewNop()))

		var out bytes.Buffer
		require.NoError(t, ingest(context.Background(), cfg, options{dataPath: dataPath, skipTest: true}, &out, zap.NewNop()))
		assert.Contains(t, out.String(), "index already holds 3 documents")
		assert.Contains(t, out.String(), "Total recipes: 3")
	})

	t.Run("invalid recipe aborts", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`[{"kategori": "Sup"}]`), 0o644))

		var out bytes.Buffer
		err := ingest(context.Background(), testConfig(t), options{dataPath: bad}, &out, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recipe 0")
	})
}

func TestRunMissingFile(t *testing.T) {
	err := run(context.Background(), options{dataPath: filepath.Join(t.TempDir(), "nope.json")}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Index: config.IndexConfig{
			Backend:    config.IndexBackendMemory,
			Collection: "indonesian_recipes",
		},
		Embedding: config.EmbeddingConfig{
			Provider:    config.EmbeddingProviderHashing,
			Dimensions:  128,
			BatchSize:   2,
			Concurrency: 2,
			CacheSize:   10,
			CacheTTL:    time.Minute,
		},
		Retrieval: config.RetrievalConfig{DefaultTopK: 3, MaxTopK: 5},
	}
}
