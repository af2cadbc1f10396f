package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/app"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/config"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultDataPath = "./data/resep_indonesia.json"
	testQuery       = "cara membuat nasi goreng"
	testTopK        = 3
)

var (
	banner  = color.New(color.FgCyan, color.Bold)
	step    = color.New(color.Bold)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed, color.Bold)
)

type options struct {
	dataPath string
	skipTest bool
}

func main() {
	var opts options
	flag.StringVar(&opts.dataPath, "data", defaultDataPath, "recipe file (JSON array, or YAML for .yaml/.yml)")
	flag.BoolVar(&opts.skipTest, "skip-test", false, "skip the test search after ingesting")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		failure.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if _, err := os.Stat(opts.dataPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("recipe file %s not found", opts.dataPath)
		}
		return err
	}

	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return ingest(ctx, cfg, opts, out, logger)
}

// ingest loads the recipe file into the configured index and reports progress on out
func ingest(ctx context.Context, cfg *config.Config, opts options, out io.Writer, logger *zap.Logger) error {
	rule := strings.Repeat("=", 60)
	banner.Fprintln(out, rule)
	banner.Fprintln(out, "SETUP RECIPE INDEX - INDONESIAN COOKING ASSISTANT")
	banner.Fprintln(out, rule)

	step.Fprintf(out, "\n1. Opening %s index %q...\n", cfg.Index.Backend, cfg.Index.Collection)
	deps, err := app.NewIndexDependencies(ctx, cfg, logger)
	if err != nil {
		failure.Fprintf(out, "   x %v\n", err)
		return err
	}
	defer func() { _ = deps.Close(ctx) }()
	success.Fprintf(out, "   ok embedder %s (%d dimensions)\n", deps.Embedder.Name(), deps.Embedder.Dimensions())

	existing, err := deps.Index.Count(ctx)
	if err != nil {
		return err
	}
	if existing > 0 {
		warning.Fprintf(out, "   ! index already holds %d documents, they will be replaced\n", existing)
	}

	step.Fprintf(out, "\n2. Loading and embedding recipes from %s...\n", opts.dataPath)
	fmt.Fprintln(out, "   (embedding takes a while)")
	result, err := deps.Ingest.IngestFile(ctx, opts.dataPath)
	if err != nil {
		failure.Fprintf(out, "   x %v\n", err)
		return err
	}
	success.Fprintf(out, "   ok added %d recipes in %s\n", result.Loaded, result.Duration.Round(time.Millisecond))

	step.Fprintln(out, "\n3. Verifying...")
	if result.Stats != nil {
		fmt.Fprintf(out, "   Total recipes: %d\n", result.Stats.TotalDocuments)
		fmt.Fprintf(out, "   Categories: %d\n", result.Stats.NumCategories)
		fmt.Fprintf(out, "   Available categories: %s\n", strings.Join(result.Stats.Categories, ", "))
	}

	if !opts.skipTest {
		step.Fprintln(out, "\n4. Test search...")
		fmt.Fprintf(out, "   Query: %q\n", testQuery)

		results, err := deps.Retriever.RetrieveWithThreshold(ctx, testQuery, testTopK, 0)
		if err != nil {
			failure.Fprintf(out, "   x %v\n", err)
			return err
		}
		for i, r := range results {
			similarity := 0.0
			if r.Similarity != nil {
				similarity = *r.Similarity
			}
			fmt.Fprintf(out, "   %d. %s (similarity: %.4f)\n", i+1, r.Metadata.Name, similarity)
		}
	}

	banner.Fprintln(out, "\n"+rule)
	banner.Fprintln(out, "SETUP COMPLETE")
	banner.Fprintln(out, rule)
	fmt.Fprintln(out, "Start the chatbot API with: go run ./cmd/api-server")
	return nil
}
