// Package main provides the one-shot digest CLI: it runs the pipeline once
// and prints the run report.
// Usage: digest [--output text|json] [--dry-run] [--timeout 30m]
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"digest-feed/internal/cache"
	"digest-feed/internal/config"
	"digest-feed/internal/domain/entity"
	"digest-feed/internal/infra/adapter/persistence/file"
	pgRepo "digest-feed/internal/infra/adapter/persistence/postgres"
	"digest-feed/internal/infra/db"
	"digest-feed/internal/infra/fetcher"
	"digest-feed/internal/infra/publisher"
	"digest-feed/internal/infra/scraper"
	"digest-feed/internal/infra/summarizer"
	"digest-feed/internal/observability/logging"
	pkgconfig "digest-feed/internal/pkg/config"
	"digest-feed/internal/report"
	"digest-feed/internal/repository"
	"digest-feed/internal/usecase/digest"
	"digest-feed/internal/usecase/publish"
)

// RunOutput represents the JSON output format for one digest run.
type RunOutput struct {
	Summary   report.Summary `json:"summary"`
	Digests   int            `json:"digests"`
	Published int            `json:"published"`
	DryRun    bool           `json:"dry_run"`
}

func main() {
	var (
		outputFormat string
		dryRun       bool
		timeout      time.Duration
	)

	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.BoolVar(&dryRun, "dry-run", false, "Run the pipeline without publishing the results")
	flag.DurationVar(&timeout, "timeout", 30*time.Minute, "Maximum duration for the run")
	flag.Parse()

	if outputFormat != "text" && outputFormat != "json" {
		fmt.Fprintf(os.Stderr, "Error: Invalid output format '%s' (must be 'text' or 'json')\n", outputFormat)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: digest [--output text|json] [--dry-run] [--timeout 30m]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  digest")
		fmt.Fprintln(os.Stderr, "  digest --dry-run")
		fmt.Fprintln(os.Stderr, "  digest --output json --timeout 10m")
		os.Exit(1)
	}

	logger := initLogger()

	cfg, err := config.LoadConfigFromEnv(logger, pkgconfig.NewConfigMetrics("cli"))
	if err != nil {
		logger.Error("failed to load pipeline configuration", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	digestService := setupDigestService(logger, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	digests, summary, err := digestService.Run(ctx)
	if err != nil {
		logger.Error("digest run failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Digest run failed: %v\n", err)
		os.Exit(1)
	}

	// Publish unless this is a dry run. The store opens lazily so a dry
	// run never touches the database.
	published := 0
	if dryRun {
		logger.Info("dry run, skipping publish", slog.Int("digests", len(digests)))
	} else {
		publishService, storeCleanup := setupPublishService(ctx, logger, cfg)
		published, err = publishService.Publish(ctx, digests)
		storeCleanup()
		if err != nil {
			logger.Error("publish failed", slog.Any("error", err))
			fmt.Fprintf(os.Stderr, "Error: Publish failed: %v\n", err)
			os.Exit(1)
		}
	}

	if outputFormat == "json" {
		outputJSON(summary, len(digests), published, dryRun)
	} else {
		outputText(summary, len(digests), published, dryRun)
	}
}

// setupDigestService assembles the digest pipeline the same way the worker
// does: RSS fetcher, content extractor, layered summarizer, and the
// content-addressed cache.
func setupDigestService(logger *slog.Logger, cfg *config.Config) *digest.Service {
	rss := scraper.NewRSSFetcher(createHTTPClient(), cfg.RetryPolicy(), logger)

	fetchConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("invalid content fetch configuration, using defaults", slog.Any("error", err))
		fetchConfig = fetcher.DefaultConfig()
	}
	extractor := fetcher.NewReadabilityFetcher(fetchConfig, logger)

	store := cache.NewStore(cfg.CacheDir, cfg.RawCacheTTL, cfg.DigestCacheTTL, logger)

	loadSources := func() ([]entity.Source, error) {
		return config.LoadSources(cfg.SourcesPath)
	}

	opts := digest.Options{
		SourceConcurrency:   cfg.SourceConcurrency,
		ItemConcurrency:     cfg.ItemConcurrency,
		ItemPause:           cfg.ItemPause,
		MaxEntriesPerSource: cfg.MaxEntriesPerSource,
	}

	return digest.NewService(rss, extractor, createSummarizer(logger), store, loadSources, opts, logger)
}

// setupPublishService assembles the publisher: the published-entry store
// selected by STORE_BACKEND and the optional RSS feed output.
func setupPublishService(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*publish.Service, func()) {
	store, cleanup := createPublishedStore(ctx, logger, cfg)

	var feed publish.FeedWriter
	if cfg.FeedPath != "" {
		feed = publisher.NewFeedFile(cfg.FeedPath, publisher.LoadFeedConfigFromEnv())
	}

	return publish.NewService(store, feed, cfg.PublishMode, cfg.RetentionDays, logger), cleanup
}

func createPublishedStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) (repository.PublishedRepository, func()) {
	if cfg.StoreBackend == config.StoreBackendPostgres {
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", slog.Any("error", err))
			fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
			os.Exit(1)
		}
		if err := db.MigrateUp(database); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			fmt.Fprintf(os.Stderr, "Error: Failed to run migrations: %v\n", err)
			os.Exit(1)
		}
		cleanup := func() {
			if err := database.Close(); err != nil {
				logger.Error("database close failed", slog.Any("error", err))
			}
		}
		return pgRepo.NewPublishedRepo(database), cleanup
	}

	return file.NewPublishedRepo(cfg.PublishedPath), func() {}
}

// createSummarizer selects the generation provider from SUMMARIZER_TYPE and
// wraps it in the layered summarizer. SUMMARIZER_TYPE=noop runs the pipeline
// without an AI provider, which is handy together with --dry-run.
func createSummarizer(logger *slog.Logger) digest.Summarizer {
	provider := os.Getenv("SUMMARIZER_TYPE")
	if provider == "" {
		provider = "claude"
	}

	var generator summarizer.Generator
	switch provider {
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			fmt.Fprintln(os.Stderr, "Error: ANTHROPIC_API_KEY is required when SUMMARIZER_TYPE=claude")
			os.Exit(1)
		}
		generator = summarizer.NewClaude(apiKey)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY is required when SUMMARIZER_TYPE=openai")
			os.Exit(1)
		}
		openAIConfig := summarizer.DefaultOpenAIConfig()
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			openAIConfig.Model = model
		}
		gen, err := summarizer.NewOpenAI(apiKey, openAIConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to configure OpenAI provider: %v\n", err)
			os.Exit(1)
		}
		generator = gen
	case "noop":
		logger.Warn("Summarization disabled, digests degrade to excerpts")
		generator = summarizer.NewNoOp()
	default:
		fmt.Fprintf(os.Stderr, "Error: Invalid SUMMARIZER_TYPE '%s' (must be 'claude', 'openai', or 'noop')\n", provider)
		os.Exit(1)
		return nil
	}

	return summarizer.NewLayerSummarizer(generator, provider, summarizer.LoadLayerConfig(), logger)
}

func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// outputText prints the run report in human-readable format.
func outputText(summary report.Summary, digests, published int, dryRun bool) {
	fmt.Print(summary.Text())
	if dryRun {
		fmt.Printf("Digests: %d (dry run, not published)\n", digests)
	} else {
		fmt.Printf("Digests: %d generated, %d published\n", digests, published)
	}
}

// outputJSON prints the run report in JSON format.
func outputJSON(summary report.Summary, digests, published int, dryRun bool) {
	output := RunOutput{
		Summary:   summary,
		Digests:   digests,
		Published: published,
		DryRun:    dryRun,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// initLogger initializes a text logger on stderr so the report on stdout
// stays clean.
func initLogger() *slog.Logger {
	logger := logging.NewTextLogger()
	slog.SetDefault(logger)
	return logger
}
