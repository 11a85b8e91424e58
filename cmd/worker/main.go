package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"digest-feed/internal/cache"
	"digest-feed/internal/config"
	"digest-feed/internal/domain/entity"
	"digest-feed/internal/infra/adapter/persistence/file"
	pgRepo "digest-feed/internal/infra/adapter/persistence/postgres"
	"digest-feed/internal/infra/db"
	"digest-feed/internal/infra/fetcher"
	"digest-feed/internal/infra/notifier"
	"digest-feed/internal/infra/publisher"
	"digest-feed/internal/infra/scraper"
	"digest-feed/internal/infra/summarizer"
	"digest-feed/internal/infra/worker"
	"digest-feed/internal/observability/logging"
	obsmetrics "digest-feed/internal/observability/metrics"
	"digest-feed/internal/observability/slo"
	pkgconfig "digest-feed/internal/pkg/config"
	"digest-feed/internal/report"
	"digest-feed/internal/repository"
	"digest-feed/internal/usecase/digest"
	"digest-feed/internal/usecase/publish"
)

func main() {
	logger := initLogger()

	// Shutdown signal context: the metrics and health servers stop when it
	// is canceled, and the cron scheduler drains its running job.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Both config layers fall back to defaults on bad values, so the err
	// branches here are belt and braces.
	workerMetrics := worker.NewWorkerMetrics()
	workerConfig, err := worker.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("worker configuration unusable", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration resolved",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("run_timeout", workerConfig.RunTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	configMetrics := pkgconfig.NewConfigMetrics("pipeline")
	cfg, err := config.LoadConfigFromEnv(logger, configMetrics)
	if err != nil {
		logger.Error("pipeline configuration unusable", slog.Any("error", err))
		os.Exit(1)
	}

	digestService := setupDigestService(logger, cfg)
	publishService, storeCleanup := setupPublishService(ctx, logger, cfg)
	defer storeCleanup()

	notify := createNotifier(logger)

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := worker.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server exited", slog.Any("error", err))
		}
	}()
	logger.Info("health endpoints listening", slog.String("addr", healthAddr))

	sloRuns := &sloTracker{}
	startCronWorker(ctx, logger, workerConfig, healthServer, func() {
		runDigestJob(logger, digestService, publishService, notify, workerConfig, workerMetrics, sloRuns)
	})
}

// initLogger creates the process-wide JSON logger. LOG_LEVEL=debug enables
// debug output.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// setupDigestService assembles the digest pipeline: RSS fetcher, content
// extractor, layered summarizer, and the content-addressed cache.
func setupDigestService(logger *slog.Logger, cfg *config.Config) *digest.Service {
	rss := scraper.NewRSSFetcher(createHTTPClient(), cfg.RetryPolicy(), logger)

	fetchConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("invalid content fetch configuration, using defaults", slog.Any("error", err))
		fetchConfig = fetcher.DefaultConfig()
	}
	extractor := fetcher.NewReadabilityFetcher(fetchConfig, logger)
	logger.Info("content fetcher initialized",
		slog.Bool("enabled", fetchConfig.Enabled),
		slog.Int("threshold", fetchConfig.Threshold))

	store := cache.NewStore(cfg.CacheDir, cfg.RawCacheTTL, cfg.DigestCacheTTL, logger)

	// Sources reload on every run so edits to the file take effect without
	// a restart.
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
// selected by STORE_BACKEND and the optional RSS feed output. The returned
// cleanup closes the database connection when the postgres backend is in use.
func setupPublishService(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*publish.Service, func()) {
	store, cleanup := createPublishedStore(ctx, logger, cfg)

	var feed publish.FeedWriter
	if cfg.FeedPath != "" {
		feed = publisher.NewFeedFile(cfg.FeedPath, publisher.LoadFeedConfigFromEnv())
		logger.Info("feed output enabled", slog.String("path", cfg.FeedPath))
	} else {
		logger.Info("feed output disabled")
	}

	return publish.NewService(store, feed, cfg.PublishMode, cfg.RetentionDays, logger), cleanup
}

func createPublishedStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) (repository.PublishedRepository, func()) {
	if cfg.StoreBackend == config.StoreBackendPostgres {
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("database open failed", slog.Any("error", err))
			os.Exit(1)
		}
		if err := db.MigrateUp(database); err != nil {
			logger.Error("database migration failed", slog.Any("error", err))
			os.Exit(1)
		}
		go sampleDBPool(ctx, database)
		logger.Info("published store initialized", slog.String("backend", cfg.StoreBackend))
		cleanup := func() {
			if err := database.Close(); err != nil {
				logger.Error("database close failed", slog.Any("error", err))
			}
		}
		return pgRepo.NewPublishedRepo(database), cleanup
	}

	logger.Info("published store initialized",
		slog.String("backend", cfg.StoreBackend),
		slog.String("path", cfg.PublishedPath))
	return file.NewPublishedRepo(cfg.PublishedPath), func() {}
}

// sampleDBPool feeds the connection pool gauges from sql.DB.Stats until the
// worker shuts down.
func sampleDBPool(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := database.Stats()
			obsmetrics.UpdateDBConnStats(stats.InUse, stats.Idle)
		}
	}
}

// createSummarizer selects the generation provider from SUMMARIZER_TYPE and
// wraps it in the layered summarizer.
//
// Environment variables:
//   - SUMMARIZER_TYPE: "claude" (default), "openai", or "noop"
//   - ANTHROPIC_API_KEY: required when SUMMARIZER_TYPE=claude
//   - OPENAI_API_KEY: required when SUMMARIZER_TYPE=openai
//   - OPENAI_MODEL: overrides the OpenAI model (optional)
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
			logger.Error("ANTHROPIC_API_KEY must be set for the claude summarizer")
			os.Exit(1)
		}
		logger.Info("summarizer provider selected", slog.String("type", provider))
		generator = summarizer.NewClaude(apiKey)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Error("OPENAI_API_KEY must be set for the openai summarizer")
			os.Exit(1)
		}
		openAIConfig := summarizer.DefaultOpenAIConfig()
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			openAIConfig.Model = model
		}
		gen, err := summarizer.NewOpenAI(apiKey, openAIConfig)
		if err != nil {
			logger.Error("openai provider rejected its configuration", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("summarizer provider selected",
			slog.String("type", provider),
			slog.String("model", openAIConfig.Model))
		generator = gen
	case "noop":
		logger.Warn("summarization disabled, digests degrade to excerpts", slog.String("type", provider))
		generator = summarizer.NewNoOp()
	default:
		logger.Error("unknown SUMMARIZER_TYPE",
			slog.String("type", provider),
			slog.String("expected", "claude, openai, or noop"))
		os.Exit(1)
		return nil
	}

	return summarizer.NewLayerSummarizer(generator, provider, summarizer.LoadLayerConfig(), logger)
}

// createNotifier assembles the run-summary notification target from the
// Slack and Discord webhook configurations. With no webhook configured the
// worker gets a no-op notifier instead of a nil to check.
func createNotifier(logger *slog.Logger) notifier.Notifier {
	var targets []notifier.Notifier

	slackConfig := loadSlackConfig(logger)
	if slackConfig.Enabled {
		targets = append(targets, notifier.NewSlackNotifier(slackConfig))
		logger.Info("Slack notifications initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack notifications disabled")
	}

	discordConfig := loadDiscordConfig(logger)
	if discordConfig.Enabled {
		targets = append(targets, notifier.NewDiscordNotifier(discordConfig))
		logger.Info("Discord notifications initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord notifications disabled")
	}

	if len(targets) == 0 {
		return notifier.NewNoOpNotifier()
	}
	return notifier.NewFanout(logger, targets...)
}

// createHTTPClient builds the shared client for feed and article fetches:
// pooled keepalive connections, 30s per-request ceiling, TLS 1.2 minimum.
func createHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}

// webhookSpec names the environment keys and expected URL shape for one
// notification service.
type webhookSpec struct {
	service    string
	enabledKey string
	urlKey     string
	host       string
	pathPrefix string
}

// resolveWebhook reads and checks one service's webhook settings, returning
// the URL or "" when the service is off. A present-but-broken URL logs a
// warning and counts as off: a bad webhook must not take the worker down.
func resolveWebhook(logger *slog.Logger, spec webhookSpec) string {
	if os.Getenv(spec.enabledKey) != "true" {
		return ""
	}

	endpoint := os.Getenv(spec.urlKey)
	if endpoint == "" {
		logger.Warn("webhook URL missing, notifications disabled",
			slog.String("service", spec.service))
		return ""
	}

	u, err := url.Parse(endpoint)
	switch {
	case err != nil:
		logger.Warn("webhook URL unparseable, notifications disabled",
			slog.String("service", spec.service), slog.Any("error", err))
	case u.Scheme != "https":
		logger.Warn("webhook URL must be https, notifications disabled",
			slog.String("service", spec.service))
	case u.Host != spec.host:
		logger.Warn("unexpected webhook host, notifications disabled",
			slog.String("service", spec.service), slog.String("host", u.Host))
	case !strings.HasPrefix(u.Path, spec.pathPrefix):
		logger.Warn("unexpected webhook path, notifications disabled",
			slog.String("service", spec.service), slog.String("path", u.Path))
	default:
		return endpoint
	}
	return ""
}

func loadSlackConfig(logger *slog.Logger) notifier.SlackConfig {
	endpoint := resolveWebhook(logger, webhookSpec{
		service:    "slack",
		enabledKey: "SLACK_ENABLED",
		urlKey:     "SLACK_WEBHOOK_URL",
		host:       "hooks.slack.com",
		pathPrefix: "/services/",
	})
	if endpoint == "" {
		return notifier.SlackConfig{}
	}
	return notifier.SlackConfig{Enabled: true, WebhookURL: endpoint, Timeout: 30 * time.Second}
}

func loadDiscordConfig(logger *slog.Logger) notifier.DiscordConfig {
	endpoint := resolveWebhook(logger, webhookSpec{
		service:    "discord",
		enabledKey: "DISCORD_ENABLED",
		urlKey:     "DISCORD_WEBHOOK_URL",
		host:       "discord.com",
		pathPrefix: "/api/webhooks/",
	})
	if endpoint == "" {
		return notifier.DiscordConfig{}
	}
	return notifier.DiscordConfig{Enabled: true, WebhookURL: endpoint, Timeout: 30 * time.Second}
}

// startCronWorker starts the cron scheduler and blocks until the shutdown
// signal, then waits for a running job to finish.
func startCronWorker(ctx context.Context, logger *slog.Logger, cfg *worker.WorkerConfig, healthServer *worker.HealthServer, job func()) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("timezone not found, falling back to UTC",
			slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.CronSchedule, job); err != nil {
		logger.Error("cron schedule rejected", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	// Readiness flips only once the scheduler is live.
	healthServer.SetReady(true)
	logger.Info("worker ready",
		slog.String("schedule", cfg.CronSchedule), slog.String("timezone", loc.String()))

	<-ctx.Done()
	logger.Info("shutdown signal received, waiting for running job")
	<-c.Stop().Done()
	logger.Info("worker stopped")
}

// runDigestJob executes one digest run with timeout, publishes the results,
// and delivers the run summary to the configured notifiers.
func runDigestJob(logger *slog.Logger, digestService *digest.Service, publishService *publish.Service, notify notifier.Notifier, cfg *worker.WorkerConfig, metrics *worker.WorkerMetrics, sloRuns *sloTracker) {
	startTime := time.Now()
	logger.Info("digest job started")

	// The run gets its own timeout rather than the shutdown context so a
	// SIGTERM drains the in-flight run instead of killing it.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	digests, summary, err := digestService.Run(ctx)
	if err != nil {
		logger.Error("digest run failed", slog.Any("error", err))
		metrics.RecordRun("failure")
		metrics.RecordRunDuration(time.Since(startTime).Seconds())
		sloRuns.record(report.Summary{}, time.Since(startTime), false)
		return
	}

	published, err := publishService.Publish(ctx, digests)
	if err != nil {
		logger.Error("publish failed", slog.Any("error", err))
		metrics.RecordRun("failure")
		metrics.RecordRunDuration(time.Since(startTime).Seconds())
		sloRuns.record(summary, time.Since(startTime), false)
		return
	}

	metrics.RecordRun("success")
	metrics.RecordRunDuration(time.Since(startTime).Seconds())
	metrics.RecordFeedsProcessed(summary.Feeds.Total)
	metrics.RecordItemsProcessed(summary.Items.Total)
	metrics.RecordLastSuccess()
	sloRuns.record(summary, time.Since(startTime), !summary.Failed())

	if err := notify.NotifyRun(ctx, summary); err != nil {
		logger.Warn("run notification failed", slog.Any("error", err))
	}

	logger.Info("digest job completed",
		slog.Int("digests", len(digests)),
		slog.Int("published", published),
		slog.Duration("duration", time.Since(startTime)),
	)
}

// sloWindowRuns bounds the duration window the p95 gauge is computed over.
const sloWindowRuns = 50

// sloTracker feeds the SLO gauges from an in-process window of recent runs.
// On a daily schedule the window spans weeks of history between restarts.
type sloTracker struct {
	mu        sync.Mutex
	runs      int
	clean     int
	durations []float64
}

func (t *sloTracker) record(summary report.Summary, duration time.Duration, clean bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runs++
	if clean {
		t.clean++
	}
	t.durations = append(t.durations, duration.Seconds())
	if len(t.durations) > sloWindowRuns {
		t.durations = t.durations[1:]
	}

	slo.UpdateRunSuccess(float64(t.clean) / float64(t.runs))
	slo.UpdateRunDurationP95(percentile(t.durations, 0.95))
	if summary.Items.Processed > 0 {
		slo.UpdateItemFailureRate(float64(summary.Items.Failed) / float64(summary.Items.Processed))
	}
}

// percentile returns the pth percentile of samples by nearest rank.
// samples must be non-empty.
func percentile(samples []float64, p float64) float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}
