package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"spritegen/internal/adapter/repo"
	"spritegen/internal/catalog"
	"spritegen/internal/fetch"
	"spritegen/internal/infra"
	"spritegen/internal/infra/credentials"
	"spritegen/internal/metrics"
	"spritegen/internal/pipeline"
	"spritegen/internal/providers/leonardo"
	"spritegen/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var (
		catalogPath string
		only        string
		outputRoot  string
		dryRun      bool
		reprocess   bool
	)
	flag.StringVar(&catalogPath, "catalog", envOr("CATALOG_PATH", "assets.yaml"), "Asset catalog (YAML or JSON)")
	flag.StringVar(&only, "only", "", "Comma separated asset names to generate (default: all)")
	flag.StringVar(&outputRoot, "output", "", "Root for relative destinations (overrides OUTPUT_ROOT)")
	flag.BoolVar(&dryRun, "dry-run", false, "Resolve the catalog and print the requests without generating")
	flag.BoolVar(&reprocess, "reprocess", false, "Re-apply matte and size to existing files instead of generating")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	if outputRoot != "" {
		cfg.OutputDir = outputRoot
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel).With().Str("cmd", "spritegen").Logger()

	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		logger.Error().Err(err).Msg("spritegen: failed to load catalog")
		return 2
	}
	requests, err := cat.Requests()
	if err != nil {
		// Invalid entries are skipped; the rest of the catalog still runs.
		logger.Warn().Err(err).Msg("spritegen: catalog has invalid assets")
	}
	requests = catalog.Select(requests, strings.Split(only, ","))
	if len(requests) == 0 {
		logger.Error().Str("catalog", catalogPath).Str("only", only).Msg("spritegen: nothing to generate")
		return 2
	}

	if dryRun {
		for _, r := range requests {
			fmt.Printf("%s\t%dx%d\t%s\t%s\n", r.Name, r.Width, r.Height, r.Format, strings.Join(r.Destinations, ", "))
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder pipeline.Recorder
	apiKey := cfg.LeonardoAPIKey
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("spritegen: database unavailable, runs will not be recorded")
		} else {
			defer pool.Close()
			runner := infra.NewSQLRunner(pool, logger)
			runs := repo.NewRunRepository(runner)
			if err := runs.EnsureSchema(ctx); err != nil {
				logger.Warn().Err(err).Msg("spritegen: failed to prepare run ledger")
			} else {
				recorder = runs
			}
			if apiKey == "" && !reprocess {
				keyFromStore, err := credentials.NewStore(runner).LeonardoAPIKey(ctx)
				if err != nil {
					logger.Warn().Err(err).Msg("spritegen: failed to load leonardo api key from store")
				} else {
					apiKey = keyFromStore
				}
			}
		}
	}

	writer, err := storage.NewWriter(cfg.OutputDir)
	if err != nil {
		logger.Error().Err(err).Msg("spritegen: failed to configure output root")
		return 2
	}

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.NewCollector("spritegen", &logger)
		server := startStatusServer(cfg, collector, &logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	var summary pipeline.Summary
	if reprocess {
		rp, err := pipeline.NewReprocessor(pipeline.ReprocessOptions{
			Store:     writer,
			Recorder:  recorder,
			Metrics:   collector,
			Logger:    &logger,
			MaxPixels: cfg.FetchMaxPixels,
		})
		if err != nil {
			logger.Error().Err(err).Msg("spritegen: failed to configure reprocessing")
			return 2
		}
		summary = rp.Reprocess(ctx, requests)
	} else {
		orch, code := newOrchestrator(cfg, apiKey, writer, recorder, collector, &logger)
		if orch == nil {
			return code
		}
		summary = orch.Run(ctx, requests)
	}
	if err := summary.Report(os.Stdout); err != nil {
		logger.Warn().Err(err).Msg("spritegen: failed to print summary")
	}
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

// newOrchestrator wires the generation pipeline. A nil orchestrator comes
// with the exit code to return.
func newOrchestrator(cfg *infra.Config, apiKey string, writer *storage.Writer, recorder pipeline.Recorder, collector *metrics.Collector, logger *infra.Logger) (*pipeline.Orchestrator, int) {
	client, err := leonardo.NewClient(leonardo.Options{
		APIKey:         apiKey,
		BaseURL:        cfg.LeonardoBaseURL,
		ModelID:        cfg.LeonardoModelID,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("spritegen: failed to configure leonardo client")
		return nil, 2
	}
	if !client.HasCredentials() {
		logger.Error().Msg("spritegen: LEONARDO_API_KEY is not set and no key is stored")
		return nil, 2
	}

	orch, err := pipeline.New(pipeline.Options{
		Generator: client,
		Fetcher: fetch.New(fetch.Options{
			Timeout:   cfg.RequestTimeout,
			MaxBytes:  cfg.FetchMaxBytes,
			MaxPixels: cfg.FetchMaxPixels,
			Logger:    logger,
		}),
		Writer:   writer,
		Recorder: recorder,
		Metrics:  collector,
		Logger:   logger,
		Delay:    cfg.RequestDelay,
		PollPolicy: leonardo.PollPolicy{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollMaxAttempts,
			Timeout:     cfg.PollTimeout,
		},
		FetchAttempts: cfg.FetchAttempts,
		FetchBackoff:  cfg.FetchBackoff,
		Concurrency:   cfg.Concurrency,
	})
	if err != nil {
		logger.Error().Err(err).Msg("spritegen: failed to configure pipeline")
		return nil, 2
	}

	return orch, 0
}

func startStatusServer(cfg *infra.Config, collector *metrics.Collector, logger *infra.Logger) *infra.HTTPServer {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", collector.Handler())

	server := infra.NewHTTPServer(cfg, cfg.MetricsAddr, router)
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("spritegen: metrics listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("spritegen: metrics server failed")
		}
	}()
	return server
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
