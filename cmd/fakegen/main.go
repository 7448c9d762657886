package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"spritegen/internal/fakeservice"
	"spritegen/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		addr          string
		completeAfter int
		reject        string
		fail          string
		keys          string
		rateLimit     int
	)
	flag.StringVar(&addr, "addr", envOr("FAKEGEN_ADDR", ":8090"), "Listen address")
	flag.IntVar(&completeAfter, "complete-after", 2, "Polls answered with PENDING before a job completes")
	flag.StringVar(&reject, "reject", "", "Comma separated prompt fragments rejected on submit")
	flag.StringVar(&fail, "fail", "", "Comma separated prompt fragments whose jobs fail")
	flag.StringVar(&keys, "api-keys", os.Getenv("FAKEGEN_API_KEYS"), "Comma separated accepted API keys (empty accepts any)")
	flag.IntVar(&rateLimit, "rate-limit", 30, "Submissions per minute per API key (0 disables)")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel).With().Str("cmd", "fakegen").Logger()

	fake := fakeservice.New(fakeservice.Options{
		APIKeys:       splitList(keys),
		CompleteAfter: completeAfter,
		RejectPrompts: splitList(reject),
		FailPrompts:   splitList(fail),
		RateLimit:     rateLimit,
		RateWindow:    time.Minute,
		Logger:        &logger,
	})

	router := chi.NewRouter()
	router.Mount("/api/rest/v1", fake.Handler())
	server := infra.NewHTTPServer(cfg, addr, router)

	go func() {
		logger.Info().Str("addr", addr).Msg("fakegen: listening, set LEONARDO_BASE_URL=http://<addr>/api/rest/v1")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("fakegen: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("fakegen: failed to shutdown server")
	}
	logger.Info().Int("submissions", fake.Submissions()).Msg("fakegen: stopped")
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
