package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/uxcritique/internal/actionlog"
	"github.com/tjfontaine/uxcritique/internal/cache"
	"github.com/tjfontaine/uxcritique/internal/codec"
	"github.com/tjfontaine/uxcritique/internal/critique"
	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/frontdoor"
	"github.com/tjfontaine/uxcritique/internal/pkg/config"
	"github.com/tjfontaine/uxcritique/internal/prompts"
	"github.com/tjfontaine/uxcritique/internal/provider"
	"github.com/tjfontaine/uxcritique/internal/server"
	"github.com/tjfontaine/uxcritique/internal/telemetry"
	"github.com/tjfontaine/uxcritique/internal/tokens"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default "+config.DefaultPath+" if present)")
	flag.Parse()

	// .env.local wins over .env; neither overrides the real environment.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("uxcritique", cfg.Telemetry.Exporter, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}

	agent, err := provider.New(cfg.LLM, provider.HTTPClient())
	if err != nil {
		log.Fatalf("Failed to create model provider: %v", err)
	}
	if agent == nil {
		logger.Warn("no model credentials configured; stage endpoints will answer 503")
	} else {
		logger.Info("model provider ready",
			slog.String("provider", agent.Name()),
			slog.String("vision_model", cfg.LLM.VisionModel),
			slog.String("reasoning_model", cfg.LLM.ReasoningModel),
		)
	}

	catalog, err := prompts.New()
	if err != nil {
		log.Fatalf("Failed to load prompts: %v", err)
	}

	counters := tokens.NewRegistry()
	counters.Register(tokens.NewOpenAICounter())

	svc := critique.New(agentOrNil(agent), catalog,
		critique.WithLogger(logger),
		critique.WithItemConcurrency(cfg.Pipeline.ItemConcurrency),
		critique.WithCache(cache.New(cfg.Cache.Size, cfg.Cache.TTL)),
		critique.WithTokenCounter(counters),
		critique.WithModels(cfg.LLM.VisionModel, cfg.LLM.ReasoningModel),
	)

	recorder := actionlog.NewAsync(
		actionlog.NewFileRecorder(cfg.ActionLog.Dir, cfg.ActionLog.UserID, logger),
		256, logger,
	)

	images := codec.NewImageResolver(
		codec.WithImageHTTPClient(provider.HTTPClient()),
		codec.WithPathPrefix(cfg.Images.PathPrefix),
		codec.WithDevFallback(cfg.Images.DevHosts, cfg.Images.DevOrigins),
		codec.WithAttemptTimeout(cfg.Images.Timeout),
		codec.WithMaxSize(cfg.Images.MaxSize),
	)

	handler := frontdoor.NewHandler(frontdoor.HandlerConfig{
		Service:  svc,
		Images:   images,
		Recorder: recorder,
		Baseline: actionlog.NewBaselineLog(cfg.ActionLog.Dir, cfg.ActionLog.UserID, logger),
		Defaults: cfg.Defaults,
		Logger:   logger,
	})

	srv := server.New(cfg.Server.Port, logger,
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
	)
	frontdoor.Mount(srv.Router, handler.Registrations())

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exitCode := 0
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Error("failed to drain action log", slog.String("error", err.Error()))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
	}

	logger.Info("Shutdown complete")
	os.Exit(exitCode)
}

// agentOrNil keeps an absent provider a nil interface.
func agentOrNil(a provider.Agent) domain.Agent {
	if a == nil {
		return nil
	}
	return a
}
