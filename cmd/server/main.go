package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xcode-ai/ai-gateway/internal/api"
	"github.com/xcode-ai/ai-gateway/internal/chat"
	"github.com/xcode-ai/ai-gateway/internal/config"
	"github.com/xcode-ai/ai-gateway/internal/llm"
	"github.com/xcode-ai/ai-gateway/internal/metrics"
	"github.com/xcode-ai/ai-gateway/internal/probe"
	"github.com/xcode-ai/ai-gateway/internal/stream"
	"github.com/xcode-ai/ai-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		OutputPath: cfg.Logging.Output,
		Format:     cfg.Logging.Format,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	// Credential sources: process env, config file, .env
	props, err := config.NewProperties(config.PropertiesOptions{ConfigFile: os.Getenv("GATEWAY_CONFIG")})
	if err != nil {
		log.Fatal("failed to load properties", zap.Error(err))
	}
	resolver := config.NewResolver(config.OSEnv{}, props, log.Named("config"))
	creds := resolver.Resolve()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Hot-reload credential sources for diagnostics
	if cfg.Watch.Enabled {
		watcher, err := config.NewWatcher(props, cfg.Watch.Debounce, func() {
			c := resolver.Resolve()
			log.Info("Credential sources reloaded",
				zap.String("api_key", config.Mask(c.APIKey)),
				zap.String("key_source", c.KeySource),
				zap.String("base_url", c.BaseURL),
			)
		}, log.Named("config"))
		if err != nil {
			log.Warn("Config watcher disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			go func() {
				if err := watcher.Run(ctx); err != nil {
					log.Error("Config watcher exited", zap.Error(err))
				}
			}()
		}
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(cfg.Metrics.Namespace)
	}

	client := llm.NewQwenClient(creds, llm.Options{
		HTTPClient:     &http.Client{Timeout: cfg.Provider.Timeout},
		FallbackAPIKey: cfg.Provider.APIKey,
		Metrics:        collector,
		Logger:         log.Named("llm"),
	})

	chatService := chat.NewService(client, chat.Config{
		SystemPrompt: cfg.Provider.SystemPrompt,
		Temperature:  cfg.Provider.Temperature,
		MaxTokens:    cfg.Provider.MaxTokens,
	}, log.Named("chat"))

	// Start stream workers
	pool := stream.NewPool(cfg.Stream.Workers, cfg.Stream.QueueSize, log.Named("stream"))
	pool.Start()
	defer pool.Stop()

	emitter := stream.NewEmitter(pool, stream.Config{
		ChunkDelay: cfg.Stream.ChunkDelay,
		Buffer:     cfg.Stream.Buffer,
	}, collector, log.Named("stream"))

	prober := probe.New(resolver, client, log.Named("probe"))
	scheduler := probe.NewScheduler(prober, cfg.Probe.Schedule, collector, log.Named("probe"))
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("failed to start probe scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	deps := api.Dependencies{
		Status:   prober,
		Resolver: resolver,
		Chat:     chatService,
		Streamer: emitter,
	}
	if collector != nil {
		deps.Metrics = collector.Handler()
	}

	// Initialize API server
	server := api.NewServer(&api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Mode:         cfg.Server.Mode,
		JWTSecret:    cfg.Server.JWTSecret,
		AllowOrigins: cfg.Server.AllowOrigins,
		MetricsPath:  cfg.Metrics.Path,
	}, deps, log)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	log.Info("AI gateway started",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("base_url", creds.BaseURL),
		zap.String("model", creds.DefaultModel),
		zap.String("api_key", config.Mask(creds.APIKey)),
		zap.String("key_source", creds.KeySource),
		zap.Bool("dev_mode", creds.DevMode),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
