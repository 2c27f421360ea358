package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campus-assist/backend/internal/api"
	"github.com/campus-assist/backend/internal/cache/memory"
	"github.com/campus-assist/backend/internal/cache/redis"
	"github.com/campus-assist/backend/internal/chat"
	"github.com/campus-assist/backend/internal/knowledge"
	"github.com/campus-assist/backend/internal/llm"
	"github.com/campus-assist/backend/internal/metrics"
	"github.com/campus-assist/backend/internal/storage/sqlite"
	"github.com/campus-assist/backend/internal/translation"
	"github.com/campus-assist/backend/internal/voice"
	"github.com/campus-assist/backend/pkg/config"
	appLogger "github.com/campus-assist/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	if err := cfg.Validate(); err != nil {
		if !errors.Is(err, config.ErrMissingLLMKey) {
			appLogger.Fatal("Invalid configuration", zap.Error(err))
		}
		appLogger.Warn("LLM key missing, /ask will answer with a configuration error", zap.Error(err))
	}

	appLogger.Info("Starting campus assistant",
		zap.String("institution", cfg.LLM.Institution),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	cache, closeCache := newCache(cfg)
	defer closeCache()

	doc, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		appLogger.Fatal("Failed to load knowledge document", zap.String("path", cfg.Knowledge.Path), zap.Error(err))
	}

	translator := translation.NewService(
		translation.NewGoogleBackend(cfg.Translation.Endpoint, seconds(cfg.Translation.TimeoutSec)),
		translation.Config{
			Workers:       cfg.Translation.Workers,
			DetectTimeout: seconds(cfg.Translation.DetectTimeoutSec),
			Timeout:       seconds(cfg.Translation.TimeoutSec),
			Cache:         cache,
			CacheTTL:      seconds(cfg.Cache.TTLSeconds),
		},
	)

	var answerer chat.Answerer
	llmClient, err := llm.NewClient(llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     seconds(cfg.LLM.TimeoutSec),
		Institution: cfg.LLM.Institution,
		Knowledge:   doc,
	})
	switch {
	case err == nil:
		answerer = llmClient
	case errors.Is(err, llm.ErrMissingAPIKey):
	default:
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	speech := voice.NewClient(voice.Config{
		APIKey:      cfg.Voice.APIKey,
		STTEndpoint: cfg.Voice.STTEndpoint,
		TTSEndpoint: cfg.Voice.TTSEndpoint,
		Voice:       cfg.Voice.Voice,
		Format:      cfg.Voice.Format,
		Timeout:     seconds(cfg.Voice.TimeoutSec),
		FFmpegPath:  cfg.Voice.FFmpegPath,
	})

	pipeline := chat.NewPipeline(translator, translator, answerer, sqliteClient)

	app := fiber.New(fiber.Config{
		AppName:      "campus-assist",
		ReadTimeout:  seconds(cfg.Server.ReadTimeout),
		WriteTimeout: seconds(cfg.Server.WriteTimeout),
		BodyLimit:    cfg.Server.BodyLimit,
	})

	api.Register(app, api.Deps{
		Pipeline:    pipeline,
		Store:       sqliteClient,
		Speech:      speech,
		DB:          sqliteClient,
		Title:       cfg.LLM.Institution + " Assistant",
		Development: cfg.Server.Development,
		AccessLog:   true,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// newCache returns the configured translation cache, or nil when caching is
// off or the backend is unreachable.
func newCache(cfg *config.Config) (translation.Cache, func()) {
	ttl := seconds(cfg.Cache.TTLSeconds)

	switch cfg.Cache.Backend {
	case "memory":
		appLogger.Info("Translation cache enabled", zap.String("backend", "memory"))
		return memory.New(ttl), func() {}
	case "redis":
		client, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, translation cache disabled", zap.Error(err))
			return nil, func() {}
		}
		appLogger.Info("Translation cache enabled", zap.String("backend", "redis"))
		return client, func() { _ = client.Close() }
	default:
		return nil, func() {}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
