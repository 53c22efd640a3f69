package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sherlockbot/sherlock/internal/bot"
	"github.com/sherlockbot/sherlock/internal/chat"
	"github.com/sherlockbot/sherlock/internal/config"
	"github.com/sherlockbot/sherlock/internal/discord"
	"github.com/sherlockbot/sherlock/internal/history"
	"github.com/sherlockbot/sherlock/internal/limiter"
	"github.com/sherlockbot/sherlock/internal/logging"
	"github.com/sherlockbot/sherlock/internal/openrouter"
	"github.com/sherlockbot/sherlock/internal/prompt"
	"github.com/sherlockbot/sherlock/internal/retry"
)

// limiterSweepInterval bounds limiter memory under user churn.
const limiterSweepInterval = time.Minute

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[bot] invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}
	defer logger.Sync()

	logger.Info("starting sherlock", zap.String("config", cfg.String()))

	store, err := history.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open history store", zap.Error(err))
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		logger.Fatal("failed to init history schema", zap.Error(err))
	}

	systemPrompt := prompt.Load(cfg.PromptFile)

	client := openrouter.NewClient(cfg.OpenRouterAPIKey, cfg.OpenRouterURL, cfg.Model, cfg.RequestTimeout)
	policy := retry.DefaultPolicy(openrouter.Retryable)
	orchestrator := bot.New(
		store, client, &chat.StandardAssembler{}, policy,
		systemPrompt, cfg.MaxContextMessages, logger,
	)

	window := limiter.New(cfg.RequestsPerMin, time.Minute)
	gate := bot.NewGate(window, cfg.RateLimitEnabled, cfg.RequestsPerMin, logger)

	connector, err := discord.New(cfg.DiscordToken, orchestrator.Respond, gate, store, logger)
	if err != nil {
		logger.Fatal("failed to create discord connector", zap.Error(err))
	}
	if err := connector.Start(); err != nil {
		logger.Fatal("failed to start discord connector", zap.Error(err))
	}
	defer connector.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				window.Cleanup()
			}
		}
	}()

	logger.Info("sherlock online", zap.String("model", cfg.Model))
	<-ctx.Done()
	logger.Info("shutting down")
}
