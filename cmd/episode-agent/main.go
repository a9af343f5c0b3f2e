package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stridelabs/stride-platform/internal/episode"
	"github.com/stridelabs/stride-platform/pkg/config"
	"github.com/stridelabs/stride-platform/pkg/mqtt"
	"github.com/stridelabs/stride-platform/pkg/postgres"
)

func main() {
	// Standard bootstrap (consistent with other agents)
	cfg := config.NewConfig()
	cfg.ServiceName = "episode-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Stride Episode Agent",
		"mqtt", cfg.MQTTAddress(),
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB),
		"latitude", cfg.Latitude,
		"longitude", cfg.Longitude)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize clients; the agent connects them on Start
	mqttClient := mqtt.NewClient(cfg, logger)
	pgClient := postgres.NewClient(cfg, logger)

	agent := episode.NewAgent(mqttClient, pgClient, cfg, logger)

	// Start agent
	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			agentErr <- err
		}
	}()

	// Wait for shutdown
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	cancel()
	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}
	logger.Info("Episode agent stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
