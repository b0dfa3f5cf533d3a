package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/selecta/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	config, err := shared.LoadOrDefault("config.toml")
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
		config.ApplyEnv()
	}
	logger = shared.NewLoggerFromConfig(config.Log)

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "selecta",
		Usage:    "Discover spatial audio tracks and keep a local catalog in sync",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrMissingCredentials):
			logger.Fatal("catalog credentials rejected or missing; check [credentials] in config.toml", "error", err)
		case errors.Is(err, shared.ErrJobRunning):
			logger.Warn("job already running")
			os.Exit(0)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
