package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"voxroute/internal/config"
	vlog "voxroute/internal/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseOptions(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fallback := vlog.New(os.Stderr, "")
		fallback.Error().Err(err).Msg("failed to load configuration")
		return 1
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	logger := vlog.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg, logger)
	if opts.verify {
		if err := app.Verify(ctx); err != nil {
			logger.Error().Err(err).Msg("verification failed")
			return 1
		}
		return 0
	}

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("voxroute stopped with error")
		return 1
	}
	return 0
}
