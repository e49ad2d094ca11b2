package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"voxroute/internal/bootstrap"
	"voxroute/internal/config"
	"voxroute/internal/providers/transcribe"
)

var errVerifyWithoutCredential = errors.New("VOXROUTE_TRANSCRIBE_TOKEN is not set")

type options struct {
	verify   bool
	logLevel string
}

func parseOptions(args []string, output io.Writer) (options, error) {
	var opts options
	flags := flag.NewFlagSet("voxroute", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.BoolVar(&opts.verify, "verify", false, "check the transcription credential and exit")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if flags.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", flags.Args())
	}
	return opts, nil
}

// App is the process root: it owns configuration and the runtime graph.
type App struct {
	cfg config.Config
	log zerolog.Logger
}

func NewApp(cfg config.Config, logger zerolog.Logger) *App {
	return &App{cfg: cfg, log: logger}
}

// Run routes voice commands until ctx is done.
func (a *App) Run(ctx context.Context) error {
	services, err := bootstrap.Build(ctx, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	a.log.Info().
		Str("observer", a.cfg.Observer.Addr).
		Str("scripts", a.cfg.Scripts.Dir).
		Str("helper", a.cfg.Helper.Command).
		Bool("transcription", a.cfg.Transcription.Enabled()).
		Bool("mirror", services.Mirror != nil).
		Msg("voxroute starting")

	return services.Run(ctx)
}

// Verify checks the transcription backend once with the configured credential.
func (a *App) Verify(ctx context.Context) error {
	if !a.cfg.Transcription.Enabled() {
		return errVerifyWithoutCredential
	}
	err := transcribe.Verify(ctx, transcribe.Config{
		Endpoint:       a.cfg.Transcription.URL,
		Token:          a.cfg.Transcription.Token,
		Language:       a.cfg.Transcription.Language,
		ConnectTimeout: a.cfg.Transcription.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("credential rejected: %w", err)
	}
	a.log.Info().Str("endpoint", a.cfg.Transcription.URL).Msg("transcription credential verified")
	return nil
}
