package scripts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"voxroute/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	scopeName      = "voxroute/internal/scripts"
	maxLoggedBytes = 2048
	waitDelay      = time.Second
)

var (
	ErrScriptNotFound = errors.New("script not found")
	ErrScriptTimeout  = errors.New("script timed out")
)

// Executor runs command scripts from a single directory.
type Executor struct {
	dir     string
	fs      afero.Fs
	timeout time.Duration
	log     zerolog.Logger
	tracer  trace.Tracer
}

func NewExecutor(dir string, fs afero.Fs, timeout time.Duration, logger zerolog.Logger) *Executor {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		dir:     dir,
		fs:      fs,
		timeout: timeout,
		log:     logger.With().Str("component", "scripts").Logger(),
		tracer:  otel.Tracer(scopeName),
	}
}

// Path resolves a script reference against the script directory.
func (e *Executor) Path(ref string) string {
	return filepath.Join(e.dir, filepath.Clean("/"+ref))
}

// Run executes the command's script with args and succeeds only on exit
// code 0. A missing script fails with ErrScriptNotFound before anything is
// spawned.
func (e *Executor) Run(ctx context.Context, cmd domain.Command, args []string) (err error) {
	ctx, span := e.tracer.Start(ctx, "scripts.run")
	span.SetAttributes(
		attribute.String("command.id", cmd.ID),
		attribute.String("script.ref", cmd.ScriptRef),
		attribute.Int("script.args", len(args)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	path := e.Path(cmd.ScriptRef)
	info, statErr := e.fs.Stat(path)
	if statErr != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrScriptNotFound, path)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var output bytes.Buffer
	process := exec.CommandContext(runCtx, path, args...)
	process.Dir = e.dir
	process.Stdout = &output
	process.Stderr = &output
	process.WaitDelay = waitDelay

	started := time.Now()
	runErr := process.Run()
	logger := e.log.With().Str("command", cmd.ID).Str("script", path).Dur("elapsed", time.Since(started)).Logger()
	if text := trimOutput(output.String()); text != "" {
		logger.Debug().Str("output", text).Msg("script output")
	}

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.Warn().Dur("timeout", e.timeout).Msg("script timed out")
			return fmt.Errorf("%w after %s: %s", ErrScriptTimeout, e.timeout, path)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			logger.Warn().Int("code", exitErr.ExitCode()).Msg("script failed")
			return fmt.Errorf("script %s exited with code %d", cmd.ScriptRef, exitErr.ExitCode())
		}
		logger.Error().Err(runErr).Msg("script could not be started")
		return fmt.Errorf("failed to run script %s: %w", cmd.ScriptRef, runErr)
	}

	logger.Info().Msg("script executed")
	return nil
}

func trimOutput(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > maxLoggedBytes {
		return value[:maxLoggedBytes] + "..."
	}
	return value
}
