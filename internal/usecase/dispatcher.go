package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"voxroute/internal/commands"
	"voxroute/internal/domain"
	"voxroute/internal/ports"
)

// commandDispatcher resolves final transcripts to commands and runs them,
// reporting each stage to observers.
type commandDispatcher struct {
	catalog *commands.Catalog
	runner  ports.ScriptRunner
	events  ports.Publisher
	log     zerolog.Logger
}

func newCommandDispatcher(catalog *commands.Catalog, runner ports.ScriptRunner, events ports.Publisher, logger zerolog.Logger) commandDispatcher {
	return commandDispatcher{catalog: catalog, runner: runner, events: events, log: logger}
}

// Resolve matches text and publishes no_match or matched.
func (d commandDispatcher) Resolve(text string) (domain.MatchResult, bool) {
	match, ok := commands.Match(text, d.catalog)
	if !ok {
		d.log.Info().Str("text", text).Msg("no command matched")
		d.events.Publish(domain.CommandEvent(domain.CommandNoMatch, text, nil, ""))
		return domain.MatchResult{}, false
	}

	d.log.Info().
		Str("text", text).
		Str("command", match.Command.ID).
		Float64("score", match.Score).
		Strs("args", match.ExtractedArgs).
		Msg("command matched")
	d.events.Publish(domain.CommandEvent(domain.CommandMatched, text, &match, ""))
	return match, true
}

// Execute runs the matched command's script and publishes executed or failed.
func (d commandDispatcher) Execute(ctx context.Context, text string, match domain.MatchResult) {
	if err := d.runner.Run(ctx, *match.Command, match.ExtractedArgs); err != nil {
		d.log.Warn().Err(err).Str("command", match.Command.ID).Msg("command failed")
		d.events.Publish(domain.CommandEvent(domain.CommandFailed, text, &match, err.Error()))
		return
	}
	d.events.Publish(domain.CommandEvent(domain.CommandExecuted, text, &match, ""))
}
