package ports

import (
	"context"

	"voxroute/internal/domain"
)

// AudioSource supervises the external capture helper.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan domain.HelperEvent
	State() domain.HelperState
	Listening() bool
}

// TranscriptionSession is the persistent socket session with the
// transcription backend.
type TranscriptionSession interface {
	StartSession(ctx context.Context, dictionary []string) error
	AppendChunk(chunk domain.AudioChunk) error
	Commit() error
	Close() error
	Events() <-chan domain.SessionEvent
	State() domain.SessionState
}

// Publisher fans observer events out to connected status clients.
type Publisher interface {
	Publish(event domain.ObserverEvent)
}

// ScriptRunner executes the script bound to a matched command.
type ScriptRunner interface {
	Run(ctx context.Context, command domain.Command, args []string) error
}
