package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"voxroute/internal/commands"
	"voxroute/internal/domain"
	"voxroute/internal/ports"
)

// sessionQueueSize covers several seconds of audio while a dial is pending.
const sessionQueueSize = 512

// Router wires helper events to the transcription session and final
// transcripts to command execution, publishing every step to observers.
// A nil session means transcription is disabled.
type Router struct {
	audio      ports.AudioSource
	session    ports.TranscriptionSession
	events     ports.Publisher
	dispatcher commandDispatcher
	vocabulary []string
	log        zerolog.Logger

	sessionOps chan func(context.Context)
	worker     sync.WaitGroup
	scripts    sync.WaitGroup

	// listening is owned by the Run loop.
	listening bool
}

func NewRouter(
	audio ports.AudioSource,
	session ports.TranscriptionSession,
	catalog *commands.Catalog,
	runner ports.ScriptRunner,
	events ports.Publisher,
	logger zerolog.Logger,
) *Router {
	logger = logger.With().Str("component", "router").Logger()
	return &Router{
		audio:      audio,
		session:    session,
		events:     events,
		dispatcher: newCommandDispatcher(catalog, runner, events, logger),
		vocabulary: catalog.Vocabulary(),
		log:        logger,
		sessionOps: make(chan func(context.Context), sessionQueueSize),
	}
}

func (r *Router) TranscriptionEnabled() bool {
	return r.session != nil
}

// Run starts the helper and processes events until ctx is done. A helper
// spawn failure is published and not retried; Run keeps serving.
func (r *Router) Run(ctx context.Context) error {
	var sessionEvents <-chan domain.SessionEvent
	if r.session != nil {
		sessionEvents = r.session.Events()
		r.worker.Add(1)
		go r.runSession(ctx)
	} else {
		r.log.Warn().Msg("no transcription credential configured, transcription disabled")
	}

	if err := r.audio.Start(ctx); err != nil {
		r.log.Error().Err(err).Msg("capture helper could not be started")
		r.events.Publish(domain.ErrorEvent(domain.ErrorCodeHelperSpawn, err.Error()))
	}

	helperEvents := r.audio.Events()
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case event := <-helperEvents:
			r.handleHelperEvent(event)
		case event := <-sessionEvents:
			r.handleSessionEvent(ctx, event)
		}
	}
}

func (r *Router) handleHelperEvent(event domain.HelperEvent) {
	switch e := event.(type) {
	case domain.HelperStartListening:
		r.listening = true
		if r.session != nil {
			r.enqueue("start", func(ctx context.Context) {
				if err := r.session.StartSession(ctx, r.vocabulary); err != nil {
					r.log.Error().Err(err).Msg("failed to start transcription session")
					r.events.Publish(domain.ErrorEvent(domain.ErrorCodeTranscription, err.Error()))
				}
			})
		}
		r.events.Publish(domain.ListeningEvent(true))
	case domain.HelperStopListening:
		r.listening = false
		if r.session != nil {
			r.enqueue("commit", func(context.Context) {
				if err := r.session.Commit(); err != nil {
					r.log.Error().Err(err).Msg("failed to commit transcription session")
					r.events.Publish(domain.ErrorEvent(domain.ErrorCodeTranscription, err.Error()))
				}
			})
		}
		r.events.Publish(domain.ListeningEvent(false))
	case domain.HelperAudio:
		if r.session == nil {
			return
		}
		chunk := e.Chunk
		r.enqueue("append", func(context.Context) {
			if err := r.session.AppendChunk(chunk); err != nil {
				r.log.Debug().Err(err).Msg("audio chunk not delivered")
			}
		})
	case domain.HelperReportedError:
		r.events.Publish(domain.ErrorEvent(domain.ErrorCodeHelper, e.Message))
	case domain.HelperExited:
		if r.listening {
			r.listening = false
			r.events.Publish(domain.ListeningEvent(false))
		}
		if e.Restarting {
			r.events.Publish(domain.ErrorEvent(
				domain.ErrorCodeHelper,
				fmt.Sprintf("capture helper exited with code %d, restarting", e.Code),
			))
		}
	case domain.HelperSpawnFailed:
		r.events.Publish(domain.ErrorEvent(domain.ErrorCodeHelperSpawn, e.Err.Error()))
	case domain.HelperHeartbeat, domain.HelperMalformedLine:
	}
}

func (r *Router) handleSessionEvent(ctx context.Context, event domain.SessionEvent) {
	switch e := event.(type) {
	case domain.SessionReady:
		r.log.Debug().Msg("transcription session ready")
	case domain.SessionTranscript:
		r.events.Publish(domain.TranscriptUpdate(e.TranscriptEvent))
		if !e.IsFinal {
			return
		}
		match, ok := r.dispatcher.Resolve(e.Text)
		if !ok {
			return
		}
		r.scripts.Add(1)
		go func() {
			defer r.scripts.Done()
			r.dispatcher.Execute(ctx, e.Text, match)
		}()
	case domain.SessionBackendError:
		r.events.Publish(domain.ErrorEvent(domain.ErrorCodeTranscription, e.Message))
	case domain.SessionClosed:
		if e.Err != nil {
			r.events.Publish(domain.ErrorEvent(
				domain.ErrorCodeTranscription,
				fmt.Sprintf("transcription connection lost: %v", e.Err),
			))
		}
	}
}

// enqueue hands a session call to the session worker. Calls run one at a
// time in helper event order, so a pending dial never reorders audio.
func (r *Router) enqueue(name string, op func(context.Context)) {
	select {
	case r.sessionOps <- op:
	default:
		r.log.Warn().Str("op", name).Msg("transcription queue full, dropping session call")
	}
}

func (r *Router) runSession(ctx context.Context) {
	defer r.worker.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-r.sessionOps:
			if ctx.Err() != nil {
				return
			}
			op(ctx)
		}
	}
}

func (r *Router) shutdown() {
	if err := r.audio.Stop(); err != nil {
		r.log.Warn().Err(err).Msg("failed to stop capture helper")
	}
	if r.session != nil {
		// Close releases a worker blocked delivering a session event.
		if err := r.session.Close(); err != nil {
			r.log.Warn().Err(err).Msg("failed to close transcription session")
		}
	}
	r.worker.Wait()
	r.scripts.Wait()
	r.log.Info().Msg("router stopped")
}
