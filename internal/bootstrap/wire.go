package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"voxroute/internal/audio"
	"voxroute/internal/commands"
	"voxroute/internal/config"
	"voxroute/internal/domain"
	"voxroute/internal/observer"
	"voxroute/internal/ports"
	"voxroute/internal/providers/transcribe"
	"voxroute/internal/scripts"
	"voxroute/internal/telemetry"
	"voxroute/internal/usecase"
)

const (
	disabledTranscription = "disabled"
	tracingFlushTimeout   = 2 * time.Second
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Router     *usecase.Router
	Supervisor *audio.Supervisor
	Session    *transcribe.Session
	Hub        *observer.Hub
	Server     *observer.Server
	Mirror     *observer.RedisMirror
	Tracing    *telemetry.Provider

	redis *redis.Client
	log   zerolog.Logger
}

// Build wires all runtime dependencies. Session is nil when no credential
// is configured; Mirror is nil when Redis is not configured or unreachable;
// Tracing is nil when no exporter is configured.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (Services, error) {
	catalog, err := commands.NewCatalog(commands.DefaultCommands())
	if err != nil {
		return Services{}, err
	}
	logger.Info().Int("commands", catalog.Len()).Msg("command catalog loaded")

	tracing, err := telemetry.NewProvider(cfg.Tracing, os.Stdout)
	if err != nil {
		return Services{}, fmt.Errorf("tracing setup failed: %w", err)
	}
	if tracing != nil {
		tracing.Install()
		logger.Info().Str("exporter", cfg.Tracing.Exporter).Str("file", cfg.Tracing.File).Msg("tracing enabled")
	}

	hub := observer.NewHub(logger)
	supervisor := audio.NewSupervisor(audio.Config{Command: cfg.Helper.Command}, logger)
	executor := scripts.NewExecutor(cfg.Scripts.Dir, afero.NewOsFs(), cfg.Scripts.Timeout, logger)

	services := Services{
		Config:     cfg,
		Supervisor: supervisor,
		Hub:        hub,
		Tracing:    tracing,
		log:        logger,
	}

	var transcription ports.TranscriptionSession
	if cfg.Transcription.Enabled() {
		services.Session = transcribe.NewSession(transcribe.Config{
			Endpoint:       cfg.Transcription.URL,
			Token:          cfg.Transcription.Token,
			Language:       cfg.Transcription.Language,
			ConnectTimeout: cfg.Transcription.ConnectTimeout,
		}, logger)
		transcription = services.Session
	} else {
		hub.SetGreeting(domain.InfoEvent(domain.ErrorCodeNoCredential, "no transcription credential configured, transcription is disabled"))
	}

	if cfg.Redis.Enabled() {
		client, err := observer.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis event mirror disabled")
		} else {
			services.redis = client
			services.Mirror = observer.NewRedisMirror(client, cfg.Redis.Channel, logger)
			hub.SetMirror(services.Mirror)
		}
	}

	services.Router = usecase.NewRouter(supervisor, transcription, catalog, executor, hub, logger)
	services.Server = observer.NewServer(cfg.Observer.Addr, hub, services.status, logger)
	return services, nil
}

// Run serves observers and routes helper events until ctx is done or the
// observer server fails.
func (s Services) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.Mirror != nil {
		go s.Mirror.Run(ctx)
	}

	serverErr := make(chan error, 1)
	routerErr := make(chan error, 1)
	go func() { serverErr <- s.Server.Run(ctx) }()
	go func() { routerErr <- s.Router.Run(ctx) }()

	var err error
	select {
	case err = <-serverErr:
		cancel()
		<-routerErr
	case err = <-routerErr:
		cancel()
		<-serverErr
	}

	if s.redis != nil {
		if closeErr := s.redis.Close(); closeErr != nil {
			s.log.Warn().Err(closeErr).Msg("failed to close redis client")
		}
	}
	if s.Tracing != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
		if shutdownErr := s.Tracing.Shutdown(flushCtx); shutdownErr != nil {
			s.log.Warn().Err(shutdownErr).Msg("failed to flush traces")
		}
		flushCancel()
	}
	return err
}

func (s Services) status() observer.Status {
	status := observer.Status{
		Helper:        s.Supervisor.State(),
		Listening:     s.Supervisor.Listening(),
		HelperPID:     s.Supervisor.PID(),
		Transcription: disabledTranscription,
	}
	if s.Session != nil {
		status.Transcription = string(s.Session.State())
	}
	if heartbeat := s.Supervisor.LastHeartbeat(); !heartbeat.IsZero() {
		status.LastHeartbeat = &heartbeat
	}
	return status
}
