package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voxroute/internal/domain"
)

const (
	DefaultCommand        = "voxroute-helper"
	DefaultRestartBackoff = 2 * time.Second

	readChunkSize = 4096
	stopGrace     = 1200 * time.Millisecond
)

var ErrSupervisorStopped = errors.New("capture helper supervisor is stopped")

// Config controls how the capture helper is spawned. The helper takes no
// arguments.
type Config struct {
	Command        string
	RestartBackoff time.Duration
}

// Supervisor owns one capture helper process: it turns the helper's stdout
// into events and respawns the helper after abnormal exits.
type Supervisor struct {
	cfg    Config
	log    zerolog.Logger
	events chan domain.HelperEvent

	quit     chan struct{}
	quitOnce sync.Once

	mu            sync.Mutex
	state         domain.HelperState
	listening     bool
	stopping      bool
	process       *os.Process
	exited        chan struct{}
	restart       *time.Timer
	lastHeartbeat time.Time
}

func NewSupervisor(cfg Config, logger zerolog.Logger) *Supervisor {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = DefaultRestartBackoff
	}
	return &Supervisor{
		cfg:    cfg,
		log:    logger.With().Str("component", "helper").Logger(),
		events: make(chan domain.HelperEvent, 256),
		quit:   make(chan struct{}),
		state:  domain.HelperStopped,
	}
}

// Events delivers helper events in the order the helper wrote them.
func (s *Supervisor) Events() <-chan domain.HelperEvent {
	return s.events
}

func (s *Supervisor) State() domain.HelperState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// PID returns the running helper's process id, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process == nil {
		return 0
	}
	return s.process.Pid
}

func (s *Supervisor) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// Start spawns the helper. A spawn failure is returned and not retried.
// The helper is stopped when ctx is done.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.spawn(); err != nil {
		return err
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-s.quit:
		}
	}()
	return nil
}

// Stop terminates the helper and cancels any pending restart. It is final.
func (s *Supervisor) Stop() error {
	s.quitOnce.Do(func() { close(s.quit) })

	s.mu.Lock()
	s.stopping = true
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}
	process := s.process
	exited := s.exited
	s.mu.Unlock()

	if process == nil {
		s.setState(domain.HelperStopped)
		return nil
	}

	_ = process.Signal(os.Interrupt)
	select {
	case <-exited:
	case <-time.After(stopGrace):
		_ = process.Kill()
		<-exited
	}
	return nil
}

func (s *Supervisor) spawn() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return ErrSupervisorStopped
	}
	s.state = domain.HelperStarting
	s.mu.Unlock()

	cmd := exec.Command(s.cfg.Command)
	cmd.Stderr = &stderrLog{log: s.log}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setState(domain.HelperStopped)
		return fmt.Errorf("failed to create helper stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		s.setState(domain.HelperStopped)
		return fmt.Errorf("failed to start capture helper: %w", err)
	}

	exited := make(chan struct{})
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		_ = cmd.Process.Kill()
		go func() { _ = cmd.Wait() }()
		return ErrSupervisorStopped
	}
	s.process = cmd.Process
	s.exited = exited
	s.state = domain.HelperRunning
	s.mu.Unlock()

	s.log.Info().Int("pid", cmd.Process.Pid).Str("command", s.cfg.Command).Msg("capture helper started")
	go s.supervise(cmd, stdout, exited)
	return nil
}

func (s *Supervisor) supervise(cmd *exec.Cmd, stdout io.Reader, exited chan struct{}) {
	s.pump(stdout)
	waitErr := cmd.Wait()
	code := cmd.ProcessState.ExitCode()

	s.mu.Lock()
	s.process = nil
	s.listening = false
	stopping := s.stopping
	restarting := !stopping && code > 0
	if restarting {
		s.state = domain.HelperCrashedPendingRestart
	} else {
		s.state = domain.HelperStopped
	}
	s.mu.Unlock()
	close(exited)

	if stopping {
		s.log.Info().Int("code", code).Msg("capture helper stopped")
		return
	}

	s.log.Warn().Err(waitErr).Int("code", code).Bool("restarting", restarting).Msg("capture helper exited")
	s.emit(domain.HelperExited{Code: code, Restarting: restarting})

	if restarting {
		s.mu.Lock()
		if !s.stopping {
			s.restart = time.AfterFunc(s.cfg.RestartBackoff, s.respawn)
		}
		s.mu.Unlock()
	}
}

func (s *Supervisor) respawn() {
	s.mu.Lock()
	s.restart = nil
	s.mu.Unlock()

	if err := s.spawn(); err != nil {
		if errors.Is(err, ErrSupervisorStopped) {
			return
		}
		s.log.Error().Err(err).Msg("capture helper respawn failed")
		s.emit(domain.HelperSpawnFailed{Err: err})
	}
}

func (s *Supervisor) pump(stdout io.Reader) {
	var lines lineBuffer
	buf := make([]byte, readChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			for _, line := range lines.Feed(buf[:n]) {
				s.dispatch(decodeHelperLine(line))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.log.Warn().Err(err).Msg("capture helper stdout read failed")
			}
			return
		}
	}
}

func (s *Supervisor) dispatch(event domain.HelperEvent) {
	switch e := event.(type) {
	case domain.HelperStartListening:
		s.mu.Lock()
		s.listening = true
		s.mu.Unlock()
		s.emit(e)
	case domain.HelperStopListening:
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
		s.emit(e)
	case domain.HelperHeartbeat:
		s.mu.Lock()
		s.lastHeartbeat = time.Now()
		s.mu.Unlock()
	case domain.HelperAudio, domain.HelperReportedError:
		s.emit(e)
	case domain.HelperMalformedLine:
		s.log.Warn().Err(e.Err).Str("line", truncate(e.Line, 120)).Msg("skipping malformed helper line")
	}
}

func (s *Supervisor) emit(event domain.HelperEvent) {
	select {
	case s.events <- event:
	case <-s.quit:
	}
}

func (s *Supervisor) setState(state domain.HelperState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
