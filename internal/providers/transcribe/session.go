package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"voxroute/internal/domain"
)

const (
	DefaultEndpoint       = "wss://platform-api.wisprflow.ai/api/v1/dash/ws"
	DefaultLanguage       = "en"
	DefaultConnectTimeout = 5 * time.Second

	writeTimeout = 5 * time.Second
	scopeName    = "voxroute/internal/providers/transcribe"
)

var (
	ErrSocketNotOpen = errors.New("transcription socket is not open")
	ErrNoCredential  = errors.New("transcription credential is not configured")
)

// Config controls the backend websocket session.
type Config struct {
	Endpoint       string
	Token          string
	Language       string
	ConnectTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Endpoint) == "" {
		c.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(c.Language) == "" {
		c.Language = DefaultLanguage
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// Session is the persistent socket session with the transcription backend.
// It owns the auth/append/commit protocol and the packet position counter.
type Session struct {
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger
	tracer trace.Tracer
	events chan domain.SessionEvent

	connectMu sync.Mutex

	mu       sync.Mutex
	conn     *websocket.Conn
	state    domain.SessionState
	position int
	id       string
	// quit is closed and replaced by Close; blocked emits give up on it.
	quit chan struct{}
}

func NewSession(cfg Config, logger zerolog.Logger) *Session {
	return &Session{
		cfg:    cfg.withDefaults(),
		dialer: websocket.DefaultDialer,
		log:    logger.With().Str("component", "transcribe").Logger(),
		tracer: otel.Tracer(scopeName),
		events: make(chan domain.SessionEvent, 256),
		state:  domain.SessionDisconnected,
		quit:   make(chan struct{}),
	}
}

// Events delivers backend readiness, transcripts, errors and transport drops
// in arrival order. Sends block until received or until Close.
func (s *Session) Events() <-chan domain.SessionEvent {
	return s.events
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position is the number of packets appended since the last StartSession.
func (s *Session) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Connect opens the socket. It is a no-op while a socket is already open.
func (s *Session) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	if strings.TrimSpace(s.cfg.Token) == "" {
		s.mu.Unlock()
		return ErrNoCredential
	}
	s.state = domain.SessionConnecting
	s.mu.Unlock()

	conn, err := dial(ctx, s.dialer, s.cfg)
	if err != nil {
		s.mu.Lock()
		s.state = domain.SessionDisconnected
		s.mu.Unlock()
		return err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.conn = conn
	s.state = domain.SessionAuthenticated
	s.id = id
	s.mu.Unlock()

	s.log.Info().Str("session", id).Msg("transcription socket open")
	go s.readLoop(conn)
	return nil
}

// StartSession authenticates a new streaming session, connecting first when
// needed, and resets the packet position.
func (s *Session) StartSession(ctx context.Context, dictionary []string) (err error) {
	ctx, span := s.tracer.Start(ctx, "start transcription session", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int("dictionary.size", len(dictionary)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := s.Connect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrSocketNotOpen
	}
	if dictionary == nil {
		dictionary = []string{}
	}
	message := authMessage{
		Type:        "auth",
		AccessToken: s.cfg.Token,
		Language:    []string{s.cfg.Language},
		Context:     authContext{DictionaryContext: dictionary},
	}
	if err := s.writeLocked(message); err != nil {
		s.dropAndUnlock(err)
		return fmt.Errorf("failed to send auth message: %w", err)
	}

	s.position = 0
	s.state = domain.SessionStreamingActive
	id := s.id
	s.mu.Unlock()

	span.SetAttributes(attribute.String("session.id", id))
	s.log.Debug().Str("session", id).Int("dictionary", len(dictionary)).Msg("streaming session started")
	return nil
}

// AppendChunk wraps the chunk as WAV and sends it. Chunks are dropped unless
// a streaming session is active.
func (s *Session) AppendChunk(chunk domain.AudioChunk) error {
	s.mu.Lock()
	if s.state != domain.SessionStreamingActive || s.conn == nil {
		s.mu.Unlock()
		return nil
	}

	message := appendMessage{
		Type:     "append",
		Position: s.position,
		AudioPackets: audioPackets{
			Packets:        []string{base64.StdEncoding.EncodeToString(wrapWAV(chunk.Data, chunk.SampleRate))},
			Volumes:        []float64{1},
			PacketDuration: chunk.PacketDuration,
			AudioEncoding:  "wav",
			ByteEncoding:   "base64",
			SampleRate:     chunk.SampleRate,
		},
	}
	if err := s.writeLocked(message); err != nil {
		s.dropAndUnlock(err)
		return fmt.Errorf("failed to append audio: %w", err)
	}

	s.position++
	s.mu.Unlock()
	return nil
}

// Commit finalizes the active session with the number of packets sent.
func (s *Session) Commit() error {
	s.mu.Lock()
	if s.state != domain.SessionStreamingActive || s.conn == nil {
		s.mu.Unlock()
		return nil
	}

	s.state = domain.SessionCommitting
	if err := s.writeLocked(commitMessage{Type: "commit", TotalPackets: s.position}); err != nil {
		s.dropAndUnlock(err)
		return fmt.Errorf("failed to commit session: %w", err)
	}

	s.state = domain.SessionAuthenticated
	id, packets := s.id, s.position
	s.mu.Unlock()

	s.log.Debug().Str("session", id).Int("packets", packets).Msg("session committed")
	return nil
}

// Close shuts the socket with a normal closure. Safe to call repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.state = domain.SessionDisconnected
	s.position = 0
	close(s.quit)
	s.quit = make(chan struct{})
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

func (s *Session) writeLocked(message any) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(message)
}

// dropAndUnlock forgets a broken connection, releases s.mu and reports the
// drop. The caller must hold s.mu.
func (s *Session) dropAndUnlock(err error) {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.state = domain.SessionDisconnected
	s.position = 0
	quit := s.quit
	s.mu.Unlock()

	s.log.Info().Err(err).Msg("transcription socket closed")
	s.send(domain.SessionClosed{Err: err}, quit)
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				err = nil
			}
			s.mu.Lock()
			if s.conn != conn {
				s.mu.Unlock()
				return
			}
			s.dropAndUnlock(err)
			return
		}
		s.handleMessage(conn, payload)
	}
}

func (s *Session) handleMessage(conn *websocket.Conn, payload []byte) {
	var message inboundMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		s.log.Warn().Err(err).Int("bytes", len(payload)).Msg("dropping unparsable backend message")
		return
	}

	switch message.Status {
	case "auth":
		s.emit(conn, domain.SessionReady{})
	case "text":
		s.emit(conn, domain.SessionTranscript{TranscriptEvent: domain.TranscriptEvent{
			Text:    strings.TrimSpace(message.Body.Text),
			IsFinal: message.Final,
		}})
	case "error":
		s.emit(conn, domain.SessionBackendError{Message: message.errorText()})
	default:
		s.log.Debug().Str("status", message.Status).Msg("ignoring backend message")
	}
}

// emit delivers an event read from conn unless conn has since been replaced
// or closed.
func (s *Session) emit(conn *websocket.Conn, event domain.SessionEvent) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	quit := s.quit
	s.mu.Unlock()
	s.send(event, quit)
}

func (s *Session) send(event domain.SessionEvent, quit <-chan struct{}) {
	select {
	case s.events <- event:
	case <-quit:
		s.log.Debug().Str("event", fmt.Sprintf("%T", event)).Msg("session closed; discarding event")
	}
}

func dial(ctx context.Context, dialer *websocket.Dialer, cfg Config) (*websocket.Conn, error) {
	endpoint, err := websocketURL(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.Token)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, endpoint, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to transcription backend: %w", err)
	}
	return conn, nil
}

func websocketURL(endpoint string) (string, error) {
	base := strings.TrimSpace(endpoint)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid transcription endpoint: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid transcription endpoint scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, net.ErrClosed)
}
