package observer

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"voxroute/internal/domain"
)

const (
	DefaultAddr     = "127.0.0.1:7071"
	shutdownTimeout = 2 * time.Second
)

// Status is the snapshot served on /status.
type Status struct {
	Helper         domain.HelperState `json:"helper"`
	Listening      bool               `json:"listening"`
	Transcription  string             `json:"transcription"`
	Observers      int                `json:"observers"`
	HelperPID      int                `json:"helperPid,omitempty"`
	HelperRSSBytes uint64             `json:"helperRSSBytes,omitempty"`
	LastHeartbeat  *time.Time         `json:"lastHeartbeat,omitempty"`
}

// StatusFunc reports router state. Observers and RSS are filled in by the server.
type StatusFunc func() Status

// Server exposes the observer websocket and local status endpoints.
type Server struct {
	addr     string
	hub      *Hub
	status   StatusFunc
	log      zerolog.Logger
	echo     *echo.Echo
	upgrader websocket.Upgrader
}

func NewServer(addr string, hub *Hub, status StatusFunc, logger zerolog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if status == nil {
		status = func() Status { return Status{} }
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		addr:   addr,
		hub:    hub,
		status: status,
		log:    logger.With().Str("component", "observer-server").Logger(),
		echo:   e,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     localOrigin,
		},
	}

	e.GET("/ws", s.handleWebsocket)
	e.GET("/status", s.handleStatus)
	e.GET("/health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then disconnects observers and shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("observer server listening")
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleWebsocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("observer upgrade failed")
		return nil
	}

	client := newWSConn(ws)
	s.hub.Register(client)
	defer func() {
		s.hub.Unregister(client.ID())
		_ = client.Close()
	}()

	client.readLoop()
	return nil
}

func (s *Server) handleStatus(c echo.Context) error {
	status := s.status()
	status.Observers = s.hub.Len()
	if status.HelperPID > 0 {
		status.HelperRSSBytes = residentBytes(status.HelperPID)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func residentBytes(pid int) uint64 {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}

// localOrigin admits clients without an Origin header and pages served from
// the local machine.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
