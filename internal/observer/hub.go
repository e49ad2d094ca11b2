package observer

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"voxroute/internal/domain"
)

// Conn is one connected observer.
type Conn interface {
	ID() string
	Open() bool
	// Send queues payload for delivery. Payloads handed to one Conn are
	// delivered in call order.
	Send(payload []byte) error
	Close() error
}

// Mirror receives every published payload after local fan-out.
type Mirror interface {
	Mirror(payload []byte)
}

// Hub fans observer events out to every registered connection. Every
// observer and the mirror see events in one global publish order.
type Hub struct {
	log zerolog.Logger

	// publishMu orders publishes and greetings against each other.
	publishMu sync.Mutex

	mu       sync.RWMutex
	clients  map[string]Conn
	greeting *domain.ObserverEvent
	mirror   Mirror
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:     logger.With().Str("component", "observer").Logger(),
		clients: make(map[string]Conn),
	}
}

// SetGreeting sets an event sent to each observer as it registers.
func (h *Hub) SetGreeting(event domain.ObserverEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.greeting = &event
}

func (h *Hub) SetMirror(mirror Mirror) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mirror = mirror
}

func (h *Hub) Register(conn Conn) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.Lock()
	h.clients[conn.ID()] = conn
	greeting := h.greeting
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Str("observer", conn.ID()).Int("observers", count).Msg("observer connected")

	if greeting != nil {
		payload, err := json.Marshal(greeting)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to encode observer greeting")
			return
		}
		if err := conn.Send(payload); err != nil {
			h.log.Debug().Err(err).Str("observer", conn.ID()).Msg("failed to greet observer")
		}
	}
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.log.Info().Str("observer", id).Int("observers", count).Msg("observer disconnected")
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish serializes event once and sends it to every open observer, then to
// the mirror. Send failures are logged and never returned.
func (h *Hub) Publish(event domain.ObserverEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(event.Type)).Msg("failed to encode observer event")
		return
	}

	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.RLock()
	clients := make([]Conn, 0, len(h.clients))
	for _, conn := range h.clients {
		clients = append(clients, conn)
	}
	mirror := h.mirror
	h.mu.RUnlock()

	for _, conn := range clients {
		if !conn.Open() {
			continue
		}
		if err := conn.Send(payload); err != nil {
			h.log.Debug().Err(err).Str("observer", conn.ID()).Msg("failed to deliver observer event")
		}
	}

	if mirror != nil {
		mirror.Mirror(payload)
	}
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]Conn)
	h.mu.Unlock()

	for _, conn := range clients {
		_ = conn.Close()
	}
}
