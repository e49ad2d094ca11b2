package observer

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 64
	writeTimeout  = 5 * time.Second
)

var (
	ErrObserverClosed  = errors.New("observer connection is closed")
	ErrObserverTooSlow = errors.New("observer send queue is full")
)

// wsConn delivers payloads to one websocket observer from a single writer
// goroutine.
type wsConn struct {
	id   string
	conn *websocket.Conn

	send chan []byte
	done chan struct{}

	open      atomic.Bool
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	c.open.Store(true)
	go c.writeLoop()
	return c
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Open() bool {
	return c.open.Load()
}

func (c *wsConn) Send(payload []byte) error {
	if !c.open.Load() {
		return ErrObserverClosed
	}
	select {
	case <-c.done:
		return ErrObserverClosed
	case c.send <- payload:
		return nil
	default:
		_ = c.Close()
		return ErrObserverTooSlow
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.done)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
	return nil
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// readLoop discards inbound frames and returns when the peer goes away.
func (c *wsConn) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
