package transcribe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestVerifyAcceptsAuthReply(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t, func(conn *websocket.Conn, _ []byte) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"status":"auth"}`))
	})

	err := Verify(context.Background(), Config{Endpoint: backend.endpoint, Token: "good", ConnectTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("expected verification to pass, got %v", err)
	}
}

func TestVerifyReportsBackendRejection(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t, func(conn *websocket.Conn, _ []byte) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"status":"error","error":"invalid api key"}`))
	})

	err := Verify(context.Background(), Config{Endpoint: backend.endpoint, Token: "bad", ConnectTimeout: 2 * time.Second})
	if err == nil || err.Error() != "invalid api key" {
		t.Fatalf("expected backend rejection, got %v", err)
	}
}

func TestVerifyTimesOutWithoutReply(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t, func(_ *websocket.Conn, _ []byte) {})

	err := Verify(context.Background(), Config{Endpoint: backend.endpoint, Token: "slow", ConnectTimeout: 100 * time.Millisecond})
	if err == nil || !strings.Contains(err.Error(), "no auth reply") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestVerifyRequiresCredential(t *testing.T) {
	t.Parallel()

	if err := Verify(context.Background(), Config{}); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}
