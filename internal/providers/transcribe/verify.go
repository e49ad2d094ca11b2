package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Verify checks a credential by authenticating once against the backend and
// waiting, at most ConnectTimeout, for its first reply.
func Verify(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Token) == "" {
		return ErrNoCredential
	}

	conn, err := dial(ctx, websocket.DefaultDialer, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(cfg.ConnectTimeout)
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteJSON(authMessage{
		Type:        "auth",
		AccessToken: cfg.Token,
		Language:    []string{cfg.Language},
		Context:     authContext{DictionaryContext: []string{}},
	}); err != nil {
		return fmt.Errorf("failed to send auth message: %w", err)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("no auth reply from transcription backend: %w", err)
		}

		var message inboundMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			continue
		}
		switch message.Status {
		case "auth":
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return nil
		case "error":
			return errors.New(message.errorText())
		}
	}
}
