package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// reconnectDelay paces reconnect attempts after a dropped stream.
const reconnectDelay = 5 * time.Second

// Subscriber consumes the remote store's websocket stream and hands
// each delivered row to a callback. It implements the sync
// coordinator's Subscriber interface.
type Subscriber struct {
	baseURL string
	token   string
	log     zerolog.Logger
}

// NewSubscriber returns a subscriber for the remote store at baseURL.
func NewSubscriber(baseURL, token string, log zerolog.Logger) *Subscriber {
	return &Subscriber{baseURL: baseURL, token: token, log: log}
}

// Listen connects to the stream and invokes handle for every delivered
// row until ctx is cancelled. Dropped connections are re-dialed after a
// short delay; Listen only returns on context cancellation.
func (s *Subscriber) Listen(ctx context.Context, handle func(Row)) error {
	u, err := s.streamURL()
	if err != nil {
		return err
	}

	for {
		if err := s.listenOnce(ctx, u, handle); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("stream disconnected, retrying")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Subscriber) streamURL() (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse remote url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/stream"
	return u.String(), nil
}

func (s *Subscriber) listenOnce(ctx context.Context, streamURL string, handle func(Row)) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, streamURL, header)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetPingHandler(func(appData string) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		var row Row
		if err := json.Unmarshal(data, &row); err != nil {
			s.log.Warn().Err(err).Msg("malformed stream row")
			continue
		}
		handle(row)
	}
}
