package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Envelope is one Socket Mode frame. Every envelope with an id must be
// acknowledged or Slack re-delivers it.
type Envelope struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// EventCallback is the payload of an events_api envelope.
type EventCallback struct {
	Type   string `json:"type"`
	TeamID string `json:"team_id"`
	Event  Event  `json:"event"`
}

// Event is the inner event of an event callback.
type Event struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Text     string `json:"text,omitempty"`
	Channel  string `json:"channel,omitempty"`
	TS       string `json:"ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
	EventTS  string `json:"event_ts,omitempty"`
}

// EventSink receives acknowledged events from the gateway.
type EventSink interface {
	HandleEvent(ctx context.Context, ev Event)
}

// Gateway maintains the Socket Mode connection: it opens a websocket
// URL with the app token, acks every envelope, and hands events to the
// sink. Disconnect frames and broken connections trigger a reconnect
// with backoff until the context is cancelled.
type Gateway struct {
	api      *Client
	appToken string
	sink     EventSink
	logger   *slog.Logger

	// dial is swapped out in tests.
	dial func(ctx context.Context, u string) (*websocket.Conn, error)
}

func NewGateway(api *Client, appToken string, sink EventSink, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		api:      api,
		appToken: appToken,
		sink:     sink,
		logger:   logger,
		dial: func(ctx context.Context, u string) (*websocket.Conn, error) {
			conn, _, err := websocket.Dial(ctx, u, nil)
			return conn, err
		},
	}
}

// Run connects and processes envelopes until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := g.runConnection(ctx)
		if err != nil && ctx.Err() == nil {
			g.logger.Warn("socket mode connection lost", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Clean disconnect (refresh requested): reconnect immediately.
		backoff = time.Second
	}
}

func (g *Gateway) runConnection(ctx context.Context) error {
	wsURL, err := g.api.OpenSocketURL(ctx, g.appToken)
	if err != nil {
		return fmt.Errorf("open socket url: %w", err)
	}
	conn, err := g.dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("dial socket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)

	g.logger.Info("socket mode connected")

	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read envelope: %w", err)
		}
		if env.EnvelopeID != "" {
			ack := map[string]string{"envelope_id": env.EnvelopeID}
			if err := wsjson.Write(ctx, conn, ack); err != nil {
				return fmt.Errorf("ack envelope: %w", err)
			}
		}
		switch env.Type {
		case "hello":
			g.logger.Debug("socket mode hello received")
		case "disconnect":
			g.logger.Info("socket mode disconnect requested", "reason", env.Reason)
			return nil
		case "events_api":
			var callback EventCallback
			if err := json.Unmarshal(env.Payload, &callback); err != nil {
				g.logger.Error("unreadable event payload", "error", err)
				continue
			}
			go g.sink.HandleEvent(ctx, callback.Event)
		default:
			g.logger.Debug("ignoring envelope", "type", env.Type)
		}
	}
}
