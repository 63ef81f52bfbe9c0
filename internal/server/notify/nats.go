// Package notify delivers outcome notifications: a durable row in
// Postgres (the source of truth) and a best-effort event on NATS
// JetStream for downstream consumers.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const streamName = "secureshare-events"

// EventPublisher publishes events to NATS JetStream.
type EventPublisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewEventPublisher connects to NATS and ensures the event stream
// exists. Reconnects are handled by the client; publish failures during
// an outage are logged and dropped.
func NewEventPublisher(url string) (*EventPublisher, error) {
	opts := []nats.Option{
		nats.Name("secureshare"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{"files.>", "security.>", "shares.>"},
			Storage:  nats.FileStorage,
			MaxAge:   30 * 24 * time.Hour,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ensure event stream: %w", err)
		}
	}

	slog.Info("connected to nats", "stream", streamName)
	return &EventPublisher{conn: conn, js: js}, nil
}

// Publish sends one event. A nil publisher is a no-op, so event
// publishing can be disabled by configuration.
func (p *EventPublisher) Publish(subject string, payload map[string]any) error {
	if p == nil {
		return nil
	}

	event := map[string]any{
		"event_id":    uuid.New().String(),
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range payload {
		event[k] = v
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := p.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection.
func (p *EventPublisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
