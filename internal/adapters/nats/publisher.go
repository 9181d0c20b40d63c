package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safemap/internal/core/domain"
)

const (
	sessionPrefix  = "safemap.session."
	positionPrefix = "safemap.position."
)

// SessionSubject is the subject carrying every event of one session.
func SessionSubject(sessionID string) string {
	return sessionPrefix + sessionID + ".events"
}

// PositionSubject is the subject devices publish their fixes to.
func PositionSubject(sessionID string) string {
	return positionPrefix + sessionID
}

// sessionFromPositionSubject extracts the session id from a position subject.
func sessionFromPositionSubject(subject string) (string, bool) {
	id := strings.TrimPrefix(subject, positionPrefix)
	if id == subject || id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}

// Publisher implements ports.EventPublisher using NATS. Session events are
// ephemeral and go over core NATS; device reports are persisted in JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the JetStream streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "SAFEMAP_POSITIONS",
			Subjects:  []string{positionPrefix + ">"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    10 * time.Minute,
			Storage:   nats.MemoryStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishSessionEvent fans a session event out to WebSocket relays.
func (p *Publisher) PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	return p.conn.Publish(SessionSubject(event.SessionID), data)
}

// PublishPositionReport persists a device fix for the session that owns it.
func (p *Publisher) PublishPositionReport(ctx context.Context, report *domain.PositionReport) error {
	if report.SessionID == "" {
		return fmt.Errorf("position report: %w: session id is required", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal position report: %w", err)
	}
	if _, err := p.js.Publish(PositionSubject(report.SessionID), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish position report: %w", err)
	}
	return nil
}

// Conn returns the underlying connection for subscribers sharing it.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("safemap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
