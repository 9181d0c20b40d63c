package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribePositionReports consumes device fixes published on
// safemap.position.<session>. Reports for sessions this instance does not
// own are acknowledged and dropped.
func (s *Subscriber) SubscribePositionReports(ctx context.Context, handler func(ctx context.Context, report *domain.PositionReport) error) error {
	sub, err := s.js.Subscribe(positionPrefix+">", func(msg *nats.Msg) {
		id, ok := sessionFromPositionSubject(msg.Subject)
		if !ok {
			_ = msg.Term()
			return
		}
		var report domain.PositionReport
		if err := json.Unmarshal(msg.Data, &report); err != nil {
			slog.Warn("malformed position report", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		report.SessionID = id
		if err := handler(ctx, &report); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				_ = msg.Ack()
				return
			}
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("position-router"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
