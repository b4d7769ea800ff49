package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscription is the handle returned from a change-feed subscription.
type Subscription interface {
	Unsubscribe() error
}

// MessageSubscriber delivers every message published on a subject to the
// handler. Delivery is at-least-once after the publishing write committed.
type MessageSubscriber interface {
	Subscribe(subject string, handler func(data []byte)) (Subscription, error)
}

type natsSubscriber struct {
	conn *nats.Conn
}

func NewSubscriber(conn *nats.Conn) (MessageSubscriber, error) {
	if conn == nil {
		return nil, fmt.Errorf("NATS connection cannot be nil")
	}
	return &natsSubscriber{conn: conn}, nil
}

func (s *natsSubscriber) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to NATS subject %s: %w", subject, err)
	}
	return sub, nil
}
