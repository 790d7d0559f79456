// Package notify announces newly ingested accidents on the message buses
// the live dashboard listens to.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Publisher sends payload on subject. Subject is a Redis channel, an MQTT
// topic or a NATS subject depending on the implementation.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, subject string, payload []byte) error {
	return r.client.Publish(ctx, subject, payload).Err()
}

// MQTT publishes with QoS 1 and waits up to timeout for the broker ack.
type MQTT struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

// NewMQTT publishes under topic prefix, so subject "accidents" with prefix
// "cityflow/" becomes "cityflow/accidents".
func NewMQTT(client mqtt.Client, prefix string, timeout time.Duration) *MQTT {
	return &MQTT{client: client, prefix: prefix, timeout: timeout}
}

func (m *MQTT) Publish(ctx context.Context, subject string, payload []byte) error {
	token := m.client.Publish(m.prefix+subject, 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.timeout):
		return fmt.Errorf("mqtt publish %s: timed out after %s", m.prefix+subject, m.timeout)
	}
}

type NATS struct {
	conn *nats.Conn
}

func NewNATS(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

func (n *NATS) Publish(_ context.Context, subject string, payload []byte) error {
	return n.conn.Publish(subject, payload)
}

// Multi fans a message out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, subject string, payload []byte) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, subject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
