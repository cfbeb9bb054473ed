package devicelink

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/garage-core/internal/door"
)

// Publisher is the broker client MQTTLink publishes through.
// *mqtt.Client satisfies it.
type Publisher interface {
	PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Subscriber is optionally implemented by a Publisher to receive device
// status messages.
type Subscriber interface {
	Subscribe(filter string, qos byte, handler func(topic string, payload []byte) error) error
}

// MQTTLink publishes commands to a broker topic. The broker stands in for
// the device connection: reachable means the client is connected.
type MQTTLink struct {
	client Publisher
	topic  string
	qos    byte
	logger Logger
	now    func() time.Time
}

// NewMQTTLink publishes to topic at qos through client. client may be nil
// when the broker could not be reached at startup.
func NewMQTTLink(client Publisher, topic string, qos byte) *MQTTLink {
	return &MQTTLink{client: client, topic: topic, qos: qos, logger: noopLogger{}, now: time.Now}
}

// SetLogger sets the link logger.
func (l *MQTTLink) SetLogger(logger Logger) {
	l.logger = logger
}

// IsReachable reports whether the broker client is connected.
func (l *MQTTLink) IsReachable() bool {
	return l.client != nil && l.client.IsConnected()
}

// Send publishes the bare action, not retained, and returns once the
// broker acknowledges it at the configured QoS or ctx ends.
func (l *MQTTLink) Send(ctx context.Context, action door.Action) (Ack, error) {
	if l.client == nil {
		return Ack{}, ErrNotConnected
	}
	if !l.client.IsConnected() {
		return Ack{}, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return Ack{}, &TransmitError{Transport: TransportMQTT, Cause: err}
	}

	if err := l.client.PublishContext(ctx, l.topic, []byte(action), l.qos, false); err != nil {
		return Ack{}, &TransmitError{Transport: TransportMQTT, Cause: err}
	}

	l.logger.Debug("command published", "action", action, "topic", l.topic)
	return Ack{Transport: TransportMQTT, SentAt: l.now().UTC()}, nil
}

// WatchStatus logs controller status messages from topic at debug level.
// It is a no-op when the client cannot subscribe or topic is empty.
func (l *MQTTLink) WatchStatus(topic string) error {
	sub, ok := l.client.(Subscriber)
	if !ok || topic == "" {
		return nil
	}
	err := sub.Subscribe(topic, l.qos, func(t string, payload []byte) error {
		l.logger.Debug("device status", "topic", t, "state", string(payload))
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to device status: %w", err)
	}
	return nil
}
