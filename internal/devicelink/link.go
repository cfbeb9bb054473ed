package devicelink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/garage-core/internal/door"
)

// Transport names reported in Ack.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

var (
	// ErrNotConnected means no device connection is registered.
	ErrNotConnected = errors.New("devicelink: device not connected")

	// ErrNotReady means a connection exists but cannot carry a command yet.
	ErrNotReady = errors.New("devicelink: device connection not ready")
)

// TransmitError wraps a transport failure after a send was attempted.
type TransmitError struct {
	Transport string
	Cause     error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("devicelink: %s transmit failed: %v", e.Transport, e.Cause)
}

func (e *TransmitError) Unwrap() error { return e.Cause }

// State is the link's connection state.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnected    State = "CONNECTED"
)

// Ack confirms the transport accepted a command.
type Ack struct {
	Transport    string    `json:"transport"`
	ConnectionID string    `json:"connection_id,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// Link delivers commands to the device.
type Link interface {
	// IsReachable reports whether a Send would currently be attempted.
	IsReachable() bool

	// Send transmits action once. Errors are ErrNotConnected, ErrNotReady
	// or *TransmitError.
	Send(ctx context.Context, action door.Action) (Ack, error)
}

// Logger is the logging interface used by links.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
