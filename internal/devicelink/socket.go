package devicelink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/garage-core/internal/door"
)

// Conn is one device connection as seen by SocketLink.
type Conn interface {
	ID() string
	IsOpen() bool
	WriteText(ctx context.Context, payload []byte) error
	Close() error
}

// SocketLink tracks the current device connection. sendMu serialises
// sends for the whole write; mu only guards current, so state queries never
// wait behind a slow write.
type SocketLink struct {
	sendMu  sync.Mutex
	mu      sync.Mutex
	current Conn
	logger  atomic.Pointer[Logger]
	now     func() time.Time
}

// NewSocketLink returns a link with no connection attached.
func NewSocketLink() *SocketLink {
	return &SocketLink{now: time.Now}
}

// SetLogger sets the logger for connection changes.
func (l *SocketLink) SetLogger(logger Logger) {
	l.logger.Store(&logger)
}

func (l *SocketLink) log() Logger {
	if p := l.logger.Load(); p != nil {
		return *p
	}
	return noopLogger{}
}

// Attach makes c the current connection. An older connection that is
// still open is closed first.
func (l *SocketLink) Attach(c Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.current
	if prev != nil && prev != c {
		if prev.IsOpen() {
			if err := prev.Close(); err != nil {
				l.log().Warn("closing replaced device connection", "connection_id", prev.ID(), "error", err)
			}
		}
		l.log().Info("device connection replaced", "old_connection_id", prev.ID(), "connection_id", c.ID())
	} else {
		l.log().Info("device connected", "connection_id", c.ID())
	}
	l.current = c
}

// Detach clears the current connection only if it is still c, so a late
// close of a replaced connection does not drop its successor.
func (l *SocketLink) Detach(c Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != c {
		return false
	}
	l.current = nil
	l.log().Info("device disconnected", "connection_id", c.ID())
	return true
}

// IsReachable reports whether a connection is attached and open.
func (l *SocketLink) IsReachable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current != nil && l.current.IsOpen()
}

// State reports CONNECTED when a connection is attached.
func (l *SocketLink) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return StateDisconnected
	}
	return StateConnected
}

// ConnectionID returns the current connection's id, or "".
func (l *SocketLink) ConnectionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return ""
	}
	return l.current.ID()
}

// Send writes the bare action as one text frame to the current connection.
// A connection replaced mid-write fails the write with a TransmitError.
func (l *SocketLink) Send(ctx context.Context, action door.Action) (Ack, error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	l.mu.Lock()
	c := l.current
	l.mu.Unlock()

	if c == nil {
		return Ack{}, ErrNotConnected
	}
	if !c.IsOpen() {
		return Ack{}, ErrNotReady
	}

	if err := c.WriteText(ctx, []byte(action)); err != nil {
		return Ack{}, &TransmitError{Transport: TransportWebSocket, Cause: err}
	}

	l.log().Debug("command sent to device", "action", action, "connection_id", c.ID())
	return Ack{Transport: TransportWebSocket, ConnectionID: c.ID(), SentAt: l.now().UTC()}, nil
}
