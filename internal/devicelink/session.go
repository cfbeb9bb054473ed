package devicelink

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Device socket frame types.
const (
	FrameIdentify   = "identify"
	FrameIdentified = "identified"
	FrameStatus     = "status"
)

// ErrIdentifyFailed is returned when a socket does not identify correctly.
var ErrIdentifyFailed = errors.New("devicelink: device identification failed")

// Frame is a JSON frame sent by or to the device.
type Frame struct {
	Type         string          `json:"type"`
	DeviceKey    string          `json:"device_key,omitempty"`
	ConnectionID string          `json:"connection_id,omitempty"`
	State        json.RawMessage `json:"state,omitempty"`
}

// SessionConfig controls a device socket session.
type SessionConfig struct {
	DeviceKey        string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	return c
}

// Serve runs one device socket until it closes or ctx ends. The socket
// must identify within the handshake timeout; once it does it becomes the
// link's current connection. Serve always closes ws.
func (l *SocketLink) Serve(ctx context.Context, ws *websocket.Conn, cfg SessionConfig) error {
	cfg = cfg.withDefaults()
	ws.SetReadLimit(cfg.MaxMessageSize)

	if err := identify(ws, cfg); err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "identification required")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck // best effort
		ws.Close()                                                                    //nolint:errcheck // rejecting
		l.log().Warn("device socket rejected", "remote", ws.RemoteAddr().String(), "error", err)
		return err
	}

	conn := NewWSConn(ws, cfg.WriteTimeout)
	if err := conn.WriteJSON(ctx, Frame{Type: FrameIdentified, ConnectionID: conn.ID()}); err != nil {
		conn.Close() //nolint:errcheck // handshake failed
		return err
	}
	l.Attach(conn)

	done := make(chan struct{})
	defer func() {
		close(done)
		conn.Close() //nolint:errcheck // session over
		l.Detach(conn)
	}()

	go keepAlive(ctx, conn, cfg, done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() //nolint:errcheck // unblocks the read loop
		case <-done:
		}
	}()

	return l.readLoop(ws, conn, cfg)
}

func identify(ws *websocket.Conn, cfg SessionConfig) error {
	if err := ws.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout)); err != nil {
		return err
	}

	var f Frame
	if err := ws.ReadJSON(&f); err != nil {
		return errors.Join(ErrIdentifyFailed, err)
	}
	if f.Type != FrameIdentify {
		return ErrIdentifyFailed
	}
	if cfg.DeviceKey == "" || subtle.ConstantTimeCompare([]byte(f.DeviceKey), []byte(cfg.DeviceKey)) != 1 {
		return ErrIdentifyFailed
	}
	return nil
}

func (l *SocketLink) readLoop(ws *websocket.Conn, conn *WSConn, cfg SessionConfig) error {
	wait := cfg.PingInterval + cfg.PongTimeout
	extend := func() error { return ws.SetReadDeadline(time.Now().Add(wait)) }
	if err := extend(); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			conn.MarkClosed()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.log().Warn("device socket read error", "connection_id", conn.ID(), "error", err)
				return err
			}
			l.log().Debug("device socket closed", "connection_id", conn.ID(), "error", err)
			return nil
		}
		_ = extend() //nolint:errcheck // next read reports a broken conn

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			l.log().Debug("ignoring non-JSON device frame", "connection_id", conn.ID())
			continue
		}
		switch f.Type {
		case FrameStatus:
			l.log().Debug("device status", "connection_id", conn.ID(), "state", string(f.State))
		default:
			l.log().Debug("ignoring device frame", "connection_id", conn.ID(), "type", f.Type)
		}
	}
}

func keepAlive(ctx context.Context, conn *WSConn, cfg SessionConfig, done <-chan struct{}) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				conn.MarkClosed()
				return
			}
		}
	}
}
