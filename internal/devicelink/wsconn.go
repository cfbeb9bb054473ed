package devicelink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// WSConn adapts a gorilla websocket connection to Conn. gorilla allows a
// single concurrent writer, so data frames are serialised here; control
// frames (ping, close) may be written concurrently.
type WSConn struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	open      atomic.Bool
	closeOnce sync.Once
}

// NewWSConn wraps conn. writeTimeout bounds writes with no context deadline.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) *WSConn {
	c := &WSConn{
		id:           "dev-" + uuid.NewString()[:8],
		conn:         conn,
		writeTimeout: writeTimeout,
	}
	c.open.Store(true)
	return c
}

func (c *WSConn) ID() string { return c.id }

func (c *WSConn) IsOpen() bool { return c.open.Load() }

// WriteText writes one text frame. A write error marks the connection closed.
func (c *WSConn) WriteText(ctx context.Context, payload []byte) error {
	return c.write(ctx, websocket.TextMessage, payload)
}

// WriteJSON writes v as one text frame.
func (c *WSConn) WriteJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	return c.write(ctx, websocket.TextMessage, data)
}

func (c *WSConn) write(ctx context.Context, messageType int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsOpen() {
		return errConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		c.open.Store(false)
		return err
	}
	return nil
}

// Ping sends a ping control frame.
func (c *WSConn) Ping(ctx context.Context) error {
	if !c.IsOpen() {
		return errConnClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, c.deadline(ctx))
}

func (c *WSConn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// MarkClosed flags the connection unusable without closing the socket.
func (c *WSConn) MarkClosed() {
	c.open.Store(false)
}

// Close sends a normal close frame and closes the socket. Safe to call twice.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.open.Store(false)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced or shutting down")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck // peer may be gone
		err = c.conn.Close()
	})
	return err
}
