package devicelink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/garage-core/internal/door"
)

const testDeviceKey = "garage-device-key"

func testSessionConfig() SessionConfig {
	return SessionConfig{
		DeviceKey:        testDeviceKey,
		HandshakeTimeout: 500 * time.Millisecond,
		PingInterval:     time.Second,
		PongTimeout:      time.Second,
		WriteTimeout:     time.Second,
	}
}

// startDeviceServer serves the device socket for link on an httptest server.
func startDeviceServer(t *testing.T, link *SocketLink) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		link.Serve(ctx, ws, testSessionConfig()) //nolint:errcheck // outcome observed through the link
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialDevice(t *testing.T, url, key string) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	require.NoError(t, ws.WriteJSON(Frame{Type: FrameIdentify, DeviceKey: key}))
	return ws
}

func readIdentified(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	require.Equal(t, FrameIdentified, f.Type)
	return f
}

func readText(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	return string(data)
}

func TestServe_IdentifyAndReceiveCommand(t *testing.T) {
	link := NewSocketLink()
	url := startDeviceServer(t, link)

	ws := dialDevice(t, url, testDeviceKey)
	f := readIdentified(t, ws)

	require.Eventually(t, link.IsReachable, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, f.ConnectionID, link.ConnectionID())

	ack, err := link.Send(context.Background(), door.ActionOpen)
	require.NoError(t, err)
	assert.Equal(t, f.ConnectionID, ack.ConnectionID)
	assert.Equal(t, "OPEN", readText(t, ws))

	// Status frames are accepted without disturbing the link.
	require.NoError(t, ws.WriteJSON(map[string]any{"type": FrameStatus, "state": map[string]string{"door": "open"}}))
	_, err = link.Send(context.Background(), door.ActionStop)
	require.NoError(t, err)
	assert.Equal(t, "STOP", readText(t, ws))
}

func TestServe_RejectsWrongKey(t *testing.T) {
	link := NewSocketLink()
	url := startDeviceServer(t, link)

	ws := dialDevice(t, url, "wrong-key")
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()

	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.False(t, link.IsReachable())
}

func TestServe_HandshakeTimeout(t *testing.T) {
	link := NewSocketLink()
	url := startDeviceServer(t, link)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = ws.ReadMessage()
	assert.Error(t, err, "server should drop a socket that never identifies")
	assert.False(t, link.IsReachable())
}

func TestServe_ReplacementAndDisconnect(t *testing.T) {
	link := NewSocketLink()
	url := startDeviceServer(t, link)

	a := dialDevice(t, url, testDeviceKey)
	fa := readIdentified(t, a)
	require.Eventually(t, func() bool { return link.ConnectionID() == fa.ConnectionID }, 2*time.Second, 10*time.Millisecond)

	b := dialDevice(t, url, testDeviceKey)
	fb := readIdentified(t, b)
	require.Eventually(t, func() bool { return link.ConnectionID() == fb.ConnectionID }, 2*time.Second, 10*time.Millisecond)

	// A was closed by the server.
	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err)

	// Commands now reach B only, even after A's session has wound down.
	time.Sleep(50 * time.Millisecond)
	_, err = link.Send(context.Background(), door.ActionClose)
	require.NoError(t, err)
	assert.Equal(t, "CLOSE", readText(t, b))

	// B hanging up leaves the link disconnected.
	require.NoError(t, b.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	require.Eventually(t, func() bool { return link.State() == StateDisconnected }, 2*time.Second, 10*time.Millisecond)

	_, err = link.Send(context.Background(), door.ActionOpen)
	assert.ErrorIs(t, err, ErrNotConnected)
}
