package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/garage-core/internal/devicelink"
)

// upgrader configures the device WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The controller is not a browser; it authenticates with the device key.
		return true
	},
}

// handleDeviceSocket upgrades the door controller's connection and serves
// it until it closes or the server shuts down.
func (s *Server) handleDeviceSocket(w http.ResponseWriter, r *http.Request) {
	if s.deviceSocket == nil {
		writeNotFound(w, "device socket is disabled for this transport")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("device socket upgrade failed", "error", err)
		return
	}

	cfg := devicelink.SessionConfig{
		DeviceKey:        s.secCfg.DeviceKey,
		HandshakeTimeout: time.Duration(s.deviceCfg.HandshakeTimeout) * time.Second,
		PingInterval:     time.Duration(s.wsCfg.PingInterval) * time.Second,
		PongTimeout:      time.Duration(s.wsCfg.PongTimeout) * time.Second,
		WriteTimeout:     time.Duration(s.deviceCfg.WriteTimeout) * time.Second,
		MaxMessageSize:   int64(s.wsCfg.MaxMessageSize),
	}

	//nolint:errcheck // the session logs its own outcome
	s.deviceSocket.Serve(s.ctx, ws, cfg)
}
