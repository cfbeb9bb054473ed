package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/garage-core/internal/devicelink"
	"github.com/nerrad567/garage-core/internal/dispatch"
	"github.com/nerrad567/garage-core/internal/door"
)

type commandRequest struct {
	Action string `json:"action"`
}

type commandResponse struct {
	Message   string      `json:"message"`
	Action    door.Action `json:"action"`
	Logged    bool        `json:"logged"`
	Transport string      `json:"transport,omitempty"`
}

// handleCommand sends an immediate command for the caller.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	action, err := door.ParseAction(req.Action)
	if err != nil {
		writeBadRequest(w, "invalid action: must be OPEN, CLOSE or STOP")
		return
	}

	claims := claimsFromContext(r.Context())
	res, err := s.dispatcher.Dispatch(r.Context(), action, claims.Subject, door.SourceApp)
	if err != nil && !dispatch.IsDelivered(err) {
		s.writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commandResponse{
		Message:   "command " + string(action) + " sent",
		Action:    action,
		Logged:    res.Logged,
		Transport: res.Ack.Transport,
	})
}

// writeDispatchError maps an undelivered command to a response.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var te *devicelink.TransmitError
	switch {
	case errors.Is(err, door.ErrInvalidAction):
		writeBadRequest(w, "invalid action: must be OPEN, CLOSE or STOP")
	case errors.Is(err, devicelink.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, ErrCodeDeviceUnavailable, "garage door controller is not connected")
	case errors.Is(err, devicelink.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, ErrCodeDeviceUnavailable, "garage door controller is not ready")
	case errors.As(err, &te):
		writeError(w, http.StatusBadGateway, ErrCodeTransmitFailed, "failed to send command to the controller")
	default:
		s.logger.Error("dispatch failed", "error", err)
		writeInternalError(w, "failed to send command")
	}
}
