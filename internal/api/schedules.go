package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/garage-core/internal/door"
	"github.com/nerrad567/garage-core/internal/schedule"
)

type createScheduleRequest struct {
	Action   string `json:"action"`
	CronTime string `json:"cron_time"`
}

// handleCreateSchedule persists and registers a schedule for the caller.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
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
	def, err := s.schedules.Create(r.Context(), claims.Subject, action, req.CronTime)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidCronExpression) {
			writeValidation(w, "invalid cron_time: expected 5 fields (minute hour day month weekday)")
			return
		}
		s.logger.Error("create schedule failed", "user_id", claims.Subject, "error", err)
		writeInternalError(w, "failed to create schedule")
		return
	}

	s.logger.Info("schedule created",
		"schedule_id", def.ID,
		"user_id", claims.Subject,
		"action", def.Action,
		"cron", def.CronExpr,
	)
	writeJSON(w, http.StatusCreated, def)
}

// handleListSchedules returns the caller's schedules with their live status.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	schedules, err := s.schedules.List(r.Context(), claims.Subject)
	if err != nil {
		s.logger.Error("list schedules failed", "user_id", claims.Subject, "error", err)
		writeInternalError(w, "failed to list schedules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// handleDeleteSchedule deletes one of the caller's schedules.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	if err := s.schedules.Delete(r.Context(), id, claims.Subject); err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		s.logger.Error("delete schedule failed", "schedule_id", id, "error", err)
		writeInternalError(w, "failed to delete schedule")
		return
	}

	s.logger.Info("schedule deleted", "schedule_id", id, "user_id", claims.Subject)
	writeJSON(w, http.StatusOK, map[string]string{"message": "schedule deleted", "id": id})
}
