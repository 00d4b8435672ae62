package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecocomply/compliance-engine/internal/application/scheduling"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// ScheduleHandler serves schedule administration and recurrence-event intake.
type ScheduleHandler struct {
	svc    scheduling.Service
	logger logging.Logger
}

func NewScheduleHandler(svc scheduling.Service, logger logging.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/schedules.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduling.CreateScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	req.TenantID = tenantFrom(r)

	sched, err := h.svc.CreateSchedule(r.Context(), req)
	if err != nil {
		h.logger.Warn("schedule creation rejected", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

// Get handles GET /api/v1/schedules/{scheduleID}.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "scheduleID"))
	if id.IsZero() {
		writeValidationError(w, "schedule id is required")
		return
	}

	sched, err := h.svc.GetSchedule(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// Pause handles POST /api/v1/schedules/{scheduleID}/pause.
func (h *ScheduleHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.svc.PauseSchedule)
}

// Resume handles POST /api/v1/schedules/{scheduleID}/resume.
func (h *ScheduleHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.svc.ResumeSchedule)
}

// Cancel handles POST /api/v1/schedules/{scheduleID}/cancel.
func (h *ScheduleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.svc.CancelSchedule)
}

func (h *ScheduleHandler) setStatus(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, tenantID common.TenantID, id common.ID) error) {
	id := common.ID(chi.URLParam(r, "scheduleID"))
	if id.IsZero() {
		writeValidationError(w, "schedule id is required")
		return
	}
	if err := op(r.Context(), tenantFrom(r), id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// RecordEvent handles POST /api/v1/events.
func (h *ScheduleHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req scheduling.RecordEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	req.TenantID = tenantFrom(r)

	ev, err := h.svc.RecordEvent(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}
