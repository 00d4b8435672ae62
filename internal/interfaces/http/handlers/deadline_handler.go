package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecocomply/compliance-engine/internal/application/lifecycle"
	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// DeadlineHandler serves the deadline read surface, explicit completion, and
// the manual sweep trigger.
type DeadlineHandler struct {
	svc    lifecycle.Service
	logger logging.Logger
}

func NewDeadlineHandler(svc lifecycle.Service, logger logging.Logger) *DeadlineHandler {
	return &DeadlineHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/deadlines.  Filters: site_id, status (repeatable),
// due_from, due_to.  Pagination: limit, cursor.
func (h *DeadlineHandler) List(w http.ResponseWriter, r *http.Request) {
	page, token := parsePage(r)
	cursor, err := common.DecodeCursor(token)
	if err != nil {
		writeAppError(w, err)
		return
	}
	page.Cursor = cursor

	filter := deadline.ListFilter{
		SiteID: common.ID(r.URL.Query().Get("site_id")),
	}
	for _, s := range r.URL.Query()["status"] {
		st := deadline.Status(s)
		if !st.Valid() {
			writeValidationError(w, "unknown status "+s)
			return
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	if dr, err := parseDueRange(r); err != nil {
		writeAppError(w, err)
		return
	} else if dr != nil {
		filter.DueRange = dr
	}

	resp, err := h.svc.ListDeadlines(r.Context(), lifecycle.ListDeadlinesRequest{
		TenantID: tenantFrom(r),
		Filter:   filter,
		Page:     page,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/deadlines/{deadlineID}.
func (h *DeadlineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "deadlineID"))
	if id.IsZero() {
		writeValidationError(w, "deadline id is required")
		return
	}

	d, err := h.svc.GetDeadline(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Complete handles POST /api/v1/deadlines/{deadlineID}/complete.
func (h *DeadlineHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "deadlineID"))
	if id.IsZero() {
		writeValidationError(w, "deadline id is required")
		return
	}

	var req lifecycle.CompleteDeadlineRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	req.TenantID = tenantFrom(r)
	req.DeadlineID = id

	d, err := h.svc.CompleteDeadline(r.Context(), req)
	if err != nil {
		h.logger.Warn("completion rejected",
			logging.String("deadline_id", id.String()), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Sweep handles POST /api/v1/sweep.  The worker runs sweeps on a ticker;
// this endpoint exists for operational runs between ticks.
func (h *DeadlineHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Sweep(r.Context())
	if err != nil {
		h.logger.Error("manual sweep failed", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parseDueRange(r *http.Request) (*common.DateRange, error) {
	fromStr := r.URL.Query().Get("due_from")
	toStr := r.URL.Query().Get("due_to")
	if fromStr == "" && toStr == "" {
		return nil, nil
	}

	dr := &common.DateRange{From: time.Time{}, To: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)}
	if fromStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return nil, invalidDate("due_from", fromStr)
		}
		dr.From = from
	}
	if toStr != "" {
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return nil, invalidDate("due_to", toStr)
		}
		dr.To = to
	}
	return dr, nil
}
