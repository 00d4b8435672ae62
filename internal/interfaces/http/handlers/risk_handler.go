package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	riskapp "github.com/ecocomply/compliance-engine/internal/application/risk"
	"github.com/ecocomply/compliance-engine/internal/domain/risk"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// RiskHandler serves risk snapshots, history, and the batch recompute
// trigger.
type RiskHandler struct {
	svc    riskapp.Service
	logger logging.Logger
}

func NewRiskHandler(svc riskapp.Service, logger logging.Logger) *RiskHandler {
	return &RiskHandler{svc: svc, logger: logger}
}

// scoreResponse wraps a snapshot with its compliance reading.  Scores are
// risk-directed internally (higher is worse); the API also reports the
// inverted compliance score because dashboards display "how compliant".
type scoreResponse struct {
	*risk.Score
	ComplianceScore int `json:"compliance_score"`
}

func toScoreResponse(s *risk.Score) scoreResponse {
	return scoreResponse{Score: s, ComplianceScore: 100 - s.Value}
}

// GetSiteRisk handles GET /api/v1/sites/{siteID}/risk.
func (h *RiskHandler) GetSiteRisk(w http.ResponseWriter, r *http.Request) {
	siteID := common.ID(chi.URLParam(r, "siteID"))
	if siteID.IsZero() {
		writeValidationError(w, "site id is required")
		return
	}

	score, err := h.svc.GetSiteRisk(r.Context(), tenantFrom(r), siteID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScoreResponse(score))
}

// GetCompanyRisk handles GET /api/v1/risk/company.
func (h *RiskHandler) GetCompanyRisk(w http.ResponseWriter, r *http.Request) {
	score, err := h.svc.GetCompanyRisk(r.Context(), tenantFrom(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScoreResponse(score))
}

// ListSnapshots handles GET /api/v1/risk/snapshots?score_type=site.
func (h *RiskHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	scoreType := risk.ScoreType(r.URL.Query().Get("score_type"))

	scores, err := h.svc.ListSnapshots(r.Context(), tenantFrom(r), scoreType)
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := make([]scoreResponse, 0, len(scores))
	for _, s := range scores {
		resp = append(resp, toScoreResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": resp})
}

// GetHistory handles GET /api/v1/sites/{siteID}/risk/history?days=90.
func (h *RiskHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	siteID := common.ID(chi.URLParam(r, "siteID"))
	if siteID.IsZero() {
		writeValidationError(w, "site id is required")
		return
	}

	days := 90
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeValidationError(w, "days must be a positive integer")
			return
		}
		days = n
	}

	hist, err := h.svc.GetHistory(r.Context(), tenantFrom(r), siteID, days)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// Recompute handles POST /api/v1/risk/recompute.
func (h *RiskHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	sites, err := h.svc.RecomputeAll(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("batch recompute failed",
			logging.String("tenant_id", string(tenantID)), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"sites_scored": sites})
}
