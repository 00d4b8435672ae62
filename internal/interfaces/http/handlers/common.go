// Package handlers implements the REST surface of the engine.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ecocomply/compliance-engine/internal/interfaces/http/middleware"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError maps an error chain to its HTTP status via the error code.
// Internal errors are masked.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Code: code.String(), Message: message})
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    errors.ErrCodeValidation.String(),
		Message: message,
	})
}

func tenantFrom(r *http.Request) common.TenantID {
	return middleware.TenantFromContext(r.Context())
}

// parsePage extracts limit and cursor from query parameters.  Limit clamping
// happens downstream in Page.Clamp.
func parsePage(r *http.Request) (common.Page, string) {
	var page common.Page
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Limit = n
		}
	}
	return page, r.URL.Query().Get("cursor")
}

func invalidDate(param, value string) error {
	return errors.Newf(errors.ErrCodeValidation, "%s must be a YYYY-MM-DD date, got %q", param, value)
}

func decodeBody(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body")
	}
	return nil
}
