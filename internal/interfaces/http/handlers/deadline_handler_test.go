package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/compliance-engine/internal/application/lifecycle"
	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

type fakeLifecycleService struct {
	lifecycle.Service
	completeReq  lifecycle.CompleteDeadlineRequest
	completeResp *deadline.Deadline
	completeErr  error
	listReq      lifecycle.ListDeadlinesRequest
	listResp     *lifecycle.ListDeadlinesResponse
}

func (f *fakeLifecycleService) CompleteDeadline(_ context.Context, req lifecycle.CompleteDeadlineRequest) (*deadline.Deadline, error) {
	f.completeReq = req
	return f.completeResp, f.completeErr
}

func (f *fakeLifecycleService) ListDeadlines(_ context.Context, req lifecycle.ListDeadlinesRequest) (*lifecycle.ListDeadlinesResponse, error) {
	f.listReq = req
	return f.listResp, nil
}

func mountDeadlineHandler(svc lifecycle.Service) http.Handler {
	h := NewDeadlineHandler(svc, logging.NewNopLogger())
	r := chi.NewRouter()
	r.Get("/deadlines", h.List)
	r.Post("/deadlines/{deadlineID}/complete", h.Complete)
	return r
}

func TestCompleteDeadline_OK(t *testing.T) {
	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	done := deadline.New("tenant-1", "s-1", "ob-1", "site-1", due, due)
	require.NoError(t, done.Complete("user-7", due))

	svc := &fakeLifecycleService{completeResp: done}
	router := mountDeadlineHandler(svc)

	req := httptest.NewRequest("POST", "/deadlines/d-1/complete",
		strings.NewReader(`{"completed_by":"user-7"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.ID("d-1"), svc.completeReq.DeadlineID)
	assert.Equal(t, common.UserID("user-7"), svc.completeReq.CompletedBy)

	var body deadline.Deadline
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, deadline.StatusCompleted, body.Status)
}

func TestCompleteDeadline_TerminalConflict(t *testing.T) {
	svc := &fakeLifecycleService{
		completeErr: errors.New(errors.ErrCodeDeadlineTerminal, "deadline already completed"),
	}
	router := mountDeadlineHandler(svc)

	req := httptest.NewRequest("POST", "/deadlines/d-1/complete",
		strings.NewReader(`{"completed_by":"user-7"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrCodeDeadlineTerminal.String(), body.Code)
}

func TestCompleteDeadline_UnknownBodyFieldRejected(t *testing.T) {
	router := mountDeadlineHandler(&fakeLifecycleService{})

	req := httptest.NewRequest("POST", "/deadlines/d-1/complete",
		strings.NewReader(`{"completed_by":"user-7","extra":true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDeadlines_FiltersAndCursor(t *testing.T) {
	svc := &fakeLifecycleService{listResp: &lifecycle.ListDeadlinesResponse{}}
	router := mountDeadlineHandler(svc)

	cursor := common.Cursor{CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), LastID: "d-9"}
	req := httptest.NewRequest("GET",
		"/deadlines?site_id=site-1&status=overdue&status=due_soon&due_from=2025-01-01&due_to=2025-06-30&limit=25&cursor="+cursor.Encode(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.ID("site-1"), svc.listReq.Filter.SiteID)
	assert.Equal(t, []deadline.Status{deadline.StatusOverdue, deadline.StatusDueSoon}, svc.listReq.Filter.Statuses)
	require.NotNil(t, svc.listReq.Filter.DueRange)
	assert.Equal(t, 25, svc.listReq.Page.Limit)
	assert.Equal(t, common.ID("d-9"), svc.listReq.Page.Cursor.LastID)
}

func TestListDeadlines_BadInputs(t *testing.T) {
	router := mountDeadlineHandler(&fakeLifecycleService{})

	for _, url := range []string{
		"/deadlines?cursor=%3Fnot-base64",
		"/deadlines?status=snoozed",
		"/deadlines?due_from=yesterday",
	} {
		req := httptest.NewRequest("GET", url, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, url)
	}
}
