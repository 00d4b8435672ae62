package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

func tenantEcho(t *testing.T) (http.Handler, *common.TenantID) {
	t.Helper()
	var seen common.TenantID
	mw := NewTenantMiddleware("", logging.NewNopLogger())
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func TestTenantMiddleware_HeaderInjected(t *testing.T) {
	h, seen := tenantEcho(t)

	req := httptest.NewRequest("GET", "/api/v1/deadlines", nil)
	req.Header.Set(DefaultTenantHeader, "tenant-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.TenantID("tenant-1"), *seen)
	assert.Equal(t, "tenant-1", w.Header().Get(DefaultTenantHeader))
}

func TestTenantMiddleware_QueryFallback(t *testing.T) {
	h, seen := tenantEcho(t)

	req := httptest.NewRequest("GET", "/api/v1/deadlines?tenant_id=tenant-2", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.TenantID("tenant-2"), *seen)
}

func TestTenantMiddleware_MissingRejected(t *testing.T) {
	h, _ := tenantEcho(t)

	req := httptest.NewRequest("GET", "/api/v1/deadlines", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTenantMiddleware_BadFormatRejected(t *testing.T) {
	h, _ := tenantEcho(t)

	req := httptest.NewRequest("GET", "/api/v1/deadlines", nil)
	req.Header.Set(DefaultTenantHeader, "tenant one!")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit_TenantKeyExhausts(t *testing.T) {
	mw := NewRateLimitMiddleware(1)
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/v1/deadlines", nil)
		req.Header.Set(DefaultTenantHeader, "tenant-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	// Probes bypass the limiter entirely.
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
