package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

type tenantContextKey struct{}

// DefaultTenantHeader carries the tenant identity on every API request.
// Identity itself is established upstream; the engine only scopes data.
const DefaultTenantHeader = "X-Tenant-ID"

// tenantIDPattern enforces: alphanumeric, underscore, hyphen, length 1-64.
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// TenantMiddleware extracts the tenant ID from the configured header and
// injects it into the request context.  Requests without a valid tenant are
// rejected with 400.
type TenantMiddleware struct {
	header string
	logger logging.Logger
}

func NewTenantMiddleware(header string, logger logging.Logger) *TenantMiddleware {
	if header == "" {
		header = DefaultTenantHeader
	}
	return &TenantMiddleware{header: header, logger: logger}
}

func (m *TenantMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get(m.header)
		if tenantID == "" {
			tenantID = r.URL.Query().Get("tenant_id")
		}
		if tenantID == "" {
			writeMiddlewareError(w, http.StatusBadRequest, errors.ErrCodeValidation,
				"tenant ID is required: provide the "+m.header+" header")
			return
		}
		if !tenantIDPattern.MatchString(tenantID) {
			m.logger.Warn("invalid tenant ID format",
				logging.String("tenant_id", tenantID),
				logging.String("path", r.URL.Path))
			writeMiddlewareError(w, http.StatusBadRequest, errors.ErrCodeValidation,
				"tenant ID must match [a-zA-Z0-9_-]{1,64}")
			return
		}

		w.Header().Set(m.header, tenantID)
		ctx := context.WithValue(r.Context(), tenantContextKey{}, common.TenantID(tenantID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromContext returns the tenant injected by the middleware, or the
// empty tenant when the request bypassed it.
func TenantFromContext(ctx context.Context) common.TenantID {
	if t, ok := ctx.Value(tenantContextKey{}).(common.TenantID); ok {
		return t
	}
	return ""
}
