package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/ecocomply/compliance-engine/pkg/errors"
)

// LoggingMiddleware logs one structured line per request and feeds the HTTP
// request metrics.
type LoggingMiddleware struct {
	logger  logging.Logger
	metrics *prometheus.Metrics
}

func NewLoggingMiddleware(logger logging.Logger, metrics *prometheus.Metrics) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger.Named("http"), metrics: metrics}
}

func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		if m.metrics != nil {
			path := routePattern(r)
			m.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
			m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
		}

		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("elapsed", elapsed),
			logging.String("request_id", chimw.GetReqID(r.Context())),
		}
		if tenant := TenantFromContext(r.Context()); tenant != "" {
			fields = append(fields, logging.String("tenant_id", string(tenant)))
		}

		switch {
		case ww.Status() >= 500:
			m.logger.Error("request failed", fields...)
		case ww.Status() >= 400:
			m.logger.Warn("request rejected", fields...)
		default:
			m.logger.Info("request served", fields...)
		}
	})
}

// routePattern returns the chi route pattern so metric labels stay bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// writeMiddlewareError emits the same error body shape the handlers use.
func writeMiddlewareError(w http.ResponseWriter, status int, code errors.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code.String(),
		"message": message,
	})
}
