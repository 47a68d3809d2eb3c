// Package httptransport assembles the HTTP surface: the admin audit read
// endpoints, the snapshot comparison endpoint, health, and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "equitrail/internal/audit/handler"
	"equitrail/internal/platform/metrics"
	"equitrail/internal/platform/middleware"
	snapshothandler "equitrail/internal/snapshot/handler"
	"equitrail/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	AuditHandler    *audithandler.Handler
	SnapshotHandler *snapshothandler.Handler
	Validator       middleware.JWTValidator
	Logger          *slog.Logger
	Metrics         *metrics.Metrics

	// Health reports dependency liveness. Nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter wires all endpoints. The admin surface sits behind the bearer
// token guard; health and metrics stay open for the platform probes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestMetadata)
	r.Use(middleware.Trace)
	if deps.Metrics != nil {
		r.Use(countRequests(deps.Metrics))
	}

	r.Get("/healthz", healthHandler(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(deps.Validator, deps.Logger))
		deps.AuditHandler.Register(admin)
		deps.SnapshotHandler.Register(admin)
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// countRequests records one counter increment per served request, labeled by
// chi route pattern and status class.
func countRequests(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			class := strconv.Itoa(rec.status/100) + "xx"
			m.HTTPRequests.WithLabelValues(route, class).Inc()
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
