package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperdx/ingest-control/pkg/metrics"
)

// teamCtxKey is the context key requireTeam stores the caller's resolved
// team id under.
type teamCtxKey struct{}

// teamHeader is the header an upstream authenticating proxy is expected
// to set once it has resolved the caller's session/cookie to a team — see
// doc.go's note on why this server does not itself perform that
// resolution.
const teamHeader = "X-Hyperdx-Team-Id"

// requireTeam rejects a request with no resolved team id and stashes the
// id in the request context for downstream handlers.
func requireTeam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		teamID := r.Header.Get(teamHeader)
		if teamID == "" {
			http.Error(w, "unauthenticated: missing "+teamHeader, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), teamCtxKey{}, teamID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func teamFromContext(r *http.Request) string {
	teamID, _ := r.Context().Value(teamCtxKey{}).(string)
	return teamID
}

// statusRecorder captures the status code a handler wrote, the way
// cuemby-warren's own interceptor.go records a gRPC status for its metrics
// middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// requestMetrics records every request the router serves (tenant CRUD,
// /v1/opamp, health and metrics routes) in
// pkg/metrics.APIRequestsTotal / APIRequestDuration, labeled by route
// pattern (not raw path, to keep cardinality bounded) once chi has
// matched it.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)
		metrics.APIRequestsTotal.WithLabelValues(route, statusBucket(rec.status)).Inc()
	})
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
