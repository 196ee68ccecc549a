// Package api exposes the trigger, staff and health endpoints over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/c21-japan/homemart-sub002/internal/api/handlers"
	"github.com/c21-japan/homemart-sub002/internal/auth"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
	"github.com/c21-japan/homemart-sub002/pkg/metrics"
)

// Handlers groups the endpoint handlers mounted by the router
type Handlers struct {
	Reporting  *handlers.ReportingHandler
	Agreements *handlers.AgreementHandler
	Deadlines  *handlers.DeadlineHandler
	Checklists *handlers.ChecklistHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are declared in this function only
func NewRouter(h Handlers, verifier *auth.Verifier, metricsEnabled bool, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Trigger endpoints (CRON_SECRET)
	api.HandleFunc("/reporting/runner", h.Reporting.RunReports).Methods("GET", "POST")
	api.HandleFunc("/cron/daily-tasks", h.Reporting.RunTask).Methods("POST")
	api.HandleFunc("/cron/daily-tasks", h.Reporting.RunDaily).Methods("GET")

	// Staff endpoints (bearer JWT)
	staff := api.NewRoute().Subrouter()
	staff.Use(staffAuthMiddleware(verifier, log))
	staff.HandleFunc("/agreements", h.Agreements.Create).Methods("POST")
	staff.HandleFunc("/agreements/due", h.Agreements.Due).Methods("GET")
	staff.HandleFunc("/agreements/stats", h.Agreements.Stats).Methods("GET")
	staff.HandleFunc("/agreements/{id}", h.Agreements.Get).Methods("GET")
	staff.HandleFunc("/agreements/{id}", h.Agreements.Update).Methods("PATCH")
	staff.HandleFunc("/deadlines/preview", h.Deadlines.Preview).Methods("GET")
	staff.HandleFunc("/checklists/{id}/completed", h.Checklists.Completed).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "homemart-reporting",
	})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests and counts them per route
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// Call next handler
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tmpl, err := cur.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// staffAuthMiddleware requires a valid staff bearer token
func staffAuthMiddleware(v *auth.Verifier, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Verify(auth.BearerToken(r))
			if err != nil {
				log.WithError(err).WithField("path", r.URL.Path).Debug("Rejected staff request")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"error":   "認証が必要です",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
