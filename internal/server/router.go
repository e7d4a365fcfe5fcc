// Package server assembles the HTTP surface: the chi router with its
// middleware stack, the health and metrics endpoints, and the listener
// lifecycle.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"ruststack/internal/awsapi"
	"ruststack/internal/dispatch"
	"ruststack/pkg/observability"
)

// NewRouter builds the full handler: health and metrics are served by the
// router itself; every other request funnels into the dispatcher.
func NewRouter(d *dispatch.Dispatcher, enabled dispatch.Enabled, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog(logger, metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"ETag", "x-amz-request-id"},
	}))

	health := healthHandler(enabled)
	r.Get("/health", health)
	r.Get("/_localstack/health", health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// chi answers 405 for unmatched methods on registered routes, which
	// would shadow S3 operations on "/". Everything that is not health or
	// metrics belongs to the dispatcher.
	r.NotFound(d.ServeHTTP)
	r.MethodNotAllowed(d.ServeHTTP)

	return r
}

// healthHandler reports the running services.
func healthHandler(enabled dispatch.Enabled) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "running",
			"services": enabled.Services(),
		})
	}
}

// requestID assigns each request a fresh AWS-style request id, stored in
// the context and echoed on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := awsapi.NewRequestID()
		w.Header().Set(awsapi.AmzRequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(awsapi.WithRequestID(r.Context(), id)))
	})
}

// accessLog writes one structured line per request and feeds the metrics
// collector.
func accessLog(logger *zap.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			service := string(dispatch.Classify(r))
			if metrics != nil {
				metrics.ObserveRequest(service, statusLabel(ww.Status()), elapsed)
			}
			logger.Debug("request served",
				zap.String("request_id", awsapi.RequestID(r.Context())),
				zap.String("service", service),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", elapsed),
			)
		})
	}
}

func statusLabel(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status)
}
