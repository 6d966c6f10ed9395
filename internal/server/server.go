// Package server builds the HTTP server shared by the bridge endpoints.
//
// The router carries request ids, real client IPs, panic recovery and one
// access log line per request. Query strings and credentials are never
// logged: the login redirect_url and the authorize parameters travel in the
// query, tokens travel in headers and bodies.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Options configure the HTTP server instance.
type Options struct {
	Port        int
	Logger      zerolog.Logger
	ServiceName string
	Readiness   func(context.Context) error
	// Debug exposes /debug/routes.
	Debug          bool
	RegisterRoutes func(chi.Router)
}

type routeError struct {
	Error  string `json:"error"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

func writeRouteError(w http.ResponseWriter, status int, msg string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(routeError{Error: msg, Method: r.Method, Path: r.URL.Path})
}

// New constructs an http.Server pre-configured with health, readiness and
// metrics routes.
func New(opts Options) *http.Server {
	if opts.Readiness == nil {
		opts.Readiness = func(context.Context) error { return nil }
	}
	logger := opts.Logger

	router := chi.NewRouter()

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		logger.Warn().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("method not allowed")
		writeRouteError(w, http.StatusMethodNotAllowed, "method not allowed", r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		logger.Warn().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("route not found")
		writeRouteError(w, http.StatusNotFound, "route not found", r)
	})

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(accessLog(logger))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := opts.Readiness(ctx); err != nil {
			logger.Warn().Err(err).Msg("readiness check failed")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	if opts.Debug {
		router.Get("/debug/routes", func(w http.ResponseWriter, r *http.Request) {
			routes := []map[string]string{}
			walkFunc := func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
				routes = append(routes, map[string]string{"method": method, "route": route})
				return nil
			}
			if err := chi.Walk(router, walkFunc); err != nil {
				logger.Error().Err(err).Msg("failed to walk routes")
				http.Error(w, "failed to list routes", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{"routes": routes, "count": len(routes)})
		})
	}

	if opts.RegisterRoutes != nil {
		opts.RegisterRoutes(router)
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// accessLog logs one line per request once it completes.
func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			event := logger.Info()
			if ww.statusCode >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.statusCode).
				Dur("duration_ms", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Bool("has_auth", r.Header.Get("Authorization") != "").
				Msg("request completed")
		})
	}
}
