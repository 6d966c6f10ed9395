package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundResponse(t *testing.T) {
	handler := setupTestServer(t, nil, nil)

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var errorResp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errorResp))
	assert.Equal(t, "route not found", errorResp["error"])
	assert.Equal(t, "GET", errorResp["method"])
	assert.Equal(t, "/nonexistent", errorResp["path"])
}

func TestMethodNotAllowedResponse(t *testing.T) {
	handler := setupTestServer(t, func(r chi.Router) {
		r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}, nil)

	req := httptest.NewRequest("POST", "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	var errorResp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errorResp))
	assert.Equal(t, "method not allowed", errorResp["error"])
	assert.Equal(t, "POST", errorResp["method"])
}

func TestHealthAndReadiness(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		readiness  func(context.Context) error
		wantStatus int
	}{
		{name: "healthz", path: "/healthz", wantStatus: http.StatusOK},
		{name: "ready", path: "/readyz", readiness: func(context.Context) error { return nil }, wantStatus: http.StatusOK},
		{name: "not ready", path: "/readyz", readiness: func(context.Context) error { return errors.New("redis down") }, wantStatus: http.StatusServiceUnavailable},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := setupTestServer(t, nil, tt.readiness)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestDebugRoutesEndpoint(t *testing.T) {
	srv := New(Options{
		Logger: zerolog.Nop(),
		Debug:  true,
		RegisterRoutes: func(r chi.Router) {
			r.Get("/login", func(w http.ResponseWriter, r *http.Request) {})
			r.Post("/access_token", func(w http.ResponseWriter, r *http.Request) {})
		},
	})

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/debug/routes", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Routes []map[string]string `json:"routes"`
		Count  int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, len(response.Routes), response.Count)

	routeSet := map[string]bool{}
	for _, route := range response.Routes {
		routeSet[route["method"]+" "+route["route"]] = true
	}
	assert.True(t, routeSet["GET /healthz"])
	assert.True(t, routeSet["GET /login"])
	assert.True(t, routeSet["POST /access_token"])

	hidden := setupTestServer(t, nil, nil)
	w = httptest.NewRecorder()
	hidden.ServeHTTP(w, httptest.NewRequest("GET", "/debug/routes", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccessLog_OmitsQueryAndCredentials(t *testing.T) {
	var buf bytes.Buffer
	srv := New(Options{
		Logger: zerolog.New(&buf),
		RegisterRoutes: func(r chi.Router) {
			r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})
		},
	})

	req := httptest.NewRequest("GET", "/login?redirect_url=%2Fauthorize%3Fstate%3Dsecret-state", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/login", entry["path"])
	assert.Equal(t, float64(http.StatusUnauthorized), entry["status"])
	assert.Equal(t, true, entry["has_auth"])
	assert.NotEmpty(t, entry["request_id"])
	assert.NotContains(t, buf.String(), "secret-state")
	assert.NotContains(t, buf.String(), "secret-token")
}

func TestRecovererReturns500(t *testing.T) {
	handler := setupTestServer(t, func(r chi.Router) {
		r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	}, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// setupTestServer creates a test server with the given route registration function
// Returns the HTTP handler (router) for direct testing
func setupTestServer(t *testing.T, registerRoutes func(chi.Router), readiness func(context.Context) error) http.Handler {
	t.Helper()
	srv := New(Options{
		Port:           8081,
		Logger:         zerolog.Nop(),
		ServiceName:    "test-server",
		Readiness:      readiness,
		RegisterRoutes: registerRoutes,
	})
	return srv.Handler
}
