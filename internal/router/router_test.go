package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubetrack-backend/internal/handlers"
	"tubetrack-backend/internal/middleware"
	"tubetrack-backend/internal/services"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	identity := services.NewIdentityProvider("test-secret", nil, nil)
	limiter := middleware.NewRateLimiter(ctx, 100, time.Minute)
	return New(identity, limiter, Handlers{
		Session:   handlers.NewSessionHandler(identity),
		Playlist:  handlers.NewPlaylistHandler(nil),
		Study:     handlers.NewStudyHandler(nil),
		Credits:   handlers.NewCreditsHandler(nil),
		WebSocket: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
	}, "http://localhost:5173")
}

func TestRouter(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		status int
		body   string
	}{
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK, body: `{"status":"ok"}`},
		{name: "anonymous session", method: http.MethodGet, path: "/api/v1/session", status: http.StatusOK, body: `"user":null`},
		{name: "credits need a user", method: http.MethodGet, path: "/api/v1/credits", status: http.StatusUnauthorized, body: "UNAUTHORIZED"},
		{name: "stats need a user", method: http.MethodGet, path: "/api/v1/stats", status: http.StatusUnauthorized, body: "UNAUTHORIZED"},
		{
			name:   "malformed authorization",
			method: http.MethodGet,
			path:   "/api/v1/session",
			header: map[string]string{"Authorization": "Basic abc"},
			status: http.StatusUnauthorized,
			body:   "Invalid authorization format",
		},
		{
			name:   "bad token",
			method: http.MethodGet,
			path:   "/api/v1/session",
			header: map[string]string{"Authorization": "Bearer nope"},
			status: http.StatusUnauthorized,
			body:   "Invalid token",
		},
		{name: "websocket", method: http.MethodGet, path: "/api/v1/ws", status: http.StatusTeapot},
		{name: "unknown", method: http.MethodGet, path: "/api/v1/nope", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
			if tt.body != "" {
				assert.Contains(t, rr.Body.String(), tt.body)
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/playlists", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Less(t, rr.Code, 300)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
