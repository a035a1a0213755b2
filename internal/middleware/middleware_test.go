package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"canteen-menu-service/internal/auth"

	"github.com/go-chi/chi/v5"
)

func TestRequireAuth(t *testing.T) {
	const secret = "test-secret"
	adminToken, _, _ := auth.IssueAccessToken(1, "admin@example.com", auth.RoleAdmin, secret, time.Hour)
	customerToken, _, _ := auth.IssueAccessToken(2, "guest@example.com", auth.RoleCustomer, secret, time.Hour)

	var seen *AuthContext
	handler := RequireAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetAuthContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		method   string
		target   string
		header   string
		expected int
	}{
		{"missing token", http.MethodGet, "/items", "", http.StatusUnauthorized},
		{"customer read", http.MethodGet, "/items", "Bearer " + customerToken, http.StatusNoContent},
		{"customer write", http.MethodPost, "/items", "Bearer " + customerToken, http.StatusForbidden},
		{"admin write", http.MethodPost, "/items", "Bearer " + adminToken, http.StatusNoContent},
		{"query token ignored", http.MethodGet, "/items?token=" + customerToken, "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/items", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == nil || !seen.IsAdmin() || seen.UserID != 1 {
		t.Fatalf("expected admin auth context, got %+v", seen)
	}
}

func TestRequestIDAndTelemetry(t *testing.T) {
	telemetry := NewTelemetry(nil)
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(telemetry.Handler)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Errorf("expected request id in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/items/1", "/items/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Header().Get("X-Request-Id") == "" {
			t.Fatalf("expected X-Request-Id header")
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/items/3", nil)
	req.Header.Set("X-Correlation-Id", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "abc" {
		t.Fatalf("expected correlation id to be reused, got %q", got)
	}

	snapshot := telemetry.Snapshot()
	if len(snapshot) != 1 || snapshot[0].Route != "GET /items/{id}" || snapshot[0].Count != 3 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestTelemetryFoldsUnmatchedRequests(t *testing.T) {
	telemetry := NewTelemetry(nil)
	r := chi.NewRouter()
	r.Use(telemetry.Handler)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 300; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/nope-%d", i), nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("BREW", "/items/1", nil))

	snapshot := telemetry.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 tracked routes, got %+v", snapshot)
	}
	if snapshot[0].Route != "GET "+unmatchedRoute || snapshot[0].Count != latencyWindowSize {
		t.Fatalf("expected unmatched window capped at %d, got %+v", latencyWindowSize, snapshot[0])
	}
	if snapshot[1].Route != "OTHER "+unmatchedRoute {
		t.Fatalf("expected custom method folded into OTHER, got %+v", snapshot[1])
	}
}

func TestMetricKey(t *testing.T) {
	tests := []struct {
		method   string
		pattern  string
		expected string
	}{
		{http.MethodGet, "/items/{id}", "GET /items/{id}"},
		{http.MethodDelete, "", "DELETE <unmatched>"},
		{"PROPFIND", "/items/{id}", "OTHER /items/{id}"},
	}
	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if got := metricKey(tc.method, tc.pattern); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	values := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(values, 0.5); got != 5 {
		t.Fatalf("expected p50 5, got %d", got)
	}
	if got := percentile(values, 0.95); got != 10 {
		t.Fatalf("expected p95 10, got %d", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Fatalf("expected 0 for empty window, got %d", got)
	}
}
