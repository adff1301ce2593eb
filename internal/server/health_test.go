package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker_Liveness(t *testing.T) {
	hc := NewHealthChecker(nil, nil)

	rec := httptest.NewRecorder()
	hc.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != healthStatusOK {
		t.Errorf("expected status %q, got %q", healthStatusOK, resp.Status)
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	sc := newTestServerContext(t)

	tests := []struct {
		name       string
		ready      bool
		shutdown   bool
		wantStatus int
		wantStdio  string
	}{
		{name: "not serving", ready: false, wantStatus: http.StatusServiceUnavailable, wantStdio: healthStatusNotReady},
		{name: "serving", ready: true, wantStatus: http.StatusOK, wantStdio: healthStatusOK},
		{name: "shutting down", ready: true, shutdown: true, wantStatus: http.StatusServiceUnavailable, wantStdio: healthStatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker(sc, nil)
			hc.SetReady(tt.ready)
			if tt.shutdown {
				if err := sc.Shutdown(); err != nil {
					t.Fatalf("shutdown failed: %v", err)
				}
			}

			rec := httptest.NewRecorder()
			hc.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Checks["stdio"] != tt.wantStdio {
				t.Errorf("expected stdio check %q, got %q", tt.wantStdio, resp.Checks["stdio"])
			}
			if tt.shutdown && resp.Checks["shutdown"] != healthStatusShuttingDown {
				t.Errorf("expected shutdown check %q, got %q", healthStatusShuttingDown, resp.Checks["shutdown"])
			}
		})
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	sc := newTestServerContext(t)
	s := New(sc)
	s.Health().SetReady(true)
	s.handled.Store(3)
	s.dispatcher.initialized.Store(true)

	rec := httptest.NewRecorder()
	s.Health().DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp DetailedHealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MessagesHandled != 3 {
		t.Errorf("expected 3 messages handled, got %d", resp.MessagesHandled)
	}
	if !resp.ClientInitialized {
		t.Error("expected client_initialized to be true")
	}
	if resp.Tools != sc.Registry().Len() {
		t.Errorf("expected %d tools, got %d", sc.Registry().Len(), resp.Tools)
	}
	if resp.Uptime == "" {
		t.Error("expected uptime to be set")
	}
}

func TestHealthChecker_DetailedNotReady(t *testing.T) {
	hc := NewHealthChecker(nil, nil)

	rec := httptest.NewRecorder()
	hc.DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected JSON content type, got %q", got)
	}
}
