package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(ctx context.Context) error {
	return s.err
}

func TestLiveness(t *testing.T) {
	h := NewHandler(nil)
	rr := httptest.NewRecorder()
	h.Liveness(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestReadiness_AllHealthy(t *testing.T) {
	h := NewHandler(map[string]Checker{
		"db":    stubChecker{},
		"redis": stubChecker{},
	})
	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Checks["db"].Status != "up" || resp.Checks["redis"].Status != "up" {
		t.Errorf("expected all checks up, got %+v", resp.Checks)
	}
}

func TestReadiness_DependencyDown(t *testing.T) {
	h := NewHandler(map[string]Checker{
		"db":    stubChecker{},
		"redis": stubChecker{err: errors.New("connection refused")},
	})
	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected degraded status, got %q", resp.Status)
	}
	if resp.Checks["redis"].Status != "down" || resp.Checks["redis"].Error == "" {
		t.Errorf("expected redis down with error, got %+v", resp.Checks["redis"])
	}
	if resp.Checks["db"].Status != "up" {
		t.Errorf("expected db up, got %+v", resp.Checks["db"])
	}
}

func TestReadiness_NoCheckers(t *testing.T) {
	h := NewHandler(nil)
	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
