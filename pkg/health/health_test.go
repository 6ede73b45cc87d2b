package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func staticCheck(status Status) Check {
	return func(context.Context) ComponentHealth {
		return ComponentHealth{Status: status}
	}
}

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]Status
		want     Status
	}{
		{"all up", map[string]Status{"a": StatusUp, "b": StatusUp}, StatusUp},
		{"one degraded", map[string]Status{"a": StatusUp, "b": StatusDegraded}, StatusDegraded},
		{"one down", map[string]Status{"a": StatusUp, "b": StatusDown}, StatusDown},
		{"down beats degraded", map[string]Status{"a": StatusDegraded, "b": StatusDown}, StatusDown},
		{"no checks", map[string]Status{}, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, status := range tt.statuses {
				c.Register(name, staticCheck(status))
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %q, want %q", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.statuses) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.statuses))
			}
		})
	}
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	c := NewChecker()
	c.Register("dep", staticCheck(StatusUp))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready code = %d, want 200", rec.Code)
	}

	c.Register("broken", staticCheck(StatusDown))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready code = %d, want 503 when a dependency is down", rec.Code)
	}
}

func TestLiveHandlerAlwaysOK(t *testing.T) {
	c := NewChecker()
	c.Register("broken", staticCheck(StatusDown))

	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live code = %d, want 200 regardless of dependencies", rec.Code)
	}
}
