package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDAssigned(t *testing.T) {
	env := newTestEnv(t)

	w := env.authed(http.MethodGet, "/auth/me", "")
	id := w.Header().Get(requestIDHeader)
	if id == "" {
		t.Fatal("expected request id header")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("expected uuid request id, got %q", id)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected v7 uuid, got version %d", parsed.Version())
	}
	if !strings.Contains(env.logs.String(), "request_id="+id) {
		t.Fatal("expected request id in request log")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/jira/tasks", nil)
	req.Header.Set(requestIDHeader, "trace-abc-123")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "trace-abc-123" {
		t.Fatalf("expected caller request id to be kept, got %q", got)
	}
	if !strings.Contains(env.logs.String(), "request_id=trace-abc-123") {
		t.Fatal("expected caller request id in error log")
	}
}

func TestIncomingRequestIDRejectsUnsafeValues(t *testing.T) {
	for _, value := range []string{"has space", "tab\there", strings.Repeat("x", maxRequestIDLength+1), "café"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, value)
		got := incomingRequestID(req)
		if got == value {
			t.Fatalf("expected %q to be replaced", value)
		}
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("expected generated uuid, got %q", got)
		}
	}
}

func TestRequestLoggingRecordsStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/jira/tasks", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	logs := env.logs.String()
	if !strings.Contains(logs, "request complete") || !strings.Contains(logs, "status=401") {
		t.Fatalf("expected request completion log with status, got %s", logs)
	}
	if !strings.Contains(logs, `route="GET /jira/tasks"`) {
		t.Fatalf("expected matched route in request log, got %s", logs)
	}
}
