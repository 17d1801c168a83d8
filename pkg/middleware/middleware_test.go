package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/museum-tickets/pkg/logger"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen interface{}
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(logger.RequestIDKey)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == nil || rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected generated request id, got %v", seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Fatalf("expected incoming request id, got %v", seen)
	}
}

func TestRequestID_RejectsOversizedOrUnprintable(t *testing.T) {
	var seen interface{}
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(logger.RequestIDKey)
	}))

	for _, bad := range []string{strings.Repeat("a", 200), "with space", "tab\there"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == bad {
			t.Fatalf("request id %q should have been replaced", bad)
		}
	}
}

func TestHealth_Liveness(t *testing.T) {
	calls := 0
	h := Health(map[string]HealthCheck{
		"postgres": func(context.Context) error { calls++; return errors.New("down") },
	})(http.NotFoundHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}
	if calls != 0 {
		t.Fatal("liveness must not run dependency checks")
	}
}

func TestHealth_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		redisErr   error
		wantStatus int
		wantRedis  string
	}{
		{"all ready", nil, http.StatusOK, "ok"},
		{"redis down", errors.New("connection refused"), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Health(map[string]HealthCheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return tt.redisErr },
			})(http.NotFoundHandler())

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d %s", tt.wantStatus, rr.Code, rr.Body.String())
			}

			var report struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
				t.Fatal(err)
			}
			if report.Checks["postgres"] != "ok" || report.Checks["redis"] != tt.wantRedis {
				t.Fatalf("unexpected checks %v", report.Checks)
			}
		})
	}
}

func TestHealth_PassesOtherPaths(t *testing.T) {
	h := Health(nil)(http.NotFoundHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/orders", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected request to reach next handler, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReplaysSuccess(t *testing.T) {
	calls := 0
	h := IdempotencyMiddleware(NewMemoryIdempotencyStore(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"confirmed":true}`))
	}))

	send := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Idempotency-Key", key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	first := send("/v1/orders/1/checkout", "k1")
	second := send("/v1/orders/1/checkout", "k1")
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Body.String() != first.Body.String() || second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed body, got %q", second.Body.String())
	}

	send("/v1/orders/2/checkout", "k1")
	if calls != 2 {
		t.Fatal("same key on another path must not replay")
	}
}

func TestIdempotencyMiddleware_DoesNotCacheFailures(t *testing.T) {
	calls := 0
	h := IdempotencyMiddleware(NewMemoryIdempotencyStore(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/orders/1/checkout", nil)
		req.Header.Set("Idempotency-Key", "k1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("declined responses must be retried, handler ran %d times", calls)
	}
}
