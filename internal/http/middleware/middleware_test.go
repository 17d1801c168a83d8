package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/museum-tickets/internal/platform/auth"
)

func TestVisitorSession_IssuesAndReusesCookie(t *testing.T) {
	sessions := auth.NewSessions("test-secret", 0)
	var seen string
	h := VisitorSession(sessions, SessionConfig{CookieName: "visitor_session"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = SessionID(r) }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || seen == "" {
		t.Fatalf("expected a new session cookie, got %v (session %q)", cookies, seen)
	}
	if cookies[0].MaxAge != 0 || !cookies[0].HttpOnly {
		t.Fatalf("expected http-only session cookie without max age, got %+v", cookies[0])
	}
	first := seen

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != first {
		t.Fatalf("expected session %q to be reused, got %q", first, seen)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("valid cookie must not be reissued")
	}
}

func TestVisitorSession_ReplacesInvalidCookie(t *testing.T) {
	sessions := auth.NewSessions("test-secret", time.Hour)
	var seen string
	h := VisitorSession(sessions, SessionConfig{CookieName: "visitor_session"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = SessionID(r) }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "visitor_session", Value: "forged"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || seen == "" {
		t.Fatal("expected invalid cookie to be replaced")
	}
	if cookies[0].MaxAge != 3600 {
		t.Fatalf("expected max age 3600, got %d", cookies[0].MaxAge)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(NewMemoryCounter(), RateLimitConfig{
		Requests: 2,
		Window:   time.Minute,
		SkipFunc: OnlyPOST,
	})
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/1", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatal("GET requests must not be limited")
	}
}

func TestMemoryCounter_WindowResets(t *testing.T) {
	c := NewMemoryCounter()
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Incr(context.Background(), "k", time.Minute)
	if n, _ := c.Incr(context.Background(), "k", time.Minute); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	now = now.Add(time.Minute)
	if n, _ := c.Incr(context.Background(), "k", time.Minute); n != 1 {
		t.Fatalf("expected reset to 1, got %d", n)
	}
}

func TestGetClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct peer ignores forwarded header", "198.51.100.4:5555", "203.0.113.7", "198.51.100.4"},
		{"trusted proxy", "10.0.0.1:443", "203.0.113.7", "203.0.113.7"},
		{"chained trusted proxies", "10.0.0.1:443", "203.0.113.7, 192.168.1.1, 10.1.2.3", "203.0.113.7"},
		{"spoofed left-most hop", "10.0.0.1:443", "1.2.3.4, 203.0.113.7", "203.0.113.7"},
		{"trusted proxy without header", "10.0.0.1:443", "", "10.0.0.1"},
		{"garbage header", "10.0.0.1:443", "not-an-ip", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if ip := getClientIP(req, trusted); ip != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, ip)
			}
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Fatal("expected error for bad CIDR")
	}
	if _, err := ParseTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Fatal("expected error for hostname")
	}
}

func TestRateLimiter_ForwardedForDoesNotBypassLimit(t *testing.T) {
	rl := NewRateLimiter(NewMemoryCounter(), RateLimitConfig{
		Requests: 1,
		Window:   time.Minute,
		SkipFunc: OnlyPOST,
	})
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
		req.RemoteAddr = "198.51.100.4:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusCreated {
			allowed++
		}
	}
	if allowed != 1 {
		t.Fatalf("expected 1 allowed request from one peer, got %d", allowed)
	}
}

func TestMemoryCounter_SweepsExpiredWindows(t *testing.T) {
	c := NewMemoryCounter()
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		c.Incr(ctx, fmt.Sprintf("ip:%d", i), time.Minute)
	}
	if len(c.windows) != 1000 {
		t.Fatalf("expected 1000 live windows, got %d", len(c.windows))
	}

	now = now.Add(time.Minute)
	c.Incr(ctx, "ip:new", time.Minute)
	if len(c.windows) != 1 {
		t.Fatalf("expected expired windows to be swept, %d left", len(c.windows))
	}
}
