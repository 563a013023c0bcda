package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"folio/internal/metrics"
)

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestSecureHeaders(t *testing.T) {
	next, _ := okHandler()
	rr := httptest.NewRecorder()
	SecureHeaders(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestObserveRecordsStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Observe(metrics.New("test")))
	r.Get("/posts/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/posts/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestStatusWriterDefaultsTo200(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	sw.Write([]byte("x"))
	sw.WriteHeader(http.StatusTeapot)
	if sw.status != http.StatusOK {
		t.Errorf("status = %d, want the first write's 200", sw.status)
	}
}

func TestCORS(t *testing.T) {
	next, _ := okHandler()
	h := CORS([]string{"https://example.com"})(next)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://example.com", "https://example.com"},
		{"https://evil.test", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set("Origin", tt.origin)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 100*time.Millisecond)
	defer rl.Stop()

	next, _ := okHandler()
	h := rl.Middleware(next)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/analytics", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	if !rl.allow("10.0.0.2") {
		t.Error("another client should be allowed")
	}

	time.Sleep(150 * time.Millisecond)
	if !rl.allow("10.0.0.1") {
		t.Error("client should be allowed once the window passes")
	}
	rl.forgetIdle()
}

func TestRateLimiter_IgnoresClientForwardedFor(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	next, _ := okHandler()
	h := rl.Middleware(next)

	var last int
	for i := range 5 {
		req := httptest.NewRequest(http.MethodPost, "/api/analytics", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d, 203.0.113.7", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("rotating the client-supplied hop: last status = %d, want 429", last)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded chain", "1.1.1.1, 2.2.2.2", "", "3.3.3.3:1", "2.2.2.2"},
		{"single hop", "5.5.5.5", "", "3.3.3.3:1", "5.5.5.5"},
		{"empty last hop", "1.1.1.1, ", "", "3.3.3.3:1", "3.3.3.3"},
		{"real ip", "", "4.4.4.4", "3.3.3.3:1", "4.4.4.4"},
		{"remote addr", "", "", "3.3.3.3:1", "3.3.3.3"},
		{"ipv6 remote", "", "", "[::1]:8080", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
