package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/cardbook/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		key  string
		want int
	}{
		{"disabled", nil, "", http.StatusNoContent},
		{"missing", []string{"k1"}, "", http.StatusUnauthorized},
		{"invalid", []string{"k1"}, "nope", http.StatusForbidden},
		{"valid second key", []string{"k1", "k2"}, "k2", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.SecurityConfig{APIKeys: tt.keys}
			h := APIKeyAuth(cfg)(okHandler)

			req := httptest.NewRequest(http.MethodPost, "/api/export", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestTrustedRealIP(t *testing.T) {
	h := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "bogus"})

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted keeps remote", "203.0.113.9:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:1234"},
		{"trusted real ip", "10.1.2.3:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted single address", "192.168.1.5:80", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.1.1.1"}, "5.6.7.8"},
		{"trusted invalid header", "10.1.2.3:1234", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.RemoteAddr })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h(next).ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "buckets are per IP")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("1.1.1.1"), "one token refills in 30s at 2/min")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1)
	h := rl.Middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestLogger_PassesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
