package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nominal/internal/platform/metrics"
	"nominal/pkg/requestcontext"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

func callerEcho(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, requestcontext.Caller(r.Context()).String())
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid token sets caller",
			header:     "Bearer good",
			validator:  stubValidator{claims: &JWTClaims{Subject: "alice.near"}},
			wantStatus: http.StatusOK,
			wantBody:   "alice.near",
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Missing or invalid Authorization header",
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Missing or invalid Authorization header",
		},
		{
			name:       "rejected token",
			header:     "Bearer bad",
			validator:  stubValidator{err: errors.New("signature invalid")},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid or expired token",
		},
		{
			name:       "token without subject",
			header:     "Bearer empty",
			validator:  stubValidator{claims: &JWTClaims{}},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Token has no subject",
		},
		{
			name:       "subject with control characters",
			header:     "Bearer nul",
			validator:  stubValidator{claims: &JWTClaims{Subject: "bob\x00evil"}},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Token subject is not a valid identity",
		},
		{
			name:       "oversized subject",
			header:     "Bearer long",
			validator:  stubValidator{claims: &JWTClaims{Subject: strings.Repeat("x", 500)}},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Token subject is not a valid identity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireAuth(tt.validator, discard)(http.HandlerFunc(callerEcho))
			req := httptest.NewRequest(http.MethodPost, "/v1/names", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("propagates inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "req-1", seen)
		assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	})

	t.Run("mints id when absent or oversized", func(t *testing.T) {
		for _, inbound := range []string{"", strings.Repeat("x", maxRequestIDLen+1)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, inbound)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Len(t, seen, 36)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestRequestTimeAndClientMetadata(t *testing.T) {
	var (
		now time.Time
		ip  string
		ua  string
	)
	h := RequestTime(ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now = requestcontext.Now(r.Context())
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.WithinDuration(t, time.Now(), now, time.Second)
	assert.Equal(t, "203.0.113.7", ip)
	assert.Contains(t, ua, "Firefox")
}

func TestSummarizeUserAgent(t *testing.T) {
	assert.Equal(t, "unknown", SummarizeUserAgent(""))
	assert.Equal(t, "unknown", SummarizeUserAgent("   "))
	assert.True(t, strings.HasPrefix(
		SummarizeUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"), "bot "))
	assert.NotEmpty(t, SummarizeUserAgent("nominal-cli/1.0"))
}

func TestClientIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:5555"
	assert.Equal(t, "::1", ClientIPFromRequest(req))

	req.Header.Set("X-Real-IP", " 198.51.100.2 ")
	assert.Equal(t, "198.51.100.2", ClientIPFromRequest(req))
}

func TestRecovery(t *testing.T) {
	h := Recovery(discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLatencyUsesRoutePattern(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(Latency(m))
	r.Get("/v1/names/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/names/alice", nil))

	count := testutil.CollectAndCount(m.RequestDuration)
	require.Equal(t, 1, count)
	h, err := m.RequestDuration.GetMetricWithLabelValues("/v1/names/{name}", http.MethodGet, "404")
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestLoggerPassesThrough(t *testing.T) {
	h := Logger(discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

