package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteAddrAfter(t *testing.T, trusted []string, remote string, headers map[string]string) string {
	t.Helper()
	var got string
	h := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.RemoteAddr
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestTrustedRealIP(t *testing.T) {
	trusted := []string{"10.0.0.0/8", "192.168.1.1", "not-a-cidr"}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted peer keeps address", "203.0.113.9:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:5000"},
		{"trusted cidr uses X-Real-IP", "10.1.2.3:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted single address", "192.168.1.1:80", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"invalid X-Real-IP falls through to XFF", "10.1.2.3:5000", map[string]string{"X-Real-IP": "junk", "X-Forwarded-For": "5.6.7.8"}, "5.6.7.8"},
		{"XFF skips trusted hops from the right", "10.1.2.3:5000", map[string]string{"X-Forwarded-For": "9.9.9.9, 5.6.7.8, 10.0.0.7"}, "5.6.7.8"},
		{"XFF garbage keeps address", "10.1.2.3:5000", map[string]string{"X-Forwarded-For": "nope"}, "10.1.2.3:5000"},
		{"no headers keeps address", "10.1.2.3:5000", nil, "10.1.2.3:5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remoteAddrAfter(t, trusted, tt.remote, tt.headers))
		})
	}
}

func TestTrustedRealIP_NoTrustedProxies(t *testing.T) {
	got := remoteAddrAfter(t, nil, "10.1.2.3:5000", map[string]string{"X-Real-IP": "1.2.3.4"})
	assert.Equal(t, "10.1.2.3:5000", got)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/x", nil)
	req.RemoteAddr = "1.2.3.4:999"
	req.Header.Set("User-Agent", "ua-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	for _, want := range []string{"method=POST", "path=/api/x", "status=418", "bytes=5", "ip=1.2.3.4", "user_agent=ua-test"} {
		assert.True(t, strings.Contains(out, want), "missing %q in %s", want, out)
	}
}

func TestLogger_ServerErrorsLogAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "level=ERROR")
}
