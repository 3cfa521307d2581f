package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/path", "example.com"},
		{"http://docs.example.com:8080/x", "docs.example.com"},
		{"example.com/page", "example.com"},
		{"://not a url", "unknown"},
		{"", "unknown"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SanitizeHost(tc.in), tc.in)
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2xx", StatusClass(204))
	require.Equal(t, "3xx", StatusClass(301))
	require.Equal(t, "4xx", StatusClass(404))
	require.Equal(t, "5xx", StatusClass(503))
	require.Equal(t, "other", StatusClass(0))
}

// TestObserveBeforeInit ensures the observe helpers are safe before Init.
func TestObserveBeforeInit(t *testing.T) {
	ObserveProbe("https://example.com", 200)
	ObserveTransportError()
	ObserveHTTPRequest("GET", "/healthz", 200, time.Millisecond)
	IncActiveWorkers()
	DecActiveWorkers()
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()
	ObserveProbe("https://example.com", 200)
	ObserveHTTPRequest("GET", "/healthz", 200, time.Millisecond)
	IncActiveWorkers()
	DecActiveWorkers()
	require.NotNil(t, Handler())
}
