package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeUsesHead(t *testing.T) {
	t.Parallel()

	var method atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProber(time.Second, "linkrover-test/1.0")
	res := p.Probe(context.Background(), srv.URL)

	require.NoError(t, res.Err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, http.MethodHead, method.Load())
}

func TestProbeFallsBackToGet(t *testing.T) {
	t.Parallel()

	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProber(time.Second, "")
	res := p.Probe(context.Background(), srv.URL)

	require.NoError(t, res.Err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, int64(1), gets.Load())
}

func TestProbeReportsFinalURLAfterRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	p := NewHTTPProber(time.Second, "")
	res := p.Probe(context.Background(), srv.URL+"/old")

	require.NoError(t, res.Err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, srv.URL+"/new", res.FinalURL)
}

func TestProbeStopsAtRedirectCap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	p := NewHTTPProber(time.Second, "")
	res := p.Probe(context.Background(), srv.URL+"/loop")

	require.NoError(t, res.Err)
	require.Equal(t, http.StatusFound, res.StatusCode)
}

func TestProbeSetsUserAgent(t *testing.T) {
	t.Parallel()

	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProber(time.Second, "linkrover/2.0")
	res := p.Probe(context.Background(), srv.URL)

	require.NoError(t, res.Err)
	require.Equal(t, "linkrover/2.0", ua.Load())
}

func TestProbeTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close() // refuse connections

	p := NewHTTPProber(time.Second, "")
	res := p.Probe(context.Background(), srv.URL)

	require.Error(t, res.Err)
	require.True(t, IsTransient(res))
}
