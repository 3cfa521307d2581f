package checker

import (
	"context"
	"net/http"
	"time"

	"github.com/JakeFAU/linkrover/internal/metrics"
)

const maxRedirects = 5

// HTTPProber validates reachability with a HEAD request, falling back to GET
// for servers that reject HEAD. Redirect chains are followed up to
// maxRedirects and the final URL is reported so the engine can distinguish
// Valid from Redirected outcomes.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

// NewHTTPProber builds a prober with the given per-request timeout.
func NewHTTPProber(timeout time.Duration, userAgent string) *HTTPProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HTTPProber{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
}

// Probe performs one validation attempt against target.
func (p *HTTPProber) Probe(ctx context.Context, target string) ProbeResult {
	res := p.do(ctx, http.MethodHead, target)
	if res.Err == nil && headRejected(res.StatusCode) {
		res = p.do(ctx, http.MethodGet, target)
	}
	return res
}

func (p *HTTPProber) do(ctx context.Context, method, target string) ProbeResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return ProbeResult{Err: err, Duration: time.Since(start)}
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveTransportError()
		return ProbeResult{Err: err, Duration: duration}
	}
	defer resp.Body.Close()

	metrics.ObserveProbe(target, resp.StatusCode)
	return ProbeResult{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Duration:   duration,
	}
}

// headRejected reports whether the server refused the HEAD method outright.
func headRejected(code int) bool {
	return code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented
}
