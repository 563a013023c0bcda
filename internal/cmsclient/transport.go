package cmsclient

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"folio/internal/metrics"
)

// Transport logs and times every upstream call. It wraps Base, or
// http.DefaultTransport when Base is nil.
type Transport struct {
	Base    http.RoundTripper
	Metrics *metrics.Metrics // optional
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		slog.Warn("cms request failed", "method", req.Method, "url", req.URL.Redacted(), "duration", elapsed.String(), "error", err)
	case resp.StatusCode >= 500:
		outcome = "server_error"
		slog.Warn("cms request", "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode, "duration", elapsed.String())
	case resp.StatusCode >= 400:
		outcome = "client_error"
		slog.Info("cms request", "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode, "duration", elapsed.String())
	default:
		slog.Debug("cms request", "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode, "duration", elapsed.String())
	}
	if t.Metrics != nil {
		t.Metrics.ObserveUpstream(outcome, elapsed)
	}
	return resp, err
}

// NewHTTPClient returns an instrumented client with the given timeout.
func NewHTTPClient(timeout time.Duration, m *metrics.Metrics) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Metrics: m},
	}
}

// AnalyticsProxy forwards the site's same-origin analytics beacons to the
// CMS ingest endpoint. The path is preserved; only the host changes.
func AnalyticsProxy(baseURL string, rt http.RoundTripper) (http.Handler, error) {
	target, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse cms url: %w", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = rt
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Warn("analytics proxy", "error", err)
		// Beacons are fire-and-forget; the browser never reads this.
		w.WriteHeader(http.StatusBadGateway)
	}
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
	}
	return proxy, nil
}
