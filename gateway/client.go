// Package gateway implements the HTTP client contract the engine consumes
// from upstream fragment gateways (spec §6): placeholder fetch, content
// fetch, and static asset fetch. It is the concrete, external-collaborator
// side of the engine — the compiler and streamer only ever depend on the
// Client interface, never on *http.Client directly.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/barisesen/puzzle-js/internal/obs"
)

// FetchOutcome is the resolved result of a fragment content fetch. A
// transport error or timeout resolves to Status 500 with an empty HTML
// map and Err set — callers substitute CONTENT_NOT_FOUND_ERROR for every
// missing partial, per spec §5.
type FetchOutcome struct {
	Status  int
	Headers http.Header
	HTML    map[string]string
	Model   map[string]any
	Err     error
}

// Client is the interface the engine depends on. *HTTPClient is the
// default, concrete implementation; tests substitute a fake (see
// internal/gatewaytest).
type Client interface {
	FetchPlaceholder(ctx context.Context, fragmentURL string) string
	FetchContent(ctx context.Context, fragmentURL, renderURL string, attrs url.Values, timeout time.Duration) FetchOutcome
	FetchAsset(ctx context.Context, fragmentURL, fileName string) string
}

// HTTPClient is the default Client, backed by a real *http.Client.
type HTTPClient struct {
	http *http.Client
	log  *obs.Logger
}

// NewClient wraps hc. If hc is nil, http.DefaultClient is used. If log is
// nil, failures are swallowed without being logged.
func NewClient(hc *http.Client, log *obs.Logger) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = obs.Nop()
	}
	return &HTTPClient{http: hc, log: log}
}

// FetchPlaceholder performs GET <fragmentURL>/placeholder. Any non-2xx
// response or transport error resolves to an empty string, per spec §6.
func (c *HTTPClient) FetchPlaceholder(ctx context.Context, fragmentURL string) string {
	body, _, err := c.get(ctx, strings.TrimRight(fragmentURL, "/")+"/placeholder")
	if err != nil {
		c.log.Recovered(fmt.Errorf("placeholder fetch: %w", err))
		return ""
	}
	return body
}

// FetchAsset performs GET <fragmentURL>/static/<fileName>. Any non-2xx
// response or transport error resolves to an empty string, per spec §6.
func (c *HTTPClient) FetchAsset(ctx context.Context, fragmentURL, fileName string) string {
	body, _, err := c.get(ctx, strings.TrimRight(fragmentURL, "/")+"/static/"+fileName)
	if err != nil {
		c.log.Recovered(fmt.Errorf("asset fetch: %w", err))
		return ""
	}
	return body
}

// FetchContent performs GET <fragmentURL><renderURL>?<attrs>&__renderMode=stream
// with attrs excluding the reserved fragment attributes (the caller is
// expected to have already filtered those). The upstream's status and
// headers are always propagated on a successful round trip — even a
// non-2xx status, since a primary fragment's status/headers are meant to
// flow through to the client (spec §5's primary-fragment protocol,
// including the 301 redirect case of scenario S2).
func (c *HTTPClient) FetchContent(ctx context.Context, fragmentURL, renderURL string, attrs url.Values, timeout time.Duration) FetchOutcome {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := url.Values{}
	for k, v := range attrs {
		q[k] = v
	}
	q.Set("__renderMode", "stream")

	target := strings.TrimRight(fragmentURL, "/") + renderURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		c.log.Recovered(fmt.Errorf("fragment content fetch: %w", err))
		return FetchOutcome{Status: http.StatusInternalServerError, HTML: map[string]string{}, Err: err}
	}

	// Redirects are not followed, so a 3xx reaches the caller with its own
	// status and Location header.
	hc := *c.http
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Recovered(fmt.Errorf("fragment content fetch: %w", err))
		return FetchOutcome{Status: http.StatusInternalServerError, HTML: map[string]string{}, Err: err}
	}
	defer resp.Body.Close()

	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.log.Recovered(fmt.Errorf("fragment content decode: %w", err))
		return FetchOutcome{Status: http.StatusInternalServerError, HTML: map[string]string{}, Err: err}
	}

	out := FetchOutcome{Status: resp.StatusCode, Headers: resp.Header, HTML: map[string]string{}}
	for k, v := range raw {
		if k == "model" {
			var model map[string]any
			if err := json.Unmarshal(v, &model); err == nil {
				out.Model = model
			}
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out.HTML[k] = s
		}
	}
	return out
}

func (c *HTTPClient) get(ctx context.Context, target string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(data), resp.StatusCode, nil
}
