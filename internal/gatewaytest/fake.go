// Package gatewaytest provides a scripted fake of gateway.Client for
// deterministic tests of the compiler and streaming handler, analogous to
// the teacher library's httptest-backed TestAction helper.
package gatewaytest

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/barisesen/puzzle-js/gateway"
)

// Script is the scripted response for one fragment URL.
type Script struct {
	Content     map[string]string
	Model       map[string]any
	Status      int
	Headers     http.Header
	Placeholder string
	Assets      map[string]string
	Delay       time.Duration
	Err         error
}

// Fake is a gateway.Client driven entirely by pre-registered Scripts.
type Fake struct {
	mu      sync.Mutex
	scripts map[string]*Script
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{scripts: make(map[string]*Script)}
}

// Script registers s as the response for fragmentURL.
func (f *Fake) Script(fragmentURL string, s *Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[fragmentURL] = s
}

func (f *Fake) lookup(fragmentURL string) *Script {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scripts[fragmentURL]
}

func (f *Fake) wait(ctx context.Context, s *Script) error {
	if s.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchPlaceholder implements gateway.Client.
func (f *Fake) FetchPlaceholder(ctx context.Context, fragmentURL string) string {
	s := f.lookup(fragmentURL)
	if s == nil {
		return ""
	}
	if err := f.wait(ctx, s); err != nil {
		return ""
	}
	return s.Placeholder
}

// FetchAsset implements gateway.Client.
func (f *Fake) FetchAsset(ctx context.Context, fragmentURL, fileName string) string {
	s := f.lookup(fragmentURL)
	if s == nil || s.Assets == nil {
		return ""
	}
	if err := f.wait(ctx, s); err != nil {
		return ""
	}
	return s.Assets[fileName]
}

// FetchContent implements gateway.Client.
func (f *Fake) FetchContent(ctx context.Context, fragmentURL, renderURL string, attrs url.Values, timeout time.Duration) gateway.FetchOutcome {
	s := f.lookup(fragmentURL)
	if s == nil {
		return gateway.FetchOutcome{Status: http.StatusInternalServerError, HTML: map[string]string{}}
	}
	if err := f.wait(ctx, s); err != nil {
		return gateway.FetchOutcome{Status: http.StatusInternalServerError, HTML: map[string]string{}, Err: err}
	}
	if s.Err != nil {
		return gateway.FetchOutcome{Status: http.StatusInternalServerError, HTML: map[string]string{}, Err: s.Err}
	}
	status := s.Status
	if status == 0 {
		status = http.StatusOK
	}
	return gateway.FetchOutcome{Status: status, Headers: s.Headers, HTML: s.Content, Model: s.Model}
}
