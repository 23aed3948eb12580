package puzzle

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/barisesen/puzzle-js/internal/gatewaytest"
)

func TestServeChunkedStreamsPlaceholderThenContent(t *testing.T) {
	fake := gatewaytest.New()
	fake.Script("http://reco", &gatewaytest.Script{
		Content:     map[string]string{"main": "<ul><li>item</li></ul>"},
		Placeholder: "<p>loading</p>",
	})

	src := `<template><html><body><fragment name="reco" from="reco-gw"></fragment></body></html></template>`
	tmpl, err := Compile(context.Background(), src, CompileOptions{
		Name:     "x",
		Client:   fake,
		Resolver: fixedResolver{"reco": {Render: RenderConfig{URL: "/", Placeholder: true}}},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	rec := httptest.NewRecorder()
	tmpl.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "loading") {
		t.Errorf("body missing placeholder: %s", body)
	}
	if !strings.Contains(body, "<li>item</li>") {
		t.Errorf("body missing fetched content: %s", body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "</body></html>") {
		t.Errorf("body does not end with closing tags: %s", body)
	}
}

func TestServeChunkedEmitsInCompletionOrder(t *testing.T) {
	fake := gatewaytest.New()
	fake.Script("http://slow", &gatewaytest.Script{
		Content: map[string]string{"main": "<p>slow</p>"},
		Delay:   30 * time.Millisecond,
	})
	fake.Script("http://fast", &gatewaytest.Script{
		Content: map[string]string{"main": "<p>fast</p>"},
	})

	src := `<template><html><body>
<fragment name="slow" from="slow-gw"></fragment>
<fragment name="fast" from="fast-gw"></fragment>
</body></html></template>`

	tmpl, err := Compile(context.Background(), src, CompileOptions{
		Name:   "x",
		Client: fake,
		Resolver: fixedResolver{
			"slow": {Render: RenderConfig{URL: "/"}},
			"fast": {Render: RenderConfig{URL: "/"}},
		},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	rec := httptest.NewRecorder()
	tmpl.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	fastIdx := strings.Index(body, "<p>fast</p>")
	slowIdx := strings.Index(body, "<p>slow</p>")
	if fastIdx == -1 || slowIdx == -1 {
		t.Fatalf("missing expected content in body: %s", body)
	}
	if fastIdx > slowIdx {
		t.Errorf("expected fast fragment to stream before slow fragment; body: %s", body)
	}
}

func TestServeChunkedEmitsContentDivAndTwoSelectorMover(t *testing.T) {
	fake := gatewaytest.New()
	fake.Script("http://reco", &gatewaytest.Script{
		Content: map[string]string{"main": "<ul><li>item</li></ul>"},
	})

	src := `<template><html><body><fragment name="reco" from="reco-gw"></fragment></body></html></template>`
	tmpl, err := Compile(context.Background(), src, CompileOptions{
		Name:     "x",
		Client:   fake,
		Resolver: fixedResolver{"reco": {Render: RenderConfig{URL: "/"}}},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	rec := httptest.NewRecorder()
	tmpl.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	wantDiv := `<div style="display: none;" puzzle-fragment="reco" puzzle-chunk-key="reco_main"><ul><li>item</li></ul></div>`
	if !strings.Contains(body, wantDiv) {
		t.Errorf("body missing hidden content div: %s", body)
	}
	wantMover := `<script>$p('[puzzle-chunk="reco_main"]','[puzzle-chunk-key="reco_main"]');</script>`
	if !strings.Contains(body, wantMover) {
		t.Errorf("body missing two-selector mover script: %s", body)
	}
}

func TestServeChunkedSelfReplaceOmitsMoverForMain(t *testing.T) {
	fake := gatewaytest.New()
	fake.Script("http://reco", &gatewaytest.Script{
		Content: map[string]string{"main": "<p>replaced</p>"},
	})

	src := `<template><html><body><fragment name="reco" from="reco-gw"></fragment></body></html></template>`
	tmpl, err := Compile(context.Background(), src, CompileOptions{
		Name:     "x",
		Client:   fake,
		Resolver: fixedResolver{"reco": {Render: RenderConfig{URL: "/", SelfReplace: true}}},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	rec := httptest.NewRecorder()
	tmpl.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `puzzle-chunk-key="reco_main"`) {
		t.Errorf("body missing content div: %s", body)
	}
	if strings.Contains(body, `$p('[puzzle-chunk="reco_main"]'`) {
		t.Errorf("mover script should be omitted for selfReplace main partial: %s", body)
	}
}

func TestServeChunkedUpstreamFailureLeavesNotFoundInContentDiv(t *testing.T) {
	fake := gatewaytest.New()
	fake.Script("http://reco", &gatewaytest.Script{Err: errors.New("upstream down")})

	src := `<template><html><body><fragment name="reco" from="reco-gw"></fragment></body></html></template>`
	tmpl, err := Compile(context.Background(), src, CompileOptions{
		Name:     "x",
		Client:   fake,
		Resolver: fixedResolver{"reco": {Render: RenderConfig{URL: "/"}}},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	rec := httptest.NewRecorder()
	tmpl.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	wantDiv := `puzzle-chunk-key="reco_main">CONTENT_NOT_FOUND_ERROR</div>`
	if !strings.Contains(body, wantDiv) {
		t.Errorf("body missing CONTENT_NOT_FOUND_ERROR inside content div: %s", body)
	}
}

func TestServeChunkedModelScriptOnlyWhenModelPresent(t *testing.T) {
	fake := gatewaytest.New()
	fake.Script("http://reco", &gatewaytest.Script{
		Content: map[string]string{"main": "<p>x</p>"},
		Model:   map[string]any{"count": 3},
	})
	fake.Script("http://plain", &gatewaytest.Script{
		Content: map[string]string{"main": "<p>y</p>"},
	})

	src := `<template><html><body>
<fragment name="reco" from="reco-gw"></fragment>
<fragment name="plain" from="plain-gw"></fragment>
</body></html></template>`
	tmpl, err := Compile(context.Background(), src, CompileOptions{
		Name:   "x",
		Client: fake,
		Resolver: fixedResolver{
			"reco":  {Render: RenderConfig{URL: "/"}},
			"plain": {Render: RenderConfig{URL: "/"}},
		},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	rec := httptest.NewRecorder()
	tmpl.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `<script puzzle-model="reco" type="application/json">{"count":3}</script>`) {
		t.Errorf("body missing model script for reco: %s", body)
	}
	if strings.Contains(body, `puzzle-model="plain"`) {
		t.Errorf("model script should be omitted for plain (no model): %s", body)
	}
}

func TestSplitShellForStreaming(t *testing.T) {
	head, tail := splitShellForStreaming("<html><body><p>x</p></body></html>")
	if head != "<html><body><p>x</p>" {
		t.Errorf("head = %q", head)
	}
	if tail != "</body></html>" {
		t.Errorf("tail = %q", tail)
	}
}
