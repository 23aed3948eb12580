package puzzle

import (
	"errors"
	"strings"
	"testing"
)

func TestSplitTemplateSourceNotFound(t *testing.T) {
	_, _, err := splitTemplateSource(`<div>no template here</div>`)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("error = %v, want ErrTemplateNotFound", err)
	}
}

func TestSplitTemplateSourceExtractsBody(t *testing.T) {
	src := `<template><html><body><p>hi</p></body></html></template><script>console.log(1)</script>`
	body, script, err := splitTemplateSource(src)
	if err != nil {
		t.Fatalf("splitTemplateSource() error = %v", err)
	}
	if !strings.Contains(body, "<p>hi</p>") {
		t.Errorf("body = %q, missing expected content", body)
	}
	if !strings.Contains(script, "console.log(1)") {
		t.Errorf("script = %q, missing expected content", script)
	}
}

func TestDomViewFragmentsAndInHead(t *testing.T) {
	view, err := newDOMView(`<html><head><fragment name="a" from="gw"></fragment></head><body><fragment name="b" from="gw"></fragment></body></html>`)
	if err != nil {
		t.Fatalf("newDOMView() error = %v", err)
	}

	frags := view.Fragments()
	if frags.Length() != 2 {
		t.Fatalf("Fragments().Length() = %d, want 2", frags.Length())
	}

	first := frags.Eq(0)
	second := frags.Eq(1)
	if !view.InHead(first) {
		t.Error("expected first fragment to be InHead")
	}
	if view.InHead(second) {
		t.Error("expected second fragment not to be InHead")
	}
}

func TestDomViewNormalizeEmptyTags(t *testing.T) {
	view, err := newDOMView(`<html><body><div id="x"></div><br></body></html>`)
	if err != nil {
		t.Fatalf("newDOMView() error = %v", err)
	}
	view.NormalizeEmptyTags()
	// Serialize without String()'s inter-tag whitespace collapse, which
	// would remove the inserted space again.
	html, err := view.doc.Html()
	if err != nil {
		t.Fatalf("Html() error = %v", err)
	}
	if strings.Contains(html, `<div id="x"></div>`) {
		t.Errorf("empty div was not normalized: %s", html)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("<div>hi</div>  \n  <p>x</p>")
	want := "<div>hi</div><p>x</p>"
	if got != want {
		t.Errorf("collapseWhitespace() = %q, want %q", got, want)
	}
}
