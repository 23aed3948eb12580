package puzzle

import (
	"strings"
	"testing"
	"time"
)

func TestStylesheetBundlerBundle(t *testing.T) {
	descriptors := []*FragmentDescriptor{
		{Name: "a", Config: &FragmentConfig{Assets: []Asset{{Name: "a.css", CSS: true, Content: "body { color: red; }"}}}},
		{Name: "b", Config: &FragmentConfig{Assets: []Asset{{Name: "b.css", CSS: true, Content: "p   {   color:  blue;  }"}}}},
	}

	bundler := newStylesheetBundler("home", 3600*time.Second, newTemplateLogger("home", nil))
	route, link := bundler.Bundle(descriptors)

	if route == nil {
		t.Fatal("Bundle() returned nil route for non-empty CSS")
	}
	if !strings.HasPrefix(route.Path, "/static/home.min.css") {
		t.Errorf("route.Path = %q", route.Path)
	}
	if !strings.Contains(link, route.Path) {
		t.Errorf("link %q does not reference route path %q", link, route.Path)
	}
	if !strings.Contains(route.CacheControl, "max-age=3600") {
		t.Errorf("CacheControl = %q, want max-age=3600", route.CacheControl)
	}
}

func TestStylesheetBundlerEmptySkipsRegistration(t *testing.T) {
	descriptors := []*FragmentDescriptor{
		{Name: "a", Config: &FragmentConfig{}},
		{Name: "b", Config: nil},
	}

	bundler := newStylesheetBundler("home", time.Hour, newTemplateLogger("home", nil))
	route, link := bundler.Bundle(descriptors)

	if route != nil || link != "" {
		t.Errorf("Bundle() = %v, %q, want nil, \"\"", route, link)
	}
}
