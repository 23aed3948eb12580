package puzzle

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/barisesen/puzzle-js/config"
	"github.com/barisesen/puzzle-js/gateway"
)

// Shell renders a compiled template's static HTML shell for one request.
// Sentinel tokens survive untouched — substitution happens downstream, in
// the resolver (waited content) and the streamer (chunked content).
type Shell func(r *http.Request) string

// Template is the compiled result of Compile: a static shell plus every
// fragment's resolved class and the machinery needed to serve it.
type Template struct {
	name string
	cfg  config.Config

	shell Shell

	waitedSets  []ReplaceSet
	chunkedSets []ReplaceSet
	hasChunked  bool
	bodyEndHTML string

	primary     *FragmentDescriptor
	staticRoute *StaticRoute

	contentStart map[string]string
	contentEnd   map[string]string

	hooks  PageHooks
	client gateway.Client
	logger *templateLogger
}

// Name returns the template's compile-time name.
func (t *Template) Name() string { return t.name }

// StaticRoute returns the template's bundled stylesheet route, or nil if
// the template declared no CSS assets.
func (t *Template) StaticRoute() *StaticRoute { return t.staticRoute }

// WaitedFragments returns the descriptors the compiler classified Waited.
func (t *Template) WaitedFragments() []*FragmentDescriptor {
	return fragmentsOf(t.waitedSets)
}

// ChunkedFragments returns the descriptors the compiler classified Chunked.
func (t *Template) ChunkedFragments() []*FragmentDescriptor {
	return fragmentsOf(t.chunkedSets)
}

func fragmentsOf(sets []ReplaceSet) []*FragmentDescriptor {
	out := make([]*FragmentDescriptor, 0, len(sets))
	for _, rs := range sets {
		out = append(out, rs.Fragment)
	}
	return out
}

// ServeHTTP renders the template for one request: Mode A (buffered) when
// the template has no chunked fragments, Mode B (HTTP chunked streaming)
// when it has at least one, per spec §4.2.
func (t *Template) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	t.hooks.OnCreate()
	t.hooks.OnRequest(r)
	defer t.hooks.OnResponseEnd()

	if t.hasChunked {
		t.serveChunked(w, r, requestID)
		return
	}
	t.serveBuffered(w, r, requestID)
}
