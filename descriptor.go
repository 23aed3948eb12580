package puzzle

import (
	"fmt"
	"sync"
	"time"
)

// AssetLocation is where an asset or dependency is injected into the
// document.
type AssetLocation string

const (
	LocationHead         AssetLocation = "head"
	LocationBodyStart    AssetLocation = "body-start"
	LocationContentStart AssetLocation = "content-start"
	LocationContentEnd   AssetLocation = "content-end"
	LocationBodyEnd      AssetLocation = "body-end"
)

// InjectType is how an asset's body reaches the client: linked externally
// or inlined into the document.
type InjectType string

const (
	InjectExternal InjectType = "external"
	InjectInline   InjectType = "inline"
)

// ExecuteType controls the <script> execution attribute emitted for an
// asset. ExecuteSync emits no attribute.
type ExecuteType string

const (
	ExecuteSync  ExecuteType = ""
	ExecuteAsync ExecuteType = "async"
	ExecuteDefer ExecuteType = "defer"
)

// Asset is a single JS or CSS dependency declared by a fragment's gateway
// configuration.
type Asset struct {
	Name        string
	Location    AssetLocation
	InjectType  InjectType
	Link        string
	Content     string
	ExecuteType ExecuteType
	// CSS marks a CSS asset; such assets never appear inline in the
	// document — they are concatenated and minified by the Stylesheet
	// Bundler instead of being individually injected.
	CSS bool
}

// Dependency is a shared script pushed into <head>, deduplicated by Name
// across every fragment that declares it.
type Dependency struct {
	Name        string
	InjectType  InjectType
	Link        string
	Content     string
	ExecuteType ExecuteType
}

// RenderConfig is the gateway-exposed rendering contract for a fragment.
type RenderConfig struct {
	URL         string
	Placeholder bool
	Static      bool
	SelfReplace bool
	Timeout     time.Duration
}

// FragmentConfig is the gateway-supplied metadata joined onto a
// FragmentDescriptor once the surrounding system has discovered it.
// A nil *FragmentConfig on a descriptor means the gateway was unreachable
// or the fragment is not exposed — see Unfetched in compiler.go.
type FragmentConfig struct {
	Assets       []Asset
	Dependencies []Dependency
	Render       RenderConfig
}

// FragmentDescriptor is the in-memory record of a declared fragment: its
// name, owning gateway, gateway-supplied configuration (if known), and its
// role flags.
//
// Invariants (enforced by FragmentRegistry):
//   - at most one descriptor is Primary
//   - Primary implies ShouldWait
//   - Static and (ShouldWait || chunked) are mutually exclusive per
//     occurrence, enforced by the Planner's classification, not here
type FragmentDescriptor struct {
	Name        string
	From        string
	Config      *FragmentConfig
	Primary     bool
	ShouldWait  bool
	FragmentURL string
}

// FragmentOccurrence is a single <fragment> element found in the template.
// Partial defaults to "main". Attrs holds every attribute except the
// reserved ones (from, name, partial, primary, shouldwait), which are never
// forwarded to the upstream gateway as query parameters.
type FragmentOccurrence struct {
	Name       string
	From       string
	Partial    string
	Primary    bool
	ShouldWait bool
	Attrs      map[string]string
}

// reservedAttrs are never forwarded to the upstream as query parameters and
// never copied into FragmentOccurrence.Attrs.
var reservedAttrs = map[string]bool{
	"from":       true,
	"name":       true,
	"partial":    true,
	"primary":    true,
	"shouldwait": true,
}

// FragmentRegistry owns every FragmentDescriptor discovered while compiling
// a template. It is created fresh per compilation; there is no global
// registry.
type FragmentRegistry struct {
	mu          sync.Mutex
	descriptors map[string]*FragmentDescriptor
	primary     string
}

// NewFragmentRegistry creates an empty registry.
func NewFragmentRegistry() *FragmentRegistry {
	return &FragmentRegistry{descriptors: make(map[string]*FragmentDescriptor)}
}

// Upsert creates or updates the descriptor for occ.Name, applying the
// primary/shouldWait promotion rules from spec §4.1:
//
//	shouldWait = primary || shouldwait attribute || parent is <head>
//
// inHead is supplied by the caller (the Planner, which knows the DOM
// position of the occurrence); occ.ShouldWait already reflects the
// "shouldwait" attribute.
//
// Returns ErrMultiplePrimaryFragments if occ claims primary and a
// different fragment name already does.
func (r *FragmentRegistry) Upsert(occ FragmentOccurrence, from string, inHead bool) (*FragmentDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.descriptors[occ.Name]
	if !ok {
		d = &FragmentDescriptor{Name: occ.Name, From: from}
		r.descriptors[occ.Name] = d
	}

	if occ.Primary {
		if r.primary != "" && r.primary != occ.Name {
			return nil, fmt.Errorf("%w: %q and %q", ErrMultiplePrimaryFragments, r.primary, occ.Name)
		}
		r.primary = occ.Name
		d.Primary = true
	}

	if d.Primary || occ.ShouldWait || inHead {
		d.ShouldWait = true
	}

	return d, nil
}

// Get returns the descriptor for name, if any.
func (r *FragmentRegistry) Get(name string) (*FragmentDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// SetConfig joins gateway-supplied configuration onto an existing
// descriptor. Called once discovery of the fragment's upstream config
// completes.
func (r *FragmentRegistry) SetConfig(name string, fragmentURL string, cfg *FragmentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.descriptors[name]; ok {
		d.FragmentURL = fragmentURL
		d.Config = cfg
	}
}

// All returns every descriptor, in insertion order is not guaranteed —
// callers that need compile-order iteration should track occurrence order
// separately (the Planner does, via its occurrence list).
func (r *FragmentRegistry) All() []*FragmentDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*FragmentDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}

// Primary returns the registry's primary descriptor, if one exists.
func (r *FragmentRegistry) Primary() (*FragmentDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primary == "" {
		return nil, false
	}
	d := r.descriptors[r.primary]
	return d, d != nil
}

// filterAttrs strips reserved attributes, returning the custom attribute
// bag that may be forwarded to the upstream as query parameters.
func filterAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if reservedAttrs[k] {
			continue
		}
		out[k] = v
	}
	return out
}
