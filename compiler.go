package puzzle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/barisesen/puzzle-js/config"
	"github.com/barisesen/puzzle-js/gateway"
	"github.com/barisesen/puzzle-js/internal/obs"
)

// fragmentClass is the Planner's four-way partition of every fragment that
// appears in a template.
type fragmentClass int

const (
	classWaited fragmentClass = iota
	classChunked
	classStatic
	classUnfetched
)

// ConfigResolver joins gateway-supplied configuration onto a fragment
// occurrence during compilation. The source system's equivalent is "the
// surrounding system" updating descriptors out of band; callers that
// already populate a *FragmentRegistry before calling Compile may leave
// this nil, in which case Compile treats any descriptor still missing
// Config as Unfetched.
type ConfigResolver interface {
	Resolve(ctx context.Context, occ FragmentOccurrence) (fragmentURL string, cfg *FragmentConfig, err error)
}

// CompileOptions configures one call to Compile.
type CompileOptions struct {
	// Name identifies the template; used for its stylesheet route, its
	// hooks lookup, and every log line.
	Name string

	// Registry, if non-nil, is used (and mutated) instead of a fresh one —
	// callers that pre-populate fragment configuration supply theirs here.
	Registry *FragmentRegistry

	// Resolver, if non-nil, is consulted once per unique fragment name to
	// join gateway configuration during the classification step.
	Resolver ConfigResolver

	// Client performs every fragment/placeholder/asset fetch the compiler
	// and, later, the compiled Template's handler need. Required whenever
	// the template has at least one fragment.
	Client gateway.Client

	// Hooks resolves this template's PageHooks by name. If nil, BaseHooks
	// is used.
	Hooks *HooksRegistry

	// Config supplies the default fragment timeout, debug flag, debugger
	// link, and stylesheet cache lifetime. Defaults to config.Default().
	Config config.Config

	// Logger receives every fatal and recovered error. Defaults to a
	// no-op logger.
	Logger *obs.Logger
}

// occEntry is one discovered <fragment> occurrence, paired with the DOM
// selection it was found at, kept alive across the compiler's passes.
type occEntry struct {
	occ    FragmentOccurrence
	sel    *goquery.Selection
	inHead bool
}

// Compile parses src, classifies and rewrites every declared fragment, and
// returns a *Template ready to serve requests. The two fatal error classes
// — ErrTemplateNotFound and ErrMultiplePrimaryFragments — abort compilation
// entirely; every other failure during compilation (an unreachable
// gateway, a missing static fragment) degrades the affected fragment to
// Unfetched or an empty placeholder and is logged, never fatal.
func Compile(ctx context.Context, src string, opts CompileOptions) (*Template, error) {
	if opts.Name == "" {
		opts.Name = "template"
	}
	logger := newTemplateLogger(opts.Name, opts.Logger)
	if opts.Registry == nil {
		opts.Registry = NewFragmentRegistry()
	}
	if opts.Config == (config.Config{}) {
		opts.Config = config.Default()
	}
	hooksReg := opts.Hooks
	if hooksReg == nil {
		hooksReg = NewHooksRegistry()
	}

	body, _, err := splitTemplateSource(src)
	if err != nil {
		logger.fatal(err)
		return nil, fmt.Errorf("puzzle: compile %q: %w", opts.Name, err)
	}

	view, err := newDOMView(body)
	if err != nil {
		logger.fatal(err)
		return nil, fmt.Errorf("puzzle: compile %q: %w", opts.Name, err)
	}

	entries, err := discoverOccurrences(view, opts.Registry)
	if err != nil {
		logger.fatal(err)
		return nil, fmt.Errorf("puzzle: compile %q: %w", opts.Name, err)
	}

	if len(entries) == 0 {
		if debugHTML := debugHeadScript(opts.Config, nil); debugHTML != "" {
			view.AppendHead(debugHTML)
		}
		if opts.Config.Debug {
			view.AppendBody(debugAnalyticsCloseScript)
		}
		view.NormalizeEmptyTags()
		shellHTML, err := view.String()
		if err != nil {
			return nil, fmt.Errorf("puzzle: compile %q: %w", opts.Name, err)
		}
		return &Template{
			name:   opts.Name,
			shell:  staticShell(shellHTML),
			hooks:  hooksReg.Resolve(opts.Name),
			client: opts.Client,
			logger: logger,
			cfg:    opts.Config,
		}, nil
	}

	// Order descriptors by first-occurrence order for deterministic head
	// output (asset injection order, dependency dedup order).
	order := firstOccurrenceOrder(entries)

	if err := resolveConfigs(ctx, opts.Registry, entries, opts.Resolver); err != nil {
		logger.fatal(err)
		return nil, fmt.Errorf("puzzle: compile %q: %w", opts.Name, err)
	}

	classes := classify(opts.Registry, order)

	descriptors := make([]*FragmentDescriptor, 0, len(order))
	for _, name := range order {
		d, _ := opts.Registry.Get(name)
		descriptors = append(descriptors, d)
	}

	assetPlanner := newAssetPlanner(logger)
	plan := assetPlanner.Plan(descriptors)

	depHTML := DependencyInjector{}.Inject(descriptors)

	bundler := newStylesheetBundler(opts.Name, opts.Config.StaticCacheMaxAge(), logger)
	staticRoute, cssLink := bundler.Bundle(descriptors)

	view.AppendHead(plan.HeadHTML)
	view.AppendHead(depHTML)
	view.AppendHead(cssLink)
	view.AppendHead(debugHeadScript(opts.Config, descriptors))
	view.PrependBody(plan.BodyStartHTML)

	waitedSets, chunkedSets, hasChunked, err := rewriteOccurrences(ctx, view, opts.Registry, entries, classes, plan, opts.Client, logger)
	if err != nil {
		logger.fatal(err)
		return nil, fmt.Errorf("puzzle: compile %q: %w", opts.Name, err)
	}

	var bodyEndHTML string
	if hasChunked {
		// Deferred: emitted only after every chunked fetch completes
		// (Mode B, spec §4.2 step 8).
		bodyEndHTML = plan.BodyEndHTML
		if opts.Config.Debug {
			bodyEndHTML += debugAnalyticsCloseScript
		}
		view.AppendHead(chunkMoverScript)
	} else {
		view.AppendBody(plan.BodyEndHTML)
		if opts.Config.Debug {
			view.AppendBody(debugAnalyticsCloseScript)
		}
	}

	view.NormalizeEmptyTags()
	shellHTML, err := view.String()
	if err != nil {
		return nil, fmt.Errorf("puzzle: compile %q: %w", opts.Name, err)
	}

	primary, _ := opts.Registry.Primary()

	return &Template{
		name:        opts.Name,
		shell:       staticShell(shellHTML),
		waitedSets:  waitedSets,
		chunkedSets: chunkedSets,
		hasChunked:  hasChunked,
		primary:      primary,
		staticRoute:  staticRoute,
		bodyEndHTML:  bodyEndHTML,
		contentStart: plan.ContentStart,
		contentEnd:   plan.ContentEnd,
		hooks:       hooksReg.Resolve(opts.Name),
		client:      opts.Client,
		logger:      logger,
		cfg:         opts.Config,
	}, nil
}

// discoverOccurrences walks every <fragment> element in document order,
// recording its occurrence data and registering it with registry. Returns
// ErrMultiplePrimaryFragments the moment a second distinct name claims
// primary.
func discoverOccurrences(view *domView, registry *FragmentRegistry) ([]occEntry, error) {
	var entries []occEntry
	var walkErr error

	view.Fragments().EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		node := sel.Get(0)
		attrs := make(map[string]string, len(node.Attr))
		for _, a := range node.Attr {
			attrs[a.Key] = a.Val
		}

		partial := attrs["partial"]
		if partial == "" {
			partial = "main"
		}
		_, primary := attrs["primary"]
		_, shouldWait := attrs["shouldwait"]

		occ := FragmentOccurrence{
			Name:       attrs["name"],
			From:       attrs["from"],
			Partial:    partial,
			Primary:    primary,
			ShouldWait: shouldWait,
			Attrs:      filterAttrs(attrs),
		}

		inHead := view.InHead(sel)
		if _, err := registry.Upsert(occ, occ.From, inHead); err != nil {
			walkErr = err
			return false
		}

		entries = append(entries, occEntry{occ: occ, sel: sel, inHead: inHead})
		return true
	})

	if walkErr != nil {
		return nil, walkErr
	}
	return entries, nil
}

// firstOccurrenceOrder returns each unique fragment name in the order its
// first occurrence appeared in the document.
func firstOccurrenceOrder(entries []occEntry) []string {
	seen := make(map[string]bool)
	var order []string
	for _, e := range entries {
		if seen[e.occ.Name] {
			continue
		}
		seen[e.occ.Name] = true
		order = append(order, e.occ.Name)
	}
	return order
}

// resolveConfigs joins gateway configuration onto every descriptor named
// in order, via resolver if supplied. A resolver error leaves the
// descriptor's Config nil — the fragment becomes Unfetched, per spec §4.1 —
// except for a nil resolver, which leaves whatever the caller already set
// on the registry untouched.
func resolveConfigs(ctx context.Context, registry *FragmentRegistry, entries []occEntry, resolver ConfigResolver) error {
	if resolver == nil {
		return nil
	}
	done := make(map[string]bool)
	for _, e := range entries {
		if done[e.occ.Name] {
			continue
		}
		done[e.occ.Name] = true
		fragmentURL, cfg, err := resolver.Resolve(ctx, e.occ)
		if err != nil {
			registry.SetConfig(e.occ.Name, fragmentURL, nil)
			continue
		}
		registry.SetConfig(e.occ.Name, fragmentURL, cfg)
	}
	return nil
}

// classify partitions every descriptor named in order into one of the
// four fragment classes, per spec §4.1.
func classify(registry *FragmentRegistry, order []string) map[string]fragmentClass {
	classes := make(map[string]fragmentClass, len(order))
	for _, name := range order {
		d, ok := registry.Get(name)
		if !ok || d.Config == nil {
			classes[name] = classUnfetched
			continue
		}
		switch {
		case d.ShouldWait:
			classes[name] = classWaited
		case d.Config.Render.Static:
			classes[name] = classStatic
		default:
			classes[name] = classChunked
		}
	}
	return classes
}

// staticShell returns a Shell that always renders html verbatim, ignoring
// the request — used for templates with no fragments and, after
// substitution, is how waited content reaches the client.
func staticShell(html string) Shell {
	return func(*http.Request) string { return html }
}

// chunkMoverScript is injected into <head> exactly once, for any template
// with at least one chunked fragment. It defines the client-side function
// every streamed mover script calls: move the children of the hidden
// content div found by sourceSelector to where the element found by
// targetSelector stands, then discard both elements, the out-of-band-swap
// idiom the gateway
// protocol's placeholder/content split is built around.
const chunkMoverScript = `<script>function $p(targetSelector,sourceSelector){var target=document.querySelector(targetSelector);var source=document.querySelector(sourceSelector);if(!source)return;if(target){while(source.firstChild){target.parentNode.insertBefore(source.firstChild,target);}target.parentNode.removeChild(target);}source.parentNode.removeChild(source);}</script>`
