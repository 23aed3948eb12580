package puzzle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// AssetPlan is the Asset Planner's output for one template compilation:
// ready-to-inject HTML for every location, concatenated into one
// document-wide string for HEAD, BODY_START and BODY_END and grouped per
// fragment for the fragment-relative locations (CONTENT_START,
// CONTENT_END). Assets are not deduplicated.
type AssetPlan struct {
	HeadHTML      string
	BodyStartHTML string
	// BodyEndHTML is rendered once and injected either immediately (no
	// chunked fragments exist) or deferred to stream close (Mode B) — the
	// compiler decides which, since only it knows the fragment mix.
	BodyEndHTML string
	ContentStart map[string]string // fragment name -> HTML
	ContentEnd   map[string]string // fragment name -> HTML
}

// AssetPlanner classifies each fragment's declared assets by injection
// location and inject type.
type AssetPlanner struct {
	logger *templateLogger
}

func newAssetPlanner(l *templateLogger) *AssetPlanner { return &AssetPlanner{logger: l} }

// Plan walks descriptors in the supplied order (the Planner passes
// occurrence-discovery order so HEAD/dependency output is deterministic)
// and builds an AssetPlan. Assets with an unrecognized InjectType are
// logged as ErrUnknownInjectType and rendered as an HTML comment marker in
// place, per spec §4.1.
func (p *AssetPlanner) Plan(descriptors []*FragmentDescriptor) AssetPlan {
	plan := AssetPlan{
		ContentStart: make(map[string]string),
		ContentEnd:   make(map[string]string),
	}

	var head, bodyStart, bodyEnd strings.Builder
	for _, d := range descriptors {
		if d.Config == nil {
			continue
		}
		var contentStart, contentEnd strings.Builder
		for _, a := range d.Config.Assets {
			if a.CSS {
				continue // collected separately by the Stylesheet Bundler
			}
			tag, err := renderAssetTag(a)
			if err != nil {
				p.logger.recovered(err, d.Name)
				tag = fmt.Sprintf("<!-- UNKNOWN_INJECT_TYPE: %s -->", a.Name)
			}
			switch a.Location {
			case LocationHead:
				head.WriteString(tag)
			case LocationBodyStart:
				bodyStart.WriteString(tag)
			case LocationContentStart:
				contentStart.WriteString(tag)
			case LocationContentEnd:
				contentEnd.WriteString(tag)
			case LocationBodyEnd:
				bodyEnd.WriteString(tag)
			}
		}
		plan.ContentStart[d.Name] = contentStart.String()
		plan.ContentEnd[d.Name] = contentEnd.String()
	}

	plan.HeadHTML = head.String()
	plan.BodyStartHTML = bodyStart.String()
	plan.BodyEndHTML = bodyEnd.String()
	return plan
}

// renderAssetTag renders one asset as a templ.Component and returns its
// output. External assets emit a src= script tag; inline assets emit the
// asset body as the script's text content. Both carry
// puzzle-dependency="<name>" so client scripts and debug tooling can
// identify the origin fragment.
func renderAssetTag(a Asset) (string, error) {
	execAttr := ""
	if a.ExecuteType != ExecuteSync {
		execAttr = " " + string(a.ExecuteType)
	}

	var comp templ.Component
	switch a.InjectType {
	case InjectExternal:
		comp = scriptTagComponent(a.Name, fmt.Sprintf(`src="%s" type="text/javascript"%s`, a.Link, execAttr), "")
	case InjectInline:
		comp = scriptTagComponent(a.Name, `type="text/javascript"`, a.Content)
	default:
		return "", fmt.Errorf("%w: %s (%s)", ErrUnknownInjectType, a.Name, a.InjectType)
	}
	return renderComponent(comp)
}

// scriptTagComponent builds a <script puzzle-dependency="..."> tag as a
// templ.Component, the same ComponentFunc-over-io.Writer idiom the teacher
// library uses to construct raw HTML programmatically (see lazyComponent).
func scriptTagComponent(name, attrs, body string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, fmt.Sprintf(`<script puzzle-dependency="%s" %s>`, name, attrs)); err != nil {
			return err
		}
		if body != "" {
			if _, err := io.WriteString(w, body); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, " "); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</script>`)
		return err
	})
}

// renderComponent executes comp into a buffer and returns its output.
func renderComponent(comp templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := comp.Render(context.Background(), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DependencyInjector deduplicates and appends shared dependencies into
// <head>, across every fragment, in descriptor iteration order.
type DependencyInjector struct{}

// Inject renders every unique dependency (by Name) declared across
// descriptors as a single HTML string ready to append to <head>.
func (DependencyInjector) Inject(descriptors []*FragmentDescriptor) string {
	seen := make(map[string]bool)
	var out strings.Builder
	for _, d := range descriptors {
		if d.Config == nil {
			// Source system resets its aggregator with an early return here
			// when a fragment has no config; spec §9 clarifies this must
			// skip the fragment, not abort the whole pass.
			continue
		}
		for _, dep := range d.Config.Dependencies {
			if seen[dep.Name] {
				continue
			}
			seen[dep.Name] = true
			out.WriteString(renderDependencyTag(dep))
		}
	}
	return out.String()
}

func renderDependencyTag(dep Dependency) string {
	execAttr := ""
	if dep.ExecuteType != ExecuteSync {
		execAttr = " " + string(dep.ExecuteType)
	}

	var comp templ.Component
	if dep.InjectType == InjectInline {
		comp = scriptTagComponent(dep.Name, `type="text/javascript"`, dep.Content)
	} else {
		comp = scriptTagComponent(dep.Name, fmt.Sprintf(`src="%s" type="text/javascript"%s`, dep.Link, execAttr), "")
	}
	html, err := renderComponent(comp)
	if err != nil {
		return ""
	}
	return html
}
