package puzzle

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/barisesen/puzzle-js/gateway"
)

// fragmentNotFoundHTML is the body substituted for any partial the compiler
// or the request-time resolver could not produce content for.
const fragmentNotFoundHTML = "CONTENT_NOT_FOUND_ERROR"

// rewriteOccurrences walks entries grouped by fragment name, in
// first-occurrence order, and mutates view in place: every <fragment>
// element is replaced with its class's wrapper markup. Static fragments
// are fetched and embedded right now, at compile time; waited fragments
// are left holding a sentinel for the per-request resolver; chunked
// fragments are seeded with their placeholder and left holding a
// puzzle-chunk marker for the per-request streamer; unfetched fragments
// become a bare "not found" div with no further bookkeeping.
func rewriteOccurrences(
	ctx context.Context,
	view *domView,
	registry *FragmentRegistry,
	entries []occEntry,
	classes map[string]fragmentClass,
	plan AssetPlan,
	client gateway.Client,
	logger *templateLogger,
) (waitedSets []ReplaceSet, chunkedSets []ReplaceSet, hasChunked bool, err error) {
	groups := make(map[string][]occEntry)
	var order []string
	for _, e := range entries {
		if _, ok := groups[e.occ.Name]; !ok {
			order = append(order, e.occ.Name)
		}
		groups[e.occ.Name] = append(groups[e.occ.Name], e)
	}

	for _, name := range order {
		group := groups[name]
		d, _ := registry.Get(name)

		switch classes[name] {
		case classUnfetched:
			for _, e := range group {
				html := fmt.Sprintf(`<div puzzle-fragment="%s" puzzle-gateway="%s">%s</div>`,
					name, d.From, fragmentNotFoundHTML)
				view.ReplaceWith(e.sel, html)
			}

		case classStatic:
			rs := rewriteStatic(ctx, view, d, group, plan, client, logger)
			_ = rs // static fragments need no per-request ReplaceSet

		case classWaited:
			waitedSets = append(waitedSets, rewriteWaited(view, d, group, plan))

		case classChunked:
			hasChunked = true
			chunkedSets = append(chunkedSets, rewriteChunked(ctx, view, d, group, client, logger))
		}
	}

	return waitedSets, chunkedSets, hasChunked, nil
}

// occAttrValues converts a FragmentOccurrence's custom attributes into the
// query string forwarded to the upstream gateway.
func occAttrValues(attrs map[string]string) url.Values {
	q := url.Values{}
	for k, v := range attrs {
		q.Set(k, v)
	}
	return q
}

// mainAttrs picks the attribute bag of the occurrence named "main", or the
// first occurrence if no partial is literally named "main".
func mainAttrs(group []occEntry) map[string]string {
	for _, e := range group {
		if e.occ.Partial == "main" {
			return e.occ.Attrs
		}
	}
	return group[0].occ.Attrs
}

func wrapperAttrs(d *FragmentDescriptor, partial string) string {
	attrs := fmt.Sprintf(`id="%s" puzzle-fragment="%s" puzzle-gateway="%s"`, d.Name, d.Name, d.From)
	if partial != "main" {
		attrs += fmt.Sprintf(` fragment-partial="%s"`, partial)
	}
	return attrs
}

// fragmentMarkerAttrs is wrapperAttrs without the id attribute — chunked
// wrappers carry no id; the mover script finds them by their puzzle-chunk
// attribute.
func fragmentMarkerAttrs(d *FragmentDescriptor, partial string) string {
	attrs := fmt.Sprintf(`puzzle-fragment="%s" puzzle-gateway="%s"`, d.Name, d.From)
	if partial != "main" {
		attrs += fmt.Sprintf(` fragment-partial="%s"`, partial)
	}
	return attrs
}

// rewriteStatic fetches every partial in group once, now, and embeds the
// result directly — static fragments never revisit the gateway per
// request.
func rewriteStatic(ctx context.Context, view *domView, d *FragmentDescriptor, group []occEntry, plan AssetPlan, client gateway.Client, logger *templateLogger) ReplaceSet {
	timeout := d.Config.Render.Timeout
	outcome := fetchFragment(ctx, client, d, mainAttrs(group), timeout, logger)

	for _, e := range group {
		content, ok := outcome.HTML[e.occ.Partial]
		if !ok || outcome.Err != nil {
			content = fragmentNotFoundHTML
		}
		inner := plan.ContentStart[d.Name] + content + plan.ContentEnd[d.Name]
		html := fmt.Sprintf(`<div %s>%s</div>`, wrapperAttrs(d, e.occ.Partial), inner)
		view.ReplaceWith(e.sel, html)
	}

	return ReplaceSet{Fragment: d, FragmentAttributes: mainAttrs(group)}
}

// rewriteWaited leaves a content sentinel for the per-request resolver to
// fill in. The first occurrence is additionally prefixed with a page-model
// script sentinel, resolved to the full <script puzzle-model="..."> tag
// only when the fragment's response actually carries a model — otherwise
// to nothing — since that can't be decided until request time.
func rewriteWaited(view *domView, d *FragmentDescriptor, group []occEntry, plan AssetPlan) ReplaceSet {
	rs := ReplaceSet{Fragment: d, FragmentAttributes: mainAttrs(group)}

	for i, e := range group {
		key := waitedContentKey(d.Name, d.From, e.occ.Partial)
		inner := plan.ContentStart[d.Name] + key + plan.ContentEnd[d.Name]
		html := fmt.Sprintf(`<div %s>%s</div>`, wrapperAttrs(d, e.occ.Partial), inner)

		if i == 0 {
			modelKey := modelScriptKey(d.Name)
			html = modelKey + html
			rs.ReplaceItems = append(rs.ReplaceItems, ReplaceItem{Type: ReplaceModelScript, Key: modelKey})
		}

		view.ReplaceWith(e.sel, html)
		rs.ReplaceItems = append(rs.ReplaceItems, ReplaceItem{Type: ReplaceContent, Key: key, Partial: e.occ.Partial})
	}
	return rs
}

// rewriteChunked seeds each partial's wrapper with its fetched placeholder
// and a puzzle-chunk marker the streamer substitutes for real content once
// the fragment's fetch completes; the streamed chunk's mover script targets
// that puzzle-chunk marker. The main partial additionally carries a
// puzzle-placeholder attribute, but only when render.placeholder is set.
func rewriteChunked(ctx context.Context, view *domView, d *FragmentDescriptor, group []occEntry, client gateway.Client, logger *templateLogger) ReplaceSet {
	placeholder := ""
	if d.Config.Render.Placeholder {
		placeholder = client.FetchPlaceholder(ctx, d.FragmentURL)
	}

	rs := ReplaceSet{Fragment: d, FragmentAttributes: mainAttrs(group)}

	for _, e := range group {
		chunkKey := chunkedContentKey(d.Name, e.occ.Partial)

		placeholderAttr := ""
		if d.Config.Render.Placeholder && e.occ.Partial == "main" {
			placeholderAttr = fmt.Sprintf(` puzzle-placeholder="%s"`, placeholderKey(d.Name, e.occ.Partial))
		}

		html := fmt.Sprintf(`<div %s puzzle-chunk="%s"%s>%s</div>`,
			fragmentMarkerAttrs(d, e.occ.Partial), chunkKey, placeholderAttr, placeholder)
		view.ReplaceWith(e.sel, html)
		rs.ReplaceItems = append(rs.ReplaceItems, ReplaceItem{Type: ReplaceChunkedContent, Key: chunkKey, Partial: e.occ.Partial})
	}
	return rs
}

// fetchFragment issues one gateway fetch for a fragment's every partial via
// client.FetchContent. A transport failure resolves to FetchOutcome.Err
// set and an empty HTML map — the caller substitutes
// fragmentNotFoundHTML for every partial in that case.
func fetchFragment(ctx context.Context, client gateway.Client, d *FragmentDescriptor, attrs map[string]string, timeout time.Duration, logger *templateLogger) gateway.FetchOutcome {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	outcome := client.FetchContent(ctx, d.FragmentURL, d.Config.Render.URL, occAttrValues(attrs), timeout)
	if outcome.Err != nil {
		logger.recovered(fmt.Errorf("%w: %s", ErrFragmentUpstreamFailure, d.Name), d.Name)
	}
	return outcome
}
