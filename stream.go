package puzzle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/barisesen/puzzle-js/gateway"
)

// serveChunked implements Mode B: the shell is flushed up to its closing
// tags immediately after the waited barrier resolves, then one mover
// script per chunked fragment streams out in whatever order its fetch
// completes — never in declaration order — and only once every chunked
// fetch has returned does the handler write bodyEndHTML and close the
// document.
func (t *Template) serveChunked(w http.ResponseWriter, r *http.Request, requestID string) {
	ctx := r.Context()

	waitTimeout := t.cfg.DefaultFragmentTimeout
	if waitTimeout <= 0 {
		waitTimeout = 3 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout+2*time.Second)
	subs, results := t.resolveWaited(waitCtx, t.waitedSets)
	cancel()

	status, headers := primaryStatusAndHeaders(t.primary, results)
	if status == http.StatusMovedPermanently && headers != nil && headers.Get("Location") != "" {
		if headers != nil {
			forwardableHeaders(w.Header(), headers)
		}
		w.WriteHeader(status)
		return
	}

	shellHTML := t.shell(r)
	shellHTML = applySubstitutions(shellHTML, subs)

	head, tail := splitShellForStreaming(shellHTML)

	if headers != nil {
		forwardableHeaders(w.Header(), headers)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Request-Id", requestID)
	w.WriteHeader(status)

	flusher, _ := w.(http.Flusher)
	io := func(s string) {
		w.Write([]byte(s))
		if flusher != nil {
			flusher.Flush()
		}
	}

	io(head)

	chunkHTMLs := t.streamChunks(ctx, t.chunkedSets, io)
	for _, chunkHTML := range chunkHTMLs {
		t.hooks.OnChunk(chunkHTML)
	}

	io(t.bodyEndHTML)
	io(tail)
}

// splitShellForStreaming separates the flushable head/body content from
// the closing tags, so the handler can hold the close back until every
// chunked fetch completes.
func splitShellForStreaming(html string) (head, tail string) {
	const closer = "</body></html>"
	if idx := strings.LastIndex(html, closer); idx >= 0 {
		return html[:idx], html[idx:]
	}
	return html, ""
}

// streamChunks fetches every chunked fragment concurrently and calls emit
// as each one completes, in completion order — never declaration order.
// It returns each emitted chunk's rendered HTML, for PageHooks.OnChunk.
func (t *Template) streamChunks(ctx context.Context, sets []ReplaceSet, emit func(string)) []string {
	if len(sets) == 0 {
		return nil
	}

	type done struct {
		set     ReplaceSet
		outcome gateway.FetchOutcome
	}
	ch := make(chan done, len(sets))

	for _, rs := range sets {
		rs := rs
		go func() {
			d := rs.Fragment
			timeout := d.Config.Render.Timeout
			if timeout <= 0 {
				timeout = t.cfg.DefaultFragmentTimeout
			}
			outcome := t.client.FetchContent(ctx, d.FragmentURL, d.Config.Render.URL, occAttrValues(rs.FragmentAttributes), timeout)
			ch <- done{set: rs, outcome: outcome}
		}()
	}

	var emitted []string
	for i := 0; i < len(sets); i++ {
		res := <-ch
		chunkHTML := t.renderChunk(res.set, res.outcome)
		emit(chunkHTML)
		emitted = append(emitted, chunkHTML)
	}
	return emitted
}

// renderChunk builds one chunked fragment's streamed payload, in order:
// an opening debug analytics marker (debug mode only), a page-model
// script (only when the upstream response carries one), the content-start
// assets, then for every partial a hidden content div plus a mover script
// that swaps it in place of the matching puzzle-chunk container — unless the partial
// is main and the fragment is configured to self-replace, in which case
// the mover is omitted and the placeholder is left standing — then the
// content-end assets and the closing debug analytics marker.
func (t *Template) renderChunk(rs ReplaceSet, outcome gateway.FetchOutcome) string {
	d := rs.Fragment
	if outcome.Err != nil {
		t.logger.recovered(fmt.Errorf("%w: %s", ErrFragmentUpstreamFailure, d.Name), d.Name)
	}

	var b strings.Builder

	if t.cfg.Debug {
		b.WriteString(debugAnalyticsMarker(d.Name, true))
	}

	if len(outcome.Model) > 0 {
		b.WriteString(fmt.Sprintf(`<script puzzle-model="%s" type="application/json">%s</script>`,
			d.Name, modelJSON(outcome.Model)))
	}

	b.WriteString(t.contentStart[d.Name])
	for _, item := range rs.ReplaceItems {
		if item.Type != ReplaceChunkedContent {
			continue
		}
		html, ok := outcome.HTML[item.Partial]
		if !ok || outcome.Err != nil {
			html = fragmentNotFoundHTML
		}
		key := chunkedContentKey(d.Name, item.Partial)
		b.WriteString(fmt.Sprintf(`<div style="display: none;" puzzle-fragment="%s" puzzle-chunk-key="%s">%s</div>`,
			d.Name, key, html))

		if item.Partial == "main" && d.Config.Render.SelfReplace {
			continue
		}
		b.WriteString(fmt.Sprintf(`<script>$p('[puzzle-chunk="%s"]','[puzzle-chunk-key="%s"]');</script>`, key, key))
	}
	b.WriteString(t.contentEnd[d.Name])

	if t.cfg.Debug {
		b.WriteString(debugAnalyticsMarker(d.Name, false))
	}
	return b.String()
}

func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
