package puzzle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/barisesen/puzzle-js/gateway"
)

// fragmentOutcome is one fragment's resolved fetch result, kept alongside
// its descriptor so the caller can tell whether it was primary.
type fragmentOutcome struct {
	set     ReplaceSet
	outcome gateway.FetchOutcome
}

// resolveWaited fetches every waited fragment in sets concurrently — a true
// barrier, since the shell cannot be written until all of them return —
// and returns the literal substitutions for every sentinel they declared.
func (t *Template) resolveWaited(ctx context.Context, sets []ReplaceSet) (subs map[string]string, results []fragmentOutcome) {
	subs = make(map[string]string)
	results = make([]fragmentOutcome, len(sets))

	g, gctx := errgroup.WithContext(ctx)
	for i, rs := range sets {
		i, rs := i, rs
		g.Go(func() error {
			d := rs.Fragment
			timeout := d.Config.Render.Timeout
			if timeout <= 0 {
				timeout = t.cfg.DefaultFragmentTimeout
			}
			outcome := t.client.FetchContent(gctx, d.FragmentURL, d.Config.Render.URL, occAttrValues(rs.FragmentAttributes), timeout)
			results[i] = fragmentOutcome{set: rs, outcome: outcome}
			return nil
		})
	}
	_ = g.Wait() // individual fetch failures are recovered per-fragment below, never fatal to the page

	for _, fo := range results {
		for _, item := range fo.set.ReplaceItems {
			switch item.Type {
			case ReplaceContent:
				html, ok := fo.outcome.HTML[item.Partial]
				if !ok || fo.outcome.Err != nil {
					if fo.outcome.Err != nil {
						t.logger.recovered(fo.outcome.Err, fo.set.Fragment.Name)
					}
					html = fragmentNotFoundHTML
				}
				subs[item.Key] = html
			case ReplaceModelScript:
				if len(fo.outcome.Model) > 0 {
					subs[item.Key] = fmt.Sprintf(`<script puzzle-model="%s" type="application/json">%s</script>`,
						fo.set.Fragment.Name, modelJSON(fo.outcome.Model))
				} else {
					subs[item.Key] = ""
				}
			}
		}
	}
	return subs, results
}

func modelJSON(model map[string]any) string {
	if model == nil {
		return "{}"
	}
	b, err := json.Marshal(model)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// primaryStatusAndHeaders derives the response status/headers per spec §5:
// the primary fragment's upstream status and headers flow through to the
// client verbatim, 301 included (body suppressed for that case by the
// caller). A failed primary fetch (Err set) yields 500. Absent a primary
// fragment, the response is always 200.
func primaryStatusAndHeaders(primary *FragmentDescriptor, results []fragmentOutcome) (status int, headers http.Header) {
	if primary == nil {
		return http.StatusOK, nil
	}
	for _, fo := range results {
		if fo.set.Fragment == primary || (fo.set.Fragment != nil && fo.set.Fragment.Name == primary.Name) {
			if fo.outcome.Err != nil {
				return http.StatusInternalServerError, nil
			}
			return fo.outcome.Status, fo.outcome.Headers
		}
	}
	return http.StatusOK, nil
}

// applySubstitutions performs literal (non-regex) replacement of every
// sentinel key in shellHTML — spec §4.2 requires plain string substitution,
// since sentinel tokens are opaque identifiers, not patterns.
func applySubstitutions(shellHTML string, subs map[string]string) string {
	for key, val := range subs {
		shellHTML = strings.Replace(shellHTML, key, val, 1)
	}
	return shellHTML
}

// forwardableHeaders copies every header from src except the ones the
// response writer must control itself.
func forwardableHeaders(dst http.Header, src http.Header) {
	for k, vs := range src {
		switch strings.ToLower(k) {
		case "content-length", "content-type", "transfer-encoding", "connection":
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func (t *Template) serveBuffered(w http.ResponseWriter, r *http.Request, requestID string) {
	ctx := r.Context()
	if t.cfg.DefaultFragmentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.DefaultFragmentTimeout+2*time.Second)
		defer cancel()
	}

	subs, results := t.resolveWaited(ctx, t.waitedSets)
	status, headers := primaryStatusAndHeaders(t.primary, results)

	html := t.shell(r)
	html = applySubstitutions(html, subs)

	if headers != nil {
		forwardableHeaders(w.Header(), headers)
	}
	w.Header().Set("X-Request-Id", requestID)

	if status == http.StatusMovedPermanently && headers != nil && headers.Get("Location") != "" {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(html))
}
