package puzzle

import (
	"encoding/json"
	"fmt"

	"github.com/barisesen/puzzle-js/config"
)

// debugHeadScript renders the debugger contract injected into <head> when
// cfg.Debug is set: the debugger script tag itself, followed by a call
// that hands the debugger every fragment this template declared and the
// gateway each one is served from. Empty when debug mode is off or no
// debugger link is configured.
func debugHeadScript(cfg config.Config, descriptors []*FragmentDescriptor) string {
	if !cfg.Debug || cfg.DebuggerLink == "" {
		return ""
	}
	fragments := make(map[string]string, len(descriptors))
	for _, d := range descriptors {
		fragments[d.Name] = d.From
	}
	b, err := json.Marshal(fragments)
	if err != nil {
		b = []byte("{}")
	}
	return fmt.Sprintf(`<script src="%s"></script><script>PuzzleJs.fragments.set(%s)</script>`, cfg.DebuggerLink, string(b))
}

// debugAnalyticsCloseScript runs once the document (and, in Mode B, every
// chunked fetch) has fully resolved — appended just before </body>.
const debugAnalyticsCloseScript = `<script>PuzzleJs.analytics.end();PuzzleJs.variables.end();</script>`

// debugAnalyticsMarker brackets one streamed chunk between analytics
// start/end calls, named for the fragment it belongs to.
func debugAnalyticsMarker(name string, start bool) string {
	fn := "end"
	if start {
		fn = "start"
	}
	return fmt.Sprintf(`<script>PuzzleJs.analytics.%s(%s);</script>`, fn, jsonString(name))
}
