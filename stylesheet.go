package puzzle

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

// StaticRoute is the Stylesheet Bundler's one-shot, compile-time route
// registration: a GET endpoint serving the concatenated, minified,
// version-hashed CSS for one template.
type StaticRoute struct {
	Path         string
	Body         []byte
	ContentType  string
	CacheControl string
}

// Handler returns an http.Handler serving Body with the route's headers.
func (r *StaticRoute) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", r.ContentType)
		w.Header().Set("Cache-Control", r.CacheControl)
		w.Write(r.Body)
	})
}

// StylesheetBundler concatenates every fragment's CSS asset content in
// descriptor iteration order, minifies it, hashes the result with MD5 (per
// spec §9, preserved for compatibility despite the weak hash), and
// produces a StaticRoute plus the <link> tag HTML referencing it.
//
// If the minified output is empty, Bundle returns a nil *StaticRoute and
// an empty link, per spec §4.1's "skip registration" rule.
type StylesheetBundler struct {
	TemplateName   string
	CacheMaxAge    time.Duration
	logger         *templateLogger
}

func newStylesheetBundler(name string, cacheMaxAge time.Duration, l *templateLogger) *StylesheetBundler {
	return &StylesheetBundler{TemplateName: name, CacheMaxAge: cacheMaxAge, logger: l}
}

// Bundle runs the pipeline and returns the route plus the <link> tag to
// inject into <head>.
func (b *StylesheetBundler) Bundle(descriptors []*FragmentDescriptor) (*StaticRoute, string) {
	var concat strings.Builder
	for _, d := range descriptors {
		if d.Config == nil {
			continue
		}
		for _, a := range d.Config.Assets {
			if !a.CSS {
				continue
			}
			concat.WriteString(a.Content)
			concat.WriteByte('\n')
		}
	}

	if concat.Len() == 0 {
		return nil, ""
	}

	minified, err := minifyCSS(concat.String())
	if err != nil {
		b.logger.recovered(fmt.Errorf("%w: minify css: %w", ErrAssetFetchFailure, err), "")
		minified = concat.String()
	}
	if strings.TrimSpace(minified) == "" {
		return nil, ""
	}

	sum := md5.Sum([]byte(minified))
	hash := hex.EncodeToString(sum[:])

	path := fmt.Sprintf("/static/%s.min.css", b.TemplateName)
	route := &StaticRoute{
		Path:         path,
		Body:         []byte(minified),
		ContentType:  "text/css; charset=utf-8",
		CacheControl: fmt.Sprintf("public, max-age=%d", int(b.CacheMaxAge.Seconds())),
	}

	link := fmt.Sprintf(`<link rel="stylesheet" href="%s?v=%s">`, path, hash)
	return route, link
}

func minifyCSS(src string) (string, error) {
	m := minify.New()
	var buf bytes.Buffer
	if err := css.Minify(m, &buf, strings.NewReader(src), nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}
