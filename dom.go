package puzzle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// domView is the HTML parse + manipulation facade over a template document.
// It is the Go analogue of the source system's Cheerio-backed DOM: an
// HTML5-compliant parse tree (golang.org/x/net/html, via goquery's
// selector-based wrapper) that every other compile-time component mutates
// in place before the final string is serialized.
type domView struct {
	doc *goquery.Document
}

// voidElements never receive the empty-tag-normalization single space;
// they have no closing tag to collapse.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var templateTagPattern = regexp.MustCompile(`(?is)<template[^>]*>(.*?)</template>`)
var scriptTagPattern = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)

// splitTemplateSource extracts the <template>…</template> region and an
// optional sibling <script>…</script> region from raw template text.
//
// Returns ErrTemplateNotFound if no <template> region is present, per spec
// §4.1's parsing contract.
func splitTemplateSource(src string) (body string, script string, err error) {
	tm := templateTagPattern.FindStringSubmatch(src)
	if tm == nil {
		return "", "", ErrTemplateNotFound
	}
	body = tm[1]

	rest := strings.Replace(src, tm[0], "", 1)
	if sm := scriptTagPattern.FindStringSubmatch(rest); sm != nil {
		script = sm[1]
	}
	return body, script, nil
}

// newDOMView parses body as an HTML5 document, wrapping it for mutation.
func newDOMView(body string) (*domView, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("puzzle: parse template: %w", err)
	}
	return &domView{doc: doc}, nil
}

// Head returns the document's <head> selection, creating one is not
// attempted — goquery's parser always synthesizes head/body for a
// document-level parse.
func (v *domView) Head() *goquery.Selection { return v.doc.Find("head").First() }

// Body returns the document's <body> selection.
func (v *domView) Body() *goquery.Selection { return v.doc.Find("body").First() }

// Fragments returns every <fragment> element, in document order.
func (v *domView) Fragments() *goquery.Selection { return v.doc.Find("fragment") }

// InHead reports whether sel's nearest ancestor is <head>.
func (v *domView) InHead(sel *goquery.Selection) bool {
	return sel.Closest("head").Length() > 0
}

// AppendHead appends raw HTML as the last child of <head>.
func (v *domView) AppendHead(html string) {
	if html == "" {
		return
	}
	v.Head().AppendHtml(html)
}

// PrependBody inserts raw HTML as the first child of <body> — used for
// BODY_START assets.
func (v *domView) PrependBody(html string) {
	if html == "" {
		return
	}
	v.Body().PrependHtml(html)
}

// AppendBody appends raw HTML as the last child of <body> — used for
// BODY_END assets.
func (v *domView) AppendBody(html string) {
	if html == "" {
		return
	}
	v.Body().AppendHtml(html)
}

// ReplaceWith replaces sel entirely with raw HTML.
func (v *domView) ReplaceWith(sel *goquery.Selection, html string) {
	sel.ReplaceWithHtml(html)
}

// InsertBefore inserts raw HTML immediately before sel, as a sibling.
func (v *domView) InsertBefore(sel *goquery.Selection, html string) {
	if html == "" {
		return
	}
	sel.BeforeHtml(html)
}

// InsertAfter inserts raw HTML immediately after sel, as a sibling.
func (v *domView) InsertAfter(sel *goquery.Selection, html string) {
	if html == "" {
		return
	}
	sel.AfterHtml(html)
}

// NormalizeEmptyTags gives every non-void, empty element a single space of
// text content, preventing a serializer from collapsing e.g. <div></div>
// into a self-closed form no HTML5 parser would accept from a server that
// actually wrote <div/>. String's inter-tag whitespace collapse removes
// that space again from the serialized output.
func (v *domView) NormalizeEmptyTags() {
	v.doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if node == nil || voidElements[strings.ToLower(node.Data)] {
			return
		}
		if sel.Children().Length() > 0 {
			return
		}
		if strings.TrimSpace(sel.Text()) != "" {
			return
		}
		sel.SetText(" ")
	})
}

// collapseWhitespace is the compiler's final serialization step: collapse
// ">\s+<" to "><", matching the source system's shell-compaction pass.
var interTagWhitespace = regexp.MustCompile(`>\s+<`)

func collapseWhitespace(html string) string {
	return interTagWhitespace.ReplaceAllString(html, "><")
}

// String serializes the document, collapsing inter-tag whitespace.
func (v *domView) String() (string, error) {
	html, err := v.doc.Html()
	if err != nil {
		return "", fmt.Errorf("puzzle: serialize template: %w", err)
	}
	return collapseWhitespace(html), nil
}
