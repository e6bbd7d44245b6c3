package markdown

import (
	"sort"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Handler renders one element. content is the already converted Markdown of
// the element's children. A handler that returns false passes the element
// on to the next handler registered for the same tag.
type Handler func(c *Converter, content string, sel *goquery.Selection) (string, bool)

// Registry maps canonical tag names to their handlers, tried in order.
type Registry map[string][]Handler

// commonmarkTags have a base rule in html-to-markdown that renders the
// element when no handler claims it.
var commonmarkTags = map[string]struct{}{
	"ul": {}, "ol": {}, "li": {}, "p": {}, "div": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"strong": {}, "b": {}, "i": {}, "em": {}, "img": {}, "a": {},
	"code": {}, "kbd": {}, "samp": {}, "tt": {}, "pre": {},
	"hr": {}, "br": {}, "blockquote": {}, "noscript": {},
}

// CanonicalTag lowercases name and replaces underscores with hyphens, so
// "Pulumi_Choosable" and "pulumi-choosable" share one key.
func CanonicalTag(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// Register appends h to the handlers for tag.
func (r Registry) Register(tag string, h Handler) {
	key := CanonicalTag(tag)
	r[key] = append(r[key], h)
}

// Handlers returns the handlers for tag in registration order.
func (r Registry) Handlers(tag string) []Handler {
	return r[CanonicalTag(tag)]
}

func defaultRegistry() Registry {
	r := Registry{}
	r.Register("table", tableHandler)
	r.Register("pre", codeBlockHandler)
	r.Register("dl", propertiesListHandler)
	r.Register("dl", definitionListHandler)
	r.Register("div", activeVariantHandler)
	r.Register("div", admonitionHandler)
	r.Register("aside", admonitionHandler)
	r.Register("pulumi_choosable", choosableHandler)
	r.Register("pulumi_chooser", chooserHandler)
	return r
}

// rules turns the registry into one html-to-markdown rule per tag.
func (r Registry) rules(c *Converter) []htmltomd.Rule {
	tags := make([]string, 0, len(r))
	for tag := range r {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	out := make([]htmltomd.Rule, 0, len(tags))
	for _, tag := range tags {
		handlers := r[tag]
		_, hasBase := commonmarkTags[tag]
		out = append(out, htmltomd.Rule{
			Filter: []string{tag},
			Replacement: func(content string, sel *goquery.Selection, _ *htmltomd.Options) *string {
				for _, h := range handlers {
					if res, ok := h(c, content, sel); ok {
						return &res
					}
				}
				if hasBase {
					return nil
				}
				return &content
			},
		})
	}
	return out
}
