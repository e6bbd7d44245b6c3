package markdown

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	langClassRe = regexp.MustCompile(`(?:^|\s)(?:language|lang)-([a-zA-Z0-9_+#.-]+)(?:\s|$)`)

	mdLinkRe = regexp.MustCompile(`\[([^\]\n]*)\]\([^)\n]*\)`)
	strongRe = regexp.MustCompile(`\*\*([^\s*](?:[^*\n]*[^\s*])?)\*\*`)
	strikeRe = regexp.MustCompile(`~~([^\s~](?:[^~\n]*[^\s~])?)~~`)
	emStarRe = regexp.MustCompile(`(?m)(^|[^\w*])\*([^\s*](?:[^*\n]*[^\s*])?)\*([^\w*]|$)`)
	// Underscore emphasis only counts around spans with a space in them so
	// identifiers such as __init__ or snake_case survive.
	strongUnderRe = regexp.MustCompile(`(?m)(^|[^\w])__([^\s_][^_\n]*\s[^_\n]*[^\s_])__([^\w]|$)`)
	emUnderRe     = regexp.MustCompile(`(?m)(^|[^\w])_([^\s_][^_\n]*\s[^_\n]*[^\s_])_([^\w]|$)`)
)

func codeBlockHandler(_ *Converter, _ string, pre *goquery.Selection) (string, bool) {
	source := pre
	if code := pre.Find("code").First(); code.Length() > 0 {
		source = code
	}

	text := source.Text()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	text = stripMarkup(text)

	fence := strings.Repeat("`", max(3, longestRun(text, '`')+1))

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(fence)
	b.WriteString(detectLanguage(pre))
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(fence)
	b.WriteString("\n\n")
	return b.String(), true
}

func longestRun(s string, ch byte) int {
	longest, n := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] != ch {
			n = 0
			continue
		}
		n++
		longest = max(longest, n)
	}
	return longest
}

// stripMarkup removes Markdown link and emphasis syntax that leaked into
// code text, keeping the inner text.
func stripMarkup(text string) string {
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = strongRe.ReplaceAllString(text, "$1")
	text = strikeRe.ReplaceAllString(text, "$1")
	text = emStarRe.ReplaceAllString(text, "${1}${2}${3}")
	text = strongUnderRe.ReplaceAllString(text, "${1}${2}${3}")
	text = emUnderRe.ReplaceAllString(text, "${1}${2}${3}")
	return text
}

// detectLanguage searches sel and then its descendants, in document order,
// for a language-*/lang-* class or a data-lang attribute.
func detectLanguage(sel *goquery.Selection) string {
	if lang := elementLanguage(sel); lang != "" {
		return lang
	}
	lang := ""
	sel.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		lang = elementLanguage(s)
		return lang == ""
	})
	return lang
}

func elementLanguage(sel *goquery.Selection) string {
	if m := langClassRe.FindStringSubmatch(sel.AttrOr("class", "")); len(m) == 2 {
		return canonicalLanguage(m[1])
	}
	if lang := strings.TrimSpace(sel.AttrOr("data-lang", "")); lang != "" {
		return canonicalLanguage(lang)
	}
	return ""
}

func canonicalLanguage(lang string) string {
	lang = strings.ToLower(lang)
	if lang == "golang" {
		return "go"
	}
	return lang
}
