package markdown

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	choosableTag = "pulumi-choosable"
	activeBranch = "div.active"
)

// activeVariantHandler renders only the active branch of the innermost div
// that wraps a language switcher, unless a language preference is set.
func activeVariantHandler(c *Converter, _ string, div *goquery.Selection) (string, bool) {
	if c.opts.LanguageVariant != "" || !wrapsVariants(div) {
		return "", false
	}
	if div.Find("div").FilterFunction(func(_ int, inner *goquery.Selection) bool {
		return wrapsVariants(inner)
	}).Length() > 0 {
		return "", false
	}
	return blockResult(c.block(div.Find(activeBranch).First())), true
}

func wrapsVariants(div *goquery.Selection) bool {
	return div.Find(choosableTag).Length() > 0 && div.Find(activeBranch).Length() > 0
}

// choosableHandler renders one branch of a variant group. With a language
// preference only branches listing it render, under a heading named for it.
// Without one every branch renders under its first declared value.
func choosableHandler(c *Converter, content string, el *goquery.Selection) (string, bool) {
	typ, hasType := el.Attr("type")
	rawValues, hasValues := el.Attr("values")
	if !hasType || !hasValues {
		return content, true
	}
	values := splitValues(rawValues)
	body := strings.TrimSpace(content)

	if pref := c.opts.LanguageVariant; pref != "" && typ == "language" {
		for _, v := range values {
			if v == pref {
				return blockResult("#### " + pref + "\n\n" + body), true
			}
		}
		return "", true
	}

	title := "Example"
	if len(values) > 0 && values[0] != "" {
		title = capitalize(values[0])
	}
	return blockResult("#### " + title + "\n\n" + body), true
}

// chooserHandler drops the switcher control itself.
func chooserHandler(*Converter, string, *goquery.Selection) (string, bool) {
	return "", true
}

func splitValues(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
