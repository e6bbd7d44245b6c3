package markdown

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// admonitionTitles maps class keywords to the blockquote title. Order
// matters when an element carries several keywords.
var admonitionTitles = []struct {
	keyword string
	title   string
}{
	{"note", "Note"},
	{"warning", "Warning"},
	{"caution", "Warning"},
	{"tip", "Tip"},
	{"important", "Important"},
	{"info", "Info"},
}

// admonitionHandler renders callout boxes as titled blockquotes.
func admonitionHandler(_ *Converter, content string, sel *goquery.Selection) (string, bool) {
	title := admonitionTitle(sel.AttrOr("class", ""))
	if title == "" {
		return "", false
	}

	var b strings.Builder
	b.WriteString("> **" + title + "**\n")
	body := strings.TrimSuffix(Normalize(content), "\n")
	if body == "" {
		return blockResult(strings.TrimSuffix(b.String(), "\n")), true
	}
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			b.WriteString(">\n")
		} else {
			b.WriteString("> " + line + "\n")
		}
	}
	return blockResult(strings.TrimSuffix(b.String(), "\n")), true
}

// admonitionTitle matches whole class words, so "alert-warning" counts and
// "tooltip" or "notebook" do not.
func admonitionTitle(class string) string {
	words := map[string]struct{}{}
	for _, token := range strings.Fields(strings.ToLower(class)) {
		for _, w := range strings.FieldsFunc(token, func(r rune) bool { return r == '-' || r == '_' }) {
			words[w] = struct{}{}
		}
	}
	for _, a := range admonitionTitles {
		if _, ok := words[a.keyword]; ok {
			return a.title
		}
	}
	return ""
}
