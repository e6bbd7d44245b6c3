// Package markdown converts extracted HTML fragments into GitHub flavored
// Markdown.
package markdown

import (
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

type Options struct {
	// LanguageVariant selects one branch of each language switcher. Empty
	// renders the branch the page marks as active.
	LanguageVariant string
}

type Converter struct {
	md   *htmltomd.Converter
	opts Options
}

func NewConverter(opts Options) *Converter {
	return NewConverterWithRegistry(opts, defaultRegistry())
}

// NewConverterWithRegistry builds a converter whose special cases come from
// reg instead of the built-in handlers.
func NewConverterWithRegistry(opts Options, reg Registry) *Converter {
	conv := htmltomd.NewConverter("", true, &htmltomd.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
	})
	conv.Use(plugin.Strikethrough(""))
	conv.Use(plugin.TaskListItems())

	c := &Converter{md: conv, opts: opts}
	conv.AddRules(reg.rules(c)...)
	return c
}

// Convert renders fragment as Markdown. The result is a draft: line
// wrapping and list spacing are left to a formatter.
func (c *Converter) Convert(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	snapshotRawTables(doc.Selection)
	return Normalize(c.md.Convert(doc.Selection)), nil
}

// Normalize separates adjacent fenced blocks with a blank line and
// collapses runs of blank lines. Lines inside fenced blocks are kept as is.
func Normalize(md string) string {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	open := ""
	afterFence := false
	for _, line := range lines {
		if open != "" {
			if closesFence(line, open) {
				line = strings.TrimSpace(line)
				open = ""
				afterFence = true
			}
			out = append(out, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			if len(out) > 0 && out[len(out)-1] != "" {
				out = append(out, "")
			}
			afterFence = false
			continue
		}
		if fence := openingFence(line); fence != "" {
			if afterFence {
				out = append(out, "")
			}
			open = fence
		}
		afterFence = false
		out = append(out, line)
	}

	md = strings.TrimSpace(strings.Join(out, "\n"))
	if md == "" {
		return ""
	}
	return md + "\n"
}

// openingFence returns the backtick or tilde run that opens a fenced block
// on line, or "".
func openingFence(line string) string {
	t := strings.TrimLeft(line, " ")
	if len(line)-len(t) > 3 {
		return ""
	}
	for _, ch := range []byte{'`', '~'} {
		n := 0
		for n < len(t) && t[n] == ch {
			n++
		}
		if n >= 3 {
			return t[:n]
		}
	}
	return ""
}

// closesFence reports whether line ends the block opened by fence: the same
// character, at least as many times, and nothing else.
func closesFence(line, fence string) bool {
	t := strings.TrimSpace(line)
	return len(t) >= len(fence) && strings.Trim(t, fence[:1]) == ""
}

// inline converts the children of sel and flattens the result onto one line.
func (c *Converter) inline(sel *goquery.Selection) string {
	text := c.md.Convert(sel)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}

// block converts the children of sel.
func (c *Converter) block(sel *goquery.Selection) string {
	return strings.TrimSpace(c.md.Convert(sel))
}

func blockResult(body string) string {
	return "\n\n" + body + "\n\n"
}
