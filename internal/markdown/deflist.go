package markdown

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const propertiesClass = "resources-properties"

// propertiesListHandler renders a resource properties list as a
// Property | Type | Description table.
func propertiesListHandler(_ *Converter, _ string, dl *goquery.Selection) (string, bool) {
	if !dl.HasClass(propertiesClass) {
		return "", false
	}

	var b strings.Builder
	b.WriteString("| Property | Type | Description |\n")
	b.WriteString("|---------|------|-------------|\n")
	dl.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		name := collapseSpace(dt.Text())
		if link := dt.Find("a").First(); link.Length() > 0 {
			name = collapseSpace(link.Text())
		}
		typ := collapseSpace(dt.Find("span.property-type").First().Text())
		desc := ""
		if dd := dt.NextAllFiltered("dd").First(); dd.Length() > 0 {
			desc = collapseSpace(dd.Text())
		}
		b.WriteString("| ")
		b.WriteString(cleanCell(name))
		b.WriteString(" | ")
		b.WriteString(cleanCell(typ))
		b.WriteString(" | ")
		b.WriteString(cleanCell(desc))
		b.WriteString(" |\n")
	})
	return blockResult(strings.TrimSuffix(b.String(), "\n")), true
}

// definitionListHandler renders each term as a bold paragraph followed by
// its definition. A term's definition is the first dd before the next dt.
func definitionListHandler(c *Converter, _ string, dl *goquery.Selection) (string, bool) {
	var b strings.Builder
	dl.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		term := c.inline(dt)
		dd := dt.NextUntil("dt").Filter("dd").First()
		if dd.Length() == 0 {
			b.WriteString("**" + term + "**\n\n")
			return
		}
		b.WriteString("**" + term + "**: " + c.block(dd) + "\n\n")
	})
	body := strings.TrimSpace(b.String())
	if body == "" {
		return "", true
	}
	return blockResult(body), true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
