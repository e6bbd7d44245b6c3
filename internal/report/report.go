// Package report checks an extracted content fragment for structure that
// converts badly: skipped heading levels, empty sections and in-page links
// whose target was cut away by the selectors.
package report

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mdspider/internal/parse"
)

type Report struct {
	Headings   int `json:"headings"`
	Tables     int `json:"tables"`
	CodeBlocks int `json:"code_blocks"`
	Links      int `json:"links"`

	DuplicateIDs  []string `json:"duplicate_ids"`
	BrokenAnchors []string `json:"broken_anchors"`
	EmptySections []string `json:"empty_sections"`
	HeadingGaps   []string `json:"heading_gaps"`
}

// Issues is the number of problems found.
func (r Report) Issues() int {
	return len(r.DuplicateIDs) + len(r.BrokenAnchors) + len(r.EmptySections) + len(r.HeadingGaps)
}

type section struct {
	text  string
	level int
	body  bool
}

func Analyze(contentHTML string) (Report, error) {
	if strings.TrimSpace(contentHTML) == "" {
		return Report{}, nil
	}
	doc, err := parse.NewDocument(contentHTML)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Tables:     doc.Find("table").Length(),
		CodeBlocks: doc.Find("pre").Length(),
		Links:      doc.Find("a[href]").Length(),
	}

	sections := collectSections(doc)
	rep.Headings = len(sections)
	rep.EmptySections = emptySections(sections)
	rep.HeadingGaps = headingGaps(sections)

	ids := []string{}
	doc.Find("[id], a[name]").Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr("id", ""))
		if id != "" {
			ids = append(ids, id)
		}
		if name := strings.TrimSpace(s.AttrOr("name", "")); name != "" && name != id && goquery.NodeName(s) == "a" {
			ids = append(ids, name)
		}
	})
	anchors := []string{}
	doc.Find(`a[href^="#"]`).Each(func(_ int, s *goquery.Selection) {
		anchors = append(anchors, strings.TrimPrefix(s.AttrOr("href", ""), "#"))
	})

	rep.DuplicateIDs = findDuplicates(ids)
	rep.BrokenAnchors = findBrokenAnchors(anchors, ids)

	sort.Strings(rep.DuplicateIDs)
	sort.Strings(rep.BrokenAnchors)
	return rep, nil
}

// collectSections walks the fragment in document order. A section has a body
// once any non-heading text or media shows up before the next heading.
func collectSections(doc *goquery.Document) []section {
	var sections []section
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, table, img, blockquote, dl").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
			sections = append(sections, section{
				text:  strings.Join(strings.Fields(s.Text()), " "),
				level: int(name[1] - '0'),
			})
			return
		}
		if len(sections) == 0 {
			return
		}
		if name == "img" || strings.TrimSpace(s.Text()) != "" {
			sections[len(sections)-1].body = true
		}
	})
	return sections
}

// emptySections lists headings with neither body nor a deeper subheading.
func emptySections(sections []section) []string {
	empty := []string{}
	for i, s := range sections {
		if s.body {
			continue
		}
		if i+1 < len(sections) && sections[i+1].level > s.level {
			continue
		}
		empty = append(empty, s.text)
	}
	return empty
}

func headingGaps(sections []section) []string {
	gaps := []string{}
	for i := 1; i < len(sections); i++ {
		if sections[i].level-sections[i-1].level > 1 {
			gaps = append(gaps, sections[i].text)
		}
	}
	return gaps
}

func findDuplicates(ids []string) []string {
	counts := map[string]int{}
	for _, id := range ids {
		if id == "" {
			continue
		}
		counts[id]++
	}
	dups := []string{}
	for id, count := range counts {
		if count > 1 {
			dups = append(dups, id)
		}
	}
	return dups
}

func findBrokenAnchors(anchors []string, ids []string) []string {
	idset := map[string]struct{}{}
	for _, id := range ids {
		if id == "" {
			continue
		}
		idset[id] = struct{}{}
	}
	seen := map[string]struct{}{}
	broken := []string{}
	for _, a := range anchors {
		if a == "" {
			continue
		}
		if _, ok := idset[a]; ok {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		broken = append(broken, a)
	}
	return broken
}
