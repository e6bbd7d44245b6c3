// Package inspect fetches a single page and shows how the crawl would treat
// it: which path rule applies, what the selectors match, which links would
// be followed and, optionally, the converted markdown.
package inspect

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"mdspider/internal/config"
	"mdspider/internal/fetch"
	"mdspider/internal/markdown"
	"mdspider/internal/parse"
	"mdspider/internal/report"
	"mdspider/internal/rules"
)

type Options struct {
	URL string
	// Config supplies path rules, headers and the fetch backend. Its URL is
	// the crawl seed; when empty the inspected URL is used.
	Config        config.Config
	CheckSelector string
	Preview       bool
	MaxLinks      int
	Fetcher       fetch.Fetcher
	Logger        *zap.Logger
}

type candidate struct {
	Selector string
	Links    int
	Text     int
}

func Run(ctx context.Context, opts Options, w io.Writer) error {
	cfg := opts.Config
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = opts.URL
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 1
	}
	cfg, err := config.Normalize(cfg)
	if err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver, err := rules.New(cfg.PathConfigs, rules.Options{
		SeedURL:        cfg.URL,
		SameDomainOnly: cfg.SameDomainOnly,
		Logger:         logger.Named("rules"),
	})
	if err != nil {
		return err
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		if fetcher, err = fetch.New(cfg, logger.Named("fetch")); err != nil {
			return err
		}
	}

	page, err := fetcher.Fetch(ctx, opts.URL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", opts.URL, err)
	}
	rawHTML := string(page.Body)
	doc, err := parse.NewDocument(rawHTML)
	if err != nil {
		return err
	}

	if strings.TrimSpace(opts.CheckSelector) != "" {
		inspectSpecificSelector(w, doc, opts.CheckSelector)
		return nil
	}

	policy := resolver.Resolve(opts.URL)
	printPolicy(w, policy)
	printSelectorMatches(w, doc, policy)
	printCandidates(w, collectCandidates(doc))
	printTopLinkContainers(w, doc, 5)

	ext, err := parse.Extract(rawHTML, opts.URL, policy)
	if err != nil {
		return err
	}
	printLinks(w, ext.Links, resolver, opts.MaxLinks)

	rep, err := report.Analyze(ext.Content)
	if err != nil {
		return err
	}
	printReport(w, len(ext.Content), rep)

	if opts.Preview && ext.Content != "" {
		md, err := markdown.NewConverter(markdown.Options{LanguageVariant: policy.LanguageVariant}).Convert(ext.Content)
		if err != nil {
			return fmt.Errorf("convert: %w", err)
		}
		fmt.Fprintln(w, "\n--- Markdown preview ---")
		fmt.Fprintln(w, md)
	}
	return nil
}

func printPolicy(w io.Writer, policy config.PathConfig) {
	prefix := policy.PathPrefix
	if prefix == "" {
		prefix = "(default)"
	}
	fmt.Fprintf(w, "Path rule: %s\n", prefix)
	if policy.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", policy.Description)
	}
	fmt.Fprintf(w, "  target: %s\n", strings.Join(policy.TargetSelectors, ", "))
	if len(policy.IgnoreSelectors) > 0 {
		fmt.Fprintf(w, "  ignore: %s\n", strings.Join(policy.IgnoreSelectors, ", "))
	}
	if policy.LanguageVariant != "" {
		fmt.Fprintf(w, "  language variant: %s\n", policy.LanguageVariant)
	}
}

func printSelectorMatches(w io.Writer, doc *goquery.Document, policy config.PathConfig) {
	fmt.Fprintln(w, "\nTarget selector matches:")
	for _, sel := range policy.TargetSelectors {
		fmt.Fprintf(w, "- %s: %d\n", sel, doc.Find(sel).Length())
	}
	for _, sel := range policy.IgnoreSelectors {
		fmt.Fprintf(w, "- %s (ignored): %d\n", sel, doc.Find(sel).Length())
	}
}

func collectCandidates(doc *goquery.Document) []candidate {
	selectors := []string{
		"nav", "aside", "[role='navigation']", ".sidebar", ".toc", ".menu", ".nav",
		"#sidebar", "#toc", "#nav", "main", "article", "[role='main']", ".content", "#content",
	}

	candidates := []candidate{}
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			linkCount := s.Find("a").Length()
			textCount := len(strings.TrimSpace(s.Text()))
			if linkCount == 0 && textCount == 0 {
				return
			}
			candidates = append(candidates, candidate{Selector: sel, Links: linkCount, Text: textCount})
		})
	}
	return candidates
}

func printCandidates(w io.Writer, candidates []candidate) {
	fmt.Fprintln(w, "\nSelector candidates (links/text length):")
	for _, c := range candidates {
		fmt.Fprintf(w, "- %s: links=%d text=%d\n", c.Selector, c.Links, c.Text)
	}
}

func printTopLinkContainers(w io.Writer, doc *goquery.Document, limit int) {
	type box struct {
		Sel   string
		Links int
	}
	boxes := []box{}
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		links := s.Find("a").Length()
		if links >= 10 {
			boxes = append(boxes, box{Sel: nodeSelector(s), Links: links})
		}
	})
	if len(boxes) == 0 {
		return
	}
	sort.SliceStable(boxes, func(i, j int) bool { return boxes[i].Links > boxes[j].Links })

	fmt.Fprintln(w, "\nTop containers by link count (any element):")
	for i, b := range boxes {
		if i >= limit {
			break
		}
		fmt.Fprintf(w, "- %s (links=%d)\n", b.Sel, b.Links)
	}
}

func printLinks(w io.Writer, links []string, resolver *rules.Resolver, limit int) {
	follow := []string{}
	for _, link := range links {
		if resolver.ShouldCrawl(link) {
			follow = append(follow, link)
		}
	}
	fmt.Fprintf(w, "\nLinks: %d found, %d would be followed\n", len(links), len(follow))
	for i, link := range follow {
		if limit > 0 && i >= limit {
			fmt.Fprintf(w, "  ... %d more\n", len(follow)-limit)
			break
		}
		fmt.Fprintf(w, "  %s\n", link)
	}
}

func printReport(w io.Writer, contentLen int, rep report.Report) {
	fmt.Fprintf(w, "\nContent: %d bytes, %d headings, %d tables, %d code blocks\n",
		contentLen, rep.Headings, rep.Tables, rep.CodeBlocks)
	if contentLen == 0 {
		fmt.Fprintln(w, "No content matched the target selectors.")
		return
	}
	if rep.Issues() == 0 {
		fmt.Fprintln(w, "No structural issues.")
		return
	}
	printList(w, "Heading level gaps", rep.HeadingGaps)
	printList(w, "Empty sections", rep.EmptySections)
	printList(w, "Broken in-page anchors", rep.BrokenAnchors)
	printList(w, "Duplicate ids", rep.DuplicateIDs)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func nodeSelector(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if id, exists := s.Attr("id"); exists && id != "" {
		return fmt.Sprintf("#%s", id)
	}
	if classStr, exists := s.Attr("class"); exists {
		classes := strings.Fields(classStr)
		if len(classes) > 0 {
			return fmt.Sprintf("%s.%s", goquery.NodeName(s), strings.Join(classes, "."))
		}
	}
	return goquery.NodeName(s)
}

func inspectSpecificSelector(w io.Writer, doc *goquery.Document, selector string) {
	sel := doc.Find(selector)
	fmt.Fprintf(w, "Inspecting selector: '%s'\n", selector)
	fmt.Fprintf(w, "Found %d matching element(s)\n", sel.Length())

	sel.Each(func(i int, s *goquery.Selection) {
		if i >= 3 {
			return
		}
		fmt.Fprintf(w, "\n--- Match #%d ---\n", i+1)
		fmt.Fprintf(w, "Tag: %s\n", goquery.NodeName(s))

		if id, ok := s.Attr("id"); ok {
			fmt.Fprintf(w, "ID: %s\n", id)
		}
		if class, ok := s.Attr("class"); ok {
			fmt.Fprintf(w, "Class: %s\n", class)
		}

		text := strings.Join(strings.Fields(s.Text()), " ")
		fmt.Fprintf(w, "Text Length: %d chars\n", len(text))
		if r := []rune(text); len(r) > 100 {
			fmt.Fprintf(w, "Text Preview: %s...\n", string(r[:100]))
		} else {
			fmt.Fprintf(w, "Text Preview: %s\n", text)
		}

		fmt.Fprintf(w, "Links inside: %d\n", s.Find("a").Length())
	})
}
