// Package parse extracts the configured content regions and outbound links
// from a fetched page.
package parse

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mdspider/internal/config"
	"mdspider/internal/frontier"
)

var (
	ErrEmptyHTML   = errors.New("empty html")
	ErrNilDocument = errors.New("nil document")
)

type Extraction struct {
	// Content is the concatenated outer HTML of every target match. It may
	// be empty.
	Content string
	// Links are absolute, normalized and unique, in discovery order.
	Links []string
}

func NewDocument(htmlText string) (*goquery.Document, error) {
	if strings.TrimSpace(htmlText) == "" {
		return nil, ErrEmptyHTML
	}
	return goquery.NewDocumentFromReader(strings.NewReader(htmlText))
}

// Extract applies policy to rawHTML. Content comes from a copy of the page
// with script, style and ignored elements removed; links come from the
// untouched page.
func Extract(rawHTML, pageURL string, policy config.PathConfig) (Extraction, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return Extraction{}, nil
	}

	doc, err := NewDocument(rawHTML)
	if err != nil {
		return Extraction{}, err
	}
	links := Links(doc, pageURL)

	doc, err = NewDocument(rawHTML)
	if err != nil {
		return Extraction{}, err
	}
	if err := RemoveSelectors(doc, alwaysStripped...); err != nil {
		return Extraction{}, err
	}
	if err := RemoveSelectors(doc, policy.IgnoreSelectors...); err != nil {
		return Extraction{}, err
	}

	content, err := SelectContent(doc, targetSelectors(policy))
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{Content: content, Links: links}, nil
}

func targetSelectors(policy config.PathConfig) []string {
	if len(policy.TargetSelectors) == 0 {
		return []string{"body"}
	}
	return policy.TargetSelectors
}

// SelectContent concatenates the outer HTML of each selector's matches, in
// selector order and then document order.
func SelectContent(doc *goquery.Document, selectors []string) (string, error) {
	if doc == nil {
		return "", ErrNilDocument
	}
	var b strings.Builder
	for _, selector := range selectors {
		if strings.TrimSpace(selector) == "" {
			continue
		}
		var failed error
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			html, err := goquery.OuterHtml(s)
			if err != nil {
				failed = err
				return false
			}
			b.WriteString(html)
			return true
		})
		if failed != nil {
			return "", failed
		}
	}
	return b.String(), nil
}

// Links resolves every a[href] in doc against pageURL.
func Links(doc *goquery.Document, pageURL string) []string {
	if doc == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := frontier.Resolve(pageURL, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}
