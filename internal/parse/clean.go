package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// alwaysStripped is removed from every page before any policy applies.
var alwaysStripped = []string{"script", "style"}

// RemoveSelectors deletes every element matching any of selectors. Blank
// selectors are ignored; selectors goquery cannot compile match nothing.
func RemoveSelectors(doc *goquery.Document, selectors ...string) error {
	if doc == nil {
		return ErrNilDocument
	}
	for _, selector := range selectors {
		if strings.TrimSpace(selector) == "" {
			continue
		}
		doc.Find(selector).Remove()
	}
	return nil
}
