// Package parser extracts links and readable text from wiki HTML.
package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors are the regions that carry navigable wiki links.
// Site chrome (header, sidebar, footer) is outside all of them.
var contentSelectors = []string{
	"#wiki-content-block",
	"article",
	"main",
	".infobox",
	".wiki_table",
	"table",
}

type normalizer interface {
	Normalize(raw string) (string, error)
}

// LinkExtractor collects outgoing links from a page.
type LinkExtractor struct {
	norm normalizer
}

// NewLinkExtractor creates a LinkExtractor that canonicalizes links with n.
func NewLinkExtractor(n normalizer) *LinkExtractor {
	return &LinkExtractor{norm: n}
}

// ExtractLinks returns normalized absolute links in document order without duplicates.
// Unparseable documents and links yield nothing rather than an error.
func (e *LinkExtractor) ExtractLinks(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	anchors := contentAnchors(doc)

	seen := make(map[string]struct{})
	var out []string
	anchors.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		norm, err := e.norm.Normalize(base.ResolveReference(ref).String())
		if err != nil {
			return
		}
		if _, dup := seen[norm]; dup {
			return
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	})
	return out
}

// contentAnchors selects anchors inside content regions, falling back to the whole body.
// goquery keeps a union of selections in document order with duplicates removed.
func contentAnchors(doc *goquery.Document) *goquery.Selection {
	regions := doc.Find(strings.Join(contentSelectors, ", "))
	if regions.Length() == 0 {
		return doc.Find("body a[href]")
	}
	return regions.Find("a[href]")
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, p := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
