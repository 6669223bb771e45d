package parser

import (
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// noise is removed before conversion.
const noise = "script, style, noscript, nav, header, footer, iframe, form, #sidebar, .breadcrumb, .wiki_ad"

// Page is the readable form of a wiki page.
type Page struct {
	Title    string
	Markdown string
}

// ToMarkdown converts the main content of a page to Markdown.
// Relative links in the output are made absolute against pageURL's origin.
func ToMarkdown(html, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	title := pageTitle(doc)

	doc.Find(noise).Remove()
	content := doc.Find("#wiki-content-block").First()
	if content.Length() == 0 {
		content = doc.Find("article, main").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body")
	}
	fragment, err := goquery.OuterHtml(content)
	if err != nil {
		return Page{}, fmt.Errorf("render content: %w", err)
	}

	var opts []converter.ConvertOptionFunc
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		opts = append(opts, converter.WithDomain(u.Scheme+"://"+u.Host))
	}
	md, err := htmltomarkdown.ConvertString(fragment, opts...)
	if err != nil {
		return Page{}, fmt.Errorf("convert to markdown: %w", err)
	}

	return Page{Title: title, Markdown: strings.TrimSpace(md)}, nil
}

// pageTitle prefers the first heading and falls back to <title> without the site suffix.
func pageTitle(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	t := strings.TrimSpace(doc.Find("title").First().Text())
	if i := strings.Index(t, " | "); i > 0 {
		t = t[:i]
	}
	return t
}
