// Package extract turns raw HTML into content records, link lists, and
// pagination/selector guesses. Everything here is a pure function over
// the document; parse failures degrade to empty results rather than
// aborting a crawl.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Content is one page's extracted fields. Missing fields stay empty.
type Content struct {
	Title       string
	Author      string
	Description string
	Text        string
	PublishedAt string
}

func newDoc(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ExtractContent pulls article-like content out of a page.
func ExtractContent(html string) Content {
	doc, err := newDoc(html)
	if err != nil {
		return Content{}
	}
	var c Content

	c.Title = firstAttr(doc, `meta[property="og:title"]`, "content")
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	c.Author = firstAttr(doc, `meta[name="author"]`, "content")
	if c.Author == "" {
		c.Author = strings.TrimSpace(doc.Find(`[rel="author"], .byline, .author`).First().Text())
	}

	c.Description = firstAttr(doc, `meta[property="og:description"]`, "content")
	if c.Description == "" {
		c.Description = firstAttr(doc, `meta[name="description"]`, "content")
	}

	c.PublishedAt = firstAttr(doc, `meta[property="article:published_time"]`, "content")
	if c.PublishedAt == "" {
		c.PublishedAt = firstAttr(doc, `meta[name="date"]`, "content")
	}
	if c.PublishedAt == "" {
		c.PublishedAt, _ = doc.Find("time[datetime]").First().Attr("datetime")
	}

	c.Text = bodyText(doc)
	return c
}

func firstAttr(doc *goquery.Document, selector, attr string) string {
	value, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(value)
}

func bodyText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()
	for _, selector := range []string{"article", "main", `[role="main"]`} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return collapseSpace(sel.Text())
		}
	}
	return collapseSpace(doc.Find("body").Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
