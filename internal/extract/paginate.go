package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var nextTokens = []string{"next", "older", "more", "›", "»"}

// DetectNextURL finds the next-page link: a rel=next link first, then
// an anchor whose text matches the hint or a common pagination token,
// then anchors with pagination class names. Empty result means no next
// page.
func DetectNextURL(html, baseURL, hint string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	if href := firstHref(doc, `a[rel="next"], link[rel="next"]`, base); href != "" {
		return href
	}

	tokens := nextTokens
	if hint = strings.ToLower(strings.TrimSpace(hint)); hint != "" {
		tokens = append([]string{hint}, nextTokens...)
	}
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		if text == "" {
			return true
		}
		for _, token := range tokens {
			if strings.Contains(text, token) {
				if href, ok := sel.Attr("href"); ok {
					if resolved := resolveHref(base, href); resolved != "" {
						found = resolved
						return false
					}
				}
			}
		}
		return true
	})
	if found != "" {
		return found
	}

	return firstHref(doc, `a.next, .pagination a[href], .pager a[href]`, base)
}

func firstHref(doc *goquery.Document, selector string, base *url.URL) string {
	var found string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		if resolved := resolveHref(base, href); resolved != "" {
			found = resolved
			return false
		}
		return true
	})
	return found
}
