package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SelectLinks returns the absolute URLs matched by the CSS selector,
// resolved against base, in document order with duplicates removed.
// An empty selector means every anchor; any failure means no links.
func SelectLinks(html, baseURL, selector string) []string {
	if selector == "" {
		selector = "a[href]"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved := resolveHref(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links
}

// SameOriginLinks returns every anchor on the page whose resolved URL
// shares the base URL's scheme and host.
func SameOriginLinks(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	var out []string
	for _, link := range SelectLinks(html, baseURL, "a[href]") {
		parsed, err := url.Parse(link)
		if err != nil {
			continue
		}
		if strings.EqualFold(parsed.Scheme, base.Scheme) && strings.EqualFold(parsed.Host, base.Host) {
			out = append(out, link)
		}
	}
	return out
}

func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
