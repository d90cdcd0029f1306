package extract

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Inference is a guessed crawl configuration for a start page.
type Inference struct {
	LinkSelector   string `json:"linkSelector"`
	NextButtonText string `json:"nextButtonText"`
}

// InferSelectors guesses a link selector for the page by clustering its
// same-origin links on their first two path segments and targeting the
// densest cluster, with a plain anchor selector as the fallback. The
// next-button text falls back to "next" when the hint is empty.
func InferSelectors(html, startURL, nextHint string) Inference {
	links := SameOriginLinks(html, startURL)
	cluster := bestCluster(links)
	selector := "a"
	if cluster != "" {
		candidate := fmt.Sprintf(`a[href^="/%s"]`, cluster)
		if CountMatches(html, candidate) > 0 {
			selector = candidate
		}
	}
	if nextHint == "" {
		nextHint = "next"
	}
	return Inference{LinkSelector: selector, NextButtonText: nextHint}
}

// CountMatches reports how many elements the selector hits; a preflight
// so callers can reject selectors that match nothing.
func CountMatches(html, selector string) int {
	doc, err := newDoc(html)
	if err != nil {
		return 0
	}
	return doc.Find(selector).Length()
}

func bestCluster(links []string) string {
	counts := make(map[string]int)
	for _, link := range links {
		parsed, err := url.Parse(link)
		if err != nil {
			continue
		}
		segments := strings.FieldsFunc(parsed.Path, func(r rune) bool { return r == '/' })
		if len(segments) == 0 {
			continue
		}
		if len(segments) > 2 {
			segments = segments[:2]
		}
		counts[strings.Join(segments, "/")]++
	}
	type clusterCount struct {
		cluster string
		count   int
	}
	ordered := make([]clusterCount, 0, len(counts))
	for cluster, count := range counts {
		ordered = append(ordered, clusterCount{cluster, count})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].cluster < ordered[j].cluster
	})
	if len(ordered) == 0 {
		return ""
	}
	return ordered[0].cluster
}
