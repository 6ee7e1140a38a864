package dlsite

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Candidate is one search-result entry, alive only between a search and
// the selection of a listing.
type Candidate struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// ParseSearchResults extracts the result entries from a search page.
// An empty page yields an empty slice, not an error.
func ParseSearchResults(body io.Reader, pageURL string) ([]Candidate, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	eachNode(doc, isElementWithClass("dt", "work_name"), func(dt *html.Node) {
		a := findNode(dt, isElement("a"))
		if a == nil {
			return
		}

		href := resolveCandidateHref(attr(a, "href"), base)
		if href == "" {
			return
		}

		// The title attribute carries the untruncated name; the anchor
		// text may be clipped for display.
		title := strings.TrimSpace(attr(a, "title"))
		if title == "" {
			title = nodeText(a)
		}
		if title == "" {
			return
		}

		candidates = append(candidates, Candidate{Title: title, Href: href})
	})

	return candidates, nil
}

func resolveCandidateHref(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)

	scheme := strings.ToLower(abs.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}

	normalized, err := Normalize(abs.String())
	if err != nil {
		return abs.String()
	}
	return normalized
}
