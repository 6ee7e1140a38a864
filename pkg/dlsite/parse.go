package dlsite

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const (
	fieldRelease = "release"
	fieldSeries  = "series"
	fieldAge     = "age"
	fieldFormat  = "format"
	fieldGenre   = "genre"
)

// Work outline table headers for the locales the site renders. Unknown
// headers fall through the dispatch and their rows are ignored.
var outlineHeaders = map[string]string{
	"販売日":          fieldRelease,
	"Release date":   fieldRelease,
	"シリーズ名":        fieldSeries,
	"Series name":    fieldSeries,
	"年齢指定":         fieldAge,
	"Age":            fieldAge,
	"作品形式":         fieldFormat,
	"Product format": fieldFormat,
	"ジャンル":         fieldGenre,
	"Genre":          fieldGenre,
	"作者":           RoleAuthor,
	"Author":         RoleAuthor,
	"シナリオ":         RoleScenario,
	"Scenario":       RoleScenario,
	"イラスト":         RoleIllustration,
	"Illustration":   RoleIllustration,
	"声優":           RoleVoice,
	"Voice Actor":    RoleVoice,
	"音楽":           RoleMusic,
	"Music":          RoleMusic,
}

// ParseWork extracts a Listing from one work page. Individual fields
// that are missing from the markup stay absent; only an unparseable
// document or page URL is an error.
func ParseWork(body io.Reader, pageURL string) (*Listing, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Link: workLink(doc, pageURL)}

	if h1 := findNode(doc, isElementWithID("h1", "work_name")); h1 != nil {
		listing.Title = nodeText(h1)
	}
	if maker := findNode(doc, isElementWithClass("span", "maker_name")); maker != nil {
		listing.Circle = nodeText(maker)
	}
	if table := findNode(doc, isElementWithID("table", "work_outline")); table != nil {
		parseOutline(table, listing)
	}

	listing.CoverURL = metaProperty(doc, "og:image")
	listing.ProductImages = sliderImages(doc, base)
	listing.Description = descriptionHTML(doc)

	return listing, nil
}

// workLink prefers the page's canonical link over the request URL and
// strips the locale parameter so stored links stay language-neutral.
func workLink(doc *html.Node, pageURL string) string {
	link := pageURL
	if n := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "link" && attr(n, "rel") == "canonical"
	}); n != nil {
		if href := strings.TrimSpace(attr(n, "href")); href != "" {
			link = href
		}
	}
	link = stripLocale(link)
	if normalized, err := Normalize(link); err == nil {
		return normalized
	}
	return link
}

func parseOutline(table *html.Node, listing *Listing) {
	eachNode(table, isElement("tr"), func(tr *html.Node) {
		th := findNode(tr, isElement("th"))
		td := findNode(tr, isElement("td"))
		if th == nil || td == nil {
			return
		}

		switch kind := outlineHeaders[nodeText(th)]; kind {
		case fieldRelease:
			listing.ReleaseDate = parseReleaseDate(nodeText(td))
		case fieldSeries:
			listing.Series = nodeText(td)
		case fieldAge:
			listing.AgeRating = nodeText(td)
		case fieldFormat:
			listing.WorkFormats = append(listing.WorkFormats, cellItems(td)...)
		case fieldGenre:
			listing.Genres = append(listing.Genres, cellItems(td)...)
		case RoleAuthor, RoleScenario, RoleIllustration, RoleVoice, RoleMusic:
			for _, name := range cellItems(td) {
				listing.Contributors = append(listing.Contributors, Contributor{Role: kind, Name: name})
			}
		}
	})
}

// cellItems returns the anchor texts of an outline cell, or the whole
// cell text when the cell carries no links.
func cellItems(td *html.Node) []string {
	var items []string
	eachNode(td, isElement("a"), func(a *html.Node) {
		if text := nodeText(a); text != "" {
			items = append(items, text)
		}
	})
	if items == nil {
		if text := nodeText(td); text != "" {
			items = append(items, text)
		}
	}
	return items
}

// sliderImages collects the sample image URLs the product slider is
// populated from. The site serves them protocol-relative.
func sliderImages(doc *html.Node, base *url.URL) []string {
	slider := findNode(doc, isElementWithClass("div", "product-slider-data"))
	if slider == nil {
		return nil
	}

	var images []string
	eachNode(slider, isElement("div"), func(n *html.Node) {
		if src := resolveImage(attr(n, "data-src"), base); src != "" {
			images = append(images, src)
		}
	})
	return images
}

func resolveImage(val string, base *url.URL) string {
	val = strings.TrimSpace(val)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "//") {
		return "https:" + val
	}

	u, err := url.Parse(val)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)

	scheme := strings.ToLower(abs.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return abs.String()
}

func metaProperty(doc *html.Node, property string) string {
	n := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "meta" && attr(n, "property") == property
	})
	if n == nil {
		return ""
	}

	content := strings.TrimSpace(attr(n, "content"))
	if strings.HasPrefix(content, "//") {
		content = "https:" + content
	}
	return content
}

// descriptionHTML renders the description block's inner markup so rich
// text survives for hosts that display it.
func descriptionHTML(doc *html.Node) string {
	n := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "itemprop") == "description"
	})
	if n == nil {
		return ""
	}

	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findNode(c, match); res != nil {
			return res
		}
	}
	return nil
}

func eachNode(n *html.Node, match func(*html.Node) bool, visit func(*html.Node)) {
	if match(n) {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		eachNode(c, match, visit)
	}
}

func isElement(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

func isElementWithID(name, id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name && attr(n, "id") == id
	}
}

func isElementWithClass(name, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name && hasClass(n, class)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	textNodes(n, &sb)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func textNodes(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		textNodes(c, sb)
	}
}
