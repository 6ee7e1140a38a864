package dlsite

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText flattens an HTML fragment into whitespace-collapsed text,
// for rendering listing descriptions outside rich-text hosts.
func PlainText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	plainTextNodes(doc, &sb)

	return strings.Join(strings.Fields(sb.String()), " ")
}

func plainTextNodes(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg":
			return
		case "br", "p":
			sb.WriteString(" ")
		}
	}

	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		plainTextNodes(c, sb)
	}
}
