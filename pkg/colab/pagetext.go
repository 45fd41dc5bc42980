package colab

import (
	"strings"

	"golang.org/x/net/html"
)

// visibleText extracts the human-visible text from an HTML fragment.
// Script, style and similar non-rendered elements are dropped; block
// elements contribute line breaks so output markers stay line-separated.
func visibleText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		// cell output fragments come from the live DOM; if parsing
		// fails, fall back to the raw text
		return strings.TrimSpace(fragment)
	}

	var builder strings.Builder
	collectText(doc, &builder)
	return strings.TrimSpace(collapseBlankLines(builder.String()))
}

func collectText(n *html.Node, builder *strings.Builder) {
	if n.Type == html.CommentNode {
		return
	}
	if n.Type == html.ElementNode && isHiddenElement(strings.ToLower(n.Data)) {
		return
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			builder.WriteString(text)
			builder.WriteString(" ")
		}
		return
	}

	if n.Type == html.ElementNode && breaksLine(strings.ToLower(n.Data)) {
		builder.WriteString("\n")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, builder)
	}

	if n.Type == html.ElementNode && breaksLine(strings.ToLower(n.Data)) {
		builder.WriteString("\n")
	}
}

func isHiddenElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "iframe", "svg", "template":
		return true
	}
	return false
}

func breaksLine(tagName string) bool {
	switch tagName {
	case "div", "p", "pre", "br", "li", "tr", "section", "output-area":
		return true
	}
	return false
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
