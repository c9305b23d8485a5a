package aarp

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// ExtractText returns the visible text of the report area of page: the main
// element, the #content div, or the body, in that order. Each text node is
// trimmed and emitted on its own line; blank nodes are dropped.
func ExtractText(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", eris.Wrap(err, "aarp: parse html")
	}

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("div#content").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return "", ErrUnexpectedPage
	}

	var lines []string
	for _, n := range root.Nodes {
		collectText(n, &lines)
	}
	if len(lines) == 0 {
		return "", ErrUnexpectedPage
	}
	return strings.Join(lines, "\n"), nil
}

func collectText(n *html.Node, lines *[]string) {
	switch n.Type {
	case html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			*lines = append(*lines, s)
		}
		return
	case html.ElementNode:
		if _, skip := skippedElements[n.Data]; skip {
			return
		}
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, lines)
	}
}
