// Package htmlclean reduces scraped supplier markup to the text an LLM needs.
package htmlclean

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Strategy turns a pruned document into cleaned output.
type Strategy interface {
	Apply(doc *goquery.Document) (string, error)
}

// TableTextStrategy strips presentation attributes and emits the text of
// every table, row and cell in document order, one per line.
type TableTextStrategy struct{}

// GenericStrategy returns the pruned markup of the document body.
type GenericStrategy struct{}

var tableSites = map[string]bool{
	"TE Connectivity": true,
	"Molex":           true,
}

// StrategyFor returns the cleaning strategy for a site name.
func StrategyFor(site string) Strategy {
	if tableSites[site] {
		return TableTextStrategy{}
	}
	return GenericStrategy{}
}

// Clean removes scripts, styles and text-less elements from rawHTML, then
// applies the strategy registered for site. An empty result means nothing
// useful was found.
func Clean(rawHTML, site string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style").Remove()
	pruneEmpty(doc)

	return StrategyFor(site).Apply(doc)
}

// Apply implements Strategy.
func (TableTextStrategy) Apply(doc *goquery.Document) (string, error) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			if isPresentationAttr(attr.Key) {
				continue
			}
			kept = append(kept, attr)
		}
		node.Attr = kept
	})

	var lines []string
	doc.Find("table, tr, td, th").Each(func(_ int, s *goquery.Selection) {
		if text := strippedText(s.Get(0)); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n"), nil
}

// Apply implements Strategy.
func (GenericStrategy) Apply(doc *goquery.Document) (string, error) {
	body := doc.Find("body")
	if body.Length() == 0 {
		return "", nil
	}
	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func isPresentationAttr(key string) bool {
	switch key {
	case "class", "id", "style":
		return true
	}
	return strings.HasPrefix(key, "data-")
}

// pruneEmpty detaches every element whose stripped text is empty.
func pruneEmpty(doc *goquery.Document) {
	var empty []*html.Node
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if strippedText(s.Get(0)) == "" {
			empty = append(empty, s.Get(0))
		}
	})
	for _, n := range empty {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// strippedText concatenates the trimmed, non-empty text nodes under n.
func strippedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
