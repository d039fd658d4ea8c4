package summarizer

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extraction works through an ordered chain of strategies, each a pure
// function over the parsed document. The first strategy yielding text wins.

// strategy locates the article body in a document and returns its text, or ""
// when the strategy does not apply.
type strategy struct {
	name    string
	extract func(doc *goquery.Document) string
}

const defaultStrip = "pre, code, script, style"

// selectorStrategy returns the text of the first match among the given CSS
// selectors, with noisy elements removed first.
func selectorStrategy(name, strip string, selectors ...string) strategy {
	return strategy{
		name: name,
		extract: func(doc *goquery.Document) string {
			for _, sel := range selectors {
				node := doc.Find(sel).First()
				if node.Length() == 0 {
					continue
				}
				node.Find(strip).Remove()
				if text := blockText(node); text != "" {
					return text
				}
			}
			return ""
		},
	}
}

// strategiesFor builds the extraction chain for an article link: a
// source-specific container first, then generic article containers, then main
// containers, then the whole body minus navigational chrome.
func strategiesFor(link string) []strategy {
	var chain []strategy

	switch {
	case strings.Contains(link, "zenn.dev"):
		chain = append(chain, selectorStrategy("zenn", defaultStrip, "article.article"))
	case strings.Contains(link, "qiita.com"):
		chain = append(chain, selectorStrategy("qiita", defaultStrip, ".it-MdContent"))
	}

	chain = append(chain,
		selectorStrategy("article", defaultStrip, "article", ".article", ".post-content"),
		selectorStrategy("main", defaultStrip, "main", "#main", ".main-content"),
		selectorStrategy("body", "header, footer, nav, aside, "+defaultStrip, "body"),
	)
	return chain
}

// ExtractText parses the HTML and runs the strategy chain for the link,
// returning the first non-empty body text or "".
func ExtractText(html []byte, link string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	for _, s := range strategiesFor(link) {
		if text := s.extract(doc); text != "" {
			return text
		}
	}
	return ""
}

// blockText collects the text content of a selection, joining block
// boundaries with newlines.
func blockText(sel *goquery.Selection) string {
	var parts []string
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(sel)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
