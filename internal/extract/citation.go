// Package extract reduces formatted-citation HTML to plain text and links.
package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/datacite/akita/internal/model"
)

// DefaultBase resolves relative links in citations
const DefaultBase = "https://doi.org/"

// CitationExtractor turns formatted-citation HTML into a model.Citation
type CitationExtractor struct {
	base *url.URL
}

// NewCitationExtractor creates an extractor resolving relative links against
// baseURL, or DefaultBase when baseURL is empty
func NewCitationExtractor(baseURL string) (*CitationExtractor, error) {
	if baseURL == "" {
		baseURL = DefaultBase
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &CitationExtractor{base: base}, nil
}

// Extract parses htmlContent. Entities are decoded, whitespace is collapsed
// and links are returned in document order without duplicates.
func (e *CitationExtractor) Extract(htmlContent string) (*model.Citation, error) {
	nodes, err := html.ParseFragment(strings.NewReader(htmlContent), &html.Node{
		Type: html.ElementNode,
		Data: "div",
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	var links []model.CitationLink
	var walk func(*html.Node)

	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
		case html.ElementNode:
			if isBreak(n.Data) {
				text.WriteByte(' ')
			}
			if n.Data == "a" {
				if link, ok := e.link(n); ok {
					links = append(links, link)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBreak(n.Data) {
			text.WriteByte(' ')
		}
	}

	for _, n := range nodes {
		walk(n)
	}

	return &model.Citation{
		Text:  collapse(text.String()),
		Links: dedupeLinks(links),
	}, nil
}

// CitationText returns the plain text of a formatted citation, or the input
// unchanged when it cannot be parsed
func CitationText(htmlContent string) string {
	e, _ := NewCitationExtractor("")
	c, err := e.Extract(htmlContent)
	if err != nil {
		return htmlContent
	}
	return c.Text
}

func (e *CitationExtractor) link(n *html.Node) (model.CitationLink, bool) {
	href := ""
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
		}
	}
	if href == "" {
		return model.CitationLink{}, false
	}

	resolved := resolveURL(e.base, href)
	if resolved == nil {
		return model.CitationLink{}, false
	}

	return model.CitationLink{
		URL:  resolved.String(),
		Host: resolved.Host,
		Text: collapse(nodeText(n)),
		Kind: classifyLink(resolved),
	}, true
}

// resolveURL resolves a relative URL against a base URL, keeping only http
// and https targets
func resolveURL(base *url.URL, href string) *url.URL {
	if strings.HasPrefix(href, "#") {
		return nil
	}
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return nil
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return nil
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil
	}
	return resolved
}

func classifyLink(u *url.URL) model.LinkKind {
	host := strings.ToLower(u.Host)
	if host == "doi.org" || host == "dx.doi.org" || strings.HasSuffix(host, ".doi.org") {
		return model.LinkKindDOI
	}
	return model.LinkKindURL
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// isBreak reports elements that separate words when rendered
func isBreak(tag string) bool {
	switch tag {
	case "br", "p", "div", "li", "tr", "td":
		return true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dedupeLinks(links []model.CitationLink) []model.CitationLink {
	seen := make(map[string]bool)
	var unique []model.CitationLink

	for _, l := range links {
		if !seen[l.URL] {
			seen[l.URL] = true
			unique = append(unique, l)
		}
	}

	return unique
}
