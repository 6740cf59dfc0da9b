package scraper

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonContentSelectors lists elements removed before paragraph text is read.
const nonContentSelectors = "script, style, template"

// Extract reduces an HTML document to the text of its paragraphs and its
// title. Paragraph texts are trimmed, non-breaking spaces become plain spaces,
// and the results are joined with a single space. A document without
// paragraphs yields "", and one without a <title> yields NoTitleFound.
func Extract(body []byte) (text, title string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", NoTitleFound
	}

	title = NoTitleFound
	if sel := doc.Find("title").First(); sel.Length() > 0 {
		title = strings.TrimSpace(sel.Text())
	}

	doc.Find(nonContentSelectors).Remove()
	for _, n := range doc.Nodes {
		stripMarkupDeclarations(n)
	}

	paragraphs := doc.Find("p")
	parts := make([]string, 0, paragraphs.Length())
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		parts = append(parts, strings.ReplaceAll(strings.TrimSpace(p.Text()), "\u00a0", " "))
	})
	return strings.Join(parts, " "), title
}

// ExtractLinks returns the raw href value of every anchor that has one, in
// document order. Nothing is resolved or deduplicated.
func ExtractLinks(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	anchors := doc.Find("a[href]")
	links := make([]string, 0, anchors.Length())
	anchors.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links = append(links, href)
	})
	return links, nil
}

// stripMarkupDeclarations removes comment and doctype nodes below n. The HTML
// parser reports processing instructions as comments, so they go too.
func stripMarkupDeclarations(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.CommentNode, html.DoctypeNode:
			n.RemoveChild(c)
		default:
			stripMarkupDeclarations(c)
		}
		c = next
	}
}
