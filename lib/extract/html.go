package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	whitespace = regexp.MustCompile(`\s+`)

	invisibleElements = map[string]bool{
		"script":   true,
		"style":    true,
		"noscript": true,
		"template": true,
	}
)

// Rule selects one node by XPath and reads either its text or one of its attributes.
type Rule struct {
	XPath string
	Attr  string
}

// firstMatch returns the text of the first rule that yields something non-empty.
func firstMatch(doc *html.Node, rules []Rule) string {
	for _, rule := range rules {
		if text := selectRule(doc, rule); text != "" {
			return text
		}
	}
	return ""
}

func selectRule(doc *html.Node, rule Rule) string {
	node := htmlquery.FindOne(doc, rule.XPath)
	if node == nil {
		return ""
	}
	if rule.Attr != "" {
		return compactWhitespace(htmlquery.SelectAttr(node, rule.Attr))
	}
	return digForText(node)
}

func digForText(n *html.Node) string {
	if n == nil {
		return ""
	}
	buf := new(bytes.Buffer)
	dig(n, buf)
	return compactWhitespace(buf.String())
}

func dig(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		dig(c, buf)
	}
}

// visibleText is the page text a reader would see, one space between text nodes.
func visibleText(n *html.Node) string {
	buf := new(bytes.Buffer)
	digVisible(n, buf)
	return compactWhitespace(buf.String())
}

func digVisible(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.ElementNode && invisibleElements[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
		buf.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		digVisible(c, buf)
	}
}

func compactWhitespace(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ")
	return s
}
