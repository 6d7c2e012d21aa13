package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// CleanedHTML is page markup with scripts, styles and other noise removed.
type CleanedHTML struct {
	HTML        string `json:"html"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Truncated   bool   `json:"truncated"`
}

var (
	droppedElements = setOf("script", "style", "noscript", "iframe", "embed", "object", "svg", "template")

	blockElements = setOf("div", "p", "section", "article", "header", "footer", "nav", "main",
		"aside", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "tr", "td", "th",
		"form", "fieldset", "blockquote", "pre")

	voidElements = setOf("area", "base", "br", "col", "embed", "hr", "img", "input", "link",
		"meta", "param", "source", "track", "wbr")

	keptAttributes = setOf("id", "class", "role", "aria-label", "aria-describedby")

	keptTagAttributes = map[string]map[string]bool{
		"a":        setOf("href", "target"),
		"img":      setOf("src", "alt"),
		"input":    setOf("name", "type", "placeholder", "value"),
		"textarea": setOf("name", "placeholder"),
		"select":   setOf("name"),
		"button":   setOf("type", "name"),
		"form":     setOf("action", "method"),
	}
)

func setOf(items ...string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// CleanHTML parses markup and rewrites it keeping only semantic structure
// and the attributes useful for targeting elements. Output stops at
// maxLength characters.
func CleanHTML(markup string, maxLength int) (*CleanedHTML, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	c := &cleaner{limit: maxLength}
	c.walk(doc, 0)

	return &CleanedHTML{
		HTML:        c.out.String(),
		Title:       findTitle(doc),
		Description: findMetaDescription(doc),
		Truncated:   c.truncated,
	}, nil
}

type cleaner struct {
	out       strings.Builder
	written   int
	limit     int
	truncated bool
}

func (c *cleaner) full() bool {
	if c.written >= c.limit {
		c.truncated = true
	}
	return c.truncated
}

func (c *cleaner) walk(n *html.Node, depth int) {
	if c.full() {
		return
	}
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return
	case html.TextNode:
		c.text(n.Data)
	case html.ElementNode:
		c.element(n, depth)
	default:
		for child := n.FirstChild; child != nil && !c.truncated; child = child.NextSibling {
			c.walk(child, depth)
		}
	}
}

func (c *cleaner) text(data string) {
	text := strings.TrimSpace(data)
	if text == "" {
		return
	}
	if room := c.limit - c.written; len(text) > room {
		text = text[:room] + "..."
		c.truncated = true
	}
	c.out.WriteString(text)
	c.written += len(text)
}

func (c *cleaner) element(n *html.Node, depth int) {
	tag := strings.ToLower(n.Data)
	if droppedElements[tag] {
		return
	}
	block := blockElements[tag]

	if depth > 0 && block {
		c.newline(depth)
	}
	c.out.WriteString("<" + tag)
	for _, attr := range n.Attr {
		if keepAttribute(tag, attr.Key) {
			fmt.Fprintf(&c.out, ` %s="%s"`, attr.Key, html.EscapeString(attr.Val))
		}
	}
	c.out.WriteString(">")
	c.written += len(tag) + 2

	for child := n.FirstChild; child != nil && !c.truncated; child = child.NextSibling {
		c.walk(child, depth+1)
	}

	if voidElements[tag] {
		return
	}
	if block {
		c.newline(depth)
	}
	c.out.WriteString("</" + tag + ">")
	c.written += len(tag) + 3
}

func (c *cleaner) newline(depth int) {
	c.out.WriteString("\n")
	c.out.WriteString(strings.Repeat("  ", depth))
}

func keepAttribute(tag, attr string) bool {
	attr = strings.ToLower(attr)
	if keptAttributes[attr] || strings.HasPrefix(attr, "data-") {
		return true
	}
	return keptTagAttributes[tag][attr]
}

// findFirst returns the first element node for which match is true.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirst(child, match); found != nil {
			return found
		}
	}
	return nil
}

func findTitle(doc *html.Node) string {
	n := findFirst(doc, func(n *html.Node) bool { return n.Data == "title" })
	if n == nil || n.FirstChild == nil || n.FirstChild.Type != html.TextNode {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}

func findMetaDescription(doc *html.Node) string {
	n := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attrValue(n, "name") == "description" && attrValue(n, "content") != ""
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attrValue(n, "content"))
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
