// Package doc models a rich-text document as an HTML fragment tree with
// editor-style position numbering. Every structural element (paragraph,
// heading, list item) contributes one position for its open token and one
// for its close token; text contributes one position per character; inline
// mark elements (links, bold, italic, ...) are transparent and contribute
// nothing. Position 0 sits before the first block, so the first character
// of a leading paragraph is preceded by position 1.
package doc

import (
	"bytes"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed rich-text fragment.
type Document struct {
	body *html.Node
}

// Parse parses an HTML fragment into a Document.
func Parse(fragment string) (*Document, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("doc: parse fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return &Document{body: body}, nil
}

// HTML serializes the document back to an HTML fragment.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	for c := d.body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}

// markTags maps inline HTML elements to mark names. These elements are
// transparent in the position numbering.
var markTags = map[string]string{
	"a":      "link",
	"strong": "bold",
	"b":      "bold",
	"em":     "italic",
	"i":      "italic",
	"u":      "underline",
	"code":   "code",
	"mark":   "highlight",
	"s":      "strike",
	"span":   "span",
}

// leafTags are void elements that occupy a single position.
var leafTags = map[string]bool{
	"br":  true,
	"img": true,
	"hr":  true,
}

// Mark is an inline annotation attached to a text run.
type Mark struct {
	Type  string
	Attrs map[string]string
}

// Run is one leaf text run: its text, the position of its first character
// minus one (the position preceding the run), and the marks covering it.
type Run struct {
	Text  string
	Pos   int
	Marks []Mark
}

// Mark returns the run's mark of the given type, or nil.
func (r Run) Mark(typ string) *Mark {
	for i := range r.Marks {
		if r.Marks[i].Type == typ {
			return &r.Marks[i]
		}
	}
	return nil
}

// Runs yields every text run in document order together with its absolute
// start position and attached marks. The sequence is finite and restartable;
// each range walks the tree afresh.
func (d *Document) Runs() iter.Seq[Run] {
	return func(yield func(Run) bool) {
		pos := 0
		var walk func(n *html.Node, marks []Mark) bool
		walk = func(n *html.Node, marks []Mark) bool {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				switch c.Type {
				case html.TextNode:
					if c.Data == "" {
						continue
					}
					if !yield(Run{Text: c.Data, Pos: pos, Marks: marks}) {
						return false
					}
					pos += utf8.RuneCountInString(c.Data)
				case html.ElementNode:
					if name, ok := markTags[c.Data]; ok {
						nested := append(marks[:len(marks):len(marks)], Mark{Type: name, Attrs: attrMap(c)})
						if !walk(c, nested) {
							return false
						}
						continue
					}
					if leafTags[c.Data] {
						pos++
						continue
					}
					pos++ // open token
					if !walk(c, marks) {
						return false
					}
					pos++ // close token
				}
			}
			return true
		}
		walk(d.body, nil)
	}
}

// PlainText returns the concatenated text of all runs.
func (d *Document) PlainText() string {
	var b strings.Builder
	for run := range d.Runs() {
		b.WriteString(run.Text)
	}
	return b.String()
}

// TextBetween returns the characters whose preceding positions fall in
// [from, to], both inclusive. TextBetween(start+1, end+1) recovers the text
// of an extent spanning [start, end].
func (d *Document) TextBetween(from, to int) string {
	var b strings.Builder
	for run := range d.Runs() {
		runes := []rune(run.Text)
		for k, r := range runes {
			p := run.Pos + k
			if p >= from && p <= to {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// SetLinkMark wraps the characters whose preceding positions fall in
// [from, to] in a link mark carrying href and target attributes. Text nodes
// are split at the range boundaries as needed. It is an error for the range
// to cover no text.
func (d *Document) SetLinkMark(from, to int, href, target string) error {
	if to < from {
		return fmt.Errorf("doc: set link mark: inverted range [%d, %d]", from, to)
	}
	// Repainting an already-marked range must replace the wrapper, not nest
	// a second one inside it. Unwrapping leaves positions untouched because
	// mark elements are transparent.
	d.UnsetLinkMarkByTarget(target)
	type span struct {
		node   *html.Node
		lo, hi int // rune range [lo, hi) within node
	}
	var spans []span
	pos := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				// Character k of this node is preceded by position pos+k.
				length := utf8.RuneCountInString(c.Data)
				lo := from - pos
				hi := to - pos + 1
				if lo < 0 {
					lo = 0
				}
				if hi > length {
					hi = length
				}
				if lo < hi {
					spans = append(spans, span{node: c, lo: lo, hi: hi})
				}
				pos += length
			case html.ElementNode:
				if _, ok := markTags[c.Data]; ok {
					walk(c)
					continue
				}
				if leafTags[c.Data] {
					pos++
					continue
				}
				pos++
				walk(c)
				pos++
			}
		}
	}
	walk(d.body)
	if len(spans) == 0 {
		return fmt.Errorf("doc: set link mark: range [%d, %d] covers no text", from, to)
	}
	for _, s := range spans {
		wrapTextRange(s.node, s.lo, s.hi, href, target)
	}
	return nil
}

// UnsetLinkMark removes every link mark whose text intersects the position
// range [from, to]. The wrapped text is spliced back in place.
func (d *Document) UnsetLinkMark(from, to int) {
	var doomed []*html.Node
	pos := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				pos += utf8.RuneCountInString(c.Data)
			case html.ElementNode:
				if _, ok := markTags[c.Data]; ok {
					entry := pos
					walk(c)
					if c.Data == "a" && pos > entry {
						// Characters inside have preceding positions entry .. pos-1.
						if entry <= to && pos-1 >= from {
							doomed = append(doomed, c)
						}
					}
					continue
				}
				if leafTags[c.Data] {
					pos++
					continue
				}
				pos++
				walk(c)
				pos++
			}
		}
	}
	walk(d.body)
	for _, a := range doomed {
		unwrap(a)
	}
}

// UnsetLinkMarkByTarget removes every link mark carrying the given target
// attribute. The wrapped text is spliced back in place.
func (d *Document) UnsetLinkMarkByTarget(target string) {
	var doomed []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			walk(c)
			if c.Data == "a" && attrMap(c)["target"] == target {
				doomed = append(doomed, c)
			}
		}
	}
	walk(d.body)
	for _, a := range doomed {
		unwrap(a)
	}
}

// wrapTextRange splits node at rune boundaries [lo, hi) and wraps the middle
// segment in an <a href target> element.
func wrapTextRange(node *html.Node, lo, hi int, href, target string) {
	runes := []rune(node.Data)
	parent := node.Parent
	next := node.NextSibling
	before, mid, after := string(runes[:lo]), string(runes[lo:hi]), string(runes[hi:])

	parent.RemoveChild(node)
	if before != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: before}, next)
	}
	wrapper := &html.Node{
		Type:     html.ElementNode,
		Data:     "a",
		DataAtom: atom.A,
		Attr: []html.Attribute{
			{Key: "href", Val: href},
			{Key: "target", Val: target},
		},
	}
	wrapper.AppendChild(&html.Node{Type: html.TextNode, Data: mid})
	parent.InsertBefore(wrapper, next)
	if after != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: after}, next)
	}
}

// unwrap replaces an element with its children.
func unwrap(n *html.Node) {
	parent := n.Parent
	for n.FirstChild != nil {
		c := n.FirstChild
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

func attrMap(n *html.Node) map[string]string {
	if len(n.Attr) == 0 {
		return nil
	}
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}
