// Package xquery evaluates a restricted path-expression grammar plus a
// FLWOR-shaped filter/aggregate/group-by layer against a cached parse
// of a dataset's generated XML.
package xquery

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/ipvc/tabx/errors"
)

// Tree is an immutable parsed XML document. Nodes live in a flat arena
// indexed by integer id in document order, so "earlier in document"
// comparisons reduce to id comparisons.
type Tree struct {
	nodes []treeNode
}

type treeNode struct {
	parent   int
	name     string
	text     string
	isNil    bool
	children []int
}

const noNode = -1

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// ParseTree parses an XML document into its arena form.
func ParseTree(doc []byte) (*Tree, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))

	t := &Tree{}
	var stack []int
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse XML document")
		}
		switch tk := tok.(type) {
		case xml.StartElement:
			id := len(t.nodes)
			n := treeNode{parent: noNode, name: tk.Name.Local}
			for _, attr := range tk.Attr {
				if attr.Name.Local == "nil" && (attr.Name.Space == xsiNamespace || attr.Name.Space == "xsi") && attr.Value == "true" {
					n.isNil = true
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				n.parent = parent
				t.nodes = append(t.nodes, n)
				t.nodes[parent].children = append(t.nodes[parent].children, id)
			} else {
				if len(t.nodes) > 0 {
					return nil, errors.New("multiple root elements")
				}
				t.nodes = append(t.nodes, n)
			}
			stack = append(stack, id)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				t.nodes[stack[len(stack)-1]].text += string(tk)
			}
		}
	}
	if len(t.nodes) == 0 {
		return nil, errors.New("document has no root element")
	}
	return t, nil
}

// Root returns the document root node id.
func (t *Tree) Root() int { return 0 }

// Name returns a node's element name.
func (t *Tree) Name(id int) string { return t.nodes[id].name }

// IsNil reports whether the node carries the nil marker.
func (t *Tree) IsNil(id int) bool { return t.nodes[id].isNil }

// Children returns a node's child element ids in document order.
func (t *Tree) Children(id int) []int { return t.nodes[id].children }

// Text returns the node's text content: its own character data plus
// that of all descendants, trimmed.
func (t *Tree) Text(id int) string {
	if len(t.nodes[id].children) == 0 {
		return strings.TrimSpace(t.nodes[id].text)
	}
	var b strings.Builder
	t.collectText(id, &b)
	return strings.TrimSpace(b.String())
}

func (t *Tree) collectText(id int, b *strings.Builder) {
	if len(t.nodes[id].children) == 0 {
		b.WriteString(strings.TrimSpace(t.nodes[id].text))
		return
	}
	for _, c := range t.nodes[id].children {
		t.collectText(c, b)
	}
}

// Child returns the id of the first child with the given name.
func (t *Tree) Child(id int, name string) (int, bool) {
	for _, c := range t.nodes[id].children {
		if t.nodes[c].name == name {
			return c, true
		}
	}
	return noNode, false
}
