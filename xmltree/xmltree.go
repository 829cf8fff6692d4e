// Package xmltree holds an immutable tree of XML elements and writes it as an XML document.
// Trees are assembled bottom-up: children first, then the element holding them.
package xmltree

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// DefaultIndent is the number of spaces per nesting level
const DefaultIndent = 2

// Attr is an attribute. Name may carry a namespace prefix, e.g. "xlink:href".
type Attr struct {
	Name  string
	Value string
}

// Attrs pairs up names and values: Attrs("a", "1", "b", "2")
func Attrs(nameValues ...string) []Attr {
	if len(nameValues)%2 != 0 {
		panic(fmt.Sprintf("xmltree.Attrs: odd number of arguments: %v", nameValues))
	}
	attrs := make([]Attr, 0, len(nameValues)/2)
	for i := 0; i < len(nameValues); i += 2 {
		attrs = append(attrs, Attr{Name: nameValues[i], Value: nameValues[i+1]})
	}
	return attrs
}

// Node is an element: a name, ordered attributes, optional text and ordered children
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Node
}

// Element creates an element with children, skipping nil children
func Element(name string, attrs []Attr, children ...*Node) *Node {
	n := &Node{Name: name, Attrs: attrs}
	for _, child := range children {
		if child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// TextElement creates an element with text content
func TextElement(name, text string, attrs ...Attr) *Node {
	return &Node{Name: name, Attrs: attrs, Text: text}
}

// Attr returns the value of the named attribute
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// FindAll returns the descendants matching a slash separated path of element names, relative to n
func (n *Node) FindAll(path string) []*Node {
	nodes := []*Node{n}
	for _, name := range strings.Split(path, "/") {
		var next []*Node
		for _, node := range nodes {
			for _, child := range node.Children {
				if child.Name == name {
					next = append(next, child)
				}
			}
		}
		nodes = next
	}
	return nodes
}

// Find returns the first match of FindAll, or nil
func (n *Node) Find(path string) *Node {
	found := n.FindAll(path)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Document converts the tree to an etree document with an XML declaration
func Document(root *Node) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	appendNode(&doc.Element, root)
	return doc
}

func appendNode(parent *etree.Element, n *Node) {
	e := parent.CreateElement(n.Name)
	for _, a := range n.Attrs {
		e.CreateAttr(a.Name, a.Value)
	}
	if n.Text != "" {
		e.SetText(n.Text)
	}
	for _, child := range n.Children {
		appendNode(e, child)
	}
}

// Encode writes the tree as a pretty-printed UTF-8 XML document
func Encode(w io.Writer, root *Node, indent int) error {
	doc := Document(root)
	doc.Indent(indent)
	_, err := doc.WriteTo(w)
	return err
}

// Marshal returns the tree as a pretty-printed UTF-8 XML document
func Marshal(root *Node, indent int) ([]byte, error) {
	doc := Document(root)
	doc.Indent(indent)
	return doc.WriteToBytes()
}
