// Package dom is a minimal, disposable document-object surface for the SVG serializer.
//
// A Document is created for exactly one render, populated by the serializer and
// released afterwards. Nothing in this package is global, so concurrent renders
// can never observe each other's nodes.
package dom

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Namespace is the SVG namespace stamped on every root element.
const Namespace = "http://www.w3.org/2000/svg"

var (
	// ErrReleased is returned when a released document is used again.
	ErrReleased = errors.New("document already released")
	// ErrForeignNode is returned when a node from another document is attached.
	ErrForeignNode = errors.New("node belongs to another document")
)

// knownTags are the element types the serializer is allowed to create.
var knownTags = map[string]bool{
	"svg": true, "g": true, "title": true, "desc": true, "defs": true,
	"circle": true, "ellipse": true, "rect": true, "line": true, "path": true,
	"text": true, "image": true,
}

// Attr is a single attribute. Attributes keep insertion order.
type Attr struct {
	Name  string
	Value string
}

// Element is a node of the document tree.
type Element struct {
	Tag      string
	attrs    []Attr
	children []*Element
	text     string
	doc      *Document
}

// Document owns a tree rooted at an <svg> element.
type Document struct {
	mu       sync.Mutex
	root     *Element
	released bool
	nodes    int
}

// NewDocument creates an empty document with an <svg> root.
func NewDocument() *Document {
	d := &Document{}
	d.root = &Element{Tag: "svg", doc: d}
	d.root.SetAttr("xmlns", Namespace)
	d.root.SetAttr("version", "1.2")
	d.nodes = 1
	return d
}

// Root returns the root <svg> element.
func (d *Document) Root() *Element {
	return d.root
}

// CreateElement creates a detached element owned by this document.
func (d *Document) CreateElement(tag string) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, ErrReleased
	}
	if !knownTags[tag] {
		return nil, fmt.Errorf("unsupported element type %q", tag)
	}
	d.nodes++
	return &Element{Tag: tag, doc: d}, nil
}

// QuerySelectorAll returns every element with the given tag in document order.
func (d *Document) QuerySelectorAll(tag string) []*Element {
	var out []*Element
	var walk func(e *Element)
	walk = func(e *Element) {
		if e.Tag == tag {
			out = append(out, e)
		}
		for _, c := range e.children {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

// Len reports how many elements the document has created, root included.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nodes
}

// Released reports whether Release has been called.
func (d *Document) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// Release drops the tree. Later CreateElement calls fail with ErrReleased.
func (d *Document) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	d.root.children = nil
}

// SetAttr sets or replaces an attribute and returns the element for chaining.
func (e *Element) SetAttr(name, value string) *Element {
	for i := range e.attrs {
		if e.attrs[i].Name == name {
			e.attrs[i].Value = value
			return e
		}
	}
	e.attrs = append(e.attrs, Attr{Name: name, Value: value})
	return e
}

// Attr returns the value of an attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attrs returns a copy of the element's attributes.
func (e *Element) Attrs() []Attr {
	return append([]Attr(nil), e.attrs...)
}

// SetText replaces the element's character data.
func (e *Element) SetText(s string) *Element {
	e.text = s
	return e
}

// Text returns the element's character data.
func (e *Element) Text() string {
	return e.text
}

// Children returns the element's child list.
func (e *Element) Children() []*Element {
	return e.children
}

// AppendChild attaches child as the last child of e.
func (e *Element) AppendChild(child *Element) error {
	if child.doc != e.doc {
		return ErrForeignNode
	}
	e.children = append(e.children, child)
	return nil
}

// OuterXML serializes the element and its subtree.
func (e *Element) OuterXML() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Element) write(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(e.Tag)
	for _, a := range e.attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		escape(b, a.Value)
		b.WriteByte('"')
	}
	if len(e.children) == 0 && e.text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	escape(b, e.text)
	for _, c := range e.children {
		c.write(b)
	}
	b.WriteString("</")
	b.WriteString(e.Tag)
	b.WriteByte('>')
}

// escape writes s as XML character data. Runes outside the XML 1.0 character
// range become U+FFFD.
func escape(b *strings.Builder, s string) {
	_ = xml.EscapeText(b, []byte(s))
}
