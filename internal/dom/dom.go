// Package dom defines the element surface the presence widget writes to.
//
// A surface is anything with text content and attributes. The terminal UI
// uses the in-memory [Node]; the page host adapts parsed HTML nodes to the
// same [Element] interface.
package dom

import (
	"strings"
	"sync"
)

// ///////////////////////////////////////////////
// Element
// ///////////////////////////////////////////////

// Element is a writable display surface.
type Element interface {
	// Text returns the element's text content.
	Text() string
	// SetText replaces the element's text content.
	SetText(text string)
	// Attr returns the named attribute and whether it is present.
	Attr(name string) (string, bool)
	// SetAttr sets the named attribute, adding it if absent.
	SetAttr(name, value string)
}

// Blurrer is implemented by elements that can drop keyboard focus.
type Blurrer interface {
	Blur()
}

// ///////////////////////////////////////////////
// Change-Only Writes
// ///////////////////////////////////////////////

// WriteText sets e's text when it differs from the current value and reports
// whether a write happened. A nil element is skipped.
func WriteText(e Element, text string) bool {
	if e == nil || e.Text() == text {
		return false
	}
	e.SetText(text)
	return true
}

// WriteAttr sets attribute name on e when it is absent or differs from value
// and reports whether a write happened. A nil element is skipped.
func WriteAttr(e Element, name, value string) bool {
	if e == nil {
		return false
	}
	if cur, ok := e.Attr(name); ok && cur == value {
		return false
	}
	e.SetAttr(name, value)
	return true
}

// ///////////////////////////////////////////////
// Class List
// ///////////////////////////////////////////////

// HasClass reports whether e's class attribute contains class.
func HasClass(e Element, class string) bool {
	if e == nil {
		return false
	}
	v, _ := e.Attr("class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass appends class to e's class attribute unless already present.
func AddClass(e Element, class string) bool {
	if e == nil || HasClass(e, class) {
		return false
	}
	v, _ := e.Attr("class")
	e.SetAttr("class", strings.TrimSpace(v+" "+class))
	return true
}

// RemoveClass drops every occurrence of class from e's class attribute.
func RemoveClass(e Element, class string) bool {
	if e == nil || !HasClass(e, class) {
		return false
	}
	v, _ := e.Attr("class")
	fields := strings.Fields(v)
	kept := fields[:0]
	for _, c := range fields {
		if c != class {
			kept = append(kept, c)
		}
	}
	e.SetAttr("class", strings.Join(kept, " "))
	return true
}

// ///////////////////////////////////////////////
// Node
// ///////////////////////////////////////////////

// Node is an in-memory [Element]. It is safe for concurrent use and counts
// every mutation so callers can check that identical renders are no-ops.
type Node struct {
	mu      sync.Mutex
	text    string
	attrs   map[string]string
	focused bool
	writes  int
}

// NewNode returns a Node seeded with the given attributes, passed as
// name/value pairs. A trailing unpaired name is ignored.
func NewNode(attrs ...string) *Node {
	n := &Node{attrs: make(map[string]string, len(attrs)/2)}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.attrs[attrs[i]] = attrs[i+1]
	}
	return n
}

func (n *Node) Text() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text
}

func (n *Node) SetText(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.text = text
	n.writes++
}

func (n *Node) Attr(name string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.attrs[name]
	return v, ok
}

func (n *Node) SetAttr(name, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[name] = value
	n.writes++
}

// Focus marks the node as holding keyboard focus.
func (n *Node) Focus() {
	n.mu.Lock()
	n.focused = true
	n.mu.Unlock()
}

// Blur clears keyboard focus.
func (n *Node) Blur() {
	n.mu.Lock()
	n.focused = false
	n.mu.Unlock()
}

// Focused reports whether the node holds keyboard focus.
func (n *Node) Focused() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focused
}

// Writes returns the number of SetText and SetAttr calls so far.
func (n *Node) Writes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.writes
}
