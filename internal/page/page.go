// Package page hosts presence widgets on static HTML pages.
//
// A page is parsed with golang.org/x/net/html, its badge surfaces are located
// by class name, and the rendered document is written back atomically when a
// widget changed it. Pages without both a badge and a card are inert.
package page

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"tools.zach/dev/badgecord/internal/atomicfile"
	"tools.zach/dev/badgecord/internal/dom"
	"tools.zach/dev/badgecord/internal/presence"
)

// Class names and the meta tag that mark up a presence badge.
const (
	ClassBadge      = "discord-presence-badge"
	ClassCard       = "discord-presence-card"
	ClassAvatar     = "discord-avatar"
	ClassUsername   = "discord-username"
	ClassActivity   = "discord-activity"
	ClassStatusIcon = "discord-status-icon"
	ClassDetails    = "discord-details"

	MetaUserID = "discord-user-id"
)

// ///////////////////////////////////////////////
// Page
// ///////////////////////////////////////////////

// Page is a parsed HTML document. All access to the tree goes through the
// page mutex, so widgets may write while another goroutine saves.
type Page struct {
	// Path is the file the page was loaded from; empty for parsed input.
	Path string

	mu  sync.Mutex
	doc *html.Node
	// dirty is set by any surface write and cleared by a successful save.
	dirty bool
	perm  os.FileMode
}

// Load reads and parses the page at path.
func Load(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat page: %w", err)
	}
	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p.Path = path
	p.perm = info.Mode().Perm()
	return p, nil
}

// Parse builds a page from r.
func Parse(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Page{doc: doc, perm: 0o644}, nil
}

// MetaUserID returns the content of <meta name="discord-user-id">, trimmed.
func (p *Page) MetaUserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := querySelector(p.doc, `meta[name="`+MetaUserID+`"]`)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(getAttr(n, "content"))
}

// Surfaces locates the badge elements. The optional surfaces are searched
// inside the badge and card first, then anywhere in the document. Missing
// elements are left nil.
func (p *Page) Surfaces() presence.Surfaces {
	p.mu.Lock()
	defer p.mu.Unlock()

	badge := querySelector(p.doc, "."+ClassBadge)
	card := querySelector(p.doc, "."+ClassCard)
	find := func(class string) dom.Element {
		for _, scope := range []*html.Node{card, badge, p.doc} {
			if scope == nil {
				continue
			}
			if n := querySelector(scope, "."+class); n != nil {
				return p.element(n)
			}
		}
		return nil
	}

	return presence.Surfaces{
		Badge:      p.element(badge),
		Card:       p.element(card),
		Avatar:     find(ClassAvatar),
		Name:       find(ClassUsername),
		Activity:   find(ClassActivity),
		StatusIcon: find(ClassStatusIcon),
		Details:    find(ClassDetails),
	}
}

// element wraps n, returning a nil interface for a nil node.
func (p *Page) element(n *html.Node) dom.Element {
	if n == nil {
		return nil
	}
	return &element{page: p, node: n}
}

// Inert reports whether the page lacks the badge or the card.
func (p *Page) Inert() bool {
	return !p.Surfaces().Bound()
}

// Dirty reports whether a surface changed since the last save.
func (p *Page) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// Render writes the current document to w.
func (p *Page) Render(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return html.Render(w, p.doc)
}

// Save writes the page back to Path when a surface changed since the last
// save and the rendered bytes differ from the file. It reports whether the
// file was written.
func (p *Page) Save() (bool, error) {
	if p.Path == "" {
		return false, fmt.Errorf("save page: no path")
	}
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return false, nil
	}
	var buf bytes.Buffer
	err := html.Render(&buf, p.doc)
	p.dirty = false
	p.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("render %s: %w", p.Path, err)
	}

	wrote, err := atomicfile.WriteIfChanged(p.Path, buf.Bytes(), p.perm)
	if err != nil {
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()
		return false, fmt.Errorf("save %s: %w", p.Path, err)
	}
	return wrote, nil
}

// ///////////////////////////////////////////////
// Element Adapter
// ///////////////////////////////////////////////

// element adapts an html.Node to [dom.Element].
type element struct {
	page *Page
	node *html.Node
}

func (e *element) Text() string {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
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
	walk(e.node)
	return b.String()
}

// SetText replaces all children with a single text node.
func (e *element) SetText(text string) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	if text != "" {
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	e.page.dirty = true
}

func (e *element) Attr(name string) (string, bool) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return lookupAttr(e.node, name)
}

func (e *element) SetAttr(name, value string) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			e.page.dirty = true
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
	e.page.dirty = true
}
