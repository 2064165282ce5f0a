// Package dom provides the tree operations the engine needs on top of
// golang.org/x/net/html nodes: document-order comparison, structural
// cloning and element-child navigation.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Position is a bit set describing where one node sits relative to another,
// using the DOM compareDocumentPosition encoding.
type Position uint8

// Document position flags.
const (
	Disconnected Position = 1 << 0
	Preceding    Position = 1 << 1
	Following    Position = 1 << 2
	Contains     Position = 1 << 3
	ContainedBy  Position = 1 << 4
)

// Has reports whether any bit of flag is set.
func (p Position) Has(flag Position) bool {
	return p&flag != 0
}

// CompareDocumentPosition returns the position of other relative to ref.
// Identical nodes compare as 0. Nodes in different trees compare as
// Disconnected with no ordering bit.
func CompareDocumentPosition(ref, other *html.Node) Position {
	if ref == nil || other == nil {
		return Disconnected
	}
	if ref == other {
		return 0
	}

	refPath := ancestry(ref)
	otherPath := ancestry(other)
	if refPath[0] != otherPath[0] {
		return Disconnected
	}

	// Walk down from the shared root until the paths diverge.
	i := 1
	for i < len(refPath) && i < len(otherPath) && refPath[i] == otherPath[i] {
		i++
	}

	switch {
	case i == len(refPath):
		// ref is an ancestor of other.
		return ContainedBy | Following
	case i == len(otherPath):
		// other is an ancestor of ref.
		return Contains | Preceding
	}

	// refPath[i] and otherPath[i] are siblings under refPath[i-1].
	for c := refPath[i].NextSibling; c != nil; c = c.NextSibling {
		if c == otherPath[i] {
			return Following
		}
	}
	return Preceding
}

// Precedes reports whether a comes before b in document order.
func Precedes(a, b *html.Node) bool {
	return CompareDocumentPosition(b, a).Has(Preceding)
}

// ancestry returns the path from the tree root down to n, inclusive.
func ancestry(n *html.Node) []*html.Node {
	var path []*html.Node
	for ; n != nil; n = n.Parent {
		path = append(path, n)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// Root returns the topmost ancestor of n.
func Root(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Connected reports whether n is attached to a document.
func Connected(n *html.Node) bool {
	r := Root(n)
	return r != nil && r.Type == html.DocumentNode
}

// Clone returns a deep copy of n and its descendants. The copy is detached.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// Detach removes n from its parent, if it has one.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Prepend inserts child as the first child of parent.
func Prepend(parent, child *html.Node) {
	parent.InsertBefore(child, parent.FirstChild)
}

// RemoveChildren detaches every child node of n and reports whether any
// were removed.
func RemoveChildren(n *html.Node) bool {
	removed := false
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
		removed = true
	}
	return removed
}

// FirstElementChild returns the first child of n that is an element.
func FirstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// LastElementChild returns the last child of n that is an element.
func LastElementChild(n *html.Node) *html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// ElementChildCount counts the element children of n.
func ElementChildCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// Childless reports whether n has neither element children nor
// non-whitespace text.
func Childless(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		}
	}
	return true
}

// SoleChild reports whether child is the only element child of n and no
// non-whitespace text sits beside it.
func SoleChild(n, child *html.Node) bool {
	if child == nil || child.Parent != n {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c == child {
			continue
		}
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		}
	}
	return true
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the node's subtree.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// Render serialises n to a string.
func Render(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}
