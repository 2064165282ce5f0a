// Package intent classifies elements into structural intents from their
// domx marker tokens.
//
// Markers are class tokens of the form domx-<name>-child (position) and
// domx-<name>-children (presence), plus the data-domx-child and
// data-domx-children attributes, which hold a bare name as a default.
package intent

import (
	"strings"

	"golang.org/x/net/html"
)

// Attribute and token names recognised by the classifier.
const (
	ClassAttr    = "class"
	ChildAttr    = "data-domx-child"
	ChildrenAttr = "data-domx-children"

	tokenPrefix    = "domx-"
	childSuffix    = "-child"
	childrenSuffix = "-children"
)

// Position is the child-position intent. Only is the union of First and Last.
type Position uint8

// Position values. The numeric order is also the ranking order.
const (
	PositionNone  Position = 0
	PositionFirst Position = 1 << 0
	PositionLast  Position = 1 << 1
	PositionOnly           = PositionFirst | PositionLast
)

// String returns the marker name of the position.
func (p Position) String() string {
	switch p {
	case PositionFirst:
		return "first"
	case PositionLast:
		return "last"
	case PositionOnly:
		return "only"
	default:
		return "none"
	}
}

// Has reports whether all bits of other are set in p.
func (p Position) Has(other Position) bool {
	return other != PositionNone && p&other == other
}

// Presence is the children-presence intent.
type Presence uint8

// Presence values, ranked by numeric order.
const (
	PresenceNone   Presence = 0
	PresenceAlways Presence = 1
	PresenceZero   Presence = 2
)

// String returns the marker name of the presence.
func (p Presence) String() string {
	switch p {
	case PresenceAlways:
		return "always"
	case PresenceZero:
		return "zero"
	default:
		return "none"
	}
}

// Intents is the classification result for a single element.
type Intents struct {
	Position Position
	Presence Presence
}

// IsZero reports whether neither intent is set.
func (i Intents) IsZero() bool {
	return i.Position == PositionNone && i.Presence == PresenceNone
}

// ParsePosition maps a bare name (first, last, only) to a Position.
func ParsePosition(name string) Position {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "first":
		return PositionFirst
	case "last":
		return PositionLast
	case "only":
		return PositionOnly
	default:
		return PositionNone
	}
}

// ParsePresence maps a bare name (always, zero) to a Presence.
func ParsePresence(name string) Presence {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "always":
		return PresenceAlways
	case "zero":
		return PresenceZero
	default:
		return PresenceNone
	}
}

// Classify derives the intents of n. It never fails: anything that is not
// a recognised marker resolves to none.
func Classify(n *html.Node) Intents {
	var out Intents
	if n == nil || n.Type != html.ElementNode {
		return out
	}

	out.Position = ParsePosition(attr(n, ChildAttr))
	out.Presence = ParsePresence(attr(n, ChildrenAttr))

	for _, tok := range strings.Fields(strings.ToLower(attr(n, ClassAttr))) {
		name, ok := strings.CutPrefix(tok, tokenPrefix)
		if !ok {
			continue
		}
		// -children must be tested first since it shares the -child prefix.
		if kind, ok := strings.CutSuffix(name, childrenSuffix); ok {
			out.Presence = max(out.Presence, ParsePresence(kind))
			continue
		}
		if kind, ok := strings.CutSuffix(name, childSuffix); ok {
			out.Position = max(out.Position, ParsePosition(kind))
		}
	}
	return out
}

// Marked reports whether n carries any recognised marker.
func Marked(n *html.Node) bool {
	return !Classify(n).IsZero()
}

// attr returns the value of the attribute key, matched case-insensitively.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
