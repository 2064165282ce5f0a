package engine

import (
	"golang.org/x/net/html"

	"github.com/c360studio/domx/dom"
	"github.com/c360studio/domx/intent"
)

// Slot names a per-container state cell.
type Slot uint8

// Slot kinds. Position slots hold a winning element, the children flag holds
// a presence value.
const (
	SlotOnlyChild Slot = iota + 1
	SlotLastChild
	SlotFirstChild
	SlotChildrenFlag
)

// String returns the slot key.
func (s Slot) String() string {
	switch s {
	case SlotOnlyChild:
		return "only-child"
	case SlotLastChild:
		return "last-child"
	case SlotFirstChild:
		return "first-child"
	case SlotChildrenFlag:
		return "children-flag"
	default:
		return "unknown"
	}
}

// slotForPosition maps a position intent to the slot it competes for.
func slotForPosition(p intent.Position) Slot {
	switch p {
	case intent.PositionOnly:
		return SlotOnlyChild
	case intent.PositionLast:
		return SlotLastChild
	case intent.PositionFirst:
		return SlotFirstChild
	default:
		return 0
	}
}

// slotState is the side-table record kept for one container.
type slotState struct {
	only  *html.Node
	last  *html.Node
	first *html.Node
	flag  intent.Presence

	// queued is set while the container sits in the pending set.
	queued bool
}

func (s *slotState) winner(slot Slot) *html.Node {
	switch slot {
	case SlotOnlyChild:
		return s.only
	case SlotLastChild:
		return s.last
	case SlotFirstChild:
		return s.first
	default:
		return nil
	}
}

func (s *slotState) setWinner(slot Slot, n *html.Node) {
	switch slot {
	case SlotOnlyChild:
		s.only = n
	case SlotLastChild:
		s.last = n
	case SlotFirstChild:
		s.first = n
	}
}

// supersedes reports whether candidate should replace current in slot.
// The current winner holds when it already sits on the required side of
// the candidate: before it for first and only, after it for last.
func supersedes(slot Slot, current, candidate *html.Node) bool {
	if current == nil {
		return true
	}
	rel := dom.CompareDocumentPosition(candidate, current)
	if slot == SlotLastChild {
		return !rel.Has(dom.Following)
	}
	return !rel.Has(dom.Preceding)
}

// Snapshot is a read-only copy of a container's slots.
type Snapshot struct {
	Only  *html.Node
	Last  *html.Node
	First *html.Node
	Flag  intent.Presence
}

// Winner returns the element held in a position slot.
func (s Snapshot) Winner(slot Slot) *html.Node {
	switch slot {
	case SlotOnlyChild:
		return s.Only
	case SlotLastChild:
		return s.Last
	case SlotFirstChild:
		return s.First
	default:
		return nil
	}
}
