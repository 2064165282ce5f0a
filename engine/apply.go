package engine

import (
	"golang.org/x/net/html"

	"github.com/c360studio/domx/dom"
	"github.com/c360studio/domx/intent"
)

// Op identifies a structural correction applied to a container.
type Op uint8

// Corrections performed by Reconcile.
const (
	OpReplaceWithOnly Op = iota + 1
	OpMoveLast
	OpMoveFirst
	OpClearChildren
	OpRemoveContainer
)

// String returns the operation name used in logs and metrics.
func (o Op) String() string {
	switch o {
	case OpReplaceWithOnly:
		return "replace_with_only"
	case OpMoveLast:
		return "move_last"
	case OpMoveFirst:
		return "move_first"
	case OpClearChildren:
		return "clear_children"
	case OpRemoveContainer:
		return "remove_container"
	default:
		return "unknown"
	}
}

// Reconcile brings container in line with its recorded slots and returns
// the number of corrections applied. A container that already satisfies
// its slots, or that is no longer attached to a document, is left alone.
func (e *Engine) Reconcile(container *html.Node) int {
	st, ok := e.slots[container]
	if !ok || !dom.Connected(container) {
		return 0
	}
	e.stats.Reconciled++

	applied := 0
	if st.only != nil {
		applied += e.applyOnly(container, st)
	} else {
		if st.last != nil {
			applied += e.applyLast(container, st)
		}
		if st.first != nil {
			applied += e.applyFirst(container, st)
		}
	}
	applied += e.applyPresence(container, st)

	e.stats.Mutations += applied
	return applied
}

func (e *Engine) applyOnly(container *html.Node, st *slotState) int {
	w := st.only
	if w.Parent != container {
		return 0
	}
	if dom.SoleChild(container, w) {
		return 0
	}

	clone := dom.Clone(w)
	dom.RemoveChildren(container)
	container.AppendChild(clone)
	st.only = clone
	e.carry(w, clone)
	e.mutated(container, OpReplaceWithOnly)
	return 1
}

func (e *Engine) applyLast(container *html.Node, st *slotState) int {
	w := st.last
	if w.Parent != container || dom.LastElementChild(container) == w {
		return 0
	}

	clone := dom.Clone(w)
	container.RemoveChild(w)
	container.AppendChild(clone)
	st.last = clone
	e.carry(w, clone)
	e.mutated(container, OpMoveLast)
	return 1
}

func (e *Engine) applyFirst(container *html.Node, st *slotState) int {
	w := st.first
	if w.Parent != container || dom.FirstElementChild(container) == w {
		return 0
	}

	clone := dom.Clone(w)
	container.RemoveChild(w)
	dom.Prepend(container, clone)
	st.first = clone
	e.carry(w, clone)
	e.mutated(container, OpMoveFirst)
	return 1
}

func (e *Engine) applyPresence(container *html.Node, st *slotState) int {
	switch st.flag {
	case intent.PresenceZero:
		if container.FirstChild == nil {
			return 0
		}
		dom.RemoveChildren(container)
		e.mutated(container, OpClearChildren)
		return 1
	case intent.PresenceAlways:
		if container.Parent == nil || !dom.Childless(container) {
			return 0
		}
		dom.Detach(container)
		e.mutated(container, OpRemoveContainer)
		return 1
	default:
		return 0
	}
}

// carry moves the slot state recorded for orig and its descendants onto
// the matching nodes of clone. The clone is a fresh insertion, so every
// moved record is queued for the next flush.
func (e *Engine) carry(orig, clone *html.Node) {
	var pairs [][2]*html.Node
	pairNodes(orig, clone, &pairs)

	moved := make(map[*html.Node]*html.Node, len(pairs))
	for _, p := range pairs {
		moved[p[0]] = p[1]
	}
	remap := func(n *html.Node) *html.Node {
		if c, ok := moved[n]; ok {
			return c
		}
		return n
	}

	for _, p := range pairs {
		o, c := p[0], p[1]
		st, ok := e.slots[o]
		if !ok {
			continue
		}
		delete(e.slots, o)
		e.slots[c] = st
		st.only, st.last, st.first = remap(st.only), remap(st.last), remap(st.first)
		if _, ok := e.presence[o]; ok {
			delete(e.presence, o)
			e.presence[c] = struct{}{}
		}

		if st.queued {
			for i, pending := range e.pending {
				if pending == o {
					e.pending[i] = c
				}
			}
			continue
		}
		e.enqueue(c, st)
	}
}

// pairNodes lists orig and its descendants in document order alongside
// their counterparts in the structurally identical clone.
func pairNodes(orig, clone *html.Node, pairs *[][2]*html.Node) {
	*pairs = append(*pairs, [2]*html.Node{orig, clone})
	o, c := orig.FirstChild, clone.FirstChild
	for o != nil && c != nil {
		pairNodes(o, c, pairs)
		o, c = o.NextSibling, c.NextSibling
	}
}

func (e *Engine) mutated(container *html.Node, op Op) {
	e.hooks.Mutated(container, op)
	e.logger.Debug("Applied structural correction",
		"container", container.Data,
		"op", op.String())
}
