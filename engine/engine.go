// Package engine resolves structural intents per container and applies the
// resulting corrections in frame-batched passes.
//
// # Overview
//
// Every observed element is classified (see package intent) and offered to
// the slots of its container: the parent for position intents, the element
// itself for presence intents. A container that gains a new winner joins the
// pending set, and the first such container of a cycle requests one frame
// from the host. At the frame the pending set is snapshotted and cleared,
// then every container in the snapshot is reconciled against the live tree.
//
// # Threading
//
// The engine is not safe for concurrent use. All calls, including the frame
// callback, must come from the single goroutine that owns the document (see
// host.Loop).
package engine

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/c360studio/domx/dom"
	"github.com/c360studio/domx/intent"
)

// Frames schedules a callback for the next frame boundary.
type Frames interface {
	RequestFrame(fn func())
}

// FrameFunc adapts a function to the Frames interface.
type FrameFunc func(fn func())

// RequestFrame calls f(fn).
func (f FrameFunc) RequestFrame(fn func()) { f(fn) }

// Stats holds cumulative engine counters.
type Stats struct {
	Signals    int `json:"signals"`
	Accepted   int `json:"accepted"`
	Rejected   int `json:"rejected"`
	Flushes    int `json:"flushes"`
	Reconciled int `json:"reconciled"`
	Mutations  int `json:"mutations"`
}

// Engine owns the slot side-table and the pending set for one document.
type Engine struct {
	frames Frames
	hooks  Hooks
	logger *slog.Logger

	slots map[*html.Node]*slotState
	// presence lists containers holding a children flag; they are
	// rechecked on every flush.
	presence map[*html.Node]struct{}

	pending        []*html.Node
	flushScheduled bool

	stats Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithHooks installs observation hooks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) {
		if h != nil {
			e.hooks = h
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine that flushes through frames.
func New(frames Frames, opts ...Option) *Engine {
	e := &Engine{
		frames:   frames,
		hooks:    NopHooks{},
		logger:   slog.Default(),
		slots:    make(map[*html.Node]*slotState),
		presence: make(map[*html.Node]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Observe handles the insertion signal for el.
func (e *Engine) Observe(el *html.Node) {
	in := intent.Classify(el)
	e.stats.Signals++
	e.hooks.Observed(el, in)
	if in.IsZero() {
		return
	}
	e.Resolve(el, in.Position, in.Presence)
}

// Resolve offers el to the slots implied by pos and pres.
func (e *Engine) Resolve(el *html.Node, pos intent.Position, pres intent.Presence) {
	if el == nil {
		return
	}

	if slot := slotForPosition(pos); slot != 0 && el.Parent != nil {
		container := el.Parent
		st := e.state(container)
		accepted := supersedes(slot, st.winner(slot), el)
		if accepted {
			st.setWinner(slot, el)
			e.stats.Accepted++
			e.enqueue(container, st)
		} else {
			e.stats.Rejected++
		}
		e.hooks.Resolved(container, slot, accepted)
	}

	if pres != intent.PresenceNone {
		st := e.state(el)
		accepted := st.flag != pres
		if accepted {
			st.flag = pres
			e.presence[el] = struct{}{}
			e.stats.Accepted++
			e.enqueue(el, st)
		}
		e.hooks.Resolved(el, SlotChildrenFlag, accepted)
	}
}

// state returns the slot record of container, creating it on first use.
func (e *Engine) state(container *html.Node) *slotState {
	st, ok := e.slots[container]
	if !ok {
		st = &slotState{}
		e.slots[container] = st
	}
	return st
}

// Slots returns a copy of the slots recorded for container.
func (e *Engine) Slots(container *html.Node) (Snapshot, bool) {
	st, ok := e.slots[container]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Only: st.only, Last: st.last, First: st.first, Flag: st.flag}, true
}

// Pending returns the number of containers awaiting the next flush.
func (e *Engine) Pending() int {
	return len(e.pending)
}

// FlushScheduled reports whether a frame has been requested and not yet run.
func (e *Engine) FlushScheduled() bool {
	return e.flushScheduled
}

// Stats returns the cumulative counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Containers returns the number of containers with slot state.
func (e *Engine) Containers() int {
	return len(e.slots)
}

// Prune drops the state of containers no longer attached to a document.
func (e *Engine) Prune() int {
	dropped := 0
	for container, st := range e.slots {
		if st.queued || dom.Connected(container) {
			continue
		}
		delete(e.slots, container)
		delete(e.presence, container)
		dropped++
	}
	return dropped
}

// Reset forgets all slot state and pending work. A frame already requested
// still runs but finds nothing to do.
func (e *Engine) Reset() {
	e.slots = make(map[*html.Node]*slotState)
	e.presence = make(map[*html.Node]struct{})
	e.pending = nil
}
