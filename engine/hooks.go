package engine

import (
	"time"

	"golang.org/x/net/html"

	"github.com/c360studio/domx/intent"
)

// Hooks receives engine events. Implementations must not mutate the tree.
type Hooks interface {
	// Observed is called for every signal, marked or not.
	Observed(el *html.Node, in intent.Intents)
	// Resolved is called once per slot offer.
	Resolved(container *html.Node, slot Slot, accepted bool)
	// Mutated is called after each applied correction.
	Mutated(container *html.Node, op Op)
	// Flushed is called at the end of each flush.
	Flushed(containers, mutations int, elapsed time.Duration)
}

// NopHooks ignores all events.
type NopHooks struct{}

func (NopHooks) Observed(*html.Node, intent.Intents) {}
func (NopHooks) Resolved(*html.Node, Slot, bool)     {}
func (NopHooks) Mutated(*html.Node, Op)              {}
func (NopHooks) Flushed(int, int, time.Duration)     {}

// MultiHooks fans events out to several hooks in order.
type MultiHooks []Hooks

func (m MultiHooks) Observed(el *html.Node, in intent.Intents) {
	for _, h := range m {
		h.Observed(el, in)
	}
}

func (m MultiHooks) Resolved(container *html.Node, slot Slot, accepted bool) {
	for _, h := range m {
		h.Resolved(container, slot, accepted)
	}
}

func (m MultiHooks) Mutated(container *html.Node, op Op) {
	for _, h := range m {
		h.Mutated(container, op)
	}
}

func (m MultiHooks) Flushed(containers, mutations int, elapsed time.Duration) {
	for _, h := range m {
		h.Flushed(containers, mutations, elapsed)
	}
}
