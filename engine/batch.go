package engine

import (
	"time"

	"golang.org/x/net/html"
)

// enqueue adds container to the pending set once per cycle and requests a
// frame when the set goes from empty to non-empty.
func (e *Engine) enqueue(container *html.Node, st *slotState) {
	if st.queued {
		return
	}
	st.queued = true
	e.pending = append(e.pending, container)

	if e.flushScheduled {
		return
	}
	e.flushScheduled = true
	if e.frames != nil {
		e.frames.RequestFrame(e.Flush)
	}
}

// Flush reconciles every pending container. The pending set is taken and
// cleared before any reconciliation, so containers registered while the
// flush runs wait for the next frame.
func (e *Engine) Flush() {
	start := time.Now()

	batch := e.pending
	e.pending = nil
	e.flushScheduled = false

	seen := make(map[*html.Node]struct{}, len(batch))
	for _, container := range batch {
		if st, ok := e.slots[container]; ok {
			st.queued = false
		}
		seen[container] = struct{}{}
	}

	// Containers with a children flag are rechecked even when nothing new
	// was recorded for them.
	for container := range e.presence {
		if _, ok := seen[container]; ok {
			continue
		}
		if st := e.slots[container]; st != nil && !st.queued {
			batch = append(batch, container)
		}
	}

	mutations := 0
	for _, container := range batch {
		mutations += e.Reconcile(container)
	}

	pruned := e.Prune()
	e.stats.Flushes++
	elapsed := time.Since(start)
	e.hooks.Flushed(len(batch), mutations, elapsed)

	e.logger.Debug("Flush complete",
		"containers", len(batch),
		"mutations", mutations,
		"pruned", pruned,
		"duration", elapsed)
}
