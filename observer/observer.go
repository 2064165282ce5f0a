// Package observer connects a host document's animation events to the
// engine and owns the listener lifecycle.
package observer

import (
	"log/slog"

	"github.com/c360studio/domx/engine"
	"github.com/c360studio/domx/host"
)

// DefaultAnimationName is the sentinel animation that marks an insertion.
const DefaultAnimationName = "observe-element"

// Observer forwards sentinel animation events to the engine.
type Observer struct {
	doc       *host.Document
	engine    *engine.Engine
	animation string
	logger    *slog.Logger

	setupDone bool
	loaded    *loadListener
}

// Option configures an Observer.
type Option func(*Observer)

// WithAnimationName overrides the sentinel animation name.
func WithAnimationName(name string) Option {
	return func(o *Observer) {
		if name != "" {
			o.animation = name
		}
	}
}

// WithLogger sets the observer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an observer and arranges for its listeners to be attached
// once, on DOMContentLoaded or on the next task, whichever runs first.
func New(doc *host.Document, eng *engine.Engine, opts ...Option) *Observer {
	o := &Observer{
		doc:       doc,
		engine:    eng,
		animation: DefaultAnimationName,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.loaded = &loadListener{o: o}
	doc.AddEventListener(host.EventDOMContentLoaded, o.loaded)
	doc.Loop().SetTimeout(o.setup)
	return o
}

// HandleEvent implements host.Listener.
func (o *Observer) HandleEvent(ev host.Event) {
	if ev.AnimationName != o.animation {
		return
	}
	o.engine.Observe(ev.Target)
}

// Stop detaches the animation listeners on the next task.
func (o *Observer) Stop() {
	o.doc.Loop().SetTimeout(o.detach)
}

// Resume attaches the animation listeners on the next task.
func (o *Observer) Resume() {
	o.doc.Loop().SetTimeout(o.attach)
}

// Active reports whether the animation listeners are attached.
func (o *Observer) Active() bool {
	return o.doc.HasListener(host.EventAnimationStart, o)
}

// Engine returns the engine events are forwarded to.
func (o *Observer) Engine() *engine.Engine {
	return o.engine
}

// setup attaches the listeners the first time it is called.
func (o *Observer) setup() {
	if o.setupDone {
		return
	}
	o.setupDone = true
	o.doc.RemoveEventListener(host.EventDOMContentLoaded, o.loaded)
	o.attach()
}

func (o *Observer) attach() {
	for _, name := range host.AnimationStartEvents {
		o.doc.AddEventListener(name, o)
	}
	o.logger.Debug("Observation listeners attached", "animation", o.animation)
}

func (o *Observer) detach() {
	for _, name := range host.AnimationStartEvents {
		o.doc.RemoveEventListener(name, o)
	}
	o.logger.Debug("Observation listeners detached")
}

// loadListener runs the initial setup on DOMContentLoaded.
type loadListener struct {
	o *Observer
}

func (l *loadListener) HandleEvent(host.Event) {
	l.o.setup()
}
