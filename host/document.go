package host

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/net/html"

	"github.com/c360studio/domx/dom"
)

// Event names raised by Document.
const (
	EventAnimationStart       = "animationstart"
	EventMSAnimationStart     = "MSAnimationStart"
	EventWebkitAnimationStart = "webkitAnimationStart"
	EventDOMContentLoaded     = "DOMContentLoaded"
)

// AnimationStartEvents lists the animation start event names, including
// the vendor-prefixed variants.
var AnimationStartEvents = []string{
	EventAnimationStart,
	EventMSAnimationStart,
	EventWebkitAnimationStart,
}

// Event is delivered to listeners.
type Event struct {
	Type          string
	AnimationName string
	Target        *html.Node
}

// Listener receives events. Listeners are compared by identity, so
// implementations should be pointer types.
type Listener interface {
	HandleEvent(Event)
}

// Document is an HTML tree bound to a Loop.
type Document struct {
	root      *html.Node
	loop      *Loop
	sheet     *Stylesheet
	eventName string
	logger    *slog.Logger

	listeners map[string][]Listener
	loaded    bool
}

// DocumentOption configures a Document.
type DocumentOption func(*Document)

// WithStylesheet sets the rules deciding which elements animate.
func WithStylesheet(s *Stylesheet) DocumentOption {
	return func(d *Document) {
		if s != nil {
			d.sheet = s
		}
	}
}

// WithAnimationEvent selects which animation start event name is raised.
func WithAnimationEvent(name string) DocumentOption {
	return func(d *Document) {
		if name != "" {
			d.eventName = name
		}
	}
}

// WithDocumentLogger sets the document logger.
func WithDocumentLogger(logger *slog.Logger) DocumentOption {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDocument binds root, which must be a document node, to loop.
func NewDocument(root *html.Node, loop *Loop, opts ...DocumentOption) (*Document, error) {
	if root == nil || root.Type != html.DocumentNode {
		return nil, ErrNoDocument
	}
	d := &Document{
		root:      root,
		loop:      loop,
		sheet:     NewStylesheet(),
		eventName: EventAnimationStart,
		logger:    slog.Default(),
		listeners: make(map[string][]Listener),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Parse reads an HTML document from r.
func Parse(r io.Reader, loop *Loop, opts ...DocumentOption) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewDocument(root, loop, opts...)
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Loop returns the loop the document schedules on.
func (d *Document) Loop() *Loop {
	return d.loop
}

// Body returns the body element, or nil.
func (d *Document) Body() *html.Node {
	var body *html.Node
	dom.Walk(d.root, func(n *html.Node) bool {
		if body != nil {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return false
		}
		return true
	})
	return body
}

// AddEventListener registers l for typ. Registering the same listener twice
// has no effect.
func (d *Document) AddEventListener(typ string, l Listener) {
	if d.HasListener(typ, l) {
		return
	}
	d.listeners[typ] = append(d.listeners[typ], l)
}

// RemoveEventListener unregisters l for typ.
func (d *Document) RemoveEventListener(typ string, l Listener) {
	d.listeners[typ] = slices.DeleteFunc(d.listeners[typ], func(x Listener) bool {
		return x == l
	})
}

// HasListener reports whether l is registered for typ.
func (d *Document) HasListener(typ string, l Listener) bool {
	return slices.Contains(d.listeners[typ], l)
}

// Dispatch delivers ev synchronously to the listeners registered for its
// type at the time of the call.
func (d *Document) Dispatch(ev Event) {
	for _, l := range slices.Clone(d.listeners[ev.Type]) {
		l.HandleEvent(ev)
	}
}

// AppendChild inserts n as the last child of parent.
func (d *Document) AppendChild(parent, n *html.Node) error {
	return d.InsertBefore(parent, n, nil)
}

// InsertBefore inserts n into parent before ref, or last when ref is nil.
// A node that already has a parent is moved. Animation events are queued for
// every matching element of the inserted subtree.
func (d *Document) InsertBefore(parent, n, ref *html.Node) error {
	if parent == nil || n == nil {
		return fmt.Errorf("insert: %w", ErrHierarchy)
	}
	for p := parent; p != nil; p = p.Parent {
		if p == n {
			return fmt.Errorf("insert %s into own subtree: %w", n.Data, ErrHierarchy)
		}
	}
	if ref != nil && ref.Parent != parent {
		return fmt.Errorf("insert before %s: reference is not a child: %w", ref.Data, ErrHierarchy)
	}

	dom.Detach(n)
	parent.InsertBefore(n, ref)

	if dom.Connected(parent) {
		d.queueAnimations(n)
	}
	return nil
}

// RemoveChild detaches n from its parent.
func (d *Document) RemoveChild(n *html.Node) {
	dom.Detach(n)
}

// Load queues animation events for every matching element already in the
// tree, followed by DOMContentLoaded. Subsequent calls do nothing.
func (d *Document) Load() {
	if d.loaded {
		return
	}
	d.loaded = true
	d.queueAnimations(d.root)
	d.loop.SetTimeout(func() {
		d.Dispatch(Event{Type: EventDOMContentLoaded, Target: d.root})
	})
}

// queueAnimations schedules one animation event per matching element of the
// subtree rooted at n. Elements detached before their task runs are skipped,
// as an element that is no longer rendered never starts its animation.
func (d *Document) queueAnimations(n *html.Node) {
	queued := 0
	dom.Walk(n, func(el *html.Node) bool {
		name := d.sheet.AnimationFor(el)
		if name == "" {
			return true
		}
		queued++
		d.loop.SetTimeout(func() {
			if !dom.Connected(el) {
				return
			}
			d.Dispatch(Event{Type: d.eventName, AnimationName: name, Target: el})
		})
		return true
	})
	if queued > 0 {
		d.logger.Debug("Queued animation events", "count", queued)
	}
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}
