package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/c360studio/domx/dom"
	"github.com/c360studio/domx/intent"
)

// frameQueue collects frame callbacks until tick is called.
type frameQueue struct {
	fns []func()
}

func (q *frameQueue) RequestFrame(fn func()) {
	q.fns = append(q.fns, fn)
}

func (q *frameQueue) tick() int {
	fns := q.fns
	q.fns = nil
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// recordingHooks remembers mutations and flushes.
type recordingHooks struct {
	NopHooks
	ops      []Op
	flushes  int
	onMutate func(container *html.Node, op Op)
}

func (r *recordingHooks) Mutated(container *html.Node, op Op) {
	r.ops = append(r.ops, op)
	if r.onMutate != nil {
		r.onMutate(container, op)
	}
}

func (r *recordingHooks) Flushed(int, int, time.Duration) {
	r.flushes++
}

type fixture struct {
	doc    *goquery.Document
	frames *frameQueue
	hooks  *recordingHooks
	engine *Engine
}

func newFixture(t *testing.T, src string) *fixture {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	f := &fixture{doc: doc, frames: &frameQueue{}, hooks: &recordingHooks{}}
	f.engine = New(f.frames, WithHooks(f.hooks))
	return f
}

func (f *fixture) node(t *testing.T, selector string) *html.Node {
	t.Helper()
	sel := f.doc.Find(selector)
	require.Equal(t, 1, sel.Length(), "selector %s", selector)
	return sel.Nodes[0]
}

func (f *fixture) html(t *testing.T, selector string) string {
	t.Helper()
	out, err := f.doc.Find(selector).Html()
	require.NoError(t, err)
	return out
}

func childIDs(n *html.Node) []string {
	var ids []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		id := ""
		for _, a := range c.Attr {
			if a.Key == "id" {
				id = a.Val
			}
		}
		ids = append(ids, id)
	}
	return ids
}

func TestResolve_FirstChildStability(t *testing.T) {
	f := newFixture(t, `<div id="c"><p id="a"></p><p id="b"></p></div>`)
	c, a, b := f.node(t, "#c"), f.node(t, "#a"), f.node(t, "#b")

	// A observed first and precedes B: A stays.
	f.engine.Resolve(a, intent.PositionFirst, intent.PresenceNone)
	f.engine.Resolve(b, intent.PositionFirst, intent.PresenceNone)
	snap, ok := f.engine.Slots(c)
	require.True(t, ok)
	assert.Same(t, a, snap.First)

	// B observed first, then A which precedes it: A takes over.
	g := newFixture(t, `<div id="c"><p id="a"></p><p id="b"></p></div>`)
	gc, ga, gb := g.node(t, "#c"), g.node(t, "#a"), g.node(t, "#b")
	g.engine.Resolve(gb, intent.PositionFirst, intent.PresenceNone)
	g.engine.Resolve(ga, intent.PositionFirst, intent.PresenceNone)
	snap, _ = g.engine.Slots(gc)
	assert.Same(t, ga, snap.First)

	assert.Equal(t, Stats{Accepted: 1, Rejected: 1}, f.engine.Stats())
}

func TestResolve_LastChildPrefersLater(t *testing.T) {
	f := newFixture(t, `<div id="c"><p id="a"></p><p id="b"></p></div>`)
	c, a, b := f.node(t, "#c"), f.node(t, "#a"), f.node(t, "#b")

	f.engine.Resolve(b, intent.PositionLast, intent.PresenceNone)
	f.engine.Resolve(a, intent.PositionLast, intent.PresenceNone)
	snap, _ := f.engine.Slots(c)
	assert.Same(t, b, snap.Last)

	f.engine.Reset()
	f.engine.Resolve(a, intent.PositionLast, intent.PresenceNone)
	f.engine.Resolve(b, intent.PositionLast, intent.PresenceNone)
	snap, _ = f.engine.Slots(c)
	assert.Same(t, b, snap.Last)
}

func TestResolve_OnlyChildKeepsEarliest(t *testing.T) {
	f := newFixture(t, `<div id="c"><p id="a"></p><p id="b"></p></div>`)
	c, a, b := f.node(t, "#c"), f.node(t, "#a"), f.node(t, "#b")

	f.engine.Resolve(a, intent.PositionOnly, intent.PresenceNone)
	f.engine.Resolve(b, intent.PositionOnly, intent.PresenceNone)
	snap, _ := f.engine.Slots(c)
	assert.Same(t, a, snap.Only)
	assert.Nil(t, snap.First)
}

func TestResolve_DetachedElementIgnoredForPosition(t *testing.T) {
	f := newFixture(t, `<div id="c"></div>`)
	orphan := &html.Node{Type: html.ElementNode, Data: "p"}

	f.engine.Resolve(orphan, intent.PositionFirst, intent.PresenceNone)
	f.engine.Resolve(nil, intent.PositionFirst, intent.PresenceZero)
	assert.Equal(t, 0, f.engine.Pending())
	assert.Equal(t, 0, f.engine.Containers())
	assert.Empty(t, f.frames.fns)
}

func TestResolve_PresenceOnlyOnChange(t *testing.T) {
	f := newFixture(t, `<div id="c"><p></p></div>`)
	c := f.node(t, "#c")

	f.engine.Resolve(c, intent.PositionNone, intent.PresenceZero)
	require.Equal(t, 1, f.frames.tick())

	f.engine.Resolve(c, intent.PositionNone, intent.PresenceZero)
	assert.Equal(t, 0, f.engine.Pending())
	assert.Empty(t, f.frames.fns)

	f.engine.Resolve(c, intent.PositionNone, intent.PresenceAlways)
	assert.Equal(t, 1, f.engine.Pending())
	snap, _ := f.engine.Slots(c)
	assert.Equal(t, intent.PresenceAlways, snap.Flag)
}

func TestObserve_ClassifiesMarkers(t *testing.T) {
	f := newFixture(t, `<div id="c"><p id="a" class="domx-last-child"></p><p id="plain"></p></div>`)
	c := f.node(t, "#c")

	f.engine.Observe(f.node(t, "#plain"))
	assert.Equal(t, 0, f.engine.Pending())

	f.engine.Observe(f.node(t, "#a"))
	snap, ok := f.engine.Slots(c)
	require.True(t, ok)
	assert.Same(t, f.node(t, "#a"), snap.Last)
	assert.Equal(t, 2, f.engine.Stats().Signals)
}

func TestBatch_CoalescesPerContainer(t *testing.T) {
	f := newFixture(t, `<ul id="c"><li id="x"></li><li id="a" class="domx-first-child"></li><li id="b" class="domx-first-child"></li><li id="d" class="domx-first-child"></li></ul>`)
	c := f.node(t, "#c")

	for _, id := range []string{"#d", "#b", "#a"} {
		f.engine.Observe(f.node(t, id))
	}
	assert.Equal(t, 1, f.engine.Pending())
	assert.True(t, f.engine.FlushScheduled())
	require.Len(t, f.frames.fns, 1)

	require.Equal(t, 1, f.frames.tick())
	assert.Equal(t, 1, f.engine.Stats().Reconciled)
	assert.Equal(t, []Op{OpMoveFirst}, f.hooks.ops)
	assert.Equal(t, []string{"a", "x", "b", "d"}, childIDs(c))
	assert.False(t, f.engine.FlushScheduled())
	assert.Equal(t, 0, f.engine.Pending())
}

func TestBatch_RegistrationsDuringFlushWait(t *testing.T) {
	f := newFixture(t, `<div id="one"><p id="p1"></p><p id="a"></p></div><div id="two"><p id="p2"></p><p id="b"></p></div>`)
	b := f.node(t, "#b")

	f.hooks.onMutate = func(*html.Node, Op) {
		f.hooks.onMutate = nil
		f.engine.Resolve(b, intent.PositionFirst, intent.PresenceNone)
	}
	f.engine.Resolve(f.node(t, "#a"), intent.PositionFirst, intent.PresenceNone)

	require.Equal(t, 1, f.frames.tick())
	assert.Equal(t, []string{"a", "p1"}, childIDs(f.node(t, "#one")))
	assert.Equal(t, []string{"p2", "b"}, childIDs(f.node(t, "#two")))
	assert.Equal(t, 1, f.engine.Pending())
	require.Len(t, f.frames.fns, 1)

	require.Equal(t, 1, f.frames.tick())
	assert.Equal(t, []string{"b", "p2"}, childIDs(f.node(t, "#two")))
	assert.Equal(t, 2, f.hooks.flushes)
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t, `<div id="c"><p id="p1"></p><p id="x" class="domx-only-child"></p><p id="p2"></p></div>`)
	c := f.node(t, "#c")

	f.engine.Observe(f.node(t, "#x"))
	assert.Equal(t, 1, f.engine.Reconcile(c))
	before := dom.Render(c)

	assert.Equal(t, 0, f.engine.Reconcile(c))
	assert.Equal(t, before, dom.Render(c))
}

func TestScenario_FirstAndLast(t *testing.T) {
	f := newFixture(t, `<div id="c"><p id="p1"></p><p id="p2"></p></div>`)
	c := f.node(t, "#c")

	x := &html.Node{Type: html.ElementNode, Data: "p", Attr: []html.Attribute{{Key: "id", Val: "x"}, {Key: "class", Val: "domx-first-child"}}}
	y := &html.Node{Type: html.ElementNode, Data: "p", Attr: []html.Attribute{{Key: "id", Val: "y"}, {Key: "class", Val: "domx-last-child"}}}
	c.AppendChild(x)
	f.engine.Observe(x)
	dom.Prepend(c, y)
	f.engine.Observe(y)

	require.Equal(t, 1, f.frames.tick())
	assert.Equal(t, []string{"x", "p1", "p2", "y"}, childIDs(c))
	assert.NotSame(t, x, dom.FirstElementChild(c))
	assert.NotSame(t, y, dom.LastElementChild(c))
	assert.Nil(t, x.Parent)
	assert.Nil(t, y.Parent)
	assert.ElementsMatch(t, []Op{OpMoveFirst, OpMoveLast}, f.hooks.ops)

	snap, _ := f.engine.Slots(c)
	assert.Same(t, dom.FirstElementChild(c), snap.First)
	assert.Same(t, dom.LastElementChild(c), snap.Last)
	assert.Equal(t, 0, f.engine.Reconcile(c))
}

func TestScenario_OnlyChild(t *testing.T) {
	f := newFixture(t, `<section id="c"><p id="u1"></p><p id="u2"></p><p id="u3"></p></section>`)
	c := f.node(t, "#c")

	x := &html.Node{Type: html.ElementNode, Data: "aside", Attr: []html.Attribute{{Key: "id", Val: "x"}, {Key: "class", Val: "domx-only-child"}}}
	c.AppendChild(x)
	f.engine.Observe(x)
	f.frames.tick()

	assert.Equal(t, []string{"x"}, childIDs(c))
	assert.Equal(t, 1, dom.ElementChildCount(c))
	assert.NotSame(t, x, c.FirstChild)
	assert.Same(t, c.FirstChild, c.LastChild)
	assert.Equal(t, []Op{OpReplaceWithOnly}, f.hooks.ops)
}

func TestScenario_ZeroChildren(t *testing.T) {
	f := newFixture(t, `<div id="c" class="domx-zero-children"></div><p id="other"></p><div id="d"><p id="q1"></p><p id="q2" class="domx-first-child"></p></div>`)
	c := f.node(t, "#c")

	f.engine.Observe(c)
	f.frames.tick()
	assert.Empty(t, f.hooks.ops)

	c.AppendChild(&html.Node{Type: html.ElementNode, Data: "span"})
	c.AppendChild(&html.Node{Type: html.TextNode, Data: "late"})

	// Any later flush rechecks the flagged container.
	f.engine.Observe(f.node(t, "#q2"))
	f.frames.tick()
	assert.Nil(t, c.FirstChild)
	assert.Contains(t, f.hooks.ops, OpClearChildren)
	assert.Equal(t, "", f.html(t, "#c"))
}

func TestScenario_AlwaysChildren(t *testing.T) {
	f := newFixture(t, `<main id="m"><div id="c" data-domx-children="always"> </div><div id="full" class="domx-always-children"><p></p></div></main>`)
	m, c, full := f.node(t, "#m"), f.node(t, "#c"), f.node(t, "#full")

	f.engine.Observe(c)
	f.engine.Observe(full)
	f.frames.tick()

	assert.Nil(t, c.Parent)
	assert.Same(t, m, full.Parent)
	assert.Equal(t, []Op{OpRemoveContainer}, f.hooks.ops)
	assert.Equal(t, 0, f.doc.Find("#c").Length())

	// The removed container's state is dropped, the other one persists.
	_, ok := f.engine.Slots(c)
	assert.False(t, ok)
	_, ok = f.engine.Slots(full)
	assert.True(t, ok)
	assert.Equal(t, 0, f.engine.Reconcile(c))
}

func TestReconcile_MovedElementKeepsPresence(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
		ops  []Op
	}{
		{
			name: "first and zero",
			src:  `<ul id="c"><li id="a">a</li><li id="x" class="domx-first-child domx-zero-children"><b>kid</b></li></ul>`,
			want: []string{"x", "a"},
			ops:  []Op{OpMoveFirst, OpClearChildren},
		},
		{
			name: "last and zero",
			src:  `<ul id="c"><li id="x" class="domx-last-child domx-zero-children"><b>kid</b></li><li id="a">a</li></ul>`,
			want: []string{"a", "x"},
			ops:  []Op{OpMoveLast, OpClearChildren},
		},
		{
			name: "only and zero",
			src:  `<ul id="c"><li id="a">a</li><li id="x" class="domx-only-child domx-zero-children"><i>k</i></li><li id="z">z</li></ul>`,
			want: []string{"x"},
			ops:  []Op{OpReplaceWithOnly, OpClearChildren},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.src)
			c, x := f.node(t, "#c"), f.node(t, "#x")

			f.engine.Observe(x)
			for f.frames.tick() > 0 {
			}

			assert.Equal(t, tt.want, childIDs(c))
			moved := f.node(t, "#x")
			assert.NotSame(t, x, moved)
			assert.Nil(t, moved.FirstChild)
			assert.Equal(t, tt.ops, f.hooks.ops)

			snap, ok := f.engine.Slots(moved)
			require.True(t, ok)
			assert.Equal(t, intent.PresenceZero, snap.Flag)
			_, ok = f.engine.Slots(x)
			assert.False(t, ok)
			assert.Equal(t, 0, f.engine.Reconcile(c))
			assert.Equal(t, 0, f.engine.Reconcile(moved))
		})
	}
}

func TestReconcile_MovedContainerKeepsChildSlots(t *testing.T) {
	f := newFixture(t, `<div id="outer"><p id="p"></p><ul id="inner" class="domx-last-child"><li id="a"></li><li id="b" class="domx-first-child"></li></ul><p id="q"></p></div>`)
	outer := f.node(t, "#outer")

	// The outer container is reconciled first and clones the inner one
	// before its own first-child correction runs.
	f.engine.Observe(f.node(t, "#inner"))
	f.engine.Observe(f.node(t, "#b"))
	for f.frames.tick() > 0 {
	}

	assert.Equal(t, []string{"p", "q", "inner"}, childIDs(outer))
	assert.Equal(t, []string{"b", "a"}, childIDs(f.node(t, "#inner")))
	assert.Equal(t, []Op{OpMoveLast, OpMoveFirst}, f.hooks.ops)
	assert.Equal(t, 2, f.engine.Containers())
}

func TestReconcile_OnlyChildRemovesText(t *testing.T) {
	f := newFixture(t, `<div id="c">hello<p id="x" class="domx-only-child"></p></div>`)
	c := f.node(t, "#c")

	f.engine.Observe(f.node(t, "#x"))
	f.frames.tick()

	assert.Equal(t, []Op{OpReplaceWithOnly}, f.hooks.ops)
	assert.Equal(t, `<p id="x" class="domx-only-child"></p>`, f.html(t, "#c"))
	assert.Equal(t, 0, f.engine.Reconcile(c))
}

func TestReconcile_DetachedContainerNoop(t *testing.T) {
	f := newFixture(t, `<div id="c"><p id="a"></p><p id="b" class="domx-first-child"></p></div>`)
	c := f.node(t, "#c")

	f.engine.Observe(f.node(t, "#b"))
	dom.Detach(c)
	f.frames.tick()

	assert.Empty(t, f.hooks.ops)
	assert.Equal(t, []string{"a", "b"}, childIDs(c))
	assert.Equal(t, 0, f.engine.Containers())
}

func TestReconcile_StaleWinnerSkipped(t *testing.T) {
	f := newFixture(t, `<div id="c"><p id="a"></p><p id="b" class="domx-last-child"></p><p id="z"></p></div><div id="other"></div>`)
	c, b := f.node(t, "#c"), f.node(t, "#b")

	f.engine.Observe(b)
	c.RemoveChild(b)
	f.node(t, "#other").AppendChild(b)
	f.frames.tick()

	assert.Empty(t, f.hooks.ops)
	assert.Equal(t, []string{"a", "z"}, childIDs(c))
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "move_first", OpMoveFirst.String())
	assert.Equal(t, "remove_container", OpRemoveContainer.String())
	assert.Equal(t, "children-flag", SlotChildrenFlag.String())
	assert.Equal(t, "unknown", Slot(0).String())
}
