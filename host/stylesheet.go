package host

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// MarkerSelector matches elements carrying a domx class token, in any case,
// or a domx attribute.
const MarkerSelector = `[class*="domx-" i], [data-domx-child], [data-domx-children]`

// Rule attaches an animation to the elements matched by a selector.
type Rule struct {
	Selector  string
	Animation string

	group cascadia.SelectorGroup
}

// Stylesheet is an ordered rule list. Later rules win, as in the cascade.
type Stylesheet struct {
	rules []Rule
}

// NewStylesheet returns an empty stylesheet.
func NewStylesheet() *Stylesheet {
	return &Stylesheet{}
}

// DefaultStylesheet animates every marked element with the given animation.
func DefaultStylesheet(animation string) *Stylesheet {
	s := NewStylesheet()
	if err := s.AddRule(MarkerSelector, animation); err != nil {
		panic(err)
	}
	return s
}

// AddRule appends a rule.
func (s *Stylesheet) AddRule(selector, animation string) error {
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return fmt.Errorf("parse selector %q: %w", selector, err)
	}
	s.rules = append(s.rules, Rule{Selector: selector, Animation: animation, group: group})
	return nil
}

// Rules returns the rules in cascade order.
func (s *Stylesheet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// AnimationFor returns the animation applied to n, or "" when none is.
func (s *Stylesheet) AnimationFor(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	for i := len(s.rules) - 1; i >= 0; i-- {
		if s.rules[i].group.Match(n) {
			return s.rules[i].Animation
		}
	}
	return ""
}
