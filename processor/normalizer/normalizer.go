// Package normalizer runs the intent engine over a whole HTML document and
// renders the corrected result as HTML or markdown.
//
// A document is processed the way a browser would load it: every marked
// element raises its insertion signal in document order, DOMContentLoaded
// follows, and frames run until no correction is pending.
package normalizer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"

	"github.com/c360studio/domx/config"
	"github.com/c360studio/domx/dom"
	"github.com/c360studio/domx/engine"
	"github.com/c360studio/domx/host"
	"github.com/c360studio/domx/observer"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// Result is the outcome of normalizing one document.
type Result struct {
	Title    string
	HTML     string
	Markdown string
	Changed  bool
	Stats    engine.Stats
}

// Options configures a Normalizer.
type Options struct {
	AnimationName string
	EventName     string
	Selector      string
	FrameInterval time.Duration
	MaxFrames     int
	Markdown      bool
	Hooks         engine.Hooks
	Logger        *slog.Logger
}

// OptionsFromConfig derives options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AnimationName: cfg.Observe.AnimationName,
		EventName:     cfg.Observe.EventName,
		Selector:      cfg.Observe.Selector,
		FrameInterval: cfg.Frames.Interval,
		MaxFrames:     cfg.Frames.MaxFrames,
		Markdown:      cfg.Output.Format == config.FormatMarkdown,
	}
}

// Normalizer applies structural intents to HTML documents.
type Normalizer struct {
	opts      Options
	sheet     *host.Stylesheet
	converter *md.Converter
	logger    *slog.Logger
}

// New creates a normalizer. It fails when the selector does not parse.
func New(opts Options) (*Normalizer, error) {
	if opts.AnimationName == "" {
		opts.AnimationName = observer.DefaultAnimationName
	}
	if opts.EventName == "" {
		opts.EventName = host.EventAnimationStart
	}
	if opts.Selector == "" {
		opts.Selector = host.MarkerSelector
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = host.DefaultMaxFrames
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sheet := host.NewStylesheet()
	if err := sheet.AddRule(opts.Selector, opts.AnimationName); err != nil {
		return nil, err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Normalizer{
		opts:      opts,
		sheet:     sheet,
		converter: converter,
		logger:    logger,
	}, nil
}

// Normalize parses content, lets every marked element raise its insertion
// signal, runs frames until the engine settles and renders the result.
func (n *Normalizer) Normalize(ctx context.Context, content []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loop := host.NewLoop(
		host.WithFrameInterval(n.opts.FrameInterval),
		host.WithMaxFrames(n.opts.MaxFrames),
		host.WithLoopLogger(n.logger))
	doc, err := host.Parse(bytes.NewReader(content), loop,
		host.WithStylesheet(n.sheet),
		host.WithAnimationEvent(n.opts.EventName),
		host.WithDocumentLogger(n.logger))
	if err != nil {
		return nil, err
	}
	before := dom.Render(doc.Root())

	engineOpts := []engine.Option{engine.WithLogger(n.logger)}
	if n.opts.Hooks != nil {
		engineOpts = append(engineOpts, engine.WithHooks(n.opts.Hooks))
	}
	eng := engine.New(loop, engineOpts...)
	observer.New(doc, eng,
		observer.WithAnimationName(n.opts.AnimationName),
		observer.WithLogger(n.logger))

	doc.Load()
	if err := loop.RunUntilIdle(); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	out := dom.Render(doc.Root())
	result := &Result{
		Title:   extractTitle(doc.Root()),
		HTML:    out,
		Changed: out != before,
		Stats:   eng.Stats(),
	}

	if n.opts.Markdown {
		markdown, err := n.converter.ConvertString(renderBody(doc))
		if err != nil {
			return nil, fmt.Errorf("convert to markdown: %w", err)
		}
		result.Markdown = cleanMarkdown(markdown)
	}

	n.logger.Debug("Document normalized",
		"signals", result.Stats.Signals,
		"mutations", result.Stats.Mutations,
		"flushes", result.Stats.Flushes,
		"changed", result.Changed)

	return result, nil
}

// Output returns the rendering selected by the options.
func (n *Normalizer) Output(r *Result) string {
	if n.opts.Markdown {
		return r.Markdown
	}
	return r.HTML
}

// extractTitle returns the text of the first title element.
func extractTitle(root *html.Node) string {
	var title string
	dom.Walk(root, func(n *html.Node) bool {
		if title != "" {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return false
		}
		return true
	})
	return title
}

// renderBody renders the body element, or the whole document without one.
func renderBody(doc *host.Document) string {
	if body := doc.Body(); body != nil {
		return dom.Render(body)
	}
	return dom.Render(doc.Root())
}

// cleanMarkdown cleans up converted markdown.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
