package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/c360studio/domx/intent"
)

func inspectCmd(a *app) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "inspect file...",
		Short: "List marked elements and the intents they declare",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			return a.inspect(cmd.Context(), args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (a *app) inspect(ctx context.Context, paths []string, w io.Writer) error {
	n, err := a.newNormalizer()
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)

	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		cyan.Fprintln(w, path)
		marked := doc.Find(a.cfg.Observe.Selector)
		marked.Each(func(_ int, sel *goquery.Selection) {
			in := intent.Classify(sel.Nodes[0])
			if in.IsZero() {
				return
			}
			fmt.Fprintf(w, "  %-32s in %-24s %s\n",
				describe(sel), describe(sel.Parent()),
				yellow.Sprintf("position=%s presence=%s", in.Position, in.Presence))
		})

		res, err := n.Normalize(ctx, content)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", path, err)
		}
		if res.Changed {
			fmt.Fprintf(w, "  %s\n", color.RedString("%d mutations pending across %d signals",
				res.Stats.Mutations, res.Stats.Signals))
		} else {
			fmt.Fprintf(w, "  %s\n", color.GreenString("No changes needed"))
		}
	}
	return nil
}

// describe renders a selection as tag#id.class.
func describe(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return "-"
	}
	var b strings.Builder
	b.WriteString(goquery.NodeName(sel))
	if id, ok := sel.Attr("id"); ok && id != "" {
		b.WriteString("#" + id)
	}
	if class, ok := sel.Attr("class"); ok {
		for _, c := range strings.Fields(class) {
			b.WriteString("." + c)
		}
	}
	return b.String()
}
