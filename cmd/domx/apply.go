package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/domx/config"
	"github.com/c360studio/domx/engine"
	"github.com/c360studio/domx/processor/normalizer"
	"github.com/c360studio/domx/report"
)

type applyOptions struct {
	format  string
	inPlace bool
}

func applyCmd(a *app) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply [file...]",
		Short: "Resolve structural intents in HTML files",
		Long: `Apply loads each file the way a browser would, lets every marked element
register its intent and writes the corrected document.

With no files, or with "-", the document is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.override(a.cfg); err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"-"}
			}
			return a.apply(cmd.Context(), args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Output format (html, markdown)")
	cmd.Flags().BoolVarP(&opts.inPlace, "in-place", "w", false, "Rewrite files instead of printing them")

	return cmd
}

// override applies command line flags on top of the loaded configuration.
func (o *applyOptions) override(cfg *config.Config) error {
	if o.format != "" {
		cfg.Output.Format = o.format
	}
	if o.inPlace {
		cfg.Output.InPlace = true
	}
	return cfg.Validate()
}

func (a *app) apply(ctx context.Context, paths []string, stdin io.Reader, stdout io.Writer) error {
	n, err := a.newNormalizer()
	if err != nil {
		return err
	}
	pub, _, err := a.publisher(ctx)
	if err != nil {
		return err
	}
	defer pub.Close()

	var errs []error
	for _, path := range paths {
		if err := a.applyOne(ctx, n, pub, path, stdin, stdout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) applyOne(ctx context.Context, n *normalizer.Normalizer, pub report.Publisher, path string, stdin io.Reader, stdout io.Writer) error {
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	start := time.Now()
	res, err := n.Normalize(ctx, content)
	elapsed := time.Since(start)
	if err != nil {
		err = fmt.Errorf("normalize %s: %w", path, err)
		a.publish(ctx, pub, report.New(path, reportStats(res), false, elapsed, err))
		return err
	}
	a.publish(ctx, pub, report.New(path, res.Stats, res.Changed, elapsed, nil))

	if a.cfg.Output.InPlace && path != "-" {
		if !res.Changed {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := os.WriteFile(path, []byte(n.Output(res)), info.Mode().Perm()); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}

	out := n.Output(res)
	if _, err := io.WriteString(stdout, out); err != nil {
		return err
	}
	if len(out) > 0 && out[len(out)-1] != '\n' {
		_, err = io.WriteString(stdout, "\n")
	}
	return err
}

func (a *app) publish(ctx context.Context, pub report.Publisher, r report.Report) {
	if err := pub.Publish(ctx, r); err != nil {
		a.logger.Warn("Failed to publish report", "path", r.Path, "error", err)
	}
}

func reportStats(res *normalizer.Result) engine.Stats {
	if res == nil {
		return engine.Stats{}
	}
	return res.Stats
}
