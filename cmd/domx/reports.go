package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/c360studio/domx/report"
	"github.com/c360studio/domx/storage"
)

func reportsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reports [path...]",
		Short: "Show the latest stored report of each document",
		Long: `Reports reads the KV bucket named by nats.bucket and prints the latest
report of every document, or of the given paths only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.NATS.URL == "" || a.cfg.NATS.Bucket == "" {
				return errors.New("reports require nats.url and nats.bucket")
			}
			ctx := cmd.Context()

			pub, store, err := a.publisher(ctx)
			if err != nil {
				return err
			}
			defer pub.Close()

			var reports []report.Report
			if len(args) == 0 {
				reports, err = store.List(ctx)
				if err != nil {
					return err
				}
			}
			for _, path := range args {
				r, err := store.Get(ctx, path)
				if errors.Is(err, storage.ErrNotFound) {
					a.logger.Warn("No report stored", "path", path)
					continue
				}
				if err != nil {
					return err
				}
				reports = append(reports, *r)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			printReports(cmd.OutOrStdout(), reports)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")

	return cmd
}

// printReports writes one line per report.
func printReports(w io.Writer, reports []report.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports stored")
		return
	}
	for _, r := range reports {
		var status string
		switch {
		case r.Error != "":
			status = color.RedString("error")
		case r.Changed:
			status = color.YellowString("changed")
		default:
			status = color.GreenString("clean")
		}
		fmt.Fprintf(w, "%-40s %-8s signals=%d mutations=%d flushes=%d %s\n",
			r.Path, status, r.Stats.Signals, r.Stats.Mutations, r.Stats.Flushes,
			r.Time.Local().Format(time.DateTime))
		if r.Error != "" {
			fmt.Fprintf(w, "  %s\n", r.Error)
		}
	}
}
