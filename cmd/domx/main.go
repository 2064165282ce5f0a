// Package main provides the domx binary entry point.
// Domx resolves the structural intents declared on HTML elements
// (first, last or only child, always or zero children) and rewrites
// documents so every container honours them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/c360studio/domx/config"
	"github.com/c360studio/domx/processor/normalizer"
	"github.com/c360studio/domx/report"
	"github.com/c360studio/domx/storage"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "domx"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Structural intent resolution for HTML documents",
		Long: `Domx reads HTML documents whose elements declare where they belong
inside their parent and rewrites the documents to match:

- domx-first-child / domx-last-child move an element to the front or back
- domx-only-child replaces every sibling with the element
- domx-zero-children empties a container
- domx-always-children removes a container that ended up empty

The same intents can be given with the data-domx-child and
data-domx-children attributes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(applyCmd(a), inspectCmd(a), watchCmd(a), reportsCmd(a))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setup configures logging and loads the layered configuration.
func (a *app) setup(stderr io.Writer) error {
	a.logger = newLogger(stderr, a.logLevel)
	slog.SetDefault(a.logger)

	cfg, err := config.NewLoader(a.logger).Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	return nil
}

// newNormalizer builds a normalizer from the loaded configuration.
func (a *app) newNormalizer(opts ...func(*normalizer.Options)) (*normalizer.Normalizer, error) {
	o := normalizer.OptionsFromConfig(a.cfg)
	o.Logger = a.logger
	for _, fn := range opts {
		fn(&o)
	}
	return normalizer.New(o)
}

// publisher returns the report publisher selected by the configuration.
// Reports are always logged, sent to NATS when a URL is set and stored in
// the KV bucket when one is named. The store is nil without a bucket.
func (a *app) publisher(ctx context.Context) (report.Publisher, *storage.ReportStore, error) {
	logPub := report.NewLogPublisher(a.logger)
	if a.cfg.NATS.URL == "" {
		return logPub, nil, nil
	}
	natsPub, err := report.ConnectNATS(a.cfg.NATS.URL, a.cfg.NATS.Subject, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.NATS.Bucket == "" {
		return report.Multi{logPub, natsPub}, nil, nil
	}

	store, err := a.openStore(ctx, natsPub)
	if err != nil {
		_ = natsPub.Close()
		return nil, nil, err
	}
	return report.Multi{logPub, store, natsPub}, store, nil
}

// openStore opens the report bucket over the publisher's connection.
func (a *app) openStore(ctx context.Context, natsPub *report.NATSPublisher) (*storage.ReportStore, error) {
	js, err := jetstream.New(natsPub.Conn())
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return storage.NewReportStore(ctx, js, a.cfg.NATS.Bucket)
}

func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
