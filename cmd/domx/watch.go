package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/domx/config"
	"github.com/c360studio/domx/metrics"
	"github.com/c360studio/domx/processor/normalizer"
	"github.com/c360studio/domx/processor/watcher"
	"github.com/c360studio/domx/report"
	"github.com/c360studio/domx/storage"
)

func watchCmd(a *app) *cobra.Command {
	var (
		dirs        []string
		inPlace     bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Normalize HTML files whenever they change",
		Long: `Watch normalizes every matching document under the watched directories
and then again whenever one changes. Without --in-place documents are
only reported, never rewritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(dirs) > 0 {
				a.cfg.Watch.Dirs = dirs
			}
			if inPlace {
				a.cfg.Output.InPlace = true
			}
			if metricsAddr != "" {
				a.cfg.Metrics.Addr = metricsAddr
			}
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := newWatchService(ctx, a)
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.Run(ctx)
		},
	}

	cmd.Flags().StringSliceVarP(&dirs, "dir", "d", nil, "Directories to watch (overrides config)")
	cmd.Flags().BoolVarP(&inPlace, "in-place", "w", false, "Rewrite changed documents")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// watchService normalizes documents as the watcher reports them.
type watchService struct {
	cfg        *config.Config
	logger     *slog.Logger
	watcher    *watcher.Watcher
	normalizer *normalizer.Normalizer
	collector  *metrics.Collector
	publisher  report.Publisher
	store      *storage.ReportStore
}

func newWatchService(ctx context.Context, a *app) (*watchService, error) {
	collector := metrics.NewCollector()

	n, err := a.newNormalizer(func(o *normalizer.Options) {
		o.Markdown = false
		o.Hooks = collector
	})
	if err != nil {
		return nil, err
	}

	w, err := watcher.New(a.cfg.Watch, a.logger)
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	pub, store, err := a.publisher(ctx)
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	return &watchService{
		cfg:        a.cfg,
		logger:     a.logger,
		watcher:    w,
		normalizer: n,
		collector:  collector,
		publisher:  pub,
		store:      store,
	}, nil
}

// Run processes existing documents and then every change until ctx is done.
func (s *watchService) Run(ctx context.Context) error {
	if s.cfg.Metrics.Addr != "" {
		go func() {
			if err := s.collector.Serve(ctx, s.cfg.Metrics.Addr, s.logger); err != nil {
				s.logger.Error("Metrics endpoint failed", "error", err)
			}
		}()
	}

	initial, err := s.watcher.Scan()
	if err != nil {
		return err
	}
	if err := s.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	s.logger.Info("Domx watching",
		"version", Version,
		"dirs", s.cfg.Watch.Dirs,
		"documents", len(initial),
		"in_place", s.cfg.Output.InPlace)

	for _, ev := range initial {
		s.process(ctx, ev)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.watcher.Events():
			if !ok {
				return nil
			}
			s.process(ctx, ev)
		}
	}
}

// Close releases the watcher and the publisher.
func (s *watchService) Close() error {
	return errors.Join(s.watcher.Stop(), s.publisher.Close())
}

// process normalizes one document and publishes its report.
func (s *watchService) process(ctx context.Context, ev watcher.Event) {
	if ev.Operation == watcher.OpDelete {
		s.logger.Debug("Document removed", "path", ev.Path)
		if s.store != nil {
			if err := s.store.Delete(ctx, ev.Path); err != nil {
				s.logger.Warn("Failed to forget report", "path", ev.Path, "error", err)
			}
		}
		return
	}

	content, err := os.ReadFile(ev.AbsPath)
	if err != nil {
		s.logger.Warn("Failed to read document", "path", ev.Path, "error", err)
		return
	}
	s.watcher.SetHash(ev.AbsPath, watcher.ContentHash(content))

	start := time.Now()
	res, err := s.normalizer.Normalize(ctx, content)
	if err == nil && res.Changed && s.cfg.Output.InPlace {
		err = s.write(ev, res.HTML)
	}
	s.collector.DocumentDone(err)

	r := report.New(ev.Path, reportStats(res), res != nil && res.Changed, time.Since(start), err)
	if perr := s.publisher.Publish(ctx, r); perr != nil {
		s.logger.Warn("Failed to publish report", "path", ev.Path, "error", perr)
	}
}

// write stores the normalized document. The new hash is recorded first so
// the watcher does not report the write back as a change.
func (s *watchService) write(ev watcher.Event, out string) error {
	info, err := os.Stat(ev.AbsPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", ev.Path, err)
	}
	s.watcher.SetHash(ev.AbsPath, watcher.ContentHash([]byte(out)))
	if err := os.WriteFile(ev.AbsPath, []byte(out), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", ev.Path, err)
	}
	s.logger.Info("Document rewritten", "path", ev.Path)
	return nil
}
