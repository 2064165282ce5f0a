// Package metrics exposes engine activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/html"

	"github.com/c360studio/domx/engine"
	"github.com/c360studio/domx/intent"
)

const namespace = "domx"

// Collector implements engine.Hooks on top of Prometheus collectors.
type Collector struct {
	registry *prometheus.Registry

	signals   *prometheus.CounterVec
	offers    *prometheus.CounterVec
	mutations *prometheus.CounterVec
	flushes   prometheus.Counter
	batchSize prometheus.Histogram
	flushTime prometheus.Histogram
	documents *prometheus.CounterVec
}

// NewCollector creates a collector on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Insertion signals observed, by classified position intent.",
		}, []string{"position"}),
		offers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_offers_total",
			Help:      "Candidates offered to container slots.",
		}, []string{"slot", "result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Structural corrections applied.",
		}, []string{"op"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Batched reconciliation passes.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_containers",
			Help:      "Containers reconciled per flush.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		flushTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent in a flush.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents normalized, by outcome.",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		c.signals, c.offers, c.mutations, c.flushes,
		c.batchSize, c.flushTime, c.documents,
	)
	return c
}

// Registry returns the registry the collectors are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observed implements engine.Hooks.
func (c *Collector) Observed(_ *html.Node, in intent.Intents) {
	c.signals.WithLabelValues(in.Position.String()).Inc()
}

// Resolved implements engine.Hooks.
func (c *Collector) Resolved(_ *html.Node, slot engine.Slot, accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	c.offers.WithLabelValues(slot.String(), result).Inc()
}

// Mutated implements engine.Hooks.
func (c *Collector) Mutated(_ *html.Node, op engine.Op) {
	c.mutations.WithLabelValues(op.String()).Inc()
}

// Flushed implements engine.Hooks.
func (c *Collector) Flushed(containers, _ int, elapsed time.Duration) {
	c.flushes.Inc()
	c.batchSize.Observe(float64(containers))
	c.flushTime.Observe(elapsed.Seconds())
}

// DocumentDone records the outcome of a document normalization.
func (c *Collector) DocumentDone(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.documents.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
