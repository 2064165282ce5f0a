// Package report publishes the outcome of document normalizations.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360studio/domx/engine"
)

// Report describes one normalized document.
type Report struct {
	ID       string        `json:"id"`
	Path     string        `json:"path"`
	Stats    engine.Stats  `json:"stats"`
	Changed  bool          `json:"changed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Time     time.Time     `json:"time"`
}

// New creates a report with a fresh ID.
func New(path string, stats engine.Stats, changed bool, elapsed time.Duration, err error) Report {
	r := Report{
		ID:       uuid.NewString(),
		Path:     path,
		Stats:    stats,
		Changed:  changed,
		Duration: elapsed,
		Time:     time.Now().UTC(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Publisher delivers reports.
type Publisher interface {
	Publish(ctx context.Context, r Report) error
	Close() error
}

// LogPublisher writes reports to a logger.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs at info level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, r Report) error {
	attrs := []any{
		"id", r.ID,
		"path", r.Path,
		"changed", r.Changed,
		"signals", r.Stats.Signals,
		"mutations", r.Stats.Mutations,
		"flushes", r.Stats.Flushes,
		"duration", r.Duration,
	}
	if r.Error != "" {
		p.logger.Warn("Document normalization failed", append(attrs, "error", r.Error)...)
		return nil
	}
	p.logger.Info("Document normalized", attrs...)
	return nil
}

// Close implements Publisher.
func (p *LogPublisher) Close() error { return nil }

// NATSPublisher publishes JSON reports on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(conn *nats.Conn, subject string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

// ConnectNATS dials url and returns a publisher for subject.
func ConnectNATS(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("domx"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return NewNATSPublisher(conn, subject, logger), nil
}

// Conn returns the underlying connection.
func (p *NATSPublisher) Conn() *nats.Conn {
	return p.conn
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Header.Set("Domx-Report-Id", r.ID)
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish report %s: %w", r.ID, err)
	}
	p.logger.Debug("Published report", "subject", p.subject, "id", r.ID)
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, r Report) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Publisher.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
