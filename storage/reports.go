// Package storage keeps the latest report of every normalized document in
// a NATS KV bucket.
package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/domx/report"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "DOMX_REPORTS"

// bucket is the subset of KV operations the store needs.
type bucket interface {
	put(ctx context.Context, key string, value []byte) error
	get(ctx context.Context, key string) ([]byte, error)
	keys(ctx context.Context) ([]string, error)
	delete(ctx context.Context, key string) error
}

// ReportStore stores reports keyed by document path.
type ReportStore struct {
	b bucket
}

// NewReportStore opens the bucket, creating it if it doesn't exist.
func NewReportStore(ctx context.Context, js jetstream.JetStream, name string) (*ReportStore, error) {
	if name == "" {
		name = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, name)
	if err != nil {
		return nil, fmt.Errorf("open reports bucket %s: %w", name, err)
	}
	return &ReportStore{b: kvBucket{kv: kv}}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Domx document reports",
		History:     5, // Keep last 5 revisions
	})
}

// Key returns the KV key for a document path. Paths are encoded because
// KV keys only allow a restricted alphabet.
func Key(path string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(path))
}

// Put stores r as the latest report for its path.
func (s *ReportStore) Put(ctx context.Context, r report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := s.b.put(ctx, Key(r.Path), data); err != nil {
		return fmt.Errorf("store report %s: %w", r.Path, err)
	}
	return nil
}

// Get returns the latest report for path.
func (s *ReportStore) Get(ctx context.Context, path string) (*report.Report, error) {
	data, err := s.b.get(ctx, Key(path))
	if err != nil {
		return nil, err
	}
	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

// List returns every stored report ordered by path.
func (s *ReportStore) List(ctx context.Context) ([]report.Report, error) {
	keys, err := s.b.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list report keys: %w", err)
	}

	reports := make([]report.Report, 0, len(keys))
	for _, key := range keys {
		data, err := s.b.get(ctx, key)
		if err != nil {
			continue // Skip entries deleted since listing
		}
		var r report.Report
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
	return reports, nil
}

// Delete forgets the report for path.
func (s *ReportStore) Delete(ctx context.Context, path string) error {
	return s.b.delete(ctx, Key(path))
}

// Publish implements report.Publisher.
func (s *ReportStore) Publish(ctx context.Context, r report.Report) error {
	return s.Put(ctx, r)
}

// Close implements report.Publisher. The connection is owned by the caller.
func (s *ReportStore) Close() error { return nil }

// kvBucket adapts a JetStream KV bucket.
type kvBucket struct {
	kv jetstream.KeyValue
}

func (k kvBucket) put(ctx context.Context, key string, value []byte) error {
	_, err := k.kv.Put(ctx, key, value)
	return err
}

func (k kvBucket) get(ctx context.Context, key string) ([]byte, error) {
	entry, err := k.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry.Value(), nil
}

func (k kvBucket) keys(ctx context.Context) ([]string, error) {
	keys, err := k.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	return keys, err
}

func (k kvBucket) delete(ctx context.Context, key string) error {
	return k.kv.Delete(ctx, key)
}
