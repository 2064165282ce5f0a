package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/c360studio/domx/config"
)

func testConfig(dir string) config.WatchConfig {
	return config.WatchConfig{
		Dirs:        []string{dir},
		Include:     []string{"**/*.html"},
		ExcludeDirs: []string{".git", "node_modules"},
		Debounce:    50 * time.Millisecond,
	}
}

func startWatcher(t *testing.T, cfg config.WatchConfig) *Watcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	w, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)
	return w
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(config.WatchConfig{Dirs: []string{t.TempDir()}, Include: []string{"[a-"}}, nil); err == nil {
		t.Error("expected error for invalid include pattern")
	}
	if _, err := New(config.WatchConfig{Include: []string{"*.html"}}, nil); err == nil {
		t.Error("expected error without directories")
	}
}

func TestMatches(t *testing.T) {
	w, err := New(testConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()

	tests := []struct {
		path string
		want bool
	}{
		{"index.html", true},
		{"pages/about/index.html", true},
		{"style.css", false},
		{"node_modules/pkg/index.html", false},
		{"a/.git/x.html", false},
	}
	for _, tt := range tests {
		if got := w.Matches(tt.path); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"index.html", "docs/guide.html", "docs/notes.txt", ".hidden/x.html", "node_modules/y.html"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("<p></p>"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	w, err := New(testConfig(dir), nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()

	events, err := w.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	var paths []string
	for _, ev := range events {
		paths = append(paths, filepath.ToSlash(ev.Path))
		if ev.Operation != OpCreate {
			t.Errorf("expected create operation, got %s", ev.Operation)
		}
	}
	sort.Strings(paths)
	if len(paths) != 2 || paths[0] != "docs/guide.html" || paths[1] != "index.html" {
		t.Errorf("unexpected scan result %v", paths)
	}
}

func TestWatcher_FileCreation(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, testConfig(dir))

	testFile := filepath.Join(dir, "page.html")
	if err := os.WriteFile(testFile, []byte(`<p class="domx-first-child"></p>`), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	select {
	case event := <-w.Events():
		if event.Operation != OpCreate {
			t.Errorf("expected create operation, got %s", event.Operation)
		}
		if event.Path != "page.html" {
			t.Errorf("expected path page.html, got %s", event.Path)
		}
		if event.AbsPath != testFile {
			t.Errorf("expected abs path %s, got %s", testFile, event.AbsPath)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for create event")
	}
}

func TestWatcher_FileModification(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "page.html")
	if err := os.WriteFile(testFile, []byte("<p>initial</p>"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	w := startWatcher(t, testConfig(dir))
	w.SetHash(testFile, ContentHash([]byte("<p>initial</p>")))

	if err := os.WriteFile(testFile, []byte("<p>modified</p>"), 0644); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}

	select {
	case event := <-w.Events():
		if event.Operation != OpModify {
			t.Errorf("expected modify operation, got %s", event.Operation)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for modify event")
	}
}

func TestWatcher_FileDeletion(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "page.html")
	if err := os.WriteFile(testFile, []byte("<p>bye</p>"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	w := startWatcher(t, testConfig(dir))
	w.SetHash(testFile, "some-hash")

	if err := os.Remove(testFile); err != nil {
		t.Fatalf("failed to remove test file: %v", err)
	}

	select {
	case event := <-w.Events():
		if event.Operation != OpDelete {
			t.Errorf("expected delete operation, got %s", event.Operation)
		}
		if _, ok := w.GetHash(testFile); ok {
			t.Error("expected hash to be forgotten")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for delete event")
	}
}

func TestWatcher_UnchangedContentSkipped(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "page.html")
	content := []byte("<p>same</p>")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	w := startWatcher(t, testConfig(dir))
	w.SetHash(testFile, ContentHash(content))

	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	select {
	case event := <-w.Events():
		t.Errorf("unexpected event when content unchanged: %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	excluded := filepath.Join(dir, "node_modules")
	if err := os.MkdirAll(excluded, 0755); err != nil {
		t.Fatalf("failed to create excluded dir: %v", err)
	}

	w := startWatcher(t, testConfig(dir))

	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("p {}"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(excluded, "x.html"), []byte("<p></p>"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	select {
	case event := <-w.Events():
		t.Errorf("unexpected event: %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}
