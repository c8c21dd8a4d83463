package confloader

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()

	w, err := NewWatcher(WithWatcherLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

func writeConfig(t *testing.T, path, level string) {
	t.Helper()

	if err := os.WriteFile(path, []byte("log:\n  level: "+level+"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestWatcherNotifiesOnConfigChange(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	writeConfig(t, configFile, "info")

	w := newTestWatcher(t)
	if err := w.Watch(configFile); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changed := make(chan string, 4)
	w.OnChange(func(path string) { changed <- path })
	w.StartAsync()

	// Let the watcher install its directory watch.
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, configFile, "debug")

	select {
	case path := <-changed:
		if path != configFile {
			t.Fatalf("expected change for %s, got %s", configFile, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected change notification")
	}

	// The notification carries the path a reload would use.
	loader := NewLoader(WithConfigFile(configFile))
	var cfg struct {
		Log struct {
			Level string `koanf:"level"`
		} `koanf:"log"`
	}
	if err := loader.Load(&cfg); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected reloaded level debug, got %q", cfg.Log.Level)
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	writeConfig(t, configFile, "info")

	w := newTestWatcher(t)
	if err := w.Watch(configFile); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changed := make(chan string, 4)
	w.OnChange(func(path string) { changed <- path })
	w.StartAsync()

	time.Sleep(100 * time.Millisecond)

	// A sibling file in the config directory must not trigger a reload.
	if err := os.WriteFile(filepath.Join(dir, "server.crt"), []byte("cert"), 0644); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	select {
	case path := <-changed:
		t.Fatalf("unexpected notification for %s", path)
	case <-time.After(300 * time.Millisecond):
	}

	writeConfig(t, configFile, "warn")

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected notification for the watched file")
	}
}

func TestWatcherMultipleCallbacks(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	writeConfig(t, configFile, "info")

	w := newTestWatcher(t)
	if err := w.Watch(configFile); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	first := make(chan string, 1)
	second := make(chan string, 1)
	w.OnChange(func(path string) { first <- path })
	w.OnChange(func(path string) { second <- path })
	w.StartAsync()

	time.Sleep(100 * time.Millisecond)

	writeConfig(t, configFile, "error")

	for i, ch := range []chan string{first, second} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("callback %d not invoked", i)
		}
	}
}

func TestWatcherStop(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.StartAsync()
	time.Sleep(50 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
