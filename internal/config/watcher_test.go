package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brvfd/scannerbot/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
discord:
  token: "abc123"
radio:
  driver_addr: "127.0.0.1:1234"
presets:
  - name: noaa
    mhz: 162.55
    mode: wx
`

const watcherUpdatedYAML = `
server:
  log_level: debug
discord:
  token: "abc123"
radio:
  driver_addr: "127.0.0.1:1234"
presets:
  - name: noaa
    mhz: 162.4
    mode: wx
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

// watcherHarness drives a Watcher against a temp config file and records
// every onChange invocation.
type watcherHarness struct {
	t    *testing.T
	path string
	w    *config.Watcher

	mu    sync.Mutex
	calls []struct{ old, new *config.Config }
	fired chan struct{}
}

func startWatcher(t *testing.T, initial string) *watcherHarness {
	t.Helper()

	h := &watcherHarness{
		t:     t,
		path:  filepath.Join(t.TempDir(), "config.yaml"),
		fired: make(chan struct{}, 16),
	}
	h.write(initial)

	w, err := config.NewWatcher(h.path, func(old, new *config.Config) {
		h.mu.Lock()
		h.calls = append(h.calls, struct{ old, new *config.Config }{old, new})
		h.mu.Unlock()
		h.fired <- struct{}{}
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	h.w = w
	return h
}

func (h *watcherHarness) write(content string) {
	h.t.Helper()
	if err := os.WriteFile(h.path, []byte(content), 0o644); err != nil {
		h.t.Fatalf("write %q: %v", h.path, err)
	}
}

func (h *watcherHarness) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	h := startWatcher(t, watcherValidYAML)

	cfg := h.w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	h := startWatcher(t, watcherValidYAML)

	time.Sleep(100 * time.Millisecond)
	h.write(watcherUpdatedYAML)

	select {
	case <-h.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not invoked within timeout")
	}

	h.mu.Lock()
	call := h.calls[0]
	h.mu.Unlock()

	if call.old == nil || call.new == nil {
		t.Fatal("onChange received nil configs")
	}
	if call.old.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level: got %q, want %q", call.old.Server.LogLevel, config.LogInfo)
	}
	if call.new.Server.LogLevel != config.LogDebug {
		t.Errorf("new log_level: got %q, want %q", call.new.Server.LogLevel, config.LogDebug)
	}
	if cur := h.w.Current(); cur.Server.LogLevel != config.LogDebug {
		t.Errorf("Current() log_level: got %q, want %q", cur.Server.LogLevel, config.LogDebug)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	h := startWatcher(t, watcherValidYAML)

	time.Sleep(100 * time.Millisecond)
	h.write(watcherInvalidYAML)

	// Several poll intervals; the broken file must never fire the callback.
	time.Sleep(300 * time.Millisecond)

	if n := h.callCount(); n != 0 {
		t.Errorf("onChange fired %d times for an invalid config, want 0", n)
	}
	if cur := h.w.Current(); cur.Server.LogLevel != config.LogInfo {
		t.Errorf("Current() should keep the last good config, got log_level=%q", cur.Server.LogLevel)
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	h := startWatcher(t, watcherValidYAML)

	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(h.path, now, now); err != nil {
		t.Fatalf("touch: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if n := h.callCount(); n != 0 {
		t.Errorf("onChange fired %d times for a touch-only change, want 0", n)
	}
}

// A callback that closes over state built after NewWatcher must go in
// through SetOnChange; reloads before registration update Current without
// invoking anything, reloads after go to the new callback.
func TestWatcher_SetOnChangeAfterStart(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(watcherValidYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := config.NewWatcher(path, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// First change lands while no callback is registered.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(watcherUpdatedYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for w.Current().Server.LogLevel != config.LogDebug {
		if time.Now().After(deadline) {
			t.Fatal("Current() never picked up the first change")
		}
		time.Sleep(20 * time.Millisecond)
	}

	var mu sync.Mutex
	var old, new *config.Config
	fired := make(chan struct{}, 1)
	w.SetOnChange(func(o, n *config.Config) {
		mu.Lock()
		old, new = o, n
		mu.Unlock()
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	if err := os.WriteFile(path, []byte(watcherValidYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("late-registered callback was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if old.Server.LogLevel != config.LogDebug || new.Server.LogLevel != config.LogInfo {
		t.Errorf("callback saw %q -> %q, want %q -> %q",
			old.Server.LogLevel, new.Server.LogLevel, config.LogDebug, config.LogInfo)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher("/nonexistent/path.yaml", nil); err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	h := startWatcher(t, watcherValidYAML)
	h.w.Stop()
	h.w.Stop()
}
