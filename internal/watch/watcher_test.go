package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/standardbeagle/seqmap/internal/config"
	"github.com/standardbeagle/seqmap/testhelpers"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		Project: config.Project{Root: root},
		Apply: config.Apply{
			MaxFileSize:     1024 * 1024,
			WatchDebounceMs: 50,
		},
	}
}

// TestFileWatcher_DetectsWrite tests that writes reach the changed callback.
func TestFileWatcher_DetectsWrite(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "input.txt")
	if err := os.WriteFile(path, []byte("before"), 0644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(testConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	changed := make(chan string, 16)
	fw.SetCallbacks(
		func(p string) { changed <- p },
		nil,
	)

	if err := fw.Start(root); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("after"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Errorf("Expected change for %s, got %s", path, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for change event")
	}
}

// TestFileWatcher_IgnoresExcluded tests exclude pattern filtering.
func TestFileWatcher_IgnoresExcluded(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	cfg.Exclude = []string{"**/*.log"}

	fw, err := NewFileWatcher(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	changed := make(chan string, 16)
	fw.SetCallbacks(
		func(p string) { changed <- p },
		nil,
	)

	if err := fw.Start(root); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(root, "ignored.log"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "seen.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// The txt file must arrive; the log file must not, even after the
	// debounce window has passed.
	seenTxt := false
	deadline := time.After(2 * time.Second)
	for !seenTxt {
		select {
		case got := <-changed:
			switch filepath.Base(got) {
			case "seen.txt":
				seenTxt = true
			case "ignored.log":
				t.Fatalf("Excluded file reached callback: %s", got)
			}
		case <-deadline:
			t.Fatal("Timeout waiting for change event")
		}
	}

	select {
	case got := <-changed:
		if filepath.Base(got) == "ignored.log" {
			t.Fatalf("Excluded file reached callback: %s", got)
		}
	case <-time.After(200 * time.Millisecond):
		// No stray events
	}
}

// TestFileWatcher_IncludePatterns tests include pattern filtering.
func TestFileWatcher_IncludePatterns(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	cfg.Include = []string{"*.txt"}

	fw, err := NewFileWatcher(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	changed := make(chan string, 16)
	fw.SetCallbacks(
		func(p string) { changed <- p },
		nil,
	)

	if err := fw.Start(root); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(root, "data.dat"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "input.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if filepath.Base(got) != "input.txt" {
			t.Errorf("Expected input.txt, got %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for change event")
	}
}

// TestFileWatcher_RemoveEvent tests that deletions reach the removed callback.
func TestFileWatcher_RemoveEvent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(testConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	removed := make(chan string, 16)
	fw.SetCallbacks(
		nil,
		func(p string) { removed <- p },
	)

	if err := fw.Start(root); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-removed:
		if got != path {
			t.Errorf("Expected removal of %s, got %s", path, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for remove event")
	}
}

// TestFileWatcher_WatchFileOutsideRoot tests individually watched files.
func TestFileWatcher_WatchFileOutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	recipe := filepath.Join(other, "recipe.toml")
	if err := os.WriteFile(recipe, []byte("# recipe"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(root)
	cfg.Include = []string{"**/*.txt"} // Would never match the recipe

	fw, err := NewFileWatcher(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	changed := make(chan string, 16)
	fw.SetCallbacks(
		func(p string) { changed <- p },
		nil,
	)

	if err := fw.Start(root); err != nil {
		t.Fatal(err)
	}
	if err := fw.WatchFile(recipe); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(recipe, []byte("# changed"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got != recipe {
			t.Errorf("Expected change for %s, got %s", recipe, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for recipe change event")
	}
}

// TestFileWatcher_NewDirectoryWatched tests that created directories get watches.
func TestFileWatcher_NewDirectoryWatched(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher(testConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	changed := make(chan string, 16)
	fw.SetCallbacks(
		func(p string) { changed <- p },
		nil,
	)

	if err := fw.Start(root); err != nil {
		t.Fatal(err)
	}

	subdir := filepath.Join(root, "nested")
	if err := os.Mkdir(subdir, 0755); err != nil {
		t.Fatal(err)
	}

	// Give the watcher time to pick up the new directory
	time.Sleep(250 * time.Millisecond)

	inner := filepath.Join(subdir, "inner.txt")
	if err := os.WriteFile(inner, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-changed:
			if got == inner {
				return
			}
			// The mkdir itself may surface as a change for the parent
		case <-deadline:
			t.Fatal("Timeout waiting for event from new directory")
		}
	}
}

// TestFileWatcher_Stats tests event accounting.
func TestFileWatcher_Stats(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher(testConfig(root))
	if err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 16)
	fw.SetCallbacks(
		func(p string) { changed <- p },
		nil,
	)

	if err := fw.Start(root); err != nil {
		t.Fatal(err)
	}

	if stats := fw.GetStats(); !stats.IsActive {
		t.Error("Expected watcher to be active after Start")
	}

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for change event")
	}

	if stats := fw.GetStats(); stats.EventsProcessed < 1 {
		t.Errorf("Expected at least 1 processed event, got %d", stats.EventsProcessed)
	}

	if err := fw.Stop(); err != nil {
		t.Fatal(err)
	}

	if stats := fw.GetStats(); stats.IsActive {
		t.Error("Expected watcher to be inactive after Stop")
	}
}

// TestEventDebouncer_Coalesces tests that rapid events for one path
// produce a single callback.
func TestEventDebouncer_Coalesces(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher(testConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	var count atomic.Int64
	fw.SetCallbacks(
		func(p string) { count.Add(1) },
		nil,
	)

	path := filepath.Join(root, "burst.txt")
	fw.debouncer.addEvent(path, FileEventWrite)
	fw.debouncer.addEvent(path, FileEventWrite)
	fw.debouncer.addEvent(path, FileEventWrite)

	testhelpers.WaitFor(t, func() bool {
		return count.Load() >= 1
	}, 2*time.Second)

	// No further callbacks may arrive for the coalesced burst
	time.Sleep(150 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("Expected 1 coalesced callback, got %d", got)
	}
}

// TestFileWatcher_StopWithoutStart tests that Stop is safe before Start.
func TestFileWatcher_StopWithoutStart(t *testing.T) {
	fw, err := NewFileWatcher(testConfig(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	if err := fw.Stop(); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
}
