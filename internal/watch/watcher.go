// Package watch re-runs the apply pipeline when inputs change. It wraps
// fsnotify with recursive directory watches, include/exclude filtering,
// and a debouncer that batches rapid-fire events per path.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/seqmap/internal/config"
	"github.com/standardbeagle/seqmap/internal/debug"
)

// FileWatcher monitors the file system for changes and triggers re-applies
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	config    *config.Config
	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Callbacks for handling file events
	onFileChanged func(path string)
	onFileRemoved func(path string)

	// Files watched individually, outside the include patterns
	extraMu    sync.RWMutex
	extraFiles map[string]bool

	// Watch statistics
	eventsProcessed int64
	errorCount      int64
	lastEventTime   time.Time
	statsMu         sync.RWMutex
}

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

// NewFileWatcher creates a new file watcher
func NewFileWatcher(cfg *config.Config) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	fw := &FileWatcher{
		watcher:    watcher,
		config:     cfg,
		debouncer:  newEventDebouncer(time.Duration(cfg.Apply.WatchDebounceMs) * time.Millisecond),
		ctx:        ctx,
		cancel:     cancel,
		extraFiles: make(map[string]bool),
	}

	fw.debouncer.setCallbacks(fw)

	return fw, nil
}

// SetCallbacks sets the callbacks for handling file events
func (fw *FileWatcher) SetCallbacks(
	onFileChanged func(path string),
	onFileRemoved func(path string),
) {
	fw.onFileChanged = onFileChanged
	fw.onFileRemoved = onFileRemoved
}

// Start begins watching the given directory tree
func (fw *FileWatcher) Start(root string) error {
	debug.LogWatch("Starting file watcher for directory: %s\n", root)

	if err := fw.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}

	// Start the event processing goroutine
	fw.wg.Add(1)
	go fw.processEvents()

	// Start the debouncer
	fw.wg.Add(1)
	go fw.debouncer.run(fw.ctx, &fw.wg)

	debug.LogWatch("File watcher started successfully\n")
	return nil
}

// WatchFile adds a single file to the watch set regardless of the
// configured include patterns. Used for recipe files that live outside
// the input tree.
func (fw *FileWatcher) WatchFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	fw.extraMu.Lock()
	fw.extraFiles[abs] = true
	fw.extraMu.Unlock()

	// Watch the parent directory; fsnotify drops file watches on rename
	return fw.watcher.Add(filepath.Dir(abs))
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	fw.cancel()
	fw.debouncer.stop()

	// Close the fsnotify watcher
	if err := fw.watcher.Close(); err != nil {
		log.Printf("Error closing fsnotify watcher: %v", err)
	}

	// Wait for goroutines to finish
	fw.wg.Wait()

	debug.LogWatch("File watcher stopped\n")
	return nil
}

// addWatches recursively adds watches to all relevant directories
func (fw *FileWatcher) addWatches(root string) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}

		if !info.IsDir() {
			return nil
		}

		// Resolve the real path to detect symlink cycles
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil // Skip symlinks that can't be resolved
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if fw.shouldIgnoreDirectory(path) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
			return nil // Continue despite errors
		}

		return nil
	})
}

// shouldIgnoreDirectory checks if a directory should be ignored based on configuration
func (fw *FileWatcher) shouldIgnoreDirectory(path string) bool {
	rel := fw.relativePath(path)

	for _, pattern := range fw.config.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}

		// Directory patterns like "**/node_modules/**" should also match
		// the directory itself, before anything inside it exists
		if dirPattern, ok := trimDirSuffix(pattern); ok {
			if matched, _ := doublestar.Match(dirPattern, rel); matched {
				return true
			}
		}
	}

	return false
}

// trimDirSuffix turns "**/x/**" into "**/x", reporting whether the
// pattern had a directory suffix to trim.
func trimDirSuffix(pattern string) (string, bool) {
	const suffix = "/**"
	if len(pattern) > len(suffix) && pattern[len(pattern)-len(suffix):] == suffix {
		return pattern[:len(pattern)-len(suffix)], true
	}
	return pattern, false
}

// processEvents processes file system events from fsnotify
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
			fw.incrementStats(0, 1)
		}
	}
}

// handleEvent handles a single file system event
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogWatch("FileWatcher: received event %v for path %s\n", event.Op, path)

	info, err := os.Stat(path)
	if err != nil {
		// File might have been deleted
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			if fw.shouldProcessPath(path) {
				fw.debouncer.addEvent(path, FileEventRemove)
			}
		}
		return
	}

	// If it's a directory, handle directory events
	if info.IsDir() {
		fw.handleDirectoryEvent(event, path)
		return
	}

	// For files, enforce size limit early and filter by patterns
	if info.Size() > fw.config.Apply.MaxFileSize {
		debug.LogWatch("FileWatcher: skipping oversized file %s (%d bytes > %d limit)\n",
			path, info.Size(), fw.config.Apply.MaxFileSize)
		return
	}
	if !fw.shouldProcessPath(path) {
		debug.LogWatch("FileWatcher: ignoring file %s (doesn't match patterns)\n", path)
		return
	}

	// Determine event type and add to debouncer
	var eventType FileEventType
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = FileEventCreate
	case event.Op&fsnotify.Write != 0:
		eventType = FileEventWrite
	case event.Op&fsnotify.Remove != 0:
		eventType = FileEventRemove
	case event.Op&fsnotify.Rename != 0:
		eventType = FileEventRename
	default:
		return // Ignore other events
	}

	debug.LogWatch("FileWatcher: adding event %v for path %s to debouncer\n", eventType, path)
	fw.debouncer.addEvent(path, eventType)
}

// handleDirectoryEvent handles events for directories
func (fw *FileWatcher) handleDirectoryEvent(event fsnotify.Event, path string) {
	// If a new directory was created, add a watch for it
	if event.Op&fsnotify.Create != 0 {
		if !fw.shouldIgnoreDirectory(path) {
			if err := fw.watcher.Add(path); err != nil {
				log.Printf("Warning: failed to add watch for new directory %s: %v", path, err)
			} else {
				debug.LogWatch("Added watch for new directory: %s\n", path)
			}
		}
	}
}

// shouldProcessPath checks if a file path should be processed based on configuration
func (fw *FileWatcher) shouldProcessPath(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	fw.extraMu.RLock()
	extra := fw.extraFiles[abs]
	fw.extraMu.RUnlock()
	if extra {
		return true
	}

	rel := fw.relativePath(path)

	for _, pattern := range fw.config.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return false
		}
	}

	// Empty include list means everything passes
	if len(fw.config.Include) == 0 {
		return true
	}

	for _, pattern := range fw.config.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		// Bare file patterns like "*.txt" should match at any depth
		if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}

	return false
}

// relativePath converts an absolute path to a slash-separated path
// relative to the project root for pattern matching.
func (fw *FileWatcher) relativePath(path string) string {
	if fw.config.Project.Root != "" {
		if rel, err := filepath.Rel(fw.config.Project.Root, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// incrementStats updates watch statistics
func (fw *FileWatcher) incrementStats(events int64, errors int64) {
	fw.statsMu.Lock()
	defer fw.statsMu.Unlock()

	fw.eventsProcessed += events
	fw.errorCount += errors
	fw.lastEventTime = time.Now()
}

// GetStats returns current watch statistics
func (fw *FileWatcher) GetStats() WatchStats {
	fw.statsMu.RLock()
	defer fw.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: fw.eventsProcessed,
		ErrorCount:      fw.errorCount,
		LastEventTime:   fw.lastEventTime,
		IsActive:        fw.ctx.Err() == nil,
	}
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}

// eventDebouncer batches file events to avoid excessive processing
type eventDebouncer struct {
	events    map[string]FileEventType
	mutex     sync.Mutex
	debounce  time.Duration
	timer     *time.Timer
	callbacks *FileWatcher
}

// newEventDebouncer creates a new event debouncer
func newEventDebouncer(debounce time.Duration) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]FileEventType),
		debounce: debounce,
	}
}

// setCallbacks sets the callbacks reference for the debouncer
func (d *eventDebouncer) setCallbacks(fw *FileWatcher) {
	d.callbacks = fw
}

// addEvent adds a file event to be debounced
func (d *eventDebouncer) addEvent(path string, eventType FileEventType) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Store the latest event for this path
	d.events[path] = eventType

	// Reset the timer
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

// run keeps the debouncer alive until shutdown
func (d *eventDebouncer) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	<-ctx.Done()

	// Events pending at shutdown are dropped: the pipeline is being torn
	// down and a late re-apply would race with it.
}

// stop cancels any pending flush and clears accumulated events
func (d *eventDebouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.events = make(map[string]FileEventType)
}

// flush processes all accumulated events
func (d *eventDebouncer) flush() {
	d.mutex.Lock()
	events := d.events
	d.events = make(map[string]FileEventType)
	d.mutex.Unlock()

	if len(events) == 0 {
		return
	}

	debug.LogWatch("Processing %d debounced file events\n", len(events))

	// Group events so removals run before re-applies
	var removes, changes []string
	for path, eventType := range events {
		switch eventType {
		case FileEventRemove:
			removes = append(removes, path)
		case FileEventCreate, FileEventWrite, FileEventRename:
			changes = append(changes, path)
		}
	}

	for _, path := range removes {
		if d.callbacks != nil && d.callbacks.onFileRemoved != nil {
			d.callbacks.onFileRemoved(path)
			d.callbacks.incrementStats(1, 0)
		}
	}

	for _, path := range changes {
		if d.callbacks != nil && d.callbacks.onFileChanged != nil {
			d.callbacks.onFileChanged(path)
			d.callbacks.incrementStats(1, 0)
		}
	}
}
