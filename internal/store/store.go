package store

import (
	"crypto/sha256"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/seqmap/internal/debug"
	"github.com/standardbeagle/seqmap/pkg/sequence"
)

// TextID identifies one loaded base text. IDs are never reused within a
// store's lifetime; 0 is the invalid ID.
type TextID uint32

// Text holds one loaded base text with its pre-computed metadata. All
// fields are write-once: a reload under the same path produces a new Text.
type Text struct {
	ID          TextID
	Path        string
	Base        *sequence.Base
	LineOffsets []uint32 // Byte offsets for start of each line
	FastHash    uint64   // xxhash for quick equality checks
	ContentHash [32]byte // SHA256 for durable identity
}

// Size returns the approximate memory footprint of the entry.
func (t *Text) Size() int64 {
	return int64(t.Base.Len() + len(t.LineOffsets)*4 + 64)
}

// TextFile pairs a path with its content for batch loading.
type TextFile struct {
	Path    string
	Content []byte
}

// textSnapshot holds the concurrent lookup maps. Reads go through sync.Map
// with no locking; accessOrder is only touched by the single writer.
type textSnapshot struct {
	texts       sync.Map // map[TextID]*Text
	pathToID    sync.Map // map[string]TextID
	accessOrder []TextID // For LRU tracking (protected by single-writer)
}

// updateType represents the type of update operation
type updateType int

const (
	updateLoad updateType = iota
	updateBatch
	updateInvalidate
	updateInvalidateByID
	updateClear
)

// textUpdate represents a store mutation request
type textUpdate struct {
	Type     updateType
	Path     string
	Content  []byte
	ID       TextID
	Batch    []TextFile
	Response chan updateResult
}

// updateResult represents the result of an update operation
type updateResult struct {
	ID      TextID
	IDs     []TextID
	Success bool
	Error   error
}

// TextStore manages all loaded base texts centrally with concurrent
// read/write access.
//
// ARCHITECTURE:
//   - Concurrent reads via sync.Map (no locks, no copying)
//   - Writes serialized through a dedicated goroutine for consistency
//   - O(1) per-text operations (no O(n) map copying)
//
// Reads are lock-free through an atomic snapshot; updates flow through a
// buffered channel to the single writer. Loading the same path with
// unchanged content (by fast hash) is a no-op that keeps the existing ID,
// so watch-triggered reloads do not churn IDs.
type TextStore struct {
	// Immutable snapshot for lock-free reads
	snapshot atomic.Value // *textSnapshot

	// Single-writer update channel
	updateChan chan *textUpdate
	closeChan  chan struct{}
	closeOnce  sync.Once     // Ensure Close() is only called once
	closed     atomic.Bool   // Track if store is closed
	doneChan   chan struct{} // Channel to wait for goroutine to finish

	// Memory management (atomic)
	currentMemory  atomic.Int64
	maxMemoryBytes int64

	// TextID generation (atomic)
	nextID atomic.Uint32
}

// NewTextStore creates a store with the default 500MB memory limit.
func NewTextStore() *TextStore {
	return NewTextStoreWithLimit(500 * 1024 * 1024)
}

// NewTextStoreWithLimit creates a store that evicts least-recently-loaded
// texts once the given memory limit is exceeded. A limit <= 0 disables
// eviction.
func NewTextStoreWithLimit(maxMemoryBytes int64) *TextStore {
	s := &TextStore{
		updateChan:     make(chan *textUpdate, 100), // Buffered for performance
		closeChan:      make(chan struct{}),
		doneChan:       make(chan struct{}),
		maxMemoryBytes: maxMemoryBytes,
	}

	// Initialize with empty snapshot (sync.Map zero-values are ready to use)
	s.snapshot.Store(&textSnapshot{
		accessOrder: make([]TextID, 0),
	})

	// Start update processor goroutine
	go s.processUpdates()

	return s
}

// Close shuts down the update processor goroutine.
// This is safe to call multiple times due to sync.Once.
func (s *TextStore) Close() {
	s.closeOnce.Do(func() {
		// Mark as closed to prevent new operations
		s.closed.Store(true)
		// Signal the processUpdates goroutine to stop
		close(s.closeChan)
		// Wait for the goroutine to finish draining
		<-s.doneChan
	})
}

// processUpdates handles all mutations in a single goroutine
func (s *TextStore) processUpdates() {
	defer close(s.doneChan)

	for {
		select {
		case update := <-s.updateChan:
			s.handleUpdate(update)
		case <-s.closeChan:
			// Drain any remaining updates before exiting
			for {
				select {
				case update := <-s.updateChan:
					// Send error response to unblock waiting goroutines
					update.Response <- updateResult{
						Success: false,
						Error:   errors.New("store is closing"),
					}
				default:
					return
				}
			}
		}
	}
}

// handleUpdate processes a single update request
func (s *TextStore) handleUpdate(update *textUpdate) {
	snapshot := s.snapshot.Load().(*textSnapshot)

	switch update.Type {
	case updateLoad:
		newSnapshot, id := s.applyLoad(snapshot, update.Path, update.Content)
		// Enforce memory limit after adding content
		s.enforceMemoryLimit(newSnapshot)
		s.snapshot.Store(newSnapshot)
		update.Response <- updateResult{ID: id, Success: true}

	case updateBatch:
		newSnapshot, ids := s.applyBatch(snapshot, update.Batch)
		s.enforceMemoryLimit(newSnapshot)
		s.snapshot.Store(newSnapshot)
		update.Response <- updateResult{IDs: ids, Success: true}

	case updateInvalidate:
		newSnapshot := s.applyInvalidate(snapshot, update.Path)
		s.snapshot.Store(newSnapshot)
		update.Response <- updateResult{Success: true}

	case updateInvalidateByID:
		newSnapshot := s.applyInvalidateByID(snapshot, update.ID)
		s.snapshot.Store(newSnapshot)
		update.Response <- updateResult{Success: true}

	case updateClear:
		// Create fresh snapshot with empty sync.Maps
		newSnapshot := &textSnapshot{
			accessOrder: make([]TextID, 0),
		}
		s.snapshot.Store(newSnapshot)
		s.currentMemory.Store(0)
		s.nextID.Store(0)
		update.Response <- updateResult{Success: true}
	}
}

// applyLoad adds/updates a text using sync.Map (O(1), no copying)
func (s *TextStore) applyLoad(snapshot *textSnapshot, path string, content []byte) (*textSnapshot, TextID) {
	fastHash := xxhash.Sum64(content)

	// Unchanged content keeps its ID so downstream views stay valid
	if idVal, exists := snapshot.pathToID.Load(path); exists {
		id := idVal.(TextID)
		if tVal, ok := snapshot.texts.Load(id); ok {
			if tVal.(*Text).FastHash == fastHash {
				return snapshot, id
			}
		}
	}

	text := newText(path, content, fastHash)

	// Determine TextID (existing or new)
	if idVal, exists := snapshot.pathToID.Load(path); exists {
		text.ID = idVal.(TextID)
		// Update existing text - track memory delta
		if tVal, ok := snapshot.texts.Load(text.ID); ok {
			s.currentMemory.Add(text.Size() - tVal.(*Text).Size())
		}
	} else {
		text.ID = TextID(s.nextID.Add(1))
		s.currentMemory.Add(text.Size())
	}

	// Store in sync.Map (concurrent-safe, O(1))
	snapshot.texts.Store(text.ID, text)
	snapshot.pathToID.Store(path, text.ID)

	// Append to LRU (protected by single-writer)
	snapshot.accessOrder = append(snapshot.accessOrder, text.ID)

	debug.LogStore("loaded %s as text %d (%d bytes)\n", path, text.ID, text.Base.Len())
	return snapshot, text.ID
}

// applyBatch adds multiple texts with one update (O(k) for k texts)
func (s *TextStore) applyBatch(snapshot *textSnapshot, files []TextFile) (*textSnapshot, []TextID) {
	ids := make([]TextID, len(files))
	totalMemoryDelta := int64(0)

	for i, file := range files {
		fastHash := xxhash.Sum64(file.Content)

		// Check if text exists and content unchanged
		if idVal, exists := snapshot.pathToID.Load(file.Path); exists {
			id := idVal.(TextID)
			if tVal, ok := snapshot.texts.Load(id); ok {
				old := tVal.(*Text)
				if old.FastHash == fastHash {
					ids[i] = id
					continue
				}
				// Content changed
				totalMemoryDelta -= old.Size()
			}
			ids[i] = id
		} else {
			ids[i] = TextID(s.nextID.Add(1))
		}

		text := newText(file.Path, file.Content, fastHash)
		text.ID = ids[i]
		totalMemoryDelta += text.Size()

		snapshot.texts.Store(text.ID, text)
		snapshot.pathToID.Store(file.Path, text.ID)
		snapshot.accessOrder = append(snapshot.accessOrder, text.ID)
	}

	if totalMemoryDelta != 0 {
		s.currentMemory.Add(totalMemoryDelta)
	}

	debug.LogStore("batch loaded %d texts\n", len(files))
	return snapshot, ids
}

// applyInvalidate removes a text using sync.Map (O(1), no copying)
func (s *TextStore) applyInvalidate(snapshot *textSnapshot, path string) *textSnapshot {
	idVal, exists := snapshot.pathToID.Load(path)
	if !exists {
		return snapshot // No change needed
	}
	id := idVal.(TextID)

	// Update memory tracking before deletion
	if tVal, ok := snapshot.texts.Load(id); ok {
		s.currentMemory.Add(-tVal.(*Text).Size())
	}

	// Delete from sync.Maps (O(1))
	snapshot.texts.Delete(id)
	snapshot.pathToID.Delete(path)

	// Update access order (protected by single-writer)
	newAccessOrder := make([]TextID, 0, len(snapshot.accessOrder))
	for _, textID := range snapshot.accessOrder {
		if textID != id {
			newAccessOrder = append(newAccessOrder, textID)
		}
	}
	snapshot.accessOrder = newAccessOrder

	debug.LogStore("invalidated %s (text %d)\n", path, id)
	return snapshot
}

// applyInvalidateByID removes a text by ID (O(n) for the path lookup)
func (s *TextStore) applyInvalidateByID(snapshot *textSnapshot, id TextID) *textSnapshot {
	tVal, exists := snapshot.texts.Load(id)
	if !exists {
		return snapshot // No change needed
	}
	return s.applyInvalidate(snapshot, tVal.(*Text).Path)
}

// enforceMemoryLimit performs LRU eviction if needed
func (s *TextStore) enforceMemoryLimit(snapshot *textSnapshot) {
	if s.maxMemoryBytes <= 0 {
		return
	}

	currentMemory := s.currentMemory.Load()
	if currentMemory <= s.maxMemoryBytes {
		return
	}

	// Evict oldest texts until under limit (using accessOrder for LRU)
	evicted := make(map[TextID]bool)
	for i := 0; i < len(snapshot.accessOrder) && currentMemory > s.maxMemoryBytes; i++ {
		id := snapshot.accessOrder[i]
		tVal, ok := snapshot.texts.Load(id)
		if !ok {
			continue
		}
		text := tVal.(*Text)

		currentMemory -= text.Size()
		s.currentMemory.Add(-text.Size())
		snapshot.texts.Delete(id)
		snapshot.pathToID.Delete(text.Path)
		evicted[id] = true
		debug.LogStore("evicted %s (text %d) under memory pressure\n", text.Path, id)
	}

	// Update access order to remove evicted texts
	if len(evicted) > 0 {
		newAccessOrder := make([]TextID, 0, len(snapshot.accessOrder)-len(evicted))
		for _, id := range snapshot.accessOrder {
			if !evicted[id] {
				newAccessOrder = append(newAccessOrder, id)
			}
		}
		snapshot.accessOrder = newAccessOrder
	}
}

// ==================== PUBLIC API (Lock-Free Read Operations) ====================

// Get returns the text entry for an ID (LOCK-FREE)
func (s *TextStore) Get(id TextID) (*Text, bool) {
	snapshot := s.snapshot.Load().(*textSnapshot)
	if tVal, ok := snapshot.texts.Load(id); ok {
		return tVal.(*Text), true
	}
	return nil, false
}

// GetByPath returns the text entry loaded under a path (LOCK-FREE)
func (s *TextStore) GetByPath(path string) (*Text, bool) {
	snapshot := s.snapshot.Load().(*textSnapshot)
	if idVal, ok := snapshot.pathToID.Load(path); ok {
		return s.Get(idVal.(TextID))
	}
	return nil, false
}

// Base returns the base text for an ID (LOCK-FREE)
func (s *TextStore) Base(id TextID) (*sequence.Base, bool) {
	if t, ok := s.Get(id); ok {
		return t.Base, true
	}
	return nil, false
}

// LineOffsets returns the precomputed line start offsets (LOCK-FREE)
func (s *TextStore) LineOffsets(id TextID) ([]uint32, bool) {
	if t, ok := s.Get(id); ok {
		return t.LineOffsets, true
	}
	return nil, false
}

// LineCount returns the number of lines in a text (LOCK-FREE)
func (s *TextStore) LineCount(id TextID) int {
	if t, ok := s.Get(id); ok {
		return len(t.LineOffsets)
	}
	return 0
}

// Line returns one line as a contiguous view of the base text, without
// the trailing newline (LOCK-FREE)
func (s *TextStore) Line(id TextID, lineNum int) (*sequence.Sub, bool) {
	t, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	if lineNum < 0 || lineNum >= len(t.LineOffsets) {
		return nil, false
	}

	start := int(t.LineOffsets[lineNum])
	var end int
	if lineNum+1 < len(t.LineOffsets) {
		end = int(t.LineOffsets[lineNum+1])
		// Remove newline character
		if end > start && t.Base.ByteAt(end-1) == '\n' {
			end--
		}
	} else {
		end = t.Base.Len()
		if end > start && t.Base.ByteAt(end-1) == '\n' {
			end--
		}
	}

	return t.Base.Sub(start, end), true
}

// Position maps a base offset to its 0-based line and column (LOCK-FREE).
// offset == length is legal and reports the position one past the end.
func (s *TextStore) Position(id TextID, offset int) (line, col int, ok bool) {
	t, ok2 := s.Get(id)
	if !ok2 || offset < 0 || offset > t.Base.Len() {
		return 0, 0, false
	}
	if len(t.LineOffsets) == 0 {
		return 0, 0, true
	}

	// Binary search for the last line start <= offset
	lo, hi := 0, len(t.LineOffsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if int(t.LineOffsets[mid]) <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, offset - int(t.LineOffsets[lo]), true
}

// ContentHash returns the SHA256 hash for a text (LOCK-FREE)
func (s *TextStore) ContentHash(id TextID) [32]byte {
	if t, ok := s.Get(id); ok {
		return t.ContentHash
	}
	return [32]byte{}
}

// FastHash returns the xxhash for a text (LOCK-FREE)
func (s *TextStore) FastHash(id TextID) uint64 {
	if t, ok := s.Get(id); ok {
		return t.FastHash
	}
	return 0
}

// TextCount returns the number of texts in the store (LOCK-FREE)
func (s *TextStore) TextCount() int {
	snapshot := s.snapshot.Load().(*textSnapshot)
	count := 0
	snapshot.texts.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// Paths returns the loaded paths in unspecified order (LOCK-FREE)
func (s *TextStore) Paths() []string {
	snapshot := s.snapshot.Load().(*textSnapshot)
	var paths []string
	snapshot.pathToID.Range(func(key, _ interface{}) bool {
		paths = append(paths, key.(string))
		return true
	})
	return paths
}

// MemoryUsage returns the current memory usage (LOCK-FREE)
func (s *TextStore) MemoryUsage() int64 {
	return s.currentMemory.Load()
}

// ==================== PUBLIC API (Write Operations via Channel) ====================

// Load loads a text into the store and returns its ID. Reloading a path
// with unchanged content returns the existing ID.
func (s *TextStore) Load(path string, content []byte) TextID {
	// Check if store is closed
	if s.closed.Load() {
		return 0 // Return invalid TextID
	}

	update := &textUpdate{
		Type:     updateLoad,
		Path:     path,
		Content:  content,
		Response: make(chan updateResult, 1),
	}

	// Send the update - this will block if channel is full
	s.updateChan <- update

	// Wait for response
	result := <-update.Response
	return result.ID
}

// BatchLoad loads multiple texts with a single update
func (s *TextStore) BatchLoad(files []TextFile) []TextID {
	if len(files) == 0 {
		return nil
	}
	if s.closed.Load() {
		return nil
	}

	update := &textUpdate{
		Type:     updateBatch,
		Batch:    files,
		Response: make(chan updateResult, 1),
	}
	s.updateChan <- update
	result := <-update.Response
	return result.IDs
}

// Invalidate removes a text from the store
func (s *TextStore) Invalidate(path string) {
	if s.closed.Load() {
		return
	}
	update := &textUpdate{
		Type:     updateInvalidate,
		Path:     path,
		Response: make(chan updateResult, 1),
	}
	s.updateChan <- update
	<-update.Response
}

// InvalidateByID removes a text from the store by its TextID
func (s *TextStore) InvalidateByID(id TextID) {
	if s.closed.Load() {
		return
	}
	update := &textUpdate{
		Type:     updateInvalidateByID,
		ID:       id,
		Response: make(chan updateResult, 1),
	}
	s.updateChan <- update
	<-update.Response
}

// Clear removes all texts from the store
func (s *TextStore) Clear() {
	// Check if store is closed
	if s.closed.Load() {
		return // Store is closed, nothing to clear
	}

	update := &textUpdate{
		Type:     updateClear,
		Response: make(chan updateResult, 1),
	}

	// Send the update
	s.updateChan <- update

	// Wait for response with timeout to avoid hanging
	select {
	case <-update.Response:
		// Success
	case <-time.After(100 * time.Millisecond):
		// Timeout - store might be closing
	}
}

// ==================== HELPER FUNCTIONS ====================

// newText builds the immutable entry for one text.
func newText(path string, content []byte, fastHash uint64) *Text {
	return &Text{
		Path:        path,
		Base:        sequence.NewBase(content),
		LineOffsets: computeLineOffsets(content),
		FastHash:    fastHash,
		ContentHash: sha256.Sum256(content),
	}
}

// computeLineOffsets computes byte offsets for each line in the content
func computeLineOffsets(content []byte) []uint32 {
	if len(content) == 0 {
		return nil
	}

	// Estimate number of lines to pre-allocate with better capacity
	estimatedLines := len(content)/80 + 2 // +2 for first line and margin
	if estimatedLines > 1000 {
		estimatedLines = 1000 // Cap pre-allocation to avoid over-allocation
	}

	offsets := make([]uint32, 1, estimatedLines)
	offsets[0] = 0 // First line starts at offset 0

	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			offsets = append(offsets, uint32(i+1))
		}
	}

	return offsets
}
