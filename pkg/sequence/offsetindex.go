package sequence

import "sort"

// OffsetIndex is an auxiliary index over a sequence whose content no longer
// changes. It records, in index order, every position that maps to a real
// base offset, so IndexRange queries run in O(log n) instead of scanning.
//
// The recorded offsets are strictly ascending: merged views keep base bytes
// in source order and never reference the same base byte twice.
type OffsetIndex struct {
	seq     Sequence
	indexes []int32
	offsets []int32
}

// NewOffsetIndex builds the index in one pass over s.
func NewOffsetIndex(s Sequence) *OffsetIndex {
	ix := &OffsetIndex{seq: s}
	n := s.Len()
	for i := 0; i < n; i++ {
		if o := s.IndexOffset(i); o >= 0 {
			ix.indexes = append(ix.indexes, int32(i))
			ix.offsets = append(ix.offsets, int32(o))
		}
	}
	return ix
}

// Sequence returns the indexed sequence.
func (ix *OffsetIndex) Sequence() Sequence { return ix.seq }

// RealLen returns the number of positions backed by a real base offset.
func (ix *OffsetIndex) RealLen() int { return len(ix.indexes) }

// IndexOffset returns s.IndexOffset(i) for the indexed sequence.
func (ix *OffsetIndex) IndexOffset(i int) int { return ix.seq.IndexOffset(i) }

// OffsetIndex returns the index of the position that maps to the base
// offset, or -1 when no position does.
func (ix *OffsetIndex) OffsetIndex(offset int) int {
	if k, ok := ix.find(offset); ok {
		return int(ix.indexes[k])
	}
	return -1
}

// IndexRange maps the base range [baseStart, baseEnd) into index space with
// the same tolerances as Sequence.IndexRange: an exact match wins for each
// bound, an unmatched start defaults to 0, an end falling in a gap snaps to
// the first following real byte (or the sequence length), and the end never
// precedes the start.
func (ix *OffsetIndex) IndexRange(baseStart, baseEnd int) Range {
	start, end := -1, -1
	if k, ok := ix.find(baseStart); ok {
		start = int(ix.indexes[k])
	}
	if k, ok := ix.find(baseEnd); ok {
		end = int(ix.indexes[k])
	} else if k := ix.searchAbove(baseEnd); k < len(ix.indexes) {
		end = int(ix.indexes[k])
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = ix.seq.Len()
	}
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// find locates the slot holding offset exactly.
func (ix *OffsetIndex) find(offset int) (int, bool) {
	k := sort.Search(len(ix.offsets), func(i int) bool {
		return int(ix.offsets[i]) >= offset
	})
	if k < len(ix.offsets) && int(ix.offsets[k]) == offset {
		return k, true
	}
	return k, false
}

// searchAbove returns the first slot whose offset is greater than offset.
func (ix *OffsetIndex) searchAbove(offset int) int {
	return sort.Search(len(ix.offsets), func(i int) bool {
		return int(ix.offsets[i]) > offset
	})
}
