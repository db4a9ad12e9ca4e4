package sequence

import "fmt"

// Segmented is a view assembled from multiple segments of one base text.
// It stores a per-byte offset table: non-negative slots hold the byte's
// base offset, negative slots hold the bitwise complement of an index
// into a shared synthetic buffer that stores bytes with no source
// position. Windows over the same table share both arrays; only the
// window descriptor is ever allocated when sub-sequencing.
type Segmented struct {
	base        *Base
	offsets     []int32
	synthetic   []byte
	windowStart int
	length      int
	startOffset int
	endOffset   int
}

// Merge concatenates the given segments into one view that preserves the
// base offset of every byte.
//
// Nil and Null entries are skipped. All remaining segments must come from
// the same base text and must be supplied in source order (each start
// offset no smaller than the running end offset); violating either is a
// caller bug and panics. Empty segments contribute no bytes but still
// extend the overall source boundaries of the result.
//
// Runs of adjacent, non-replaced segments are coalesced into single
// contiguous windows first. When exactly one unit survives it is returned
// unchanged rather than wrapped; when none survive the result is Null.
func Merge(segments ...Sequence) Sequence {
	var base *Base
	startOffset := -1
	endOffset := -1
	lastEnd := 0
	var merged []Sequence
	var last Sequence

	for _, seg := range segments {
		if isAbsent(seg) {
			continue
		}
		if base == nil {
			base = seg.Base()
		} else if seg.Base() != base {
			panic("sequence: all segments must come from the same base text")
		}
		if seg.StartOffset() < lastEnd {
			panic(fmt.Sprintf("sequence: segments must be in source order: start %d before running end %d", seg.StartOffset(), lastEnd))
		}
		if startOffset == -1 {
			startOffset = seg.StartOffset()
		}
		endOffset = seg.EndOffset()
		lastEnd = seg.EndOffset()

		if seg.IsEmpty() {
			continue
		}

		if seg.IsReplaced() {
			if last != nil {
				merged = append(merged, last)
				last = nil
			}
			merged = append(merged, seg)
			continue
		}

		switch {
		case last == nil:
			last = seg
		case last.EndOffset() == seg.StartOffset():
			last = last.BaseSubSequence(last.StartOffset(), seg.EndOffset())
		default:
			merged = append(merged, last)
			last = seg
		}
	}
	if last != nil {
		merged = append(merged, last)
	}

	switch len(merged) {
	case 0:
		return Null
	case 1:
		return merged[0]
	}
	return newSegmented(merged, startOffset, endOffset)
}

// newSegmented flattens the units into one offset table. Bytes without a
// source offset are appended to the synthetic buffer and encoded as the
// complement of their buffer index.
func newSegmented(units []Sequence, startOffset, endOffset int) *Segmented {
	length := 0
	for _, u := range units {
		length += u.Len()
	}

	offsets := make([]int32, length)
	var synthetic []byte
	pos := 0
	for _, u := range units {
		n := u.Len()
		for i := 0; i < n; i++ {
			off := u.IndexOffset(i)
			if off < 0 {
				synthetic = append(synthetic, u.ByteAt(i))
				off = -len(synthetic)
			}
			offsets[pos] = int32(off)
			pos++
		}
	}

	return &Segmented{
		base:        units[0].Base(),
		offsets:     offsets,
		synthetic:   synthetic,
		length:      length,
		startOffset: startOffset,
		endOffset:   endOffset,
	}
}

// window creates a view over the same backing arrays with recomputed
// source bounds. Synthetic bytes at the window edges are skipped when
// locating the bounds; a window of nothing but synthetic bytes anchors at
// the base end.
func (s *Segmented) window(windowStart, length int) *Segmented {
	tableLen := len(s.offsets)
	var startOffset, endOffset int

	if s.synthetic == nil {
		if windowStart < tableLen {
			startOffset = int(s.offsets[windowStart])
		} else {
			startOffset = s.base.Len()
		}
		if length == 0 {
			endOffset = startOffset
		} else {
			endOffset = int(s.offsets[windowStart+length-1]) + 1
		}
	} else {
		found := false
		for iS := windowStart; iS < tableLen; iS++ {
			if s.offsets[iS] < 0 {
				continue
			}
			startOffset = int(s.offsets[iS])
			endOffset = startOffset
			for iE := windowStart + length; iE > iS; {
				iE--
				if s.offsets[iE] < 0 {
					continue
				}
				endOffset = int(s.offsets[iE]) + 1
				break
			}
			found = true
			break
		}
		if !found {
			startOffset = s.base.Len()
			endOffset = startOffset
		}
	}

	return &Segmented{
		base:        s.base,
		offsets:     s.offsets,
		synthetic:   s.synthetic,
		windowStart: windowStart,
		length:      length,
		startOffset: startOffset,
		endOffset:   endOffset,
	}
}

// Len returns the view length.
func (s *Segmented) Len() int { return s.length }

// IsEmpty returns true if the view has zero length.
func (s *Segmented) IsEmpty() bool { return s.length == 0 }

// IsNull always returns false.
func (s *Segmented) IsNull() bool { return false }

// IsReplaced always returns true: a merged view is reconstructed content.
func (s *Segmented) IsReplaced() bool { return true }

// Base returns the base text.
func (s *Segmented) Base() *Base { return s.base }

// StartOffset returns the first base offset covered by the view,
// skipping synthetic bytes at the leading boundary.
func (s *Segmented) StartOffset() int { return s.startOffset }

// EndOffset returns one past the last base offset covered by the view,
// skipping synthetic bytes at the trailing boundary.
func (s *Segmented) EndOffset() int { return s.endOffset }

// SourceRange returns the base offset range covered by the view.
func (s *Segmented) SourceRange() Range {
	return Range{Start: s.startOffset, End: s.endOffset}
}

// ByteAt returns the byte at view index i, reading either the base text
// or the synthetic buffer.
func (s *Segmented) ByteAt(i int) byte {
	checkIndex(i, s.length)
	off := s.offsets[s.windowStart+i]
	if off < 0 {
		return s.synthetic[-off-1]
	}
	return s.base.data[off]
}

// String materializes the view's bytes.
func (s *Segmented) String() string {
	buf := make([]byte, s.length)
	for i := 0; i < s.length; i++ {
		off := s.offsets[s.windowStart+i]
		if off < 0 {
			buf[i] = s.synthetic[-off-1]
		} else {
			buf[i] = s.base.data[off]
		}
	}
	return string(buf)
}

// IndexOffset maps a view index to its base offset, or -1 for synthetic
// bytes. i == Len() reports the offset one past the last byte when the
// view is non-empty; for empty views every index is out of range,
// including 0.
func (s *Segmented) IndexOffset(i int) int {
	if i < 0 || i > s.length {
		panic(fmt.Sprintf("sequence: index %d out of range [0, %d]", i, s.length))
	}
	if i == s.length {
		if s.length == 0 {
			panic(fmt.Sprintf("sequence: index %d out of range of empty sequence", i))
		}
		off := s.offsets[s.windowStart+i-1]
		if off < 0 {
			return -1
		}
		return int(off) + 1
	}
	off := s.offsets[s.windowStart+i]
	if off < 0 {
		return -1
	}
	return int(off)
}

// IndexRange maps a base offset range to a view index range by scanning
// the window, stopping as soon as both bounds are resolved. Synthetic
// slots break the monotonicity of the table, so the scan is linear; see
// OffsetIndex for a logarithmic alternative.
func (s *Segmented) IndexRange(baseStart, baseEnd int) Range {
	return scanIndexRange(s, baseStart, baseEnd)
}

// SubSequence returns the window [start, end) of this view, sharing the
// offset table and synthetic buffer. The full window returns the
// receiver.
func (s *Segmented) SubSequence(start, end int) Sequence {
	checkSubBounds(start, end, s.length)
	if start == 0 && end == s.length {
		return s
	}
	return s.window(s.windowStart+start, end-start)
}

// BaseSubSequence returns a contiguous base text slice in base-absolute
// coordinates.
func (s *Segmented) BaseSubSequence(start, end int) Sequence {
	return s.base.Sub(start, end)
}

// AppendSegments walks the view and reports maximal runs: consecutive
// indexes whose offsets are contiguous in the base become one base run,
// and each run of synthetic bytes becomes one literal text run. This is
// the inverse of Merge.
func (s *Segmented) AppendSegments(c SegmentConsumer) bool {
	if s.length == 0 {
		return false
	}
	i := 0
	for i < s.length {
		off := s.offsets[s.windowStart+i]
		if off < 0 {
			j := i + 1
			for j < s.length && s.offsets[s.windowStart+j] < 0 {
				j++
			}
			c.AppendText(s.SubSequence(i, j).String())
			i = j
			continue
		}
		runStart := int(off)
		prev := runStart
		j := i + 1
		for j < s.length {
			o := s.offsets[s.windowStart+j]
			if o < 0 || int(o) != prev+1 {
				break
			}
			prev = int(o)
			j++
		}
		c.AppendBase(runStart, prev+1)
		i = j
	}
	return true
}
