package sequence

import "fmt"

// Base owns the immutable source text that all offsets refer to. It is
// the identity anchor for every view derived from it: views compare their
// origin by Base pointer, never by content.
//
// The byte slice handed to NewBase is borrowed, not copied; the caller
// must not mutate it afterwards. Base texts larger than 2 GiB are not
// supported (offset tables store 32-bit offsets).
type Base struct {
	data []byte
}

// NewBase creates a base text over the given bytes without copying them.
func NewBase(data []byte) *Base {
	return &Base{data: data}
}

// NewBaseString creates a base text from a string.
func NewBaseString(s string) *Base {
	return &Base{data: []byte(s)}
}

// Len returns the base text length in bytes.
func (b *Base) Len() int {
	return len(b.data)
}

// ByteAt returns the base text byte at the given offset.
func (b *Base) ByteAt(offset int) byte {
	checkIndex(offset, len(b.data))
	return b.data[offset]
}

// Bytes returns the underlying byte slice. Callers must not mutate it.
func (b *Base) Bytes() []byte {
	return b.data
}

// String materializes the full base text.
func (b *Base) String() string {
	return string(b.data)
}

// Sub returns the contiguous view [start, end) of the base text.
func (b *Base) Sub(start, end int) *Sub {
	checkSubBounds(start, end, len(b.data))
	return &Sub{base: b, start: start, end: end}
}

// All returns the view spanning the entire base text.
func (b *Base) All() *Sub {
	return &Sub{base: b, start: 0, end: len(b.data)}
}

// Sub is a contiguous window over a base text. It is the plain,
// un-reconstructed view: every byte maps straight to the base offset
// window start + index.
type Sub struct {
	base  *Base
	start int
	end   int
}

// Len returns the window length.
func (s *Sub) Len() int { return s.end - s.start }

// IsEmpty returns true if the window has zero length.
func (s *Sub) IsEmpty() bool { return s.start == s.end }

// IsNull always returns false: an empty window is still anchored.
func (s *Sub) IsNull() bool { return false }

// IsReplaced always returns false: a contiguous window is never
// reconstructed content.
func (s *Sub) IsReplaced() bool { return false }

// ByteAt returns the byte at window index i.
func (s *Sub) ByteAt(i int) byte {
	checkIndex(i, s.end-s.start)
	return s.base.data[s.start+i]
}

// String materializes the window's bytes.
func (s *Sub) String() string {
	return string(s.base.data[s.start:s.end])
}

// Base returns the base text this window was taken from.
func (s *Sub) Base() *Base { return s.base }

// StartOffset returns the window's first base offset.
func (s *Sub) StartOffset() int { return s.start }

// EndOffset returns one past the window's last base offset.
func (s *Sub) EndOffset() int { return s.end }

// SourceRange returns the base offset range covered by the window.
func (s *Sub) SourceRange() Range { return Range{Start: s.start, End: s.end} }

// IndexOffset maps a window index to its base offset. A contiguous
// window has no synthetic bytes, so the result is never -1. i == Len()
// is legal and reports the window's end offset.
func (s *Sub) IndexOffset(i int) int {
	length := s.end - s.start
	if i < 0 || i > length {
		panic(fmt.Sprintf("sequence: index %d out of range [0, %d]", i, length))
	}
	return s.start + i
}

// IndexRange maps a base offset range to a window index range using the
// same tolerances as the merged view: an unmatched start defaults to 0
// and the end never precedes the start.
func (s *Sub) IndexRange(baseStart, baseEnd int) Range {
	length := s.end - s.start
	start := baseStart - s.start
	if start < 0 || start >= length {
		start = 0
	}
	end := baseEnd - s.start
	if end < 0 {
		end = 0
	}
	if end > length {
		end = length
	}
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// SubSequence returns the window [start, end) of this window. The full
// window returns the receiver.
func (s *Sub) SubSequence(start, end int) Sequence {
	length := s.end - s.start
	checkSubBounds(start, end, length)
	if start == 0 && end == length {
		return s
	}
	return &Sub{base: s.base, start: s.start + start, end: s.start + end}
}

// BaseSubSequence returns a contiguous base text slice in base-absolute
// coordinates.
func (s *Sub) BaseSubSequence(start, end int) Sequence {
	return s.base.Sub(start, end)
}

// AppendSegments reports the window as a single base run. Returns false
// for an empty window.
func (s *Sub) AppendSegments(c SegmentConsumer) bool {
	if s.start == s.end {
		return false
	}
	c.AppendBase(s.start, s.end)
	return true
}
