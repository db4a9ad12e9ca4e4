// Package sequence provides immutable, provenance-preserving views over a
// base text.
//
// A view behaves like a flat byte string assembled from one or more pieces
// of an original source text, while still answering, for every byte, which
// offset of the original it came from. Views are cheap to window: taking a
// sub-sequence never copies byte data, only a small descriptor. This makes
// the package suitable for text pipelines that build normalized or
// reconstructed strings from pieces of their input but must keep source
// positions for diagnostics and source maps.
//
// Bytes introduced by processing rather than copied from the base text
// ("synthetic" bytes) carry no source offset; IndexOffset reports -1 for
// them. All offsets are byte offsets into the base text.
package sequence

import "fmt"

// Sequence is an immutable, windowable byte sequence whose bytes remember
// their offsets in an ultimate base text.
//
// Implementations are safe for concurrent readers: nothing is mutated
// after construction. Out-of-range arguments are programming errors and
// panic; a byte simply having no source offset is not an error and is
// reported through the -1 sentinel instead.
type Sequence interface {
	// Len returns the number of bytes in the view.
	Len() int

	// IsEmpty returns true if the view has zero length.
	IsEmpty() bool

	// IsNull returns true only for the distinguished absent sequence.
	// A zero-length concrete view is empty but not null.
	IsNull() bool

	// IsReplaced returns true if this view was itself assembled from
	// non-contiguous pieces or carries synthetic bytes. Merge never
	// coalesces a replaced view with its neighbors.
	IsReplaced() bool

	// ByteAt returns the byte at index i. Panics if i is out of range.
	ByteAt(i int) byte

	// String materializes the view's bytes. Allocates; use sparingly on
	// large views.
	String() string

	// Base returns the ultimate base text. Two views originate from the
	// same source iff their bases are the same pointer.
	Base() *Base

	// StartOffset returns the first base offset covered by the view,
	// skipping synthetic bytes at the leading boundary.
	StartOffset() int

	// EndOffset returns one past the last base offset covered by the
	// view, skipping synthetic bytes at the trailing boundary.
	EndOffset() int

	// SourceRange returns Range{StartOffset, EndOffset}.
	SourceRange() Range

	// IndexOffset maps a view index to a base offset, or -1 when the
	// byte at i is synthetic. i == Len() is legal for non-empty views
	// and reports the offset one past the last byte (or -1 when the
	// last byte is synthetic). For empty views every index panics,
	// including 0.
	IndexOffset(i int) int

	// IndexRange maps a base offset range, assumed to lie within this
	// view's source span, to a view index range. When baseStart is not
	// found the start index defaults to 0; when baseEnd falls in a gap
	// the first following real byte bounds the result; an end before
	// the start clamps to the start.
	IndexRange(baseStart, baseEnd int) Range

	// SubSequence returns the window [start, end) of this view. The
	// full window returns the receiver itself; any other window shares
	// the receiver's backing data and allocates no byte storage.
	// Panics unless 0 <= start <= end <= Len().
	SubSequence(start, end int) Sequence

	// BaseSubSequence returns a contiguous slice of the base text using
	// base-absolute offsets, regardless of which pieces of the base
	// this view contains. Bounds are checked against the base length.
	BaseSubSequence(start, end int) Sequence

	// AppendSegments reconstructs this view as a flat run description:
	// contiguous source runs are reported through AppendBase and
	// synthetic runs through AppendText, in view order. Returns false
	// for an empty view.
	AppendSegments(c SegmentConsumer) bool
}

// SegmentConsumer receives the flattened description of a sequence, run
// by run. AppendBase reports a run copied verbatim from base offsets
// [start, end); AppendText reports a literal run with no source mapping.
type SegmentConsumer interface {
	AppendBase(start, end int)
	AppendText(text string)
}

// Null is the distinguished absent sequence. Merging zero segments, or
// only empty ones, yields Null rather than a zero-length concrete view so
// that callers can tell "no content" from "empty content".
var Null Sequence = nullSequence{}

type nullSequence struct{}

func (nullSequence) Len() int          { return 0 }
func (nullSequence) IsEmpty() bool     { return true }
func (nullSequence) IsNull() bool      { return true }
func (nullSequence) IsReplaced() bool  { return false }
func (nullSequence) String() string    { return "" }
func (nullSequence) Base() *Base       { return nil }
func (nullSequence) StartOffset() int  { return 0 }
func (nullSequence) EndOffset() int    { return 0 }
func (nullSequence) SourceRange() Range { return Range{} }

func (nullSequence) ByteAt(i int) byte {
	panic(fmt.Sprintf("sequence: index %d out of range [0, 0)", i))
}

func (nullSequence) IndexOffset(i int) int {
	panic(fmt.Sprintf("sequence: index %d out of range of empty sequence", i))
}

func (nullSequence) IndexRange(baseStart, baseEnd int) Range {
	return Range{}
}

func (n nullSequence) SubSequence(start, end int) Sequence {
	if start != 0 || end != 0 {
		panic(fmt.Sprintf("sequence: subsequence [%d, %d) out of range [0, 0]", start, end))
	}
	return n
}

func (nullSequence) BaseSubSequence(start, end int) Sequence {
	panic("sequence: null sequence has no base")
}

func (nullSequence) AppendSegments(c SegmentConsumer) bool { return false }

// isAbsent reports whether a merge input should be skipped entirely.
// Nil entries and Null are both treated as absent.
func isAbsent(s Sequence) bool {
	return s == nil || s.IsNull()
}

func checkSubBounds(start, end, length int) {
	if start < 0 || end < start || end > length {
		panic(fmt.Sprintf("sequence: subsequence [%d, %d) out of range [0, %d]", start, end, length))
	}
}

func checkIndex(i, length int) {
	if i < 0 || i >= length {
		panic(fmt.Sprintf("sequence: index %d out of range [0, %d)", i, length))
	}
}
