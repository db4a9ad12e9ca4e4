package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseAccess(t *testing.T) {
	b := NewBaseString("hello world")

	assert.Equal(t, 11, b.Len())
	assert.Equal(t, byte('h'), b.ByteAt(0))
	assert.Equal(t, byte('d'), b.ByteAt(10))
	assert.Equal(t, "hello world", b.String())
	assert.Equal(t, []byte("hello world"), b.Bytes())

	assert.Panics(t, func() { b.ByteAt(-1) })
	assert.Panics(t, func() { b.ByteAt(11) })
}

func TestBaseBorrowsBytes(t *testing.T) {
	data := []byte("abc")
	b := NewBase(data)

	// NewBase borrows the slice rather than copying it.
	data[0] = 'x'
	assert.Equal(t, byte('x'), b.ByteAt(0))
}

func TestBaseSub(t *testing.T) {
	b := NewBaseString("hello world")

	s := b.Sub(6, 11)
	assert.Equal(t, "world", s.String())
	assert.Equal(t, 5, s.Len())
	assert.False(t, s.IsEmpty())
	assert.False(t, s.IsNull())
	assert.False(t, s.IsReplaced())
	assert.Same(t, b, s.Base())
	assert.Equal(t, 6, s.StartOffset())
	assert.Equal(t, 11, s.EndOffset())
	assert.Equal(t, NewRange(6, 11), s.SourceRange())

	all := b.All()
	assert.Equal(t, 0, all.StartOffset())
	assert.Equal(t, 11, all.EndOffset())
	assert.Equal(t, "hello world", all.String())

	assert.Panics(t, func() { b.Sub(-1, 3) })
	assert.Panics(t, func() { b.Sub(3, 2) })
	assert.Panics(t, func() { b.Sub(0, 12) })
}

func TestSubByteAt(t *testing.T) {
	b := NewBaseString("hello world")
	s := b.Sub(6, 11)

	assert.Equal(t, byte('w'), s.ByteAt(0))
	assert.Equal(t, byte('d'), s.ByteAt(4))
	assert.Panics(t, func() { s.ByteAt(5) })
	assert.Panics(t, func() { s.ByteAt(-1) })
}

func TestSubIndexOffset(t *testing.T) {
	b := NewBaseString("hello world")
	s := b.Sub(6, 11)

	for i := 0; i < s.Len(); i++ {
		assert.Equal(t, 6+i, s.IndexOffset(i))
	}

	// One past the end is legal and reports the end offset.
	assert.Equal(t, 11, s.IndexOffset(5))

	assert.Panics(t, func() { s.IndexOffset(-1) })
	assert.Panics(t, func() { s.IndexOffset(6) })
}

func TestSubIndexOffsetEmpty(t *testing.T) {
	b := NewBaseString("hello world")
	s := b.Sub(4, 4)

	// An empty contiguous window still reports its anchor offset.
	assert.Equal(t, 4, s.IndexOffset(0))
	assert.Panics(t, func() { s.IndexOffset(1) })
}

func TestSubIndexRange(t *testing.T) {
	b := NewBaseString("hello world")
	s := b.Sub(6, 11)

	tests := []struct {
		name               string
		baseStart, baseEnd int
		want               Range
	}{
		{"exact span", 6, 11, NewRange(0, 5)},
		{"interior", 7, 9, NewRange(1, 3)},
		{"start not found defaults to zero", 2, 9, NewRange(0, 3)},
		{"end past span clamps to length", 8, 20, NewRange(2, 5)},
		{"end before start clamps to start", 9, 7, NewRange(3, 3)},
		{"end before window", 8, 2, NewRange(2, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IndexRange(tt.baseStart, tt.baseEnd))
		})
	}
}

func TestSubSubSequence(t *testing.T) {
	b := NewBaseString("hello world")
	s := b.Sub(6, 11)

	full := s.SubSequence(0, 5)
	assert.Same(t, s, full, "full window returns the receiver")

	inner := s.SubSequence(1, 4)
	assert.Equal(t, "orl", inner.String())
	assert.Equal(t, 7, inner.StartOffset())
	assert.Equal(t, 10, inner.EndOffset())

	empty := s.SubSequence(2, 2)
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.IsNull())

	assert.Panics(t, func() { s.SubSequence(-1, 2) })
	assert.Panics(t, func() { s.SubSequence(3, 2) })
	assert.Panics(t, func() { s.SubSequence(0, 6) })
}

func TestSubBaseSubSequence(t *testing.T) {
	b := NewBaseString("hello world")
	s := b.Sub(6, 11)

	// Base-absolute coordinates, independent of this window.
	got := s.BaseSubSequence(0, 5)
	assert.Equal(t, "hello", got.String())
	assert.Equal(t, 0, got.StartOffset())

	assert.Panics(t, func() { s.BaseSubSequence(0, 12) })
}

func TestSubAppendSegments(t *testing.T) {
	b := NewBaseString("hello world")

	var sb SegmentBuilder
	require.True(t, b.Sub(6, 11).AppendSegments(&sb))
	require.Len(t, sb.Segments(), 1)
	assert.Equal(t, Segment{Range: NewRange(6, 11)}, sb.Segments()[0])

	sb.Reset()
	assert.False(t, b.Sub(3, 3).AppendSegments(&sb))
	assert.True(t, sb.IsEmpty())
}

func TestNullSequence(t *testing.T) {
	assert.True(t, Null.IsNull())
	assert.True(t, Null.IsEmpty())
	assert.False(t, Null.IsReplaced())
	assert.Equal(t, 0, Null.Len())
	assert.Equal(t, "", Null.String())
	assert.Nil(t, Null.Base())
	assert.Equal(t, Range{}, Null.SourceRange())
	assert.Equal(t, Range{}, Null.IndexRange(0, 5))

	assert.Equal(t, Null, Null.SubSequence(0, 0))
	assert.Panics(t, func() { Null.SubSequence(0, 1) })
	assert.Panics(t, func() { Null.ByteAt(0) })
	assert.Panics(t, func() { Null.IndexOffset(0) })
	assert.Panics(t, func() { Null.BaseSubSequence(0, 0) })

	var sb SegmentBuilder
	assert.False(t, Null.AppendSegments(&sb))
}
