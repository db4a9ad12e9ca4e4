package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mergeHelloWorld builds the canonical two-segment view: "hello" and
// "world" drawn from "hello world" with the space skipped.
func mergeHelloWorld(t *testing.T) (*Base, Sequence) {
	t.Helper()
	b := NewBaseString("hello world")
	v := Merge(b.Sub(0, 5), b.Sub(6, 11))
	require.Equal(t, "helloworld", v.String())
	return b, v
}

func TestMergeHelloWorld(t *testing.T) {
	b, v := mergeHelloWorld(t)

	assert.Equal(t, 10, v.Len())
	assert.False(t, v.IsEmpty())
	assert.False(t, v.IsNull())
	assert.True(t, v.IsReplaced())
	assert.Same(t, b, v.Base())
	assert.Equal(t, 0, v.StartOffset())
	assert.Equal(t, 11, v.EndOffset())
	assert.Equal(t, NewRange(0, 11), v.SourceRange())

	assert.Equal(t, 4, v.IndexOffset(4))
	assert.Equal(t, 6, v.IndexOffset(5), "offset jumps across the skipped space")
	assert.Equal(t, 11, v.IndexOffset(10), "one past the end maps past the last real offset")

	assert.Equal(t, NewRange(0, 5), v.IndexRange(0, 5))
}

func TestMergeRoundTripsBytes(t *testing.T) {
	b, v := mergeHelloWorld(t)

	for i := 0; i < v.Len(); i++ {
		off := v.IndexOffset(i)
		require.GreaterOrEqual(t, off, 0)
		assert.Equal(t, b.ByteAt(off), v.ByteAt(i), "index %d", i)
	}
}

func TestMergeSyntheticBetweenRealRuns(t *testing.T) {
	b := NewBaseString("abcd")
	v := Merge(b.Sub(0, 2), NewPrefixed("-", b.Sub(2, 4)))

	require.Equal(t, "ab-cd", v.String())
	assert.Equal(t, 5, v.Len())

	assert.Equal(t, byte('-'), v.ByteAt(2))
	assert.Equal(t, -1, v.IndexOffset(2), "synthetic bytes have no source offset")
	assert.Equal(t, 2, v.IndexOffset(3), "byte after the insertion maps to 'c'")

	// The -1 sentinel and the synthetic buffer agree byte for byte.
	for i := 0; i < v.Len(); i++ {
		off := v.IndexOffset(i)
		if off >= 0 {
			assert.Equal(t, b.ByteAt(off), v.ByteAt(i), "index %d", i)
		} else {
			assert.Equal(t, byte('-'), v.ByteAt(i), "index %d", i)
		}
	}
}

func TestMergeSkipsAbsentSegments(t *testing.T) {
	b := NewBaseString("hello world")

	v := Merge(nil, b.Sub(0, 5), Null, b.Sub(6, 11), nil)
	assert.Equal(t, "helloworld", v.String())
}

func TestMergeNothingYieldsNull(t *testing.T) {
	b := NewBaseString("hello world")

	assert.True(t, Merge().IsNull())
	assert.True(t, Merge(nil, Null).IsNull())
	assert.True(t, Merge(b.Sub(3, 3), b.Sub(7, 7)).IsNull(), "only empty segments yield the absent marker")
}

func TestMergeSingleSegmentPassesThrough(t *testing.T) {
	b := NewBaseString("hello world")
	s := b.Sub(6, 11)

	assert.Same(t, s, Merge(s))
	assert.Same(t, s, Merge(nil, s, Null))
	assert.Same(t, s, Merge(b.Sub(2, 2), s, b.Sub(11, 11)), "empty neighbors do not force a wrapper")

	p := NewPrefixed("x", b.Sub(6, 11))
	assert.Same(t, p, Merge(p))
}

func TestMergeCoalescesAdjacentSegments(t *testing.T) {
	b := NewBaseString("hello world")

	v := Merge(b.Sub(0, 5), b.Sub(5, 11))
	assert.False(t, v.IsReplaced(), "adjacent plain segments collapse to one contiguous window")
	assert.Equal(t, "hello world", v.String())
	assert.Equal(t, 0, v.StartOffset())
	assert.Equal(t, 11, v.EndOffset())
	for i := 0; i < v.Len(); i++ {
		assert.Equal(t, i, v.IndexOffset(i))
	}
}

func TestMergeCoalescesRunThenBreaks(t *testing.T) {
	b := NewBaseString("hello world")

	// [0,3)+[3,5) coalesce; [6,9) is separated by the gap.
	v := Merge(b.Sub(0, 3), b.Sub(3, 5), b.Sub(6, 9))
	require.Equal(t, "hellowor", v.String())
	assert.True(t, v.IsReplaced())

	var sb SegmentBuilder
	require.True(t, v.AppendSegments(&sb))
	assert.Equal(t, []Segment{
		{Range: NewRange(0, 5)},
		{Range: NewRange(6, 9)},
	}, sb.Segments())
}

func TestMergeNeverCoalescesReplacedSegments(t *testing.T) {
	b := NewBaseString("hello world")

	// Both inputs are replaced views; adjacency alone must not merge them.
	left := Merge(b.Sub(0, 2), b.Sub(3, 5))
	right := Merge(b.Sub(5, 7), b.Sub(8, 11))
	v := Merge(left, right)

	require.Equal(t, "helo wrld", v.String())
	assert.True(t, v.IsReplaced())
	assert.Equal(t, 0, v.StartOffset())
	assert.Equal(t, 11, v.EndOffset())

	var sb SegmentBuilder
	require.True(t, v.AppendSegments(&sb))
	assert.Equal(t, []Segment{
		{Range: NewRange(0, 2)},
		{Range: NewRange(3, 7)},
		{Range: NewRange(8, 11)},
	}, sb.Segments(), "touching runs from distinct replaced units still flatten")
}

func TestMergeTracksBoundariesThroughEmptySegments(t *testing.T) {
	b := NewBaseString("hello world")

	v := Merge(b.Sub(0, 0), b.Sub(2, 4), NewPrefixed("x", b.Sub(6, 8)), b.Sub(11, 11))
	require.Equal(t, "llxwo", v.String())
	assert.Equal(t, 0, v.StartOffset(), "leading empty segment extends the source span")
	assert.Equal(t, 11, v.EndOffset(), "trailing empty segment extends the source span")
}

func TestMergeFaults(t *testing.T) {
	b := NewBaseString("hello world")
	other := NewBaseString("hello world")

	t.Run("mismatched base", func(t *testing.T) {
		assert.Panics(t, func() { Merge(b.Sub(0, 5), other.Sub(6, 11)) })
	})

	t.Run("out of source order", func(t *testing.T) {
		assert.Panics(t, func() { Merge(b.Sub(6, 11), b.Sub(0, 5)) })
	})

	t.Run("overlap", func(t *testing.T) {
		assert.Panics(t, func() { Merge(b.Sub(0, 5), b.Sub(4, 9)) })
	})

	t.Run("empty segment out of order", func(t *testing.T) {
		assert.Panics(t, func() { Merge(b.Sub(3, 5), b.Sub(2, 2)) })
	})
}

func TestSegmentedByteAt(t *testing.T) {
	_, v := mergeHelloWorld(t)

	assert.Equal(t, byte('h'), v.ByteAt(0))
	assert.Equal(t, byte('w'), v.ByteAt(5))
	assert.Equal(t, byte('d'), v.ByteAt(9))
	assert.Panics(t, func() { v.ByteAt(10) })
	assert.Panics(t, func() { v.ByteAt(-1) })
}

func TestSegmentedSubSequence(t *testing.T) {
	_, v := mergeHelloWorld(t)

	assert.Same(t, v, v.SubSequence(0, 10), "full window returns the receiver")

	w := v.SubSequence(3, 8)
	require.Equal(t, "lowor", w.String())
	for k := 0; k < w.Len(); k++ {
		assert.Equal(t, v.ByteAt(3+k), w.ByteAt(k), "index %d", k)
		assert.Equal(t, v.IndexOffset(3+k), w.IndexOffset(k), "index %d", k)
	}

	// Windows of windows keep composing against the same backing table.
	w2 := w.SubSequence(1, 4)
	assert.Equal(t, "owo", w2.String())
	assert.Equal(t, v.IndexOffset(4), w2.IndexOffset(0))

	assert.Panics(t, func() { v.SubSequence(0, 11) })
	assert.Panics(t, func() { v.SubSequence(-1, 4) })
}

func TestSegmentedWindowSourceBounds(t *testing.T) {
	_, v := mergeHelloWorld(t)

	w := v.SubSequence(3, 8) // "lowor"
	assert.Equal(t, 3, w.StartOffset())
	assert.Equal(t, 9, w.EndOffset())
	assert.Equal(t, NewRange(3, 9), w.SourceRange())

	empty := v.SubSequence(4, 4)
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.IsNull(), "an empty window is still anchored, not absent")
}

func TestSegmentedSyntheticWindowBounds(t *testing.T) {
	b := NewBaseString("abcd")
	v := Merge(b.Sub(0, 2), NewPrefixed("-", b.Sub(2, 4)))
	require.Equal(t, "ab-cd", v.String())

	// A window holding only the synthetic byte anchors at the next real
	// offset after it.
	w := v.SubSequence(2, 3)
	assert.Equal(t, "-", w.String())
	assert.Equal(t, 2, w.StartOffset())
	assert.Equal(t, 2, w.EndOffset())

	// With no real offset following, the window anchors at the base end.
	tail := Merge(b.Sub(0, 2), NewPrefixed("!", b.Sub(4, 4)))
	require.Equal(t, "ab!", tail.String())
	tw := tail.SubSequence(2, 3)
	assert.Equal(t, "!", tw.String())
	assert.Equal(t, 4, tw.StartOffset())
	assert.Equal(t, 4, tw.EndOffset())
}

func TestSegmentedIndexOffsetBounds(t *testing.T) {
	b := NewBaseString("abcd")
	v := Merge(b.Sub(0, 2), NewPrefixed("-", b.Sub(2, 4)))

	assert.Panics(t, func() { v.IndexOffset(-1) })
	assert.Panics(t, func() { v.IndexOffset(6) })

	// One past the end of an empty window faults; there is no "one past
	// the end" of nothing.
	empty := v.SubSequence(1, 1)
	require.True(t, empty.IsEmpty())
	assert.Panics(t, func() { empty.IndexOffset(0) })
}

func TestSegmentedIndexOffsetPastSyntheticTail(t *testing.T) {
	b := NewBaseString("abcd")
	v := Merge(b.Sub(0, 2), NewPrefixed("!", b.Sub(4, 4)))
	require.Equal(t, "ab!", v.String())

	assert.Equal(t, -1, v.IndexOffset(3), "no offset past a synthetic last byte")
}

func TestSegmentedIndexRange(t *testing.T) {
	_, v := mergeHelloWorld(t)

	tests := []struct {
		name               string
		baseStart, baseEnd int
		want               Range
	}{
		{"first segment", 0, 5, NewRange(0, 5)},
		{"second segment", 6, 11, NewRange(5, 10)},
		{"interior", 2, 8, NewRange(2, 7)},
		{"start in gap defaults to zero", 5, 11, NewRange(0, 10)},
		{"end in gap snaps to next real byte", 0, 5, NewRange(0, 5)},
		{"end past span", 6, 20, NewRange(5, 10)},
		{"end before start clamps", 6, 3, NewRange(5, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.IndexRange(tt.baseStart, tt.baseEnd))
		})
	}
}

func TestSegmentedBaseSubSequence(t *testing.T) {
	b, v := mergeHelloWorld(t)

	// Base-absolute: recovers the contiguous original including the
	// space this view skips.
	got := v.BaseSubSequence(3, 8)
	assert.Equal(t, "lo wo", got.String())
	assert.Same(t, b, got.Base())

	assert.Panics(t, func() { v.BaseSubSequence(0, 12) })
}

func TestSegmentedAppendSegmentsRoundTrip(t *testing.T) {
	b := NewBaseString("abcd")
	v := Merge(b.Sub(0, 2), NewPrefixed("-", b.Sub(2, 4)))

	var sb SegmentBuilder
	require.True(t, v.AppendSegments(&sb))
	assert.Equal(t, []Segment{
		{Range: NewRange(0, 2)},
		{Text: "-"},
		{Range: NewRange(2, 4)},
	}, sb.Segments())

	rebuilt := sb.Build(b)
	require.Equal(t, v.String(), rebuilt.String())
	for i := 0; i < v.Len(); i++ {
		assert.Equal(t, v.IndexOffset(i), rebuilt.IndexOffset(i), "index %d", i)
	}
}

func TestSegmentedAppendSegmentsEmptyWindow(t *testing.T) {
	_, v := mergeHelloWorld(t)

	var sb SegmentBuilder
	assert.False(t, v.SubSequence(4, 4).AppendSegments(&sb))
	assert.True(t, sb.IsEmpty())
}
