package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeBasics(t *testing.T) {
	r := NewRange(3, 8)
	assert.Equal(t, 3, r.Start)
	assert.Equal(t, 8, r.End)
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, "[3:8)", r.String())
	assert.False(t, r.IsEmpty())
	assert.True(t, r.IsValid())

	empty := NewRange(4, 4)
	assert.True(t, empty.IsEmpty())
	assert.True(t, empty.IsValid())
	assert.Equal(t, 0, empty.Len())

	inverted := Range{Start: 5, End: 2}
	assert.False(t, inverted.IsValid())
}

func TestRangeContains(t *testing.T) {
	r := NewRange(2, 6)

	tests := []struct {
		offset int
		want   bool
	}{
		{1, false},
		{2, true},
		{5, true},
		{6, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Contains(tt.offset), "Contains(%d)", tt.offset)
	}

	assert.True(t, r.ContainsRange(NewRange(2, 6)))
	assert.True(t, r.ContainsRange(NewRange(3, 5)))
	assert.False(t, r.ContainsRange(NewRange(1, 5)))
	assert.False(t, r.ContainsRange(NewRange(3, 7)))
}

func TestRangeOverlaps(t *testing.T) {
	r := NewRange(2, 6)

	assert.True(t, r.Overlaps(NewRange(5, 9)))
	assert.True(t, r.Overlaps(NewRange(0, 3)))
	assert.True(t, r.Overlaps(NewRange(3, 4)))
	assert.False(t, r.Overlaps(NewRange(6, 9)), "touching ranges do not overlap")
	assert.False(t, r.Overlaps(NewRange(0, 2)))
}

func TestRangeShift(t *testing.T) {
	r := NewRange(2, 6)
	assert.Equal(t, NewRange(5, 9), r.Shift(3))
	assert.Equal(t, NewRange(0, 4), r.Shift(-2))
	assert.Equal(t, r, r.Shift(0))
}
