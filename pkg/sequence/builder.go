package sequence

import "fmt"

// Segment is one recorded part of a view: a range of the base text when
// Text is empty, otherwise a run of synthetic text.
type Segment struct {
	Range Range
	Text  string
}

// IsBase reports whether the segment refers to base text.
func (s Segment) IsBase() bool { return s.Text == "" }

func (s Segment) String() string {
	if s.IsBase() {
		return s.Range.String()
	}
	return fmt.Sprintf("%q", s.Text)
}

// SegmentBuilder records the segments a sequence reports through
// AppendSegments. The recorded list can be inspected, edited, and replayed
// against a base to rebuild an equivalent view.
//
// Adjacent base ranges that touch are coalesced into one segment, as are
// consecutive text runs, so the recorded form is always minimal.
type SegmentBuilder struct {
	segments []Segment
	length   int
}

// NewSegmentBuilder returns an empty builder.
func NewSegmentBuilder() *SegmentBuilder {
	return &SegmentBuilder{}
}

// AppendBase records the base range [start, end). Empty ranges are dropped.
func (b *SegmentBuilder) AppendBase(start, end int) {
	if start >= end {
		return
	}
	if n := len(b.segments); n > 0 {
		last := &b.segments[n-1]
		if last.IsBase() && last.Range.End == start {
			last.Range.End = end
			b.length += end - start
			return
		}
	}
	b.segments = append(b.segments, Segment{Range: Range{Start: start, End: end}})
	b.length += end - start
}

// AppendText records a run of synthetic text. Empty text is dropped.
func (b *SegmentBuilder) AppendText(text string) {
	if text == "" {
		return
	}
	if n := len(b.segments); n > 0 {
		last := &b.segments[n-1]
		if !last.IsBase() {
			last.Text += text
			b.length += len(text)
			return
		}
	}
	b.segments = append(b.segments, Segment{Text: text})
	b.length += len(text)
}

// Append records every segment of s. It returns the builder for chaining.
func (b *SegmentBuilder) Append(s Sequence) *SegmentBuilder {
	s.AppendSegments(b)
	return b
}

// Segments returns the recorded segments. The slice is owned by the builder
// and valid until the next append or Reset.
func (b *SegmentBuilder) Segments() []Segment { return b.segments }

// Len returns the total length of the recorded content in bytes.
func (b *SegmentBuilder) Len() int { return b.length }

// IsEmpty reports whether nothing has been recorded.
func (b *SegmentBuilder) IsEmpty() bool { return len(b.segments) == 0 }

// Reset clears the builder for reuse, keeping the backing array.
func (b *SegmentBuilder) Reset() {
	b.segments = b.segments[:0]
	b.length = 0
}

// Sequences converts the recorded segments into merge inputs over base.
// Each text run becomes the prefix of the base range that follows it; a
// trailing text run is carried by an empty range anchored at the end of the
// last base segment, or at offset 0 when no base segment was recorded.
func (b *SegmentBuilder) Sequences(base *Base) []Sequence {
	out := make([]Sequence, 0, len(b.segments))
	pending := ""
	anchor := 0
	for _, seg := range b.segments {
		if !seg.IsBase() {
			pending += seg.Text
			continue
		}
		sub := base.Sub(seg.Range.Start, seg.Range.End)
		if pending != "" {
			out = append(out, NewPrefixed(pending, sub))
			pending = ""
		} else {
			out = append(out, sub)
		}
		anchor = seg.Range.End
	}
	if pending != "" {
		out = append(out, NewPrefixed(pending, base.Sub(anchor, anchor)))
	}
	return out
}

// Build replays the recorded segments against base and merges the result.
func (b *SegmentBuilder) Build(base *Base) Sequence {
	return Merge(b.Sequences(base)...)
}
