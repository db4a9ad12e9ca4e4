package sequence

import "fmt"

// Prefixed is a replaced view: a literal synthetic prefix followed by a
// contiguous window of the base text. The prefix bytes have no source
// offset and map to -1; the body keeps its base offsets. This is how
// callers introduce processed text (de-escaped characters, inserted
// markers) into a view without losing the provenance of the rest.
//
// A Prefixed with an empty body places pure literal text at the body's
// anchor offset. Prefixed reports IsReplaced, so Merge keeps it as an
// atomic unit and never coalesces it with its neighbors.
type Prefixed struct {
	prefix []byte
	body   *Sub
}

// NewPrefixed creates a view of prefix followed by body. An empty prefix
// collapses to the body itself.
func NewPrefixed(prefix string, body *Sub) Sequence {
	if prefix == "" {
		return body
	}
	return &Prefixed{prefix: []byte(prefix), body: body}
}

// Len returns the total view length including the prefix.
func (p *Prefixed) Len() int { return len(p.prefix) + p.body.Len() }

// IsEmpty always returns false: the prefix is never empty.
func (p *Prefixed) IsEmpty() bool { return false }

// IsNull always returns false.
func (p *Prefixed) IsNull() bool { return false }

// IsReplaced always returns true.
func (p *Prefixed) IsReplaced() bool { return true }

// ByteAt returns the byte at view index i.
func (p *Prefixed) ByteAt(i int) byte {
	checkIndex(i, p.Len())
	if i < len(p.prefix) {
		return p.prefix[i]
	}
	return p.body.ByteAt(i - len(p.prefix))
}

// String materializes the prefix and body.
func (p *Prefixed) String() string {
	return string(p.prefix) + p.body.String()
}

// Base returns the base text of the body.
func (p *Prefixed) Base() *Base { return p.body.base }

// StartOffset returns the body's start offset; the synthetic prefix is
// skipped when reporting source bounds.
func (p *Prefixed) StartOffset() int { return p.body.start }

// EndOffset returns the body's end offset.
func (p *Prefixed) EndOffset() int { return p.body.end }

// SourceRange returns the body's base offset range.
func (p *Prefixed) SourceRange() Range {
	return Range{Start: p.body.start, End: p.body.end}
}

// IndexOffset maps a view index to a base offset; prefix indexes report
// the -1 sentinel.
func (p *Prefixed) IndexOffset(i int) int {
	length := p.Len()
	if i < 0 || i > length {
		panic(fmt.Sprintf("sequence: index %d out of range [0, %d]", i, length))
	}
	if i < len(p.prefix) {
		return -1
	}
	return p.body.IndexOffset(i - len(p.prefix))
}

// IndexRange maps a base offset range to a view index range by scanning
// the mapped offsets.
func (p *Prefixed) IndexRange(baseStart, baseEnd int) Range {
	return scanIndexRange(p, baseStart, baseEnd)
}

// SubSequence returns the window [start, end) of this view. Windows that
// lie entirely inside the body lose the replaced flag and come back as
// plain contiguous views.
func (p *Prefixed) SubSequence(start, end int) Sequence {
	length := p.Len()
	checkSubBounds(start, end, length)
	if start == 0 && end == length {
		return p
	}
	np := len(p.prefix)
	if start >= np {
		return p.body.SubSequence(start-np, end-np)
	}
	rest := end
	if rest > np {
		rest = np
	}
	var body *Sub
	if end <= np {
		body = p.body.window(0, 0)
	} else {
		body = p.body.window(0, end-np)
	}
	return &Prefixed{prefix: p.prefix[start:rest], body: body}
}

// BaseSubSequence returns a contiguous base text slice in base-absolute
// coordinates.
func (p *Prefixed) BaseSubSequence(start, end int) Sequence {
	return p.body.base.Sub(start, end)
}

// AppendSegments reports the prefix as a literal run followed by the body
// as a base run.
func (p *Prefixed) AppendSegments(c SegmentConsumer) bool {
	c.AppendText(string(p.prefix))
	if !p.body.IsEmpty() {
		c.AppendBase(p.body.start, p.body.end)
	}
	return true
}

// window returns the sub-window of s without the identity short-circuit;
// offsets are window-relative and assumed valid.
func (s *Sub) window(start, end int) *Sub {
	return &Sub{base: s.base, start: s.start + start, end: s.start + end}
}

// scanIndexRange implements the tolerant base-range to index-range
// mapping over any view: first exact match wins for each bound, an
// unmatched start defaults to 0, an end falling in a gap snaps to the
// first following real byte (or the view length), and the end never
// precedes the start.
func scanIndexRange(s Sequence, baseStart, baseEnd int) Range {
	length := s.Len()
	start, end, endAfter := -1, -1, -1
	for i := 0; i < length; i++ {
		o := s.IndexOffset(i)
		if o < 0 {
			continue
		}
		if start < 0 && o == baseStart {
			start = i
		}
		if end < 0 {
			if o == baseEnd {
				end = i
			} else if endAfter < 0 && o > baseEnd {
				endAfter = i
			}
		}
		if start >= 0 && end >= 0 {
			break
		}
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = endAfter
	}
	if end < 0 {
		end = length
	}
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}
