package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/standardbeagle/seqmap/pkg/sequence"
)

// PositionFunc resolves a base offset to a 0-based line and column.
// Returning ok=false leaves the run without position annotations.
type PositionFunc func(offset int) (line, col int, ok bool)

// Run is one stretch of a merged view that came from a single place:
// either a contiguous range of the base text or one literal insertion.
type Run struct {
	Index   sequence.Range // view index range [start, end)
	Source  sequence.Range // base offset range, meaningful when Literal is empty
	Literal string         // non-empty for synthetic runs
	Line    int            // 1-based line of Source.Start, 0 when unknown
	Col     int            // 1-based column of Source.Start, 0 when unknown
}

// IsBase reports whether the run maps back to the base text.
func (r Run) IsBase() bool { return r.Literal == "" }

// SourceMap is the flattened provenance of one merged view.
type SourceMap struct {
	Path string // base text path, when known
	Text string // merged output
	Runs []Run
}

// BuildSourceMap flattens a view into its provenance runs. The resolver
// may be nil when no line information is available.
func BuildSourceMap(view sequence.Sequence, path string, resolve PositionFunc) *SourceMap {
	sm := &SourceMap{Path: path}
	if view == nil {
		return sm
	}
	sm.Text = view.String()

	b := sequence.NewSegmentBuilder()
	b.Append(view)

	idx := 0
	for _, seg := range b.Segments() {
		var run Run
		if seg.IsBase() {
			run = Run{
				Index:  sequence.NewRange(idx, idx+seg.Range.Len()),
				Source: seg.Range,
			}
			if resolve != nil {
				if line, col, ok := resolve(seg.Range.Start); ok {
					run.Line = line + 1
					run.Col = col + 1
				}
			}
			idx += seg.Range.Len()
		} else {
			run = Run{
				Index:   sequence.NewRange(idx, idx+len(seg.Text)),
				Literal: seg.Text,
			}
			idx += len(seg.Text)
		}
		sm.Runs = append(sm.Runs, run)
	}
	return sm
}

// MapFormatter renders source maps for display
type MapFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls source map formatting
type FormatterOptions struct {
	Format        string // "text", "json", "compact"
	ShowPositions bool   // Annotate base runs with line:col
	Indent        string // Indentation string
}

// NewMapFormatter creates a new source map formatter
func NewMapFormatter(options FormatterOptions) *MapFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &MapFormatter{options: options}
}

// Format renders a source map in the configured format
func (mf *MapFormatter) Format(sm *SourceMap) string {
	if sm == nil {
		return "No source map available"
	}

	switch mf.options.Format {
	case "json":
		return mf.formatJSON(sm)
	case "compact":
		return mf.formatCompact(sm)
	default:
		return mf.formatText(sm)
	}
}

// formatText renders one run per line with a summary header
func (mf *MapFormatter) formatText(sm *SourceMap) string {
	var sb strings.Builder

	baseBytes, literalBytes := sm.tally()
	if sm.Path != "" {
		sb.WriteString(fmt.Sprintf("Source map for '%s'\n", sm.Path))
	} else {
		sb.WriteString("Source map\n")
	}
	sb.WriteString(fmt.Sprintf("Output: %d bytes in %d runs (%d from source, %d literal)\n",
		len(sm.Text), len(sm.Runs), baseBytes, literalBytes))
	sb.WriteString("\n")

	for _, run := range sm.Runs {
		sb.WriteString(mf.options.Indent)
		sb.WriteString(run.Index.String())
		if run.IsBase() {
			sb.WriteString(" <- base ")
			sb.WriteString(run.Source.String())
			if mf.options.ShowPositions && run.Line > 0 {
				sb.WriteString(fmt.Sprintf(" [%d:%d]", run.Line, run.Col))
			}
			sb.WriteString(" ")
			sb.WriteString(snippet(sm.Text, run.Index))
		} else {
			sb.WriteString(" <- literal ")
			sb.WriteString(fmt.Sprintf("%q", run.Literal))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatCompact renders all runs on a single line
func (mf *MapFormatter) formatCompact(sm *SourceMap) string {
	parts := make([]string, 0, len(sm.Runs))
	for _, run := range sm.Runs {
		if run.IsBase() {
			parts = append(parts, fmt.Sprintf("%s<-%s", run.Index, run.Source))
		} else {
			parts = append(parts, fmt.Sprintf("%s<-%q", run.Index, run.Literal))
		}
	}
	return strings.Join(parts, " ")
}

type runJSON struct {
	Index   [2]int  `json:"index"`
	Source  *[2]int `json:"source,omitempty"`
	Literal string  `json:"literal,omitempty"`
	Line    int     `json:"line,omitempty"`
	Col     int     `json:"col,omitempty"`
}

type sourceMapJSON struct {
	Path   string    `json:"path,omitempty"`
	Length int       `json:"length"`
	Text   string    `json:"text"`
	Runs   []runJSON `json:"runs"`
}

// formatJSON renders the source map as indented JSON
func (mf *MapFormatter) formatJSON(sm *SourceMap) string {
	payload := sourceMapJSON{
		Path:   sm.Path,
		Length: len(sm.Text),
		Text:   sm.Text,
		Runs:   make([]runJSON, 0, len(sm.Runs)),
	}
	for _, run := range sm.Runs {
		rj := runJSON{
			Index:   [2]int{run.Index.Start, run.Index.End},
			Literal: run.Literal,
			Line:    run.Line,
			Col:     run.Col,
		}
		if run.IsBase() {
			rj.Source = &[2]int{run.Source.Start, run.Source.End}
		}
		payload.Runs = append(payload.Runs, rj)
	}

	data, err := json.MarshalIndent(payload, "", mf.options.Indent)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// tally counts the bytes contributed by base and literal runs
func (sm *SourceMap) tally() (baseBytes, literalBytes int) {
	for _, run := range sm.Runs {
		if run.IsBase() {
			baseBytes += run.Index.Len()
		} else {
			literalBytes += len(run.Literal)
		}
	}
	return baseBytes, literalBytes
}

// snippet quotes the view bytes covered by r, truncated for display
func snippet(text string, r sequence.Range) string {
	const maxSnippet = 24

	if r.Start < 0 || r.End > len(text) || r.Start >= r.End {
		return `""`
	}
	s := text[r.Start:r.End]
	if len(s) > maxSnippet {
		return fmt.Sprintf("%q...", s[:maxSnippet])
	}
	return fmt.Sprintf("%q", s)
}
