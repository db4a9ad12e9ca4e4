package display

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/seqmap/pkg/sequence"
)

// TestNewMapFormatter tests formatter construction.
func TestNewMapFormatter(t *testing.T) {
	// Test with default options
	formatter := NewMapFormatter(FormatterOptions{})
	assert.NotNil(t, formatter)
	assert.Equal(t, "  ", formatter.options.Indent)

	// Test with custom options
	options := FormatterOptions{
		Format:        "json",
		ShowPositions: true,
		Indent:        "\t",
	}
	formatter = NewMapFormatter(options)
	assert.Equal(t, options, formatter.options)
}

// TestMapFormatter_Format_NilMap tests formatting a missing map.
func TestMapFormatter_Format_NilMap(t *testing.T) {
	formatter := NewMapFormatter(FormatterOptions{})

	output := formatter.Format(nil)
	assert.Equal(t, "No source map available", output)
}

// TestBuildSourceMap tests flattening a merged view into runs.
func TestBuildSourceMap(t *testing.T) {
	sm := BuildSourceMap(createDashView(), "demo.txt", nil)

	assert.Equal(t, "demo.txt", sm.Path)
	assert.Equal(t, "012-567", sm.Text)
	require.Len(t, sm.Runs, 3)

	assert.Equal(t, sequence.NewRange(0, 3), sm.Runs[0].Index)
	assert.Equal(t, sequence.NewRange(0, 3), sm.Runs[0].Source)
	assert.True(t, sm.Runs[0].IsBase())

	assert.Equal(t, sequence.NewRange(3, 4), sm.Runs[1].Index)
	assert.Equal(t, "-", sm.Runs[1].Literal)
	assert.False(t, sm.Runs[1].IsBase())

	assert.Equal(t, sequence.NewRange(4, 7), sm.Runs[2].Index)
	assert.Equal(t, sequence.NewRange(5, 8), sm.Runs[2].Source)
}

// TestBuildSourceMap_WithPositions tests line annotation via a resolver.
func TestBuildSourceMap_WithPositions(t *testing.T) {
	resolve := func(offset int) (int, int, bool) {
		// Pretend lines are 5 bytes wide
		return offset / 5, offset % 5, true
	}

	sm := BuildSourceMap(createDashView(), "demo.txt", resolve)
	require.Len(t, sm.Runs, 3)

	// Positions are reported 1-based
	assert.Equal(t, 1, sm.Runs[0].Line)
	assert.Equal(t, 1, sm.Runs[0].Col)

	// Literal runs carry no position
	assert.Equal(t, 0, sm.Runs[1].Line)

	// Second base run starts at base offset 5
	assert.Equal(t, 2, sm.Runs[2].Line)
	assert.Equal(t, 1, sm.Runs[2].Col)
}

// TestBuildSourceMap_NullView tests flattening an absent view.
func TestBuildSourceMap_NullView(t *testing.T) {
	sm := BuildSourceMap(sequence.Null, "", nil)
	assert.Empty(t, sm.Runs)
	assert.Equal(t, "", sm.Text)
}

// TestMapFormatter_Format_Text tests the default text rendering.
func TestMapFormatter_Format_Text(t *testing.T) {
	formatter := NewMapFormatter(FormatterOptions{Format: "text"})

	output := formatter.Format(BuildSourceMap(createDashView(), "demo.txt", nil))

	assert.Contains(t, output, "Source map for 'demo.txt'")
	assert.Contains(t, output, "Output: 7 bytes in 3 runs (6 from source, 1 literal)")
	assert.Contains(t, output, `[0:3) <- base [0:3) "012"`)
	assert.Contains(t, output, `[3:4) <- literal "-"`)
	assert.Contains(t, output, `[4:7) <- base [5:8) "567"`)
}

// TestMapFormatter_Format_TextWithPositions tests line:col annotations.
func TestMapFormatter_Format_TextWithPositions(t *testing.T) {
	formatter := NewMapFormatter(FormatterOptions{
		Format:        "text",
		ShowPositions: true,
	})

	resolve := func(offset int) (int, int, bool) {
		return 0, offset, true
	}
	output := formatter.Format(BuildSourceMap(createDashView(), "demo.txt", resolve))

	assert.Contains(t, output, "[0:3) <- base [0:3) [1:1]")
	assert.Contains(t, output, "[4:7) <- base [5:8) [1:6]")
}

// TestMapFormatter_Format_Compact tests the single-line rendering.
func TestMapFormatter_Format_Compact(t *testing.T) {
	formatter := NewMapFormatter(FormatterOptions{Format: "compact"})

	output := formatter.Format(BuildSourceMap(createDashView(), "demo.txt", nil))

	assert.Equal(t, `[0:3)<-[0:3) [3:4)<-"-" [4:7)<-[5:8)`, output)
	assert.NotContains(t, output, "\n")
}

// TestMapFormatter_Format_JSON tests the JSON rendering.
func TestMapFormatter_Format_JSON(t *testing.T) {
	formatter := NewMapFormatter(FormatterOptions{Format: "json"})

	output := formatter.Format(BuildSourceMap(createDashView(), "demo.txt", nil))

	require.True(t, json.Valid([]byte(output)), "output should be valid JSON: %s", output)
	assert.Contains(t, output, `"path": "demo.txt"`)
	assert.Contains(t, output, `"length": 7`)
	assert.Contains(t, output, `"text": "012-567"`)
	assert.Contains(t, output, `"literal": "-"`)

	var decoded sourceMapJSON
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	require.Len(t, decoded.Runs, 3)
	assert.Equal(t, [2]int{0, 3}, decoded.Runs[0].Index)
	require.NotNil(t, decoded.Runs[0].Source)
	assert.Equal(t, [2]int{0, 3}, *decoded.Runs[0].Source)
	assert.Nil(t, decoded.Runs[1].Source)
}

// TestMapFormatter_Format_EmptyMap tests rendering a map with no runs.
func TestMapFormatter_Format_EmptyMap(t *testing.T) {
	formatter := NewMapFormatter(FormatterOptions{Format: "text"})

	output := formatter.Format(BuildSourceMap(sequence.Null, "", nil))

	assert.Contains(t, output, "Source map\n")
	assert.Contains(t, output, "Output: 0 bytes in 0 runs (0 from source, 0 literal)")
}

// TestSnippetTruncation tests that long runs are shortened for display.
func TestSnippetTruncation(t *testing.T) {
	base := sequence.NewBase([]byte(strings.Repeat("x", 100)))
	view := sequence.Merge(base.All())

	formatter := NewMapFormatter(FormatterOptions{Format: "text"})
	output := formatter.Format(BuildSourceMap(view, "", nil))

	assert.Contains(t, output, `"...`)
	assert.NotContains(t, output, strings.Repeat("x", 100))
}

// Helper producing the "012-567" view over base "0123456789"
func createDashView() sequence.Sequence {
	base := sequence.NewBase([]byte("0123456789"))
	return sequence.Merge(
		base.Sub(0, 3),
		sequence.NewPrefixed("-", base.Sub(5, 8)),
	)
}
