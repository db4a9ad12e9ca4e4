package mcp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/seqmap/internal/display"
	seqmaperrors "github.com/standardbeagle/seqmap/internal/errors"
	"github.com/standardbeagle/seqmap/internal/script"
	"github.com/standardbeagle/seqmap/internal/store"
	"github.com/standardbeagle/seqmap/internal/version"
	"github.com/standardbeagle/seqmap/pkg/sequence"
)

// previewLimit caps the view excerpt returned by apply_recipe.
const previewLimit = 120

// InfoParams identifies a tool to describe.
type InfoParams struct {
	Tool string `json:"tool,omitempty"`
}

// LoadTextParams names the file to pull into the store.
type LoadTextParams struct {
	Path string `json:"path"`
}

// ApplyRecipeParams selects a text (by id or path) and a recipe (file or
// inline ops).
type ApplyRecipeParams struct {
	TextID int         `json:"text_id,omitempty"`
	Path   string      `json:"path,omitempty"`
	Recipe string      `json:"recipe,omitempty"`
	Ops    []script.Op `json:"ops,omitempty"`
}

// IndexOffsetParams carries one point lookup. Exactly one of Index and
// Offset must be present; pointers distinguish absent from zero.
type IndexOffsetParams struct {
	ViewID int  `json:"view_id"`
	Index  *int `json:"index,omitempty"`
	Offset *int `json:"offset,omitempty"`
}

// IndexRangeParams carries a base range to map into view indexes.
type IndexRangeParams struct {
	ViewID int `json:"view_id"`
	Start  int `json:"start"`
	End    int `json:"end"`
}

// SegmentsParams selects a view and rendering options.
type SegmentsParams struct {
	ViewID    int    `json:"view_id"`
	Format    string `json:"format,omitempty"`
	Positions bool   `json:"positions,omitempty"`
}

// LoadTextResponse reports the stored text.
type LoadTextResponse struct {
	TextID      uint32 `json:"text_id"`
	Path        string `json:"path"`
	Length      int    `json:"length"`
	Lines       int    `json:"lines"`
	ContentHash string `json:"content_hash"`
}

// ApplyRecipeResponse reports the retained view.
type ApplyRecipeResponse struct {
	ViewID  uint64 `json:"view_id"`
	TextID  uint32 `json:"text_id"`
	Path    string `json:"path"`
	Recipe  string `json:"recipe,omitempty"`
	Length  int    `json:"length"`
	Runs    int    `json:"runs"`
	Preview string `json:"preview"`
}

// IndexOffsetResponse reports a point mapping in either direction.
// Synthetic marks a view byte with no source; Dropped marks a base byte
// not visible in the view. Line and Column are 1-based.
type IndexOffsetResponse struct {
	ViewID    uint64 `json:"view_id"`
	Index     int    `json:"index"`
	Offset    int    `json:"offset"`
	Synthetic bool   `json:"synthetic,omitempty"`
	Dropped   bool   `json:"dropped,omitempty"`
	Line      int    `json:"line,omitempty"`
	Column    int    `json:"column,omitempty"`
}

// IndexRangeResponse reports where a base range appears in the view.
type IndexRangeResponse struct {
	ViewID     uint64 `json:"view_id"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	IndexStart int    `json:"index_start"`
	IndexEnd   int    `json:"index_end"`
	Length     int    `json:"length"`
}

func (s *Server) handleLoadText(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params LoadTextParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("load_text", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Path == "" {
		return createErrorResponse("load_text", errors.New("path is required"))
	}

	text, err := s.loadTextFromDisk(params.Path)
	if err != nil {
		return createErrorResponse("load_text", err)
	}

	hash := s.store.ContentHash(text.ID)
	s.diagnosticLogger.Printf("load_text: %s -> text %d (%d bytes)", text.Path, text.ID, text.Base.Len())

	return createJSONResponse(LoadTextResponse{
		TextID:      uint32(text.ID),
		Path:        text.Path,
		Length:      text.Base.Len(),
		Lines:       s.store.LineCount(text.ID),
		ContentHash: hex.EncodeToString(hash[:16]),
	})
}

func (s *Server) handleApplyRecipe(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ApplyRecipeParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("apply_recipe", fmt.Errorf("invalid parameters: %w", err))
	}

	// Resolve the text
	var text *store.Text
	switch {
	case params.TextID != 0:
		t, ok := s.store.Get(store.TextID(params.TextID))
		if !ok {
			return createErrorResponse("apply_recipe", fmt.Errorf("unknown text_id %d", params.TextID))
		}
		text = t
	case params.Path != "":
		if t, ok := s.store.GetByPath(params.Path); ok {
			text = t
		} else {
			t, err := s.loadTextFromDisk(params.Path)
			if err != nil {
				return createErrorResponse("apply_recipe", err)
			}
			text = t
		}
	default:
		return createErrorResponse("apply_recipe", errors.New("text_id or path is required"))
	}

	// Resolve the recipe
	var recipe *script.Recipe
	var err error
	switch {
	case params.Recipe != "" && len(params.Ops) > 0:
		return createErrorResponse("apply_recipe", errors.New("recipe and ops are mutually exclusive"))
	case params.Recipe != "":
		recipe, err = script.Load(params.Recipe)
	case len(params.Ops) > 0:
		recipe, err = script.New("inline", params.Ops)
	default:
		return createErrorResponse("apply_recipe", errors.New("recipe or ops is required"))
	}
	if err != nil {
		return createErrorResponse("apply_recipe", err)
	}

	view, err := recipe.Apply(text.Base)
	if err != nil {
		return createErrorResponse("apply_recipe", err)
	}

	label := params.Recipe
	entry := s.putView(text.ID, text.Path, label, view)

	var b sequence.SegmentBuilder
	view.AppendSegments(&b)

	preview := view.String()
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}

	s.diagnosticLogger.Printf("apply_recipe: view %d over text %d (%d bytes, %d runs)",
		entry.ID, text.ID, view.Len(), len(b.Segments()))

	return createJSONResponse(ApplyRecipeResponse{
		ViewID:  entry.ID,
		TextID:  uint32(text.ID),
		Path:    text.Path,
		Recipe:  label,
		Length:  view.Len(),
		Runs:    len(b.Segments()),
		Preview: preview,
	})
}

func (s *Server) handleIndexOffset(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params IndexOffsetParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("index_offset", fmt.Errorf("invalid parameters: %w", err))
	}

	entry, ok := s.getView(uint64(params.ViewID))
	if !ok {
		return createErrorResponse("index_offset", fmt.Errorf("unknown view_id %d", params.ViewID))
	}

	if (params.Index == nil) == (params.Offset == nil) {
		return createErrorResponse("index_offset", errors.New("exactly one of index or offset is required"))
	}

	resp := IndexOffsetResponse{ViewID: entry.ID}

	if params.Index != nil {
		i := *params.Index
		length := entry.View.Len()
		// Index length is legal for non-empty views and resolves past the
		// last real byte; empty views accept no index at all.
		if length == 0 || i < 0 || i > length {
			return createErrorResponse("index_offset",
				fmt.Errorf("index %d out of range for view of length %d", i, length))
		}

		off := entry.View.IndexOffset(i)
		resp.Index = i
		resp.Offset = off
		resp.Synthetic = off < 0
		if off >= 0 {
			if line, col, posOK := s.store.Position(entry.TextID, off); posOK {
				resp.Line = line + 1
				resp.Column = col + 1
			}
		}
	} else {
		off := *params.Offset
		if off < 0 {
			return createErrorResponse("index_offset", fmt.Errorf("negative offset %d", off))
		}

		idx := s.offsetIndexFor(entry).OffsetIndex(off)
		resp.Offset = off
		resp.Index = idx
		resp.Dropped = idx < 0
		if line, col, posOK := s.store.Position(entry.TextID, off); posOK {
			resp.Line = line + 1
			resp.Column = col + 1
		}
	}

	return createJSONResponse(resp)
}

func (s *Server) handleIndexRange(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params IndexRangeParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("index_range", fmt.Errorf("invalid parameters: %w", err))
	}

	entry, ok := s.getView(uint64(params.ViewID))
	if !ok {
		return createErrorResponse("index_range", fmt.Errorf("unknown view_id %d", params.ViewID))
	}

	mapped := s.offsetIndexFor(entry).IndexRange(params.Start, params.End)

	return createJSONResponse(IndexRangeResponse{
		ViewID:     entry.ID,
		Start:      params.Start,
		End:        params.End,
		IndexStart: mapped.Start,
		IndexEnd:   mapped.End,
		Length:     mapped.Len(),
	})
}

func (s *Server) handleSegments(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SegmentsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("segments", fmt.Errorf("invalid parameters: %w", err))
	}

	entry, ok := s.getView(uint64(params.ViewID))
	if !ok {
		return createErrorResponse("segments", fmt.Errorf("unknown view_id %d", params.ViewID))
	}

	format := params.Format
	if format == "" {
		format = "text"
	}
	switch format {
	case "text", "json", "compact":
	default:
		return createErrorResponse("segments",
			fmt.Errorf("unknown format %q (want \"text\", \"json\", or \"compact\")", params.Format))
	}

	var resolve display.PositionFunc
	if params.Positions {
		textID := entry.TextID
		resolve = func(offset int) (int, int, bool) {
			return s.store.Position(textID, offset)
		}
	}

	sm := display.BuildSourceMap(entry.View, entry.Path, resolve)
	formatter := display.NewMapFormatter(display.FormatterOptions{
		Format:        format,
		ShowPositions: params.Positions,
	})

	return createTextResponse(formatter.Format(sm))
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Manual deserialization to avoid "unknown field" errors
	var toolParam InfoParams
	if err := json.Unmarshal(req.Params.Arguments, &toolParam); err != nil {
		return createErrorResponse("info", fmt.Errorf("invalid parameters: %w", err))
	}

	tool := strings.ToLower(strings.TrimSpace(toolParam.Tool))

	switch tool {
	case "version":
		return createJSONResponse(map[string]interface{}{
			"name":           "version",
			"description":    "Get server version and build info",
			"server_name":    "seqmap-mcp-server",
			"server_version": version.FullInfo(),
			"build_id":       version.BuildID(),
			"go_version":     runtime.Version(),
			"platform":       runtime.GOOS + "/" + runtime.GOARCH,
			"capabilities": []string{
				"stdio_transport",
				"segment_recipes",
				"inline_ops",
				"provenance_runs",
				"offset_mapping",
				"reverse_offset_lookup",
				"line_column_resolution",
				"cached_offset_tables",
			},
		})

	case "load_text":
		return createJSONResponse(map[string]interface{}{
			"name":        "load_text",
			"description": "Load a text file into the in-memory store. The returned text_id is stable while the content is unchanged.",
			"parameters": map[string]string{
				"path": "REQUIRED: file path to load",
			},
			"example": `{"path": "doc.md"}`,
		})

	case "apply_recipe":
		return createJSONResponse(map[string]interface{}{
			"name":        "apply_recipe",
			"description": "Apply a segment recipe to a text, producing a view that remembers where every byte came from.",
			"parameters": map[string]string{
				"text_id": "Text id from load_text (or use path)",
				"path":    "Text file path; loaded on demand if not in the store",
				"recipe":  "Recipe file path (TOML with [[op]] tables)",
				"ops":     "Inline ops: [{\"kind\": \"copy\", \"start\": 0, \"end\": 5}, {\"kind\": \"text\", \"text\": \"-\"}]",
			},
			"examples": []string{
				`{"path": "doc.md", "recipe": "trim.toml"}`,
				`{"text_id": 1, "ops": [{"kind": "copy", "start": 0, "end": 10}]}`,
			},
		})

	case "index_offset":
		return createJSONResponse(map[string]interface{}{
			"name":        "index_offset",
			"description": "Point lookup between view indexes and base offsets, in either direction.",
			"parameters": map[string]string{
				"view_id": "REQUIRED: view id from apply_recipe",
				"index":   "View index; response carries the base offset, or -1 with synthetic=true",
				"offset":  "Base offset; response carries the view index, or -1 with dropped=true",
			},
			"examples": []string{
				`{"view_id": 1, "index": 4}`,
				`{"view_id": 1, "offset": 120}`,
			},
		})

	case "index_range":
		return createJSONResponse(map[string]interface{}{
			"name":        "index_range",
			"description": "Map a base range [start, end) into view indexes. Tolerant bounds: unmatched start maps to 0, an end on dropped bytes snaps forward.",
			"parameters": map[string]string{
				"view_id": "REQUIRED: view id from apply_recipe",
				"start":   "REQUIRED: base range start offset",
				"end":     "REQUIRED: base range end offset (exclusive)",
			},
			"example": `{"view_id": 1, "start": 5, "end": 8}`,
		})

	case "segments":
		return createJSONResponse(map[string]interface{}{
			"name":        "segments",
			"description": "Render the provenance runs of a view: contiguous stretches from the base plus literal insertions.",
			"parameters": map[string]string{
				"view_id":   "REQUIRED: view id from apply_recipe",
				"format":    "'text' (default), 'json', or 'compact'",
				"positions": "Annotate source runs with 1-based line:column",
			},
			"example": `{"view_id": 1, "format": "json", "positions": true}`,
		})

	case "":
		cacheStats := s.indexCache.Stats()
		return createJSONResponse(map[string]interface{}{
			"server_name":    "seqmap-mcp-server",
			"server_version": version.Version,
			"description":    "Provenance-preserving text views: load texts, apply segment recipes, and ask any byte of the result where it came from.",
			"tools": map[string]string{
				"load_text":    "Load a text file into the store",
				"apply_recipe": "Apply a recipe, get a view_id",
				"index_offset": "Point mapping view index <-> base offset",
				"index_range":  "Map a base range into view indexes",
				"segments":     "Render the provenance runs of a view",
				"info":         "This tool; pass a tool name for details",
			},
			"workflow": []string{
				"load_text {path} -> text_id",
				"apply_recipe {text_id, recipe|ops} -> view_id",
				"index_offset / index_range / segments {view_id, ...}",
			},
			"state": map[string]interface{}{
				"texts":            s.store.TextCount(),
				"views":            s.viewCount(),
				"index_cache_hits": cacheStats.Hits,
				"index_cache_size": cacheStats.Entries,
			},
		})

	default:
		return createJSONResponse(map[string]interface{}{
			"unknown_tool": toolParam.Tool,
			"available": []string{
				"load_text", "apply_recipe", "index_offset", "index_range", "segments", "info", "version",
			},
		})
	}
}

// loadTextFromDisk reads a file, enforces the size limit, and loads it
// into the store.
func (s *Server) loadTextFromDisk(path string) (*store.Text, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, seqmaperrors.NewFileError("read", path, err)
	}
	if limit := s.maxFileSize(); int64(len(content)) > limit {
		return nil, seqmaperrors.NewFileTooLargeError(path, int64(len(content)), limit)
	}

	id := s.store.Load(path, content)
	text, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("text %d not retained after load", id)
	}
	return text, nil
}
