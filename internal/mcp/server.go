// Package mcp exposes the segment pipeline over the Model Context
// Protocol: load texts into the store, apply recipes, and query the
// resulting views for byte provenance, all over stdio.
package mcp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/seqmap/internal/config"
	"github.com/standardbeagle/seqmap/internal/store"
	"github.com/standardbeagle/seqmap/internal/version"
	"github.com/standardbeagle/seqmap/pkg/sequence"
)

// viewEntry is one applied recipe retained for follow-up queries.
type viewEntry struct {
	ID        uint64
	TextID    store.TextID
	Path      string
	Recipe    string
	View      sequence.Sequence
	CreatedAt time.Time
}

// Server wires the text store and recipe pipeline to MCP tools.
type Server struct {
	store            *store.TextStore
	ownsStore        bool // True if the server created the store and should close it
	cfg              *config.Config
	server           *mcp.Server
	diagnosticLogger *DiagnosticLogger // File-based logging only (no stdout/stderr)

	// Applied views retained for index_offset / index_range / segments
	views      sync.Map // map[uint64]*viewEntry
	nextViewID atomic.Uint64

	// Offset tables for live views
	indexCache *IndexCache
}

// NewServer creates an MCP server over the given store. A nil store
// means the server creates and owns its own.
func NewServer(textStore *store.TextStore, cfg *config.Config) (*Server, error) {
	// CRITICAL: Use file-based logging for MCP to keep stdio clean
	diagnosticLogger := NewDiagnosticLogger(true)

	ownsStore := false
	if textStore == nil {
		diagnosticLogger.Printf("Creating new TextStore")
		textStore = store.NewTextStore()
		ownsStore = true
	}
	diagnosticLogger.Printf("MCP server initialized with TextStore")

	s := &Server{
		store:            textStore,
		ownsStore:        ownsStore,
		cfg:              cfg,
		diagnosticLogger: diagnosticLogger,
		indexCache:       NewIndexCache(DefaultIndexCacheConfig()),
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "seqmap-mcp-server",
		Version: version.Version,
	}, nil)

	s.server = server
	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	// Meta tool - always register this first
	s.server.AddTool(&mcp.Tool{
		Name:        "info",
		Description: "Get help, server state, and version info. Use 'info' for an overview, 'info <tool>' for specifics, 'info version' for build details.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"tool": {
					Type:        "string",
					Description: "Tool name to get information about (e.g., 'apply_recipe', 'version')",
				},
			},
		},
	}, s.handleInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "load_text",
		Description: "Load a text file into the in-memory store. Returns a text_id used by apply_recipe. Reloading an unchanged file keeps its id.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File path to load",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleLoadText)

	s.server.AddTool(&mcp.Tool{
		Name:        "apply_recipe",
		Description: "Apply a segment recipe to a loaded text, producing a provenance-preserving view. Returns a view_id for index_offset, index_range, and segments. Provide either a recipe file or inline ops.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text_id": {
					Type:        "integer",
					Description: "Text id from load_text",
				},
				"path": {
					Type:        "string",
					Description: "Text file path (loaded on demand if no text_id given)",
				},
				"recipe": {
					Type:        "string",
					Description: "Recipe file path (TOML)",
				},
				"ops": {
					Type:        "array",
					Description: "Inline ops instead of a recipe file",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"kind":  {Type: "string", Description: "Op kind: 'copy' or 'text'"},
							"start": {Type: "integer", Description: "Copy range start (copy ops)"},
							"end":   {Type: "integer", Description: "Copy range end, exclusive (copy ops)"},
							"text":  {Type: "string", Description: "Literal bytes (text ops)"},
						},
						Required: []string{"kind"},
					},
				},
			},
		},
	}, s.handleApplyRecipe)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_offset",
		Description: "Map between view indexes and base offsets. Provide 'index' to get the base offset of a view byte (-1 with synthetic=true for literals), or 'offset' to get the view index showing a base byte (-1 if that byte was dropped). Resolved offsets include 1-based line:column.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"view_id": {
					Type:        "integer",
					Description: "View id from apply_recipe",
				},
				"index": {
					Type:        "integer",
					Description: "Byte index into the view (forward lookup)",
				},
				"offset": {
					Type:        "integer",
					Description: "Byte offset into the base text (reverse lookup)",
				},
			},
			Required: []string{"view_id"},
		},
	}, s.handleIndexOffset)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_range",
		Description: "Map a base text range [start, end) into view indexes: where does that stretch of the source appear in the view? Bounds are tolerant: an unmatched start maps to 0, an end falling on dropped bytes snaps to the next visible byte or the view length.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"view_id": {
					Type:        "integer",
					Description: "View id from apply_recipe",
				},
				"start": {
					Type:        "integer",
					Description: "Base range start offset",
				},
				"end": {
					Type:        "integer",
					Description: "Base range end offset, exclusive",
				},
			},
			Required: []string{"view_id", "start", "end"},
		},
	}, s.handleIndexRange)

	s.server.AddTool(&mcp.Tool{
		Name:        "segments",
		Description: "Render the provenance runs of a view: which index ranges came from which base ranges and which are literals. Formats: 'text' (default), 'json', 'compact'.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"view_id": {
					Type:        "integer",
					Description: "View id from apply_recipe",
				},
				"format": {
					Type:        "string",
					Description: "Output format: 'text', 'json', or 'compact'",
				},
				"positions": {
					Type:        "boolean",
					Description: "Annotate source runs with 1-based line:column",
				},
			},
			Required: []string{"view_id"},
		},
	}, s.handleSegments)
}

// maxFileSize returns the configured load limit, falling back to the
// package default when the server was built without config.
func (s *Server) maxFileSize() int64 {
	if s.cfg != nil && s.cfg.Apply.MaxFileSize > 0 {
		return s.cfg.Apply.MaxFileSize
	}
	return config.DefaultMaxFileSize
}

// getView looks up a retained view by id.
func (s *Server) getView(id uint64) (*viewEntry, bool) {
	val, ok := s.views.Load(id)
	if !ok {
		return nil, false
	}
	return val.(*viewEntry), true
}

// putView retains an applied view and assigns its id.
func (s *Server) putView(textID store.TextID, path, recipe string, view sequence.Sequence) *viewEntry {
	entry := &viewEntry{
		ID:        s.nextViewID.Add(1),
		TextID:    textID,
		Path:      path,
		Recipe:    recipe,
		View:      view,
		CreatedAt: time.Now(),
	}
	s.views.Store(entry.ID, entry)
	return entry
}

// viewCount reports how many views are retained.
func (s *Server) viewCount() int {
	count := 0
	s.views.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// offsetIndexFor returns the cached offset table for a view, building
// it on first use.
func (s *Server) offsetIndexFor(v *viewEntry) *sequence.OffsetIndex {
	if idx := s.indexCache.Get(v.ID); idx != nil {
		return idx
	}
	idx := sequence.NewOffsetIndex(v.View)
	s.indexCache.Put(v.ID, idx)
	return idx
}

// Start runs the server on stdio until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("Starting MCP server with stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Shutdown gracefully shuts down the server and its components
func (s *Server) Shutdown(ctx context.Context) error {
	s.diagnosticLogger.Printf("Shutting down MCP server...")

	s.indexCache.Clear()

	if s.ownsStore && s.store != nil {
		s.store.Close()
		s.diagnosticLogger.Printf("Text store shutdown complete")
	}

	s.diagnosticLogger.Printf("MCP server shutdown complete")

	// Close diagnostic logger to flush file
	if s.diagnosticLogger != nil {
		s.diagnosticLogger.Close()
	}

	return nil
}

// Close releases resources held by the Server
func (s *Server) Close() error {
	if s.ownsStore && s.store != nil {
		s.store.Close()
	}
	return nil
}
