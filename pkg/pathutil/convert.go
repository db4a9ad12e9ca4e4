// Package pathutil provides utilities for converting between absolute and relative paths.
//
// Architecture Pattern:
// seqmap uses absolute paths internally for consistency and to avoid ambiguity.
// However, user-facing output should use relative paths for readability and portability.
// This package provides the conversion layer between internal (absolute) and external (relative) representations.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/seqmap/internal/display"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/notes.txt", "/home/user/project") → "notes.txt"
//   - ToRelative("/other/location/file.txt", "/home/user/project") → "/other/location/file.txt" (outside root)
//   - ToRelative("docs/guide.md", "/home/user/project") → "docs/guide.md" (already relative)
func ToRelative(absPath, rootDir string) string {
	// Handle empty inputs
	if absPath == "" || rootDir == "" {
		return absPath
	}

	// If path is already relative, return as-is
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	// Clean both paths to normalize separators and remove redundant elements
	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	// Try to make relative
	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Conversion failed (e.g., different drives on Windows) - return absolute
		return absPath
	}

	// If the relative path starts with ".." it means the file is outside the root
	// In this case, return the absolute path as it's clearer
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// ToRelativeSourceMap converts the path of a source map from absolute to relative.
// Returns a shallow copy without modifying the original.
//
// This function is designed for use at output boundaries where results are displayed to users:
//   - CLI segments output
//   - JSON serialization
//   - MCP server responses
func ToRelativeSourceMap(sm *display.SourceMap, rootDir string) *display.SourceMap {
	if sm == nil {
		return nil
	}

	converted := *sm
	converted.Path = ToRelative(sm.Path, rootDir)
	return &converted
}

// ToRelativePaths converts a slice of absolute paths to relative paths.
// Creates a new slice without modifying the original.
//
// This function is designed for use at output boundaries:
//   - CLI dry-run listings
//   - MCP server responses that enumerate loaded texts
func ToRelativePaths(paths []string, rootDir string) []string {
	if len(paths) == 0 {
		return paths
	}

	converted := make([]string, len(paths))
	for i, p := range paths {
		converted[i] = ToRelative(p, rootDir)
	}
	return converted
}
