package security

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileValidator validates the input file validator
func TestFileValidator(t *testing.T) {
	// Test large plain text file
	t.Run("LargeTextFile", func(t *testing.T) {
		content := strings.Repeat("All work and no play makes Jack a dull boy.\n", 3000)
		tmpFile := writeTempFile(t, "novel.txt", []byte(content))
		defer os.Remove(tmpFile)

		validator := NewFileValidator(100) // 100KB threshold
		err := validator.ValidateLargeFile(tmpFile)
		assert.NoError(t, err, "Plain text should pass validation")
	})

	// Test large markdown file with punctuation-heavy content
	t.Run("LargeMarkdownFile", func(t *testing.T) {
		validator := NewFileValidator(100)
		content := strings.Repeat("## Section\n\n- item `a` -> [link](https://example.com)\n", 4000)
		tmpFile := writeTempFile(t, "guide.md", []byte(content))
		defer os.Remove(tmpFile)

		err := validator.ValidateLargeFile(tmpFile)
		assert.NoError(t, err, "Markdown should pass validation")
	})

	// Test small file (below threshold)
	t.Run("SmallFile", func(t *testing.T) {
		validator := NewFileValidator(100)
		tmpFile := writeTempFile(t, "note.txt", []byte("short note\n"))
		defer os.Remove(tmpFile)

		err := validator.ValidateLargeFile(tmpFile)
		assert.NoError(t, err, "Small files should skip validation")
	})

	// Test: PNG image with a text extension (should fail)
	t.Run("ImageAsText", func(t *testing.T) {
		validator := NewFileValidator(100)
		// PNG header bytes
		pngHeader := []byte{
			0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
			0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
		}
		// Add some padding to push it past the threshold
		content := append(pngHeader, bytes.Repeat([]byte("x"), 200*1024)...)

		tmpFile := writeTempFile(t, "disguised.txt", content)
		defer os.Remove(tmpFile)

		err := validator.ValidateLargeFile(tmpFile)
		assert.Error(t, err, "Image saved as text should fail validation")
		assert.Contains(t, err.Error(), "PNG", "Should name the detected format")
	})

	// Test: unrecognized binary data (should fail)
	t.Run("UnknownBinaryData", func(t *testing.T) {
		validator := NewFileValidator(100)
		// Binary-like data with high non-printable ratio and no known signature
		content := make([]byte, 200*1024)
		for i := 0; i < len(content); i++ {
			content[i] = byte(1 + (i % 8)) // Control characters
		}

		tmpFile := writeTempFile(t, "garbage.txt", content)
		defer os.Remove(tmpFile)

		err := validator.ValidateLargeFile(tmpFile)
		assert.Error(t, err, "Binary data should fail validation")
		assert.Contains(t, err.Error(), "binary", "Should detect binary data")
	})

	// Test: large gzip archive (should fail with format name)
	t.Run("GzipArchive", func(t *testing.T) {
		validator := NewFileValidator(100)
		content := append([]byte{0x1F, 0x8B, 0x08, 0x00}, bytes.Repeat([]byte("z"), 200*1024)...)

		tmpFile := writeTempFile(t, "backup.txt", content)
		defer os.Remove(tmpFile)

		err := validator.ValidateLargeFile(tmpFile)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "gzip")
	})

	// Test: missing file
	t.Run("MissingFile", func(t *testing.T) {
		validator := NewFileValidator(100)
		err := validator.ValidateLargeFile(filepath.Join(t.TempDir(), "nope.txt"))
		assert.Error(t, err)
	})
}

// TestDetectBinaryFormat checks signature matching directly
func TestDetectBinaryFormat(t *testing.T) {
	validator := NewFileValidator(100)

	tests := []struct {
		name   string
		header []byte
		want   string
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "PNG"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "JPEG"},
		{"pdf", []byte("%PDF-1.7\n"), "PDF"},
		{"zip", []byte{0x50, 0x4B, 0x03, 0x04, 0x14}, "ZIP"},
		{"elf", []byte{0x7F, 0x45, 0x4C, 0x46, 0x02}, "ELF"},
		{"plain text", []byte("hello world"), ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validator.detectBinaryFormat(tt.header))
		})
	}
}

// writeTempFile helper creates a temporary file with content
func writeTempFile(t *testing.T, name string, content []byte) string {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, name)
	err := os.WriteFile(tmpFile, content, 0644)
	require.NoError(t, err)
	return tmpFile
}
