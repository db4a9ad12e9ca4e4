package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// FileValidator validates large inputs before loading them fully
// Prevents memory bloat from binary files handed to a text tool

// DefaultValidationThresholdKB is the size above which inputs are
// validated before being read whole.
const DefaultValidationThresholdKB = 256

type FileValidator struct {
	ValidationThreshold int64 // Files larger than this are validated first
	HeaderSize          int64 // Size of header to read for validation
}

func NewFileValidator(thresholdKB int64) *FileValidator {
	return &FileValidator{
		ValidationThreshold: thresholdKB * 1024,
		HeaderSize:          64 * 1024, // 64KB header
	}
}

// ValidateLargeFile reads only the header and verifies the file is text.
// Returns error for recognizable binary formats (images, archives,
// executables) and for data that is mostly non-printable.
func (fv *FileValidator) ValidateLargeFile(path string) error {
	// Get file size
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	// Skip validation for small files
	if info.Size() <= fv.ValidationThreshold {
		return nil
	}

	// Read only header (64KB)
	header := make([]byte, fv.HeaderSize)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read header: %w", err)
	}
	header = header[:n]

	// 1. Check for known binary signatures
	if kind := fv.detectBinaryFormat(header); kind != "" {
		return fmt.Errorf("input is a %s file, not text", kind)
	}

	// 2. Check for binary data with no recognizable signature
	if fv.isBinaryData(header) {
		return errors.New("file appears to be binary")
	}

	return nil
}

// detectBinaryFormat matches the header against known binary file
// signatures and returns the format name, or "" for no match.
func (fv *FileValidator) detectBinaryFormat(header []byte) string {
	signatures := []struct {
		kind  string
		magic []byte
	}{
		{"PNG", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
		{"JPEG", []byte{0xFF, 0xD8, 0xFF}},
		{"GIF", []byte("GIF8")},
		{"PDF", []byte("%PDF-")},
		{"ZIP", []byte{0x50, 0x4B, 0x03, 0x04}},
		{"gzip", []byte{0x1F, 0x8B}},
		{"ELF", []byte{0x7F, 0x45, 0x4C, 0x46}},
		{"PE executable", []byte{0x4D, 0x5A}},
		{"SQLite", []byte("SQLite format 3\x00")},
	}

	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.magic) {
			return sig.kind
		}
	}
	return ""
}

// isBinaryData checks if file contains binary data
func (fv *FileValidator) isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	// Count non-printable characters
	nonPrintable := 0
	for _, b := range data {
		// Control characters (0-31 except tab, LF, CR)
		// and DEL (127)
		// Note: b is uint8, so b >= 0 is always true
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}

	// If more than 30% non-printable, consider binary
	ratio := float64(nonPrintable) / float64(len(data))
	return ratio > 0.3
}
