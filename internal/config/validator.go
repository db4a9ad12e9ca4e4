package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	seqmaperrors "github.com/standardbeagle/seqmap/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return seqmaperrors.NewConfigError("project", "", err)
	}

	if err := v.validateApplyConfig(&cfg.Apply); err != nil {
		return seqmaperrors.NewConfigError("apply", "", err)
	}

	if err := v.validateOutputConfig(&cfg.Output); err != nil {
		return seqmaperrors.NewConfigError("output", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

// validateProjectConfig validates project configuration
func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}

	return nil
}

// validateApplyConfig validates apply configuration
func (v *Validator) validateApplyConfig(apply *Apply) error {
	if apply.MaxFileSize <= 0 {
		return fmt.Errorf("MaxFileSize must be positive, got %d", apply.MaxFileSize)
	}

	if apply.MaxTotalSizeMB <= 0 {
		return fmt.Errorf("MaxTotalSizeMB must be positive, got %d", apply.MaxTotalSizeMB)
	}

	if apply.MaxFileCount <= 0 {
		return fmt.Errorf("MaxFileCount must be positive, got %d", apply.MaxFileCount)
	}

	if apply.MaxFileSize > 100*1024*1024 {
		return fmt.Errorf("MaxFileSize should not exceed 100MB, got %d", apply.MaxFileSize)
	}

	// Jobs: 0 means auto-detect (will be set by smart defaults)
	if apply.Jobs < 0 {
		return fmt.Errorf("Jobs cannot be negative, got %d", apply.Jobs)
	}

	if apply.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", apply.WatchDebounceMs)
	}

	if apply.TimeoutSec < 0 {
		return fmt.Errorf("TimeoutSec cannot be negative, got %d", apply.TimeoutSec)
	}

	return nil
}

// validateOutputConfig validates output configuration
func (v *Validator) validateOutputConfig(output *Output) error {
	switch output.Format {
	case "", "text", "json", "compact":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want \"text\", \"json\", or \"compact\")", output.Format)
	}
}

// setSmartDefaults applies smart defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	// Set default worker count based on CPU count if not configured
	// Use cores-1 to leave headroom for the system, minimum of 1
	if cfg.Apply.Jobs == 0 {
		numCPU := runtime.NumCPU()
		cfg.Apply.Jobs = max(1, numCPU-1)
	}

	// Set default debounce if not configured
	if cfg.Apply.WatchDebounceMs == 0 {
		cfg.Apply.WatchDebounceMs = 300
	}

	// Set default apply timeout if not configured
	if cfg.Apply.TimeoutSec == 0 {
		cfg.Apply.TimeoutSec = 120
	}

	// Set default output format and indent
	if cfg.Output.Format == "" {
		cfg.Output.Format = "text"
	}
	if cfg.Output.Indent == "" {
		cfg.Output.Indent = "  "
	}

	// Derive a project name from the root directory when not configured
	if cfg.Project.Name == "" && cfg.Project.Root != "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
