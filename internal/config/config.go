package config

import (
	"os"
	"runtime"
)

// Default input limits. These values are used as defaults in both code
// and configuration parsing.
const (
	DefaultMaxFileSize    = 10 * 1024 * 1024 // 10MB per input text
	DefaultMaxTotalSizeMB = 500
	DefaultMaxFileCount   = 10000
)

type Config struct {
	Version int
	Project Project
	Apply   Apply
	Output  Output
	Include []string
	Exclude []string
}

type Project struct {
	Root string
	Name string
}

type Apply struct {
	Jobs            int   // Parallel apply workers, 0 = auto-detect (NumCPU-1)
	MaxFileSize     int64 // Largest input text accepted
	MaxTotalSizeMB  int64 // Store memory cap across all loaded texts
	MaxFileCount    int
	FollowSymlinks  bool
	WatchMode       bool // Re-run the recipe when inputs change
	WatchDebounceMs int  // Debounce time for file change events
	TimeoutSec      int  // Timeout for a single apply run in seconds
}

type Output struct {
	Format        string // "text", "json", "compact"
	ShowPositions bool   // Annotate runs with line:col of their source
	Indent        string
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

func LoadWithRoot(path string, rootDir string) (*Config, error) {
	// Determine search directory for config files
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	// Step 1: Load global base config from ~/.seqmap.kdl (if exists)
	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	// Step 2: Load project-specific config from project directory
	var projectConfig *Config
	if kdlCfg, err := LoadKDL(searchDir); err == nil && kdlCfg != nil {
		projectConfig = kdlCfg
	} else if err != nil {
		return nil, err
	}

	// Step 3: Merge configs (project overrides base, but preserve base exclusions)
	if baseConfig != nil && projectConfig != nil {
		return mergeConfigs(baseConfig, projectConfig), nil
	} else if projectConfig != nil {
		return projectConfig, nil
	} else if baseConfig != nil {
		// Use base config but update project root
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	// Default config
	// Use current working directory as absolute path for consistency
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "." // Fallback to relative if we can't get absolute
	}

	cfg := &Config{
		Version: 1,
		Project: Project{
			Root: cwd,
		},
		Apply: Apply{
			Jobs:            0, // 0 = auto-detect (NumCPU-1)
			MaxFileSize:     DefaultMaxFileSize,
			MaxTotalSizeMB:  DefaultMaxTotalSizeMB,
			MaxFileCount:    DefaultMaxFileCount,
			FollowSymlinks:  false,
			WatchMode:       false, // Apply is one-shot unless --watch asks otherwise
			WatchDebounceMs: 300,   // 300ms debounce for file changes
			TimeoutSec:      120,
		},
		Output: Output{
			Format:        "text",
			ShowPositions: true,
			Indent:        "  ",
		},
		Include: []string{},
		Exclude: getDefaultExclusions(),
	}

	return cfg, nil
}

// mergeConfigs merges a base config with a project config
// Project config takes precedence, but base exclusions are preserved
func mergeConfigs(base, project *Config) *Config {
	// Start with a copy of the project config
	merged := *project

	// Merge exclusions: combine base and project exclusions
	if len(base.Exclude) > 0 {
		// Use a map to deduplicate
		excludeMap := make(map[string]bool)

		// Add base exclusions first
		for _, pattern := range base.Exclude {
			excludeMap[pattern] = true
		}

		// Add project exclusions
		for _, pattern := range project.Exclude {
			excludeMap[pattern] = true
		}

		// Convert back to slice
		merged.Exclude = make([]string, 0, len(excludeMap))
		for pattern := range excludeMap {
			merged.Exclude = append(merged.Exclude, pattern)
		}
	}

	// Merge inclusions: project overrides base completely if specified
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	// Use project settings for everything else (already copied above)
	// This allows project to override apply and output settings.

	return &merged
}

// EffectiveJobs resolves the configured worker count, defaulting to
// cores-1 to leave headroom for the system.
func (c *Config) EffectiveJobs() int {
	if c.Apply.Jobs > 0 {
		return c.Apply.Jobs
	}
	return max(1, runtime.NumCPU()-1)
}
