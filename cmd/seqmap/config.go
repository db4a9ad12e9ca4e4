package main

import (
	"fmt"
	"os"

	"github.com/standardbeagle/seqmap/internal/config"

	"github.com/urfave/cli/v2"
)

func configInitCommand(c *cli.Context) error {
	output := c.String("output")
	if output == "" {
		output = ".seqmap.kdl"
	}

	// Check if file exists
	if !c.Bool("force") {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", output)
		}
	}

	content := generateKDLConfig(c.Bool("minimal"))
	if err := os.WriteFile(output, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}

	fmt.Printf("Configuration file created: %s\n", output)
	fmt.Printf("Edit the file to customize settings for your project.\n")
	fmt.Printf("\nCommon customizations:\n")
	fmt.Printf("  - Parallel apply workers: apply.jobs\n")
	fmt.Printf("  - Input patterns: include { \"*.txt\" }\n")
	fmt.Printf("  - Project exclusions: exclude { \"**/generated/**\" }\n")

	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	if c.String("format") == "table" {
		return displayConfigTable(cfg)
	}
	// Default to KDL output
	fmt.Print(configToKDL(cfg))
	return nil
}

func configValidateCommand(c *cli.Context) error {
	configPath := c.String("config")

	// Try to load the configuration
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		fmt.Printf("❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Additional validation checks
	warnings := []string{}

	if cfg.Apply.MaxTotalSizeMB < 50 {
		warnings = append(warnings, "MaxTotalSizeMB is very low (<50MB), large batches will evict texts mid-run")
	}
	if cfg.Apply.MaxFileCount < 100 {
		warnings = append(warnings, "MaxFileCount is very low (<100), glob expansion may hit the cap")
	}
	if len(cfg.Include) == 0 {
		warnings = append(warnings, "No include patterns specified, apply needs explicit input arguments")
	}
	if cfg.Apply.WatchDebounceMs > 5000 {
		warnings = append(warnings, "WatchDebounceMs is very high (>5s), watch mode will feel sluggish")
	}

	// Display results
	fmt.Printf("✅ Configuration file is valid\n")
	fmt.Printf("📁 Config source: %s\n", configPath)
	fmt.Printf("📊 Settings: %d inputs max, %dMB store limit, %d workers\n",
		cfg.Apply.MaxFileCount, cfg.Apply.MaxTotalSizeMB, cfg.EffectiveJobs())

	if len(warnings) > 0 {
		fmt.Printf("\n⚠️  Warnings:\n")
		for _, warning := range warnings {
			fmt.Printf("  - %s\n", warning)
		}
	}

	return nil
}

func generateKDLConfig(minimal bool) string {
	if minimal {
		return `// seqmap configuration
// Minimal configuration with commonly changed settings

apply {
    jobs 0                         // Parallel apply workers (0 = cores-1)
    max_file_size "10MB"           // Largest input text accepted
}

output {
    format "text"                  // "text", "json", or "compact"
}

// Inputs picked up when apply is run without arguments
include {
    // "*.txt"
    // "docs/**/*.md"
}

// Add project-specific exclusions
exclude {
    // "**/generated/**"
}
`
	}

	return `// seqmap configuration
// Full configuration template with all available options

project {
    name "my-project"
    root "."
}

apply {
    jobs 0                         // Parallel apply workers (0 = cores-1)
    max_file_size "10MB"           // Largest input text accepted
    max_total_size_mb 500          // Store memory cap across loaded texts
    max_file_count 10000           // Maximum inputs per run
    follow_symlinks false          // Don't follow symbolic links
    watch_debounce_ms 300          // File change debouncing for --watch
    timeout_sec 120                // Timeout for a single apply run
}

output {
    format "text"                  // "text", "json", or "compact"
    show_positions true            // Annotate runs with line:col
    indent "  "
}

// Inputs picked up when apply is run without arguments
include {
    "*.txt"
    "docs/**/*.md"
}

// Exclude specific patterns (extends defaults)
exclude {
    "**/generated/**"
    "**/*.min.js"
}
`
}

func configToKDL(cfg *config.Config) string {
	// Convert config back to KDL format
	return fmt.Sprintf(`// Current seqmap configuration

project {
    name "%s"
    root "%s"
}

apply {
    jobs %d
    max_file_size "%dB"
    max_total_size_mb %d
    max_file_count %d
    follow_symlinks %t
    watch_debounce_ms %d
    timeout_sec %d
}

output {
    format "%s"
    show_positions %t
    indent "%s"
}

// Include patterns
%s

// Exclude patterns
%s
`,
		cfg.Project.Name,
		cfg.Project.Root,
		cfg.Apply.Jobs,
		cfg.Apply.MaxFileSize,
		cfg.Apply.MaxTotalSizeMB,
		cfg.Apply.MaxFileCount,
		cfg.Apply.FollowSymlinks,
		cfg.Apply.WatchDebounceMs,
		cfg.Apply.TimeoutSec,
		cfg.Output.Format,
		cfg.Output.ShowPositions,
		cfg.Output.Indent,
		formatKDLStringArray("include", cfg.Include),
		formatKDLStringArray("exclude", cfg.Exclude),
	)
}

func formatKDLStringArray(section string, items []string) string {
	if len(items) == 0 {
		return section + " {\n    // No items\n}"
	}

	result := section + " {\n"
	for _, item := range items {
		result += fmt.Sprintf("    %q\n", item)
	}
	result += "}"
	return result
}

func displayConfigTable(cfg *config.Config) error {
	fmt.Printf("seqmap configuration\n")
	fmt.Printf("====================\n\n")

	fmt.Printf("Project Settings:\n")
	fmt.Printf("  Name:              %s\n", cfg.Project.Name)
	fmt.Printf("  Root:              %s\n", cfg.Project.Root)
	fmt.Printf("\n")

	fmt.Printf("Apply Settings:\n")
	fmt.Printf("  Jobs:              %d (effective %d)\n", cfg.Apply.Jobs, cfg.EffectiveJobs())
	fmt.Printf("  Max file size:     %.1f MB\n", float64(cfg.Apply.MaxFileSize)/(1024*1024))
	fmt.Printf("  Max total size:    %d MB\n", cfg.Apply.MaxTotalSizeMB)
	fmt.Printf("  Max file count:    %d\n", cfg.Apply.MaxFileCount)
	fmt.Printf("  Follow symlinks:   %t\n", cfg.Apply.FollowSymlinks)
	fmt.Printf("  Watch debounce:    %d ms\n", cfg.Apply.WatchDebounceMs)
	fmt.Printf("  Apply timeout:     %d s\n", cfg.Apply.TimeoutSec)
	fmt.Printf("\n")

	fmt.Printf("Output Settings:\n")
	fmt.Printf("  Format:            %s\n", cfg.Output.Format)
	fmt.Printf("  Show positions:    %t\n", cfg.Output.ShowPositions)
	fmt.Printf("\n")

	fmt.Printf("Include Patterns (%d):\n", len(cfg.Include))
	for _, pattern := range cfg.Include {
		fmt.Printf("  %s\n", pattern)
	}
	fmt.Printf("\n")

	fmt.Printf("Exclude Patterns (%d):\n", len(cfg.Exclude))
	for _, pattern := range cfg.Exclude {
		fmt.Printf("  %s\n", pattern)
	}

	return nil
}
