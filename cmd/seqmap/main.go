package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/standardbeagle/seqmap/internal/config"
	"github.com/standardbeagle/seqmap/internal/debug"
	"github.com/standardbeagle/seqmap/internal/version"

	"github.com/urfave/cli/v2"
)

var (
	Version      = version.Version // Use centralized version management
	cleanupFuncs []func()
	projectRoot  string // Absolute project root, set once config is loaded
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")

	cfg, err := config.LoadWithRoot(configPath, c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	// Apply CLI flag overrides
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		// Convert to absolute path to ensure consistent path handling
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		if absRoot, err := filepath.Abs(cfg.Project.Root); err == nil {
			cfg.Project.Root = absRoot
		}
	}
	if c.Bool("json") {
		cfg.Output.Format = "json"
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	projectRoot = cfg.Project.Root
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "seqmap",
		Usage:                  "Provenance-preserving text views built from segment recipes",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".seqmap.kdl",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include inputs matching glob patterns (e.g., --include '*.txt' --include 'docs/**/*.md')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude inputs matching glob patterns (e.g., --exclude '**/generated/**')",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output on stderr",
			},
			&cli.StringFlag{
				Name:   "profile-memory",
				Usage:  "Write memory profile to file (e.g., --profile-memory mem.prof)",
				Hidden: true,
			},
			&cli.StringFlag{
				Name:   "profile-cpu",
				Usage:  "Write CPU profile to file (e.g., --profile-cpu cpu.prof)",
				Hidden: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "apply",
				Aliases:   []string{"a"},
				Usage:     "Apply a recipe to input texts and print the merged views",
				ArgsUsage: "<recipe.toml> [inputs...]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"J"},
						Usage:   "Parallel apply workers (0 = cores-1)",
						Value:   0,
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Keep running and re-apply when the recipe or an input changes",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "List the inputs that would be processed without applying",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the merged text to a file (single input only)",
					},
					&cli.BoolFlag{
						Name:  "compact",
						Usage: "Use compact output format",
					},
				},
				Action: applyCommand,
			},
			{
				Name:      "map",
				Aliases:   []string{"m"},
				Usage:     "Answer index/offset queries against an applied view",
				ArgsUsage: "<recipe.toml> <input>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "index",
						Aliases: []string{"i"},
						Usage:   "View index to map to a base offset",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"O"},
						Usage:   "Base offset to map back to a view index",
					},
					&cli.IntFlag{
						Name:  "start",
						Usage: "Base range start for a range query (requires --end)",
					},
					&cli.IntFlag{
						Name:  "end",
						Usage: "Base range end for a range query (requires --start)",
					},
				},
				Action: mapCommand,
			},
			{
				Name:      "segments",
				Aliases:   []string{"seg"},
				Usage:     "Show the provenance runs of an applied view",
				ArgsUsage: "<recipe.toml> <input>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "compact",
						Usage: "Use compact output format",
					},
					&cli.BoolFlag{
						Name:  "positions",
						Usage: "Annotate base runs with line:col positions",
						Value: true,
					},
				},
				Action: segmentsCommand,
			},
			{
				Name:    "serve",
				Aliases: []string{"mcp"},
				Usage:   "Start MCP (Model Context Protocol) server with stdio transport",
				Action:  serveCommand,
			},
			{
				Name:  "config",
				Usage: "Configuration management commands",
				Subcommands: []*cli.Command{
					{
						Name:    "init",
						Aliases: []string{"i"},
						Usage:   "Initialize configuration file (.seqmap.kdl)",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "Output file path (default: .seqmap.kdl)",
							},
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite existing configuration file",
							},
							&cli.BoolFlag{
								Name:  "minimal",
								Usage: "Generate minimal config with only commonly changed settings",
							},
						},
						Action: configInitCommand,
					},
					{
						Name:    "show",
						Aliases: []string{"s"},
						Usage:   "Show current configuration values",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "format",
								Aliases: []string{"f"},
								Usage:   "Output format: kdl, table",
								Value:   "table",
							},
						},
						Action: configShowCommand,
					},
					{
						Name:    "validate",
						Aliases: []string{"v"},
						Usage:   "Validate configuration file",
						Action:  configValidateCommand,
					},
				},
			},
			{
				Name:   "version",
				Usage:  "Show version and build information",
				Action: versionCommand,
			},
		},
		Before: func(c *cli.Context) error {
			// Setup profiling if requested
			if cpuProfilePath := c.String("profile-cpu"); cpuProfilePath != "" {
				debug.Printf("Starting CPU profiling to %s\n", cpuProfilePath)
				f, err := os.Create(cpuProfilePath)
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(f); err != nil {
					f.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				// Register CPU profile cleanup
				cleanupFuncs = append(cleanupFuncs, func() {
					pprof.StopCPUProfile()
					f.Close()
				})
			}

			// Setup memory profiling cleanup if requested
			if memProfilePath := c.String("profile-memory"); memProfilePath != "" {
				cleanupFuncs = append(cleanupFuncs, func() {
					debug.Printf("Writing memory profile to %s\n", memProfilePath)

					runtime.GC() // Force garbage collection before profiling

					f, err := os.Create(memProfilePath)
					if err != nil {
						fmt.Fprintf(os.Stderr, "Failed to create memory profile: %v\n", err)
						return
					}
					defer f.Close()

					if err := pprof.WriteHeapProfile(f); err != nil {
						fmt.Fprintf(os.Stderr, "Failed to write memory profile: %v\n", err)
					}
				})
			}

			if c.Bool("debug") {
				os.Setenv("DEBUG", "1")
				debug.SetDebugOutput(os.Stderr)
			}

			return nil
		},
		Action: func(c *cli.Context) error {
			// Auto-detect MCP mode: if stdin has JSON-RPC content, switch to serve mode
			if c.NArg() == 0 && isMCPMode() {
				debug.LogMCP("Auto-detected MCP mode, entering MCP server\n")
				return serveCommand(c)
			}

			// Otherwise show help
			return cli.ShowAppHelp(c)
		},
	}

	// Handle cleanup on exit
	defer func() {
		for _, cleanup := range cleanupFuncs {
			cleanup()
		}
	}()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// determineFormat determines the output format based on CLI flags
func determineFormat(c *cli.Context, cfg *config.Config) string {
	if c.Bool("json") {
		return "json"
	}
	if c.Bool("compact") {
		return "compact"
	}
	if cfg != nil && cfg.Output.Format != "" {
		return cfg.Output.Format
	}
	return "text"
}

func versionCommand(c *cli.Context) error {
	if c.Bool("json") {
		fmt.Printf("{\"version\":%q,\"commit\":%q,\"built\":%q,\"build_id\":%q}\n",
			version.Version, version.GitCommit, version.BuildDate, version.BuildID())
		return nil
	}
	fmt.Println(version.FullInfo())
	return nil
}

// isMCPMode detects if seqmap should enter MCP serve mode
func isMCPMode() bool {
	// Priority 1: Explicit environment variable (for MCP clients to set)
	if os.Getenv("SEQMAP_MCP_MODE") == "1" || os.Getenv("SEQMAP_MCP_MODE") == "true" {
		return true
	}

	// Priority 2: Non-terminal stdin (pipes, redirects) - likely JSON-RPC
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		return true
	}

	// Priority 3: Check if running as MCP server binary
	if len(os.Args) > 0 {
		arg0 := strings.ToLower(filepath.Base(os.Args[0]))
		if strings.Contains(arg0, "mcp") || strings.Contains(arg0, "serve") {
			return true
		}
	}

	// Priority 4: Parent process detection (Linux-specific)
	if isParentMCPClient() {
		return true
	}

	return false
}

// isParentMCPClient checks if parent process suggests MCP usage (Linux-specific)
func isParentMCPClient() bool {
	ppid := os.Getppid()
	if ppid <= 1 {
		return false
	}

	// Check if parent process name suggests MCP client
	commPath := fmt.Sprintf("/proc/%d/comm", ppid)
	if parentCmd, err := os.ReadFile(commPath); err == nil {
		parentName := strings.TrimSpace(string(parentCmd))
		// Common MCP client names
		mcpClients := []string{"mcp-tui", "mcp-client", "claude", "cursor", "vscode"}
		for _, client := range mcpClients {
			if strings.Contains(strings.ToLower(parentName), client) {
				return true
			}
		}
	}

	return false
}
