package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/seqmap/internal/config"
	"github.com/standardbeagle/seqmap/internal/debug"
	seqmaperrors "github.com/standardbeagle/seqmap/internal/errors"
	"github.com/standardbeagle/seqmap/internal/script"
	"github.com/standardbeagle/seqmap/internal/security"
	"github.com/standardbeagle/seqmap/internal/store"
	"github.com/standardbeagle/seqmap/internal/watch"
	"github.com/standardbeagle/seqmap/pkg/pathutil"
	"github.com/standardbeagle/seqmap/pkg/sequence"

	"github.com/urfave/cli/v2"
)

// applyResult is the outcome of applying a recipe to one input text.
type applyResult struct {
	Path    string
	ID      store.TextID
	View    sequence.Sequence
	Err     error
	Elapsed time.Duration
}

func applyCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: seqmap apply <recipe.toml> [inputs...]")
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if jobs := c.Int("jobs"); jobs > 0 {
		cfg.Apply.Jobs = jobs
	}

	recipePath := c.Args().First()
	recipe, err := script.Load(recipePath)
	if err != nil {
		return err
	}

	inputs, err := resolveInputs(cfg, c.Args().Tail())
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no inputs matched (name input files or configure include patterns)")
	}

	if c.Bool("dry-run") {
		return printDryRun(cfg, inputs)
	}

	textStore := store.NewTextStoreWithLimit(cfg.Apply.MaxTotalSizeMB * 1024 * 1024)
	defer textStore.Close()

	ids, err := loadInputs(cfg, textStore, inputs)
	if err != nil {
		return err
	}

	results := runApply(context.Background(), cfg, textStore, recipe, inputs, ids)

	if outPath := c.String("output"); outPath != "" {
		return writeApplyOutput(outPath, results)
	}

	renderErr := renderApplyResults(c, cfg, textStore, results)

	if c.Bool("watch") {
		return watchAndReapply(cfg, textStore, recipe, recipePath, inputs)
	}
	return renderErr
}

// resolveInputs expands glob arguments and applies exclude filtering.
// Explicitly named files bypass the patterns so a caller can always point
// at one file directly; with no arguments the configured include patterns
// are expanded under the project root.
func resolveInputs(cfg *config.Config, args []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if seen[abs] {
			return nil
		}
		seen[abs] = true
		paths = append(paths, abs)
		return nil
	}

	addMatches := func(matches []string) error {
		sort.Strings(matches)
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if isExcluded(cfg, m) {
				continue
			}
			if err := add(m); err != nil {
				return err
			}
		}
		return nil
	}

	if len(args) == 0 {
		// Discover inputs from the configured include patterns
		for _, pattern := range cfg.Include {
			matches, err := doublestar.FilepathGlob(filepath.Join(cfg.Project.Root, pattern))
			if err != nil {
				return nil, seqmaperrors.NewFileError("glob", pattern, err)
			}
			if err := addMatches(matches); err != nil {
				return nil, err
			}
		}
		sort.Strings(paths)
	} else {
		for _, arg := range args {
			if !strings.ContainsAny(arg, "*?[{") {
				info, err := os.Stat(arg)
				if err != nil {
					return nil, seqmaperrors.NewFileError("stat", arg, err)
				}
				if info.IsDir() {
					return nil, seqmaperrors.NewFileError("stat", arg, errors.New("is a directory"))
				}
				if err := add(arg); err != nil {
					return nil, err
				}
				continue
			}

			matches, err := doublestar.FilepathGlob(arg)
			if err != nil {
				return nil, seqmaperrors.NewFileError("glob", arg, err)
			}
			if err := addMatches(matches); err != nil {
				return nil, err
			}
		}
	}

	if len(paths) > cfg.Apply.MaxFileCount {
		return nil, fmt.Errorf("matched %d inputs, limit is %d (narrow the patterns or raise apply.max_file_count)",
			len(paths), cfg.Apply.MaxFileCount)
	}
	return paths, nil
}

// isExcluded matches a path against the configured exclude patterns,
// relative to the project root the way the watcher does.
func isExcluded(cfg *config.Config, path string) bool {
	rel := filepath.ToSlash(pathutil.ToRelative(path, cfg.Project.Root))
	for _, pattern := range cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// loadInputs validates and reads every input, then loads them into the
// store in one batch so they receive consecutive IDs.
func loadInputs(cfg *config.Config, textStore *store.TextStore, inputs []string) ([]store.TextID, error) {
	validator := security.NewFileValidator(security.DefaultValidationThresholdKB)

	files := make([]store.TextFile, 0, len(inputs))
	for _, path := range inputs {
		info, err := os.Stat(path)
		if err != nil {
			return nil, seqmaperrors.NewFileError("stat", path, err)
		}
		if info.Size() > cfg.Apply.MaxFileSize {
			return nil, seqmaperrors.NewFileTooLargeError(path, info.Size(), cfg.Apply.MaxFileSize)
		}
		if err := validator.ValidateLargeFile(path); err != nil {
			return nil, seqmaperrors.NewFileError("validate", path, err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, seqmaperrors.NewFileError("read", path, err)
		}
		files = append(files, store.TextFile{Path: path, Content: content})
	}

	return textStore.BatchLoad(files), nil
}

// runApply applies the recipe to every loaded input, bounded by the
// configured worker count and timeout. Per-input failures land in the
// result slice rather than aborting the batch.
func runApply(ctx context.Context, cfg *config.Config, textStore *store.TextStore, recipe *script.Recipe, inputs []string, ids []store.TextID) []applyResult {
	results := make([]applyResult, len(inputs))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Apply.TimeoutSec)*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.EffectiveJobs())

	for i := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = applyResult{Path: inputs[i], ID: ids[i], Err: err}
				return nil
			}
			start := time.Now()
			results[i] = applyOne(textStore, recipe, inputs[i], ids[i])
			results[i].Elapsed = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func applyOne(textStore *store.TextStore, recipe *script.Recipe, path string, id store.TextID) applyResult {
	res := applyResult{Path: path, ID: id}

	base, ok := textStore.Base(id)
	if !ok {
		res.Err = seqmaperrors.NewApplyError("lookup", fmt.Errorf("text %d is not loaded", id)).WithText(path)
		return res
	}

	view, err := recipe.Apply(base)
	if err != nil {
		res.Err = err
		return res
	}
	res.View = view
	return res
}

// viewStats flattens a view once and tallies its provenance runs.
func viewStats(view sequence.Sequence) (runs, baseBytes, syntheticBytes int) {
	if view == nil {
		return 0, 0, 0
	}
	b := sequence.NewSegmentBuilder()
	b.Append(view)
	for _, seg := range b.Segments() {
		runs++
		if seg.IsBase() {
			baseBytes += seg.Range.Len()
		} else {
			syntheticBytes += len(seg.Text)
		}
	}
	return runs, baseBytes, syntheticBytes
}

func printDryRun(cfg *config.Config, inputs []string) error {
	rels := pathutil.ToRelativePaths(inputs, cfg.Project.Root)
	fmt.Printf("Would apply to %d input(s):\n", len(inputs))
	for i, path := range inputs {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Printf("  %s (unreadable: %v)\n", rels[i], err)
			continue
		}
		fmt.Printf("  %s (%d bytes)\n", rels[i], info.Size())
	}
	return nil
}

// applyReport is the JSON shape of one apply result.
type applyReport struct {
	Path      string  `json:"path"`
	Input     int     `json:"input_bytes"`
	Output    int     `json:"output_bytes"`
	Runs      int     `json:"runs"`
	Synthetic int     `json:"synthetic_bytes"`
	TimeMs    float64 `json:"time_ms"`
	Text      string  `json:"text,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func renderApplyResults(c *cli.Context, cfg *config.Config, textStore *store.TextStore, results []applyResult) error {
	switch determineFormat(c, cfg) {
	case "json":
		return printApplyJSON(cfg, textStore, results)
	case "compact":
		return printApplyCompact(cfg, textStore, results)
	}

	failed := 0
	multi := len(results) > 1
	for _, res := range results {
		rel := pathutil.ToRelative(res.Path, cfg.Project.Root)
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "seqmap: %s: %v\n", rel, res.Err)
			continue
		}
		if multi {
			fmt.Printf("== %s ==\n", rel)
		}
		text := res.View.String()
		fmt.Print(text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Println()
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

func printApplyJSON(cfg *config.Config, textStore *store.TextStore, results []applyResult) error {
	reports := make([]applyReport, 0, len(results))
	for _, res := range results {
		report := applyReport{
			Path:   pathutil.ToRelative(res.Path, cfg.Project.Root),
			TimeMs: float64(res.Elapsed.Microseconds()) / 1000.0,
		}
		if text, ok := textStore.Get(res.ID); ok {
			report.Input = text.Base.Len()
		}
		if res.Err != nil {
			report.Error = res.Err.Error()
		} else {
			runs, _, synthetic := viewStats(res.View)
			report.Output = res.View.Len()
			report.Runs = runs
			report.Synthetic = synthetic
			report.Text = res.View.String()
		}
		reports = append(reports, report)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", cfg.Output.Indent)
	return encoder.Encode(reports)
}

func printApplyCompact(cfg *config.Config, textStore *store.TextStore, results []applyResult) error {
	failed := 0
	for _, res := range results {
		rel := pathutil.ToRelative(res.Path, cfg.Project.Root)
		if res.Err != nil {
			failed++
			fmt.Printf("%s error %v\n", rel, res.Err)
			continue
		}
		input := 0
		if text, ok := textStore.Get(res.ID); ok {
			input = text.Base.Len()
		}
		runs, _, synthetic := viewStats(res.View)
		fmt.Printf("%s in=%d out=%d runs=%d synthetic=%d %.1fms\n",
			rel, input, res.View.Len(), runs, synthetic,
			float64(res.Elapsed.Microseconds())/1000.0)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

func writeApplyOutput(outPath string, results []applyResult) error {
	if len(results) != 1 {
		return fmt.Errorf("--output requires exactly one input, got %d", len(results))
	}
	res := results[0]
	if res.Err != nil {
		return res.Err
	}
	text := res.View.String()
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		return seqmaperrors.NewFileError("write", outPath, err)
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(text), outPath)
	return nil
}

// watchAndReapply keeps the process alive, re-running the recipe whenever
// an input or the recipe file itself changes. Runs until SIGINT/SIGTERM.
func watchAndReapply(cfg *config.Config, textStore *store.TextStore, recipe *script.Recipe, recipePath string, inputs []string) error {
	cfg.Apply.WatchMode = true

	recipeAbs, err := filepath.Abs(recipePath)
	if err != nil {
		recipeAbs = recipePath
	}

	inputSet := make(map[string]bool, len(inputs))
	for _, path := range inputs {
		inputSet[path] = true
	}

	var mu sync.Mutex
	current := recipe

	rerunOne := func(path string) {
		text, ok := textStore.GetByPath(path)
		if !ok {
			return
		}
		rel := pathutil.ToRelative(path, cfg.Project.Root)
		res := applyOne(textStore, current, path, text.ID)
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "seqmap: %s: %v\n", rel, res.Err)
			return
		}
		fmt.Fprintf(os.Stderr, "[%s] %s (%d bytes)\n",
			time.Now().Format("15:04:05"), rel, res.View.Len())
		out := res.View.String()
		fmt.Print(out)
		if !strings.HasSuffix(out, "\n") {
			fmt.Println()
		}
	}

	rerunAll := func() {
		for _, path := range inputs {
			rerunOne(path)
		}
	}

	watcher, err := watch.NewFileWatcher(cfg)
	if err != nil {
		return err
	}

	watcher.SetCallbacks(
		func(path string) {
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}

			mu.Lock()
			defer mu.Unlock()

			if abs == recipeAbs {
				next, err := script.Load(recipePath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "seqmap: recipe reload failed: %v\n", err)
					return
				}
				current = next
				fmt.Fprintf(os.Stderr, "[%s] recipe reloaded\n", time.Now().Format("15:04:05"))
				rerunAll()
				return
			}

			if !inputSet[abs] {
				debug.LogWatch("change outside input set ignored: %s\n", abs)
				return
			}

			content, err := os.ReadFile(abs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "seqmap: %s: %v\n", pathutil.ToRelative(abs, cfg.Project.Root), err)
				return
			}
			if int64(len(content)) > cfg.Apply.MaxFileSize {
				fmt.Fprintf(os.Stderr, "seqmap: %s grew past the size limit, skipping\n",
					pathutil.ToRelative(abs, cfg.Project.Root))
				return
			}
			textStore.Load(abs, content)
			rerunOne(abs)
		},
		func(path string) {
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			mu.Lock()
			defer mu.Unlock()
			if inputSet[abs] {
				textStore.Invalidate(abs)
				fmt.Fprintf(os.Stderr, "[%s] %s removed\n",
					time.Now().Format("15:04:05"), pathutil.ToRelative(abs, cfg.Project.Root))
			}
		},
	)

	if err := watcher.Start(cfg.Project.Root); err != nil {
		return err
	}
	defer watcher.Stop()

	if err := watcher.WatchFile(recipeAbs); err != nil {
		debug.LogWatch("failed to watch recipe %s: %v\n", recipeAbs, err)
	}
	for _, path := range inputs {
		if err := watcher.WatchFile(path); err != nil {
			debug.LogWatch("failed to watch input %s: %v\n", path, err)
		}
	}

	fmt.Fprintf(os.Stderr, "Watching %d input(s) and %s (Ctrl-C to stop)\n",
		len(inputs), pathutil.ToRelative(recipeAbs, cfg.Project.Root))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	fmt.Fprintf(os.Stderr, "Received %v, stopping watch\n", sig)
	return nil
}
