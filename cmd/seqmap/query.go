package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/seqmap/internal/config"
	"github.com/standardbeagle/seqmap/internal/display"
	"github.com/standardbeagle/seqmap/internal/script"
	"github.com/standardbeagle/seqmap/internal/store"
	"github.com/standardbeagle/seqmap/pkg/pathutil"
	"github.com/standardbeagle/seqmap/pkg/sequence"

	"github.com/urfave/cli/v2"
)

// singleApply bundles everything the query commands need after applying a
// recipe to one input text.
type singleApply struct {
	cfg   *config.Config
	store *store.TextStore
	id    store.TextID
	view  sequence.Sequence
	path  string // absolute input path
}

func (sa *singleApply) Close() {
	sa.store.Close()
}

func (sa *singleApply) rel() string {
	return pathutil.ToRelative(sa.path, sa.cfg.Project.Root)
}

// applySingle loads one input and applies the recipe to it. The caller
// owns the returned store and must Close it.
func applySingle(c *cli.Context, usage string) (*singleApply, error) {
	if c.NArg() != 2 {
		return nil, errors.New(usage)
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}

	recipe, err := script.Load(c.Args().Get(0))
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(c.Args().Get(1))
	if err != nil {
		return nil, err
	}

	textStore := store.NewTextStoreWithLimit(cfg.Apply.MaxTotalSizeMB * 1024 * 1024)
	ids, err := loadInputs(cfg, textStore, []string{abs})
	if err != nil {
		textStore.Close()
		return nil, err
	}

	base, ok := textStore.Base(ids[0])
	if !ok {
		textStore.Close()
		return nil, fmt.Errorf("failed to load %s", abs)
	}

	view, err := recipe.Apply(base)
	if err != nil {
		textStore.Close()
		return nil, err
	}

	return &singleApply{
		cfg:   cfg,
		store: textStore,
		id:    ids[0],
		view:  view,
		path:  abs,
	}, nil
}

func mapCommand(c *cli.Context) error {
	sa, err := applySingle(c, "usage: seqmap map <recipe.toml> <input> [--index N] [--offset N] [--start N --end N]")
	if err != nil {
		return err
	}
	defer sa.Close()

	view := sa.view
	jsonOut := determineFormat(c, sa.cfg) == "json"
	answers := []map[string]interface{}{}
	queried := false

	if c.IsSet("index") {
		queried = true
		idx := c.Int("index")
		// i == Len() is a legal one-past-end query except on an empty view
		if idx < 0 || idx > view.Len() || (idx == view.Len() && view.Len() == 0) {
			return fmt.Errorf("index %d out of range [0, %d]", idx, view.Len())
		}
		offset := view.IndexOffset(idx)
		if jsonOut {
			answers = append(answers, map[string]interface{}{
				"kind": "index", "index": idx, "offset": offset, "synthetic": offset < 0,
			})
		} else if offset < 0 {
			fmt.Printf("index %d -> synthetic (no source offset)\n", idx)
		} else {
			fmt.Printf("index %d -> offset %d\n", idx, offset)
		}
	}

	if c.IsSet("offset") {
		queried = true
		offset := c.Int("offset")
		oi := sequence.NewOffsetIndex(view)
		idx := oi.OffsetIndex(offset)
		if jsonOut {
			answers = append(answers, map[string]interface{}{
				"kind": "offset", "offset": offset, "index": idx, "found": idx >= 0,
			})
		} else if idx < 0 {
			fmt.Printf("offset %d -> not present in view\n", offset)
		} else {
			fmt.Printf("offset %d -> index %d\n", offset, idx)
		}
	}

	if c.IsSet("start") || c.IsSet("end") {
		if !c.IsSet("start") || !c.IsSet("end") {
			return errors.New("range queries need both --start and --end")
		}
		queried = true
		start, end := c.Int("start"), c.Int("end")
		r := view.IndexRange(start, end)
		if jsonOut {
			answers = append(answers, map[string]interface{}{
				"kind": "range", "start": start, "end": end,
				"view_start": r.Start, "view_end": r.End,
			})
		} else {
			fmt.Printf("base [%d:%d) -> view %s\n", start, end, r)
		}
	}

	if jsonOut {
		runs, baseBytes, synthetic := viewStats(view)
		output := map[string]interface{}{
			"path":            sa.rel(),
			"length":          view.Len(),
			"start_offset":    view.StartOffset(),
			"end_offset":      view.EndOffset(),
			"runs":            runs,
			"base_bytes":      baseBytes,
			"synthetic_bytes": synthetic,
			"replaced":        view.IsReplaced(),
		}
		if queried {
			output["queries"] = answers
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", sa.cfg.Output.Indent)
		return encoder.Encode(output)
	}

	if !queried {
		runs, baseBytes, synthetic := viewStats(view)
		fmt.Printf("%s: %d bytes (%d from source, %d synthetic) in %d runs\n",
			sa.rel(), view.Len(), baseBytes, synthetic, runs)
		fmt.Printf("source range %s, replaced=%t\n", view.SourceRange(), view.IsReplaced())
	}
	return nil
}

func segmentsCommand(c *cli.Context) error {
	sa, err := applySingle(c, "usage: seqmap segments <recipe.toml> <input>")
	if err != nil {
		return err
	}
	defer sa.Close()

	showPositions := sa.cfg.Output.ShowPositions
	if c.IsSet("positions") {
		showPositions = c.Bool("positions")
	}

	sm := display.BuildSourceMap(sa.view, sa.path, func(offset int) (line, col int, ok bool) {
		return sa.store.Position(sa.id, offset)
	})

	formatter := display.NewMapFormatter(display.FormatterOptions{
		Format:        determineFormat(c, sa.cfg),
		ShowPositions: showPositions,
		Indent:        sa.cfg.Output.Indent,
	})

	out := formatter.Format(pathutil.ToRelativeSourceMap(sm, sa.cfg.Project.Root))
	fmt.Print(out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Println()
	}
	return nil
}
