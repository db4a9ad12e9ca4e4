// Package script loads and applies segment recipes: small TOML files
// that describe how to rebuild a text from ranges of a base text plus
// literal insertions. Applying a recipe yields a sequence that still
// knows where every byte came from.
package script

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	seqmaperrors "github.com/standardbeagle/seqmap/internal/errors"
	"github.com/standardbeagle/seqmap/pkg/sequence"
)

// Op kinds understood by recipes.
const (
	KindCopy = "copy" // copy base bytes [start, end)
	KindText = "text" // insert literal bytes with no source mapping
)

// Op is a single step of a recipe.
type Op struct {
	Kind  string `toml:"kind" json:"kind"`
	Start int    `toml:"start,omitempty" json:"start,omitempty"`
	End   int    `toml:"end,omitempty" json:"end,omitempty"`
	Text  string `toml:"text,omitempty" json:"text,omitempty"`
}

// Recipe is an ordered list of operations applied against one base text.
// Copy ranges must appear in base order and must not overlap.
type Recipe struct {
	Name string `toml:"name,omitempty"`
	Ops  []Op   `toml:"op"`

	path string
}

// Path returns the file the recipe was loaded from, or the placeholder
// given to Parse.
func (r *Recipe) Path() string {
	return r.path
}

// Load reads and validates a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, seqmaperrors.NewFileError("read", path, err)
	}
	return Parse(path, data)
}

// Parse decodes and validates recipe TOML. The path is only used in
// error messages.
func Parse(path string, data []byte) (*Recipe, error) {
	var r Recipe
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, seqmaperrors.NewRecipeError(path, -1, "", err)
	}
	r.path = path

	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// New builds a validated recipe from ops constructed in code, without a
// backing file. The name is only used in error messages.
func New(name string, ops []Op) (*Recipe, error) {
	r := &Recipe{Name: name, Ops: ops, path: name}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// validate checks everything that can be checked without a base text:
// op kinds, field combinations, and copy range ordering.
func (r *Recipe) validate() error {
	cursor := 0
	for i, op := range r.Ops {
		switch op.Kind {
		case KindCopy:
			if op.Text != "" {
				return seqmaperrors.NewRecipeError(r.path, i, "text",
					errors.New("text not allowed on copy op"))
			}
			if op.Start < 0 {
				return seqmaperrors.NewRecipeError(r.path, i, "start",
					fmt.Errorf("negative start %d", op.Start))
			}
			if op.End < op.Start {
				return seqmaperrors.NewRecipeError(r.path, i, "end",
					fmt.Errorf("end %d before start %d", op.End, op.Start))
			}
			if op.Start < cursor {
				return seqmaperrors.NewRecipeError(r.path, i, "start",
					fmt.Errorf("copy range [%d, %d) overlaps previous range ending at %d",
						op.Start, op.End, cursor))
			}
			cursor = op.End
		case KindText:
			if op.Start != 0 || op.End != 0 {
				return seqmaperrors.NewRecipeError(r.path, i, "start",
					errors.New("copy bounds not allowed on text op"))
			}
		default:
			return seqmaperrors.NewRecipeError(r.path, i, "kind",
				fmt.Errorf("unknown kind %q", op.Kind))
		}
	}
	return nil
}

// checkBounds verifies that every copy range fits the base text.
func (r *Recipe) checkBounds(baseLen int) error {
	for i, op := range r.Ops {
		if op.Kind == KindCopy && op.End > baseLen {
			return seqmaperrors.NewRecipeError(r.path, i, "end",
				fmt.Errorf("end %d exceeds base length %d", op.End, baseLen))
		}
	}
	return nil
}

// Compile replays the recipe into segments against a base text. Text
// ops become synthetic prefixes attached to the following copy, or a
// trailing marker pinned at the last copied offset.
func (r *Recipe) Compile(base *sequence.Base) ([]sequence.Sequence, error) {
	if err := r.checkBounds(base.Len()); err != nil {
		return nil, err
	}

	b := sequence.NewSegmentBuilder()
	for _, op := range r.Ops {
		switch op.Kind {
		case KindCopy:
			b.AppendBase(op.Start, op.End)
		case KindText:
			b.AppendText(op.Text)
		}
	}
	return b.Sequences(base), nil
}

// Apply compiles the recipe and merges the segments into a single
// provenance-preserving sequence.
func (r *Recipe) Apply(base *sequence.Base) (sequence.Sequence, error) {
	parts, err := r.Compile(base)
	if err != nil {
		return nil, err
	}
	return sequence.Merge(parts...), nil
}
