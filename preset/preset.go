// Package preset carries the quality-preset enumeration and per-preset
// search parameters, loadable from an embedded YAML default table or an
// override file.
package preset

import "fmt"

// Preset selects one row of the quality-preset table.
type Preset int

const (
	Pristine Preset = iota
	HighQuality
	MediumSpeed
	HighSpeed
	ExtremeSpeed
	ExtremeSpeed25
)

// names is ordered to match the Preset iota values above.
var names = [...]string{
	Pristine:       "pristine",
	HighQuality:    "high-quality",
	MediumSpeed:    "medium-speed",
	HighSpeed:      "high-speed",
	ExtremeSpeed:   "extreme-speed",
	ExtremeSpeed25: "extreme-speed-25",
}

// String returns the preset's canonical lowercase-hyphenated name.
func (p Preset) String() string {
	if int(p) < 0 || int(p) >= len(names) {
		return fmt.Sprintf("preset(%d)", int(p))
	}
	return names[p]
}

// ErrUnknownPreset is returned by Parse for any name not in the table.
var ErrUnknownPreset = fmt.Errorf("hme/preset: unknown preset name")

// Parse resolves a preset name (as it appears in defaults.yaml or a CLI
// flag) to its Preset value.
func Parse(name string) (Preset, error) {
	for i, n := range names {
		if n == name {
			return Preset(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// GridKind mirrors internal/refine.GridKind's three values without
// importing internal/refine directly, so this package stays dependency-free
// of the search engine and only the hme root package needs to translate
// between the two.
type GridKind string

const (
	Grid9x9    GridKind = "grid9x9"
	Diamond5   GridKind = "diamond5"
	Rectangle9 GridKind = "rectangle9"
)

// Params is the full set of knobs one quality preset fixes: the search
// shape each stage uses (coarse step, refinement grid and iteration cap)
// and the per-stage candidate/merge limits.
type Params struct {
	Name string `yaml:"name"`

	CoarseStep          int32    `yaml:"coarse_step"`
	RefineGrid          GridKind `yaml:"refine_grid"`
	RefineMaxIterations int      `yaml:"refine_max_iterations"`

	FpelRefineCentres  int  `yaml:"fpel_refine_centres"`
	SubpelCandPerPart  int  `yaml:"subpel_cand_per_part"`
	SATDSubpel         bool `yaml:"satd_subpel"`
	MergeCands         int  `yaml:"merge_cands"`
	ActivePartsLimited bool `yaml:"active_parts_limited"`
}
