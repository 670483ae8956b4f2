package preset

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type rawTable struct {
	Version string   `yaml:"version"`
	Presets []Params `yaml:"presets"`
}

// Table maps every recognised Preset to its Params row.
type Table map[Preset]Params

// ErrDuplicatePreset is returned when a loaded table names the same preset
// twice.
var ErrDuplicatePreset = fmt.Errorf("hme/preset: duplicate preset entry")

// Default parses the embedded defaults.yaml into a Table. It panics only if
// the embedded file itself is malformed, which would be a build-time
// defect rather than a runtime condition callers need to handle.
func Default() Table {
	t, err := parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("hme/preset: embedded defaults.yaml is invalid: %v", err))
	}
	return t
}

// LoadFile reads and parses an override preset table from path, strictly
// rejecting unknown YAML fields so a typo'd key fails loudly instead of
// silently falling back to a zero value.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hme/preset: read %s: %w", path, err)
	}
	t, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("hme/preset: parse %s: %w", path, err)
	}
	return t, nil
}

func parse(data []byte) (Table, error) {
	var raw rawTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	t := make(Table, len(raw.Presets))
	for _, p := range raw.Presets {
		id, err := Parse(p.Name)
		if err != nil {
			return nil, err
		}
		if _, exists := t[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePreset, p.Name)
		}
		t[id] = p
	}
	return t, nil
}

// ErrPresetNotInTable is returned by Table.Get when the table has no row
// for the requested preset, e.g. an override file that dropped an entry.
var ErrPresetNotInTable = fmt.Errorf("hme/preset: preset not present in table")

// Get returns the Params row for p, or ErrPresetNotInTable.
func (t Table) Get(p Preset) (Params, error) {
	params, ok := t[p]
	if !ok {
		return Params{}, fmt.Errorf("%w: %s", ErrPresetNotInTable, p)
	}
	return params, nil
}
