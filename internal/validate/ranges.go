package validate

import (
	_ "embed"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/neurotrace/internal/errors"
)

//go:embed ranges.yaml
var rangesYAML []byte

// LabRange bounds one analyte. Values inside Reference are normal; values
// outside Plausible are almost certainly extraction or unit errors.
type LabRange struct {
	Names     []string   `yaml:"names"`
	Unit      string     `yaml:"unit"`
	Reference [2]float64 `yaml:"reference"`
	Plausible [2]float64 `yaml:"plausible"`
}

// DoseRange bounds a single adult dose in milligrams
type DoseRange struct {
	Names []string `yaml:"names"`
	MinMG float64  `yaml:"min_mg"`
	MaxMG float64  `yaml:"max_mg"`
}

// RangeTable holds the lab and medication bounds used by cross-validation
type RangeTable struct {
	Labs        []LabRange  `yaml:"labs"`
	Medications []DoseRange `yaml:"medications"`

	labIndex  map[string]*LabRange
	doseIndex map[string]*DoseRange
}

// ParseRangeTable decodes a range table document.
func ParseRangeTable(data []byte) (*RangeTable, error) {
	var t RangeTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "parse range table")
	}

	t.labIndex = make(map[string]*LabRange)
	for i := range t.Labs {
		r := &t.Labs[i]
		if r.Reference[0] > r.Reference[1] || r.Plausible[0] > r.Plausible[1] {
			return nil, errors.Newf("range table: inverted bounds for %v", r.Names)
		}
		for _, n := range r.Names {
			t.labIndex[strings.ToLower(n)] = r
		}
	}

	t.doseIndex = make(map[string]*DoseRange)
	for i := range t.Medications {
		r := &t.Medications[i]
		if r.MinMG > r.MaxMG {
			return nil, errors.Newf("range table: inverted dose bounds for %v", r.Names)
		}
		for _, n := range r.Names {
			t.doseIndex[strings.ToLower(n)] = r
		}
	}

	return &t, nil
}

var (
	defaultRangesOnce sync.Once
	defaultRanges     *RangeTable
)

// DefaultRanges returns the built-in range table. It is parsed once and never modified.
func DefaultRanges() *RangeTable {
	defaultRangesOnce.Do(func() {
		t, err := ParseRangeTable(rangesYAML)
		if err != nil {
			panic(err)
		}
		defaultRanges = t
	})
	return defaultRanges
}

// Lab looks up the range of an analyte by name.
func (t *RangeTable) Lab(name string) (*LabRange, bool) {
	r, ok := t.labIndex[strings.ToLower(strings.TrimSpace(name))]
	return r, ok
}

// Dose looks up the dose bounds of a medication by name. The first word of
// a name is tried too, so "dexamethasone sodium phosphate" still matches.
func (t *RangeTable) Dose(name string) (*DoseRange, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if r, ok := t.doseIndex[key]; ok {
		return r, true
	}
	if fields := strings.Fields(key); len(fields) > 1 {
		r, ok := t.doseIndex[fields[0]]
		return r, ok
	}
	return nil, false
}

// toMilligrams converts a dose to mg. Unknown units report false.
func toMilligrams(value float64, unit string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "mg":
		return value, true
	case "g", "gm", "gram", "grams":
		return value * 1000, true
	case "mcg", "µg", "ug", "microgram", "micrograms":
		return value / 1000, true
	}
	return 0, false
}
