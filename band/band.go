// Package band holds the static frequency table: which LTE downlink ranges are
// assigned to which provider in which regulatory region.
package band

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Provider string

const (
	ProviderA1      Provider = "A1"
	ProviderMagenta Provider = "Magenta"
	ProviderDrei    Provider = "Drei"
)

// Providers lists every known operator label.
var Providers = []Provider{ProviderA1, ProviderMagenta, ProviderDrei}

func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Band is a contiguous downlink frequency range assigned to one provider.
type Band struct {
	Region   string   `json:"region,omitempty" yaml:"region,omitempty"`
	Provider Provider `json:"provider" yaml:"provider"`
	// Start is the lower frequency boundary in Hz.
	Start int64 `json:"start" yaml:"start"`
	// End is the upper frequency boundary in Hz.
	End int64 `json:"end" yaml:"end"`
}

// Key identifies the band within a scan. It doubles as the name of the band's
// output directory.
func (b Band) Key() string {
	return fmt.Sprintf("%s_%d_%d", b.Provider, b.Start, b.End)
}

func (b Band) String() string {
	return fmt.Sprintf("%s %.1f-%.1f MHz", b.Provider, float64(b.Start)/1e6, float64(b.End)/1e6)
}

// Contains reports whether freq (Hz) lies within the band, boundaries included.
func (b Band) Contains(freq int64) bool {
	return freq >= b.Start && freq <= b.End
}

// Overlaps reports whether the two ranges share more than a boundary.
func (b Band) Overlaps(o Band) bool {
	return b.Start < o.End && o.Start < b.End
}

func (b Band) validate() error {
	if !b.Provider.Valid() {
		return fmt.Errorf("unknown provider %q (known: %s)", b.Provider, providerList())
	}
	if b.Start <= 0 || b.Start >= b.End {
		return fmt.Errorf("invalid range %d-%d Hz: start must be positive and below end", b.Start, b.End)
	}
	return nil
}

func providerList() string {
	names := make([]string, len(Providers))
	for i, p := range Providers {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// Region groups the bands of one regulatory coverage area.
type Region struct {
	ID    string `json:"id"`
	Bands []Band `json:"bands"`
}

// Table maps region identifiers to their bands. A Table is read-only once built.
type Table struct {
	regions []Region
	index   map[string]int
}

// UnknownRegionError is returned when a requested region is not part of the table.
type UnknownRegionError struct {
	Regions []string
	Known   []string
}

func (e *UnknownRegionError) Error() string {
	return fmt.Sprintf("unknown region(s) %s (known: %s)", strings.Join(e.Regions, ", "), strings.Join(e.Known, ", "))
}

// New builds a table from the given regions, keeping their declared order.
func New(regions ...Region) (*Table, error) {
	t := &Table{index: map[string]int{}}
	for _, r := range regions {
		if r.ID == "" {
			return nil, fmt.Errorf("region without id")
		}
		if _, ok := t.index[r.ID]; ok {
			return nil, fmt.Errorf("region %q declared twice", r.ID)
		}
		bands := make([]Band, len(r.Bands))
		for i, b := range r.Bands {
			if err := b.validate(); err != nil {
				return nil, fmt.Errorf("region %q band %d: %w", r.ID, i, err)
			}
			b.Region = r.ID
			bands[i] = b
		}
		t.index[r.ID] = len(t.regions)
		t.regions = append(t.regions, Region{ID: r.ID, Bands: bands})
	}
	return t, nil
}

// Load reads a table from a JSON file of the form
//
//	{"regions": [{"id": "national", "bands": [{"provider": "A1", "start": 801000000, "end": 811000000}]}]}
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read band table %q: %w", path, err)
	}
	var doc struct {
		Regions []Region `json:"regions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse band table %q: %w", path, err)
	}
	t, err := New(doc.Regions...)
	if err != nil {
		return nil, fmt.Errorf("invalid band table %q: %w", path, err)
	}
	return t, nil
}

// Regions returns the region identifiers in declared order.
func (t *Table) Regions() []string {
	ids := make([]string, len(t.regions))
	for i, r := range t.regions {
		ids[i] = r.ID
	}
	return ids
}

// BandsFor returns the bands of all requested regions. Regions are visited in the
// requested order and bands keep the order they were declared in, so output stays
// grouped by provider rather than sorted by frequency.
func (t *Table) BandsFor(regions []string) ([]Band, error) {
	var unknown []string
	for _, id := range regions {
		if _, ok := t.index[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownRegionError{Regions: unknown, Known: t.Regions()}
	}

	var bands []Band
	for _, id := range regions {
		bands = append(bands, t.regions[t.index[id]].Bands...)
	}
	return bands, nil
}
