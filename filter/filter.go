package filter

import "github.com/hb9tf/cellscan/band"

type Filterer interface {
	ShouldIgnore(*band.Band) bool
}

// Filter returns the bands no filter wants to ignore, keeping their order.
func Filter(input []band.Band, filters []Filterer) []band.Band {
	var output []band.Band
	for _, b := range input {
		skip := false
		for _, f := range filters {
			if f.ShouldIgnore(&b) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		output = append(output, b)
	}
	return output
}

// FilterFreq keeps bands that intersect [FreqLow, FreqHigh]. A zero bound is open.
type FilterFreq struct {
	FreqHigh int64
	FreqLow  int64
}

func (f *FilterFreq) ShouldIgnore(b *band.Band) bool {
	// Check if low freq of band is higher than what we want to include.
	if f.FreqHigh > 0 && b.Start > f.FreqHigh {
		return true
	}
	// Check if high freq of band is lower than what we want to include.
	if f.FreqLow > 0 && b.End < f.FreqLow {
		return true
	}
	return false
}

// FilterProvider keeps bands of the listed providers. An empty list keeps all.
type FilterProvider struct {
	Providers []band.Provider
}

func (f *FilterProvider) ShouldIgnore(b *band.Band) bool {
	if len(f.Providers) == 0 {
		return false
	}
	for _, p := range f.Providers {
		if p == b.Provider {
			return false
		}
	}
	return true
}
