package band

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		Region{ID: "A", Bands: []Band{
			{Provider: ProviderA1, Start: 720 * mhz, End: 730 * mhz},
			{Provider: ProviderA1, Start: 700 * mhz, End: 710 * mhz},
		}},
		Region{ID: "B", Bands: []Band{
			{Provider: ProviderDrei, Start: 800 * mhz, End: 810 * mhz},
		}},
		Region{ID: "C", Bands: []Band{
			{Provider: ProviderMagenta, Start: 900 * mhz, End: 910 * mhz},
		}},
	)
	require.NoError(t, err)
	return tbl
}

func TestBandsForKeepsDeclaredOrder(t *testing.T) {
	tbl := testTable(t)

	bands, err := tbl.BandsFor([]string{"C", "A"})
	require.NoError(t, err)
	require.Len(t, bands, 3)

	assert.Equal(t, "C", bands[0].Region)
	assert.Equal(t, int64(900*mhz), bands[0].Start)
	// Not sorted by frequency.
	assert.Equal(t, int64(720*mhz), bands[1].Start)
	assert.Equal(t, int64(700*mhz), bands[2].Start)
	for _, b := range bands {
		assert.NotEqual(t, "B", b.Region)
	}
}

func TestBandsForUnknownRegion(t *testing.T) {
	tbl := testTable(t)

	_, err := tbl.BandsFor([]string{"A", "X", "Y"})
	var unknown *UnknownRegionError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []string{"X", "Y"}, unknown.Regions)
	assert.Equal(t, []string{"A", "B", "C"}, unknown.Known)
}

func TestNewRejectsInvalidBands(t *testing.T) {
	tests := []struct {
		name   string
		region Region
	}{
		{"unknown provider", Region{ID: "A", Bands: []Band{{Provider: "Acme", Start: 1, End: 2}}}},
		{"inverted range", Region{ID: "A", Bands: []Band{{Provider: ProviderA1, Start: 20, End: 10}}}},
		{"empty range", Region{ID: "A", Bands: []Band{{Provider: ProviderA1, Start: 10, End: 10}}}},
		{"missing id", Region{Bands: []Band{{Provider: ProviderA1, Start: 10, End: 20}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.region)
			assert.Error(t, err)
		})
	}

	_, err := New(Region{ID: "A"}, Region{ID: "A"})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bands.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"regions": [
		{"id": "test", "bands": [
			{"provider": "Drei", "start": 791000000, "end": 801000000},
			{"provider": "A1", "start": 801000000, "end": 811000000}
		]}
	]}`), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"test"}, tbl.Regions())

	bands, err := tbl.BandsFor([]string{"test"})
	require.NoError(t, err)
	require.Len(t, bands, 2)
	assert.Equal(t, "Drei_791000000_801000000", bands[0].Key())
	assert.Equal(t, "test", bands[1].Region)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bands.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"regions": [{"id": "x", "bands": [{"provider": "Other", "start": 1, "end": 2}]}]}`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown provider")
}

func TestDefaultTable(t *testing.T) {
	tbl := Default()
	assert.Equal(t, []string{"national", "A01", "A02", "A03"}, tbl.Regions())

	bands, err := tbl.BandsFor(tbl.Regions())
	require.NoError(t, err)
	for i, a := range bands {
		for _, b := range bands[i+1:] {
			if a.Provider == b.Provider {
				assert.False(t, a.Overlaps(b), "%s overlaps %s", a, b)
			}
		}
	}
}

func TestOverlaps(t *testing.T) {
	a := Band{Provider: ProviderA1, Start: 100, End: 200}
	assert.True(t, a.Overlaps(Band{Start: 150, End: 250}))
	assert.True(t, a.Overlaps(Band{Start: 120, End: 130}))
	assert.False(t, a.Overlaps(Band{Start: 200, End: 300}))
	assert.True(t, a.Contains(200))
	assert.False(t, a.Contains(201))
}
