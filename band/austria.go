package band

const mhz = 1_000_000

// austria holds the LTE downlink assignments published by the Austrian regulator
// (RTR). The national region carries the FDD bands, the numbered regions the
// regionally licensed 3.4-3.8 GHz blocks.
var austria = []Region{
	{
		ID: "national",
		Bands: []Band{
			{Provider: ProviderA1, Start: 801 * mhz, End: 811 * mhz},
			{Provider: ProviderA1, Start: 935 * mhz, End: 950 * mhz},
			{Provider: ProviderA1, Start: 1805 * mhz, End: 1840 * mhz},
			{Provider: ProviderA1, Start: 2110 * mhz, End: 2130 * mhz},
			{Provider: ProviderA1, Start: 2620 * mhz, End: 2640 * mhz},
			{Provider: ProviderMagenta, Start: 811 * mhz, End: 821 * mhz},
			{Provider: ProviderMagenta, Start: 925 * mhz, End: 935 * mhz},
			{Provider: ProviderMagenta, Start: 1840 * mhz, End: 1860 * mhz},
			{Provider: ProviderMagenta, Start: 2130 * mhz, End: 2150 * mhz},
			{Provider: ProviderMagenta, Start: 2640 * mhz, End: 2665 * mhz},
			{Provider: ProviderDrei, Start: 791 * mhz, End: 801 * mhz},
			{Provider: ProviderDrei, Start: 950 * mhz, End: 960 * mhz},
			{Provider: ProviderDrei, Start: 1860 * mhz, End: 1880 * mhz},
			{Provider: ProviderDrei, Start: 2150 * mhz, End: 2170 * mhz},
			{Provider: ProviderDrei, Start: 2665 * mhz, End: 2690 * mhz},
		},
	},
	{
		// Wien
		ID: "A01",
		Bands: []Band{
			{Provider: ProviderDrei, Start: 3410 * mhz, End: 3460 * mhz},
			{Provider: ProviderMagenta, Start: 3460 * mhz, End: 3510 * mhz},
		},
	},
	{
		// Niederösterreich, Burgenland
		ID: "A02",
		Bands: []Band{
			{Provider: ProviderA1, Start: 3510 * mhz, End: 3560 * mhz},
			{Provider: ProviderDrei, Start: 3560 * mhz, End: 3610 * mhz},
		},
	},
	{
		// Oberösterreich
		ID: "A03",
		Bands: []Band{
			{Provider: ProviderMagenta, Start: 3610 * mhz, End: 3660 * mhz},
			{Provider: ProviderA1, Start: 3660 * mhz, End: 3710 * mhz},
		},
	},
}

// Default returns the built-in table.
func Default() *Table {
	t, err := New(austria...)
	if err != nil {
		panic("band: built-in table is invalid: " + err.Error())
	}
	return t
}
