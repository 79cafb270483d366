package world

import "testing"

func TestProvinceName(t *testing.T) {
	tests := []struct {
		id       int
		expected string
	}{
		{BarbarianID, "Barbarian"},
		{1, "Achaea"},
		{27, "Italia"},
		{ProvinceMax, "Thracia"},
		{ProvinceMax + 1, "Unknown"},
		{-1, "Unknown"},
	}
	for _, tc := range tests {
		if got := ProvinceName(tc.id); got != tc.expected {
			t.Errorf("ProvinceName(%d) = %q, want %q", tc.id, got, tc.expected)
		}
	}
}

func TestHeightBands(t *testing.T) {
	bands := []int{WaterLevel, CoastMax, FlatlandMax, HillMax, MountainMax, HighPeakMax, MaxHeight}
	for i := 1; i < len(bands); i++ {
		if bands[i] <= bands[i-1] {
			t.Errorf("band %d (%d) not above band %d (%d)", i, bands[i], i-1, bands[i-1])
		}
	}
}
