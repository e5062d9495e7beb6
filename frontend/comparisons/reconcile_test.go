package comparisons

import (
	"testing"

	"palletrack/models"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		name     string
		origin   int64
		dest     int64
		wantDiff int64
		wantType string
	}{
		{"shortage", 10, 7, -3, models.DiffShortage},
		{"large shortage", 10, 0, -10, models.DiffShortage},
		{"overage", 5, 9, 4, models.DiffOverage},
		{"equal", 8, 8, 0, ""},
		{"both zero", 0, 0, 0, ""},
		{"zero origin overage", 0, 3, 3, models.DiffOverage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			diff, diffType := Compare(tc.origin, tc.dest)
			if diff != tc.wantDiff {
				t.Errorf("difference = %d, want %d", diff, tc.wantDiff)
			}
			if diffType != tc.wantType {
				t.Errorf("type = %q, want %q", diffType, tc.wantType)
			}
		})
	}
}

func TestIsCriticalBoundary(t *testing.T) {
	const threshold = 5
	cases := []struct {
		diff int64
		want bool
	}{
		{0, false},
		{4, false},
		{-4, false},
		{5, true},
		{-5, true},
		{6, true},
		{-8, true},
	}
	for _, tc := range cases {
		if got := IsCritical(tc.diff, threshold); got != tc.want {
			t.Errorf("IsCritical(%d, %d) = %v, want %v", tc.diff, threshold, got, tc.want)
		}
	}
}
