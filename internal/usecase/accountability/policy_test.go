package accountability

import "testing"

func TestSuccessRate(t *testing.T) {
	cases := []struct {
		completed, defaulted int
		want                 float64
	}{
		{0, 0, 100},
		{8, 2, 80},
		{2, 1, 200.0 / 3},
		{0, 1, 0},
		{5, 0, 100},
	}
	for _, tc := range cases {
		if got := SuccessRate(tc.completed, tc.defaulted); got != tc.want {
			t.Errorf("SuccessRate(%d, %d) = %v, want %v", tc.completed, tc.defaulted, got, tc.want)
		}
	}
}

func TestMultiplierSteps(t *testing.T) {
	cases := map[float64]float64{
		100: 1.00, 99.9: 0.90, 80: 0.90, 79.99: 0.75, 60: 0.75,
		59: 0.55, 40: 0.55, 39.9: 0.35, 0: 0.35,
	}
	for rate, want := range cases {
		if got := Multiplier(rate); got != want {
			t.Errorf("Multiplier(%v) = %v, want %v", rate, got, want)
		}
	}
}

func TestApplyMultiplier(t *testing.T) {
	cases := []struct {
		strength int
		rate     float64
		want     int
	}{
		{8, 200.0 / 3, 6},
		{5, 0, 2},
		{10, 80, 9},
		{5, 80, 5}, // 4.5 rounds half away from zero
		{1, 0, 1},  // clamped at the floor
		{10, 100, 10},
		{12, 100, 10},
	}
	for _, tc := range cases {
		if got := ApplyMultiplier(tc.strength, tc.rate); got != tc.want {
			t.Errorf("ApplyMultiplier(%d, %v) = %d, want %d", tc.strength, tc.rate, got, tc.want)
		}
	}
}
