package accountability

import (
	"math"

	"peerlend-backend/internal/domain/backing"
)

// SuccessRate is completed/(completed+defaulted) as a percentage, 100 when
// the backer has no outcomes yet.
func SuccessRate(completed, defaulted int) float64 {
	total := completed + defaulted
	if total <= 0 {
		return 100
	}
	return float64(completed) * 100 / float64(total)
}

// Multiplier is the monotonic step function applied to backing strength.
func Multiplier(rate float64) float64 {
	switch {
	case rate >= 100:
		return 1.00
	case rate >= 80:
		return 0.90
	case rate >= 60:
		return 0.75
	case rate >= 40:
		return 0.55
	default:
		return 0.35
	}
}

// ApplyMultiplier scales strength by the rate's multiplier, rounds to the
// nearest integer and clamps to the allowed range.
func ApplyMultiplier(strength int, rate float64) int {
	return clampStrength(int(math.Round(float64(strength) * Multiplier(rate))))
}

func clampStrength(s int) int {
	if s < backing.MinStrength {
		return backing.MinStrength
	}
	if s > backing.MaxStrength {
		return backing.MaxStrength
	}
	return s
}

func roundRate(rate float64) float64 { return math.Round(rate*100) / 100 }
