package comparisons

import "palletrack/models"

// Compare computes destination - origin and auto-classifies the sign.
// A zero difference carries no type; damage/swap are never auto-assigned,
// they require a manual reclassification with a reason.
func Compare(originQty, destinationQty int64) (difference int64, diffType string) {
	difference = destinationQty - originQty
	switch {
	case difference < 0:
		diffType = models.DiffShortage
	case difference > 0:
		diffType = models.DiffOverage
	}
	return difference, diffType
}

// IsCritical reports whether a difference magnitude meets the threshold.
// The boundary is inclusive: |difference| == threshold is critical.
func IsCritical(difference, threshold int64) bool {
	return abs(difference) >= threshold
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
