package risk

import (
	"fmt"

	"grc-platform/internal/apperr"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Band is the qualitative severity of a risk score.
type Band string

const (
	BandLow      Band = "low"
	BandMedium   Band = "medium"
	BandHigh     Band = "high"
	BandCritical Band = "critical"
)

// Lower bounds of each band over the 1..25 score range.
// This is the only band table in the service; reports and the API both use it.
const (
	criticalFrom = 20
	highFrom     = 12
	mediumFrom   = 6
)

var ErrInvalidRating = fmt.Errorf("%w: likelihood and impact must be integers in [%d,%d]", apperr.ErrValidation, MinRating, MaxRating)

// Score multiplies likelihood by impact and classifies the product.
func Score(likelihood, impact int) (int, Band, error) {
	if !validRating(likelihood) || !validRating(impact) {
		return 0, "", ErrInvalidRating
	}
	s := likelihood * impact
	return s, ClassifyScore(s), nil
}

// ClassifyScore maps a stored score to its band.
// Scores below 1 never come out of Score; they classify as low.
func ClassifyScore(score int) Band {
	switch {
	case score >= criticalFrom:
		return BandCritical
	case score >= highFrom:
		return BandHigh
	case score >= mediumFrom:
		return BandMedium
	default:
		return BandLow
	}
}

// Bands lists bands from least to most severe.
func Bands() []Band {
	return []Band{BandLow, BandMedium, BandHigh, BandCritical}
}

func validRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}
