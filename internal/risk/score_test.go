package risk

import (
	"errors"
	"testing"

	"grc-platform/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		likelihood int
		impact     int
		score      int
		band       Band
	}{
		{"maximum", 5, 5, 25, BandCritical},
		{"minimum", 1, 1, 1, BandLow},
		{"high lower bound", 3, 4, 12, BandHigh},
		{"critical lower bound", 4, 5, 20, BandCritical},
		{"medium lower bound", 2, 3, 6, BandMedium},
		{"low upper bound", 1, 5, 5, BandLow},
		{"high upper bound", 4, 4, 16, BandHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, band, err := Score(tt.likelihood, tt.impact)
			require.NoError(t, err)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, tt.band, band)
		})
	}
}

func TestScore_ProductOverWholeGrid(t *testing.T) {
	for l := MinRating; l <= MaxRating; l++ {
		for i := MinRating; i <= MaxRating; i++ {
			score, band, err := Score(l, i)
			require.NoError(t, err)
			require.Equal(t, l*i, score)
			require.GreaterOrEqual(t, score, 1)
			require.LessOrEqual(t, score, 25)

			_, swapped, _ := Score(i, l)
			require.Equal(t, band, swapped, "band must depend only on the product (%d,%d)", l, i)
		}
	}
}

func TestClassifyScore_TotalOverRange(t *testing.T) {
	want := map[Band]int{BandLow: 5, BandMedium: 6, BandHigh: 8, BandCritical: 6}
	got := map[Band]int{}
	for s := 1; s <= 25; s++ {
		got[ClassifyScore(s)]++
	}
	assert.Equal(t, want, got)
}

func TestScore_RejectsOutOfRange(t *testing.T) {
	for _, in := range [][2]int{{0, 3}, {3, 0}, {6, 1}, {1, 6}, {-1, -1}} {
		_, _, err := Score(in[0], in[1])
		if !errors.Is(err, ErrInvalidRating) || !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("Score(%d,%d): expected ErrInvalidRating, got %v", in[0], in[1], err)
		}
	}
}
