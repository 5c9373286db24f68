package selector

import (
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/shopspring/decimal"
)

// probabilityScale is the resolution of fixed probabilities (1e-6).
const probabilityScale = 6

// NoWin is returned by PickFixed for the losing outcome.
const NoWin = -1

// PickFixed draws against a table of independent fixed probabilities. The
// mass left over after all entries is the losing outcome.
func PickFixed(probs []decimal.Decimal, src Source) (int, error) {
	const resolution = 1_000_000

	var total int64
	scaled := make([]int64, len(probs))
	for i, p := range probs {
		if p.IsNegative() {
			return NoWin, errors.New(errors.ErrCodeValidation, "probability must not be negative")
		}
		scaled[i] = p.Shift(probabilityScale).IntPart()
		total += scaled[i]
	}
	if total > resolution {
		return NoWin, errors.New(errors.ErrCodeValidation, "probabilities sum to more than 1")
	}

	idx, err := src.Int63n(resolution)
	if err != nil {
		return NoWin, err
	}
	var cum int64
	for i, s := range scaled {
		cum += s
		if idx < cum {
			return i, nil
		}
	}
	return NoWin, nil
}
