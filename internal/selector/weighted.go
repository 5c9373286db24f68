package selector

import (
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/shopspring/decimal"
)

// weightScale is the resolution of decimal weights (1/10000).
const weightScale = 4

func scaledWeight(w decimal.Decimal) int64 {
	if !w.IsPositive() {
		return 0
	}
	return w.Shift(weightScale).IntPart()
}

// PickWeighted returns the index of an item chosen with probability
// proportional to its weight. Items with a non-positive weight never win.
func PickWeighted[T any](items []T, weight func(T) decimal.Decimal, src Source) (int, error) {
	var total int64
	for _, it := range items {
		total += scaledWeight(weight(it))
	}
	if total <= 0 {
		return -1, errors.New(errors.ErrCodeNoEligiblePrizes, "no eligible prizes")
	}

	idx, err := src.Int63n(total)
	if err != nil {
		return -1, err
	}

	var cum int64
	for i, it := range items {
		w := scaledWeight(weight(it))
		if w == 0 {
			continue
		}
		cum += w
		if idx < cum {
			return i, nil
		}
	}
	return -1, errors.New(errors.ErrCodeInternalError, "weighted draw out of range")
}

// Probabilities returns each item's share of the total weight.
func Probabilities[T any](items []T, weight func(T) decimal.Decimal) []float64 {
	out := make([]float64, len(items))
	var total int64
	for _, it := range items {
		total += scaledWeight(weight(it))
	}
	if total == 0 {
		return out
	}
	for i, it := range items {
		out[i] = float64(scaledWeight(weight(it))) / float64(total)
	}
	return out
}
