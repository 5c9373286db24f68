package services

import (
	"sort"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/shopspring/decimal"
)

// Odds returns the indicative pari-mutuel odds of an option:
// pool × (1 − fee) / optionStake. Odds move with every bet and are never
// locked in. It returns nil when nobody has backed the option.
func Odds(pool, optionStake int64, fee decimal.Decimal) *decimal.Decimal {
	if optionStake <= 0 {
		return nil
	}
	o := decimal.NewFromInt(pool).
		Mul(decimal.NewFromInt(1).Sub(fee)).
		Div(decimal.NewFromInt(optionStake)).
		Round(4)
	return &o
}

// StakedBet is the part of a bet settlement looks at.
type StakedBet struct {
	ID       uint
	OptionID uint
	Stake    int64
}

// BetPayout is the settlement of one bet.
type BetPayout struct {
	BetID  uint
	Status string
	Amount int64
}

// ComputePayouts settles bets for the winning options. Each winner gets
// floor(stake × pool × (1 − fee) / winningStake). When no stake is on any
// winning option every bet is refunded.
func ComputePayouts(bets []StakedBet, winners []uint, fee decimal.Decimal) ([]BetPayout, models.Settlement) {
	isWinner := make(map[uint]bool, len(winners))
	for _, w := range winners {
		isWinner[w] = true
	}

	var pool, winning int64
	for _, b := range bets {
		pool += b.Stake
		if isWinner[b.OptionID] {
			winning += b.Stake
		}
	}

	summary := models.Settlement{
		WinnerOptionIDs: sortedIDs(winners),
		TotalPool:       pool,
		WinningStake:    winning,
	}
	payouts := make([]BetPayout, len(bets))

	if winning == 0 {
		for i, b := range bets {
			payouts[i] = BetPayout{BetID: b.ID, Status: models.BetStatusRefunded, Amount: b.Stake}
			summary.TotalPayout += b.Stake
			summary.RefundCount++
		}
		return payouts, summary
	}

	// Scale the fee to an integer so the division is exact before flooring.
	keep := decimal.NewFromInt(1).Sub(fee).Shift(4)
	distributable := decimal.NewFromInt(pool).Mul(keep)
	den := decimal.NewFromInt(winning).Shift(4)
	summary.Distributable = distributable.Shift(-4).Floor().IntPart()

	for i, b := range bets {
		if !isWinner[b.OptionID] {
			payouts[i] = BetPayout{BetID: b.ID, Status: models.BetStatusLost}
			summary.LoserCount++
			continue
		}
		q, _ := decimal.NewFromInt(b.Stake).Mul(distributable).QuoRem(den, 0)
		amount := q.IntPart()
		payouts[i] = BetPayout{BetID: b.ID, Status: models.BetStatusWon, Amount: amount}
		summary.TotalPayout += amount
		summary.WinnerCount++
	}
	return payouts, summary
}

func sortedIDs(ids []uint) []uint {
	out := append([]uint(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sameIDs(a, b []uint) bool {
	a, b = sortedIDs(a), sortedIDs(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
