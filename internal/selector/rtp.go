package selector

import (
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/shopspring/decimal"
)

// Enumeration bounds for TheoreticalRTP.
const (
	maxReelCombinations = 200_000
	maxGatedRules       = 12
)

// TheoreticalRTP returns the expected payout per point spent by exact
// enumeration of every reel result and every subset of gated rules.
// Negative results are counted as they are, before any balance clamp.
func TheoreticalRTP(symbols []Symbol, n int, rules []Rule, comb Combination, cost int64) (float64, error) {
	if cost <= 0 {
		return 0, errors.New(errors.ErrCodeValidation, "cost must be positive")
	}
	probs := Probabilities(symbols, func(s Symbol) decimal.Decimal { return s.Weight })

	var live []int
	combos := 1
	for i, p := range probs {
		if p > 0 {
			live = append(live, i)
		}
	}
	if len(live) == 0 {
		return 0, errors.New(errors.ErrCodeNoEligiblePrizes, "no enabled symbols")
	}
	for i := 0; i < n; i++ {
		combos *= len(live)
		if combos > maxReelCombinations {
			return 0, errors.New(errors.ErrCodeValidation, "too many reel combinations to enumerate")
		}
	}

	sortedRules := SortRules(rules)
	var expected float64
	idx := make([]int, n)
	reels := make([]string, n)
	for c := 0; c < combos; c++ {
		p := 1.0
		for i := range idx {
			s := live[idx[i]]
			reels[i] = symbols[s].Key
			p *= probs[s]
		}

		ev, err := expectedSpin(reels, sortedRules, comb, cost)
		if err != nil {
			return 0, err
		}
		expected += p * ev

		for i := n - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(live) {
				break
			}
			idx[i] = 0
		}
	}
	return expected / float64(cost), nil
}

// gateProbability is the chance a matching rule fires.
func gateProbability(r *Rule) float64 {
	if r.Probability == nil || r.Probability.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return 1
	}
	if !r.Probability.IsPositive() {
		return 0
	}
	return r.Probability.InexactFloat64()
}

type primaryChance struct {
	rule *Rule
	p    float64
}

func expectedSpin(reels []string, rules []Rule, comb Combination, cost int64) (float64, error) {
	var primaries []primaryChance
	var gated []Rule
	var always []Rule
	passed := 1.0
	for i := range rules {
		r := rules[i]
		if !r.Matches(reels) {
			continue
		}
		gp := gateProbability(&r)
		if r.Type == RulePrimary {
			if passed > 0 && gp > 0 {
				primaries = append(primaries, primaryChance{rule: &rules[i], p: passed * gp})
				passed *= 1 - gp
			}
			continue
		}
		switch {
		case gp >= 1:
			always = append(always, r)
		case gp > 0:
			gated = append(gated, r)
		}
	}
	if passed > 0 {
		primaries = append(primaries, primaryChance{p: passed})
	}
	if len(gated) > maxGatedRules {
		return 0, errors.New(errors.ErrCodeValidation, "too many probabilistic rules to enumerate")
	}

	var ev float64
	for mask := 0; mask < 1<<len(gated); mask++ {
		p := 1.0
		mods := append([]Rule(nil), always...)
		for i, g := range gated {
			gp := gateProbability(&g)
			if mask&(1<<i) != 0 {
				p *= gp
				mods = append(mods, g)
			} else {
				p *= 1 - gp
			}
		}
		for _, pc := range primaries {
			mult, fixed := Combine(pc.rule, mods, comb)
			payout := mult.Mul(decimal.NewFromInt(cost)).Floor().IntPart() + fixed
			ev += p * pc.p * float64(payout)
		}
	}
	return ev, nil
}
