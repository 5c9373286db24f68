package selector

import (
	"sort"
	"strconv"

	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/shopspring/decimal"
)

// Rule types
const (
	RulePrimary = "primary"
	RuleBonus   = "bonus"
	RulePenalty = "penalty"
	RuleShield  = "shield"
)

// Combination modes
const (
	Additive       = "additive"
	Multiplicative = "multiplicative"
)

type Symbol struct {
	Key        string
	Weight     decimal.Decimal
	Multiplier decimal.Decimal
	IsJackpot  bool
}

// Rule matches a reel result.
//
// With a Pattern, Ordered rules require the reels to start with the pattern
// and unordered rules require the pattern as a sub-multiset of the reels. A
// single-symbol pattern with Count > 0 requires that symbol Count times. An
// empty Pattern matches when any symbol shows Count times.
//
// Penalty multipliers and fixed points are magnitudes; they are subtracted
// in additive mode and used as a factor in multiplicative mode. Probability
// gates every rule type; nil fires whenever the pattern matches. A primary
// whose gate fails gives way to the next matching primary.
type Rule struct {
	Name        string
	Type        string
	Pattern     []string
	Ordered     bool
	Count       int
	Multiplier  decimal.Decimal
	FixedPoints int64
	Probability *decimal.Decimal
	Priority    int
}

// Combination controls how fired rules become one multiplier.
type Combination struct {
	Mode                 string
	ClampMin             *decimal.Decimal
	ClampMax             *decimal.Decimal
	ShieldCancelsPenalty bool
}

// Outcome is the evaluation of one spin.
type Outcome struct {
	Primary     *Rule
	Fired       []Rule
	Multiplier  decimal.Decimal
	FixedPoints int64
}

// SpinReels draws n independent symbols by weight.
func SpinReels(symbols []Symbol, n int, src Source) ([]string, error) {
	if n <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "reel count must be positive")
	}
	reels := make([]string, n)
	for i := range reels {
		idx, err := PickWeighted(symbols, func(s Symbol) decimal.Decimal { return s.Weight }, src)
		if err != nil {
			return nil, err
		}
		reels[i] = symbols[idx].Key
	}
	return reels, nil
}

func counts(reels []string) map[string]int {
	c := make(map[string]int, len(reels))
	for _, k := range reels {
		c[k]++
	}
	return c
}

// Matches reports whether the rule's pattern is satisfied by reels.
func (r *Rule) Matches(reels []string) bool {
	c := counts(reels)

	if len(r.Pattern) == 0 {
		need := r.Count
		if need <= 0 {
			need = len(reels)
		}
		for _, n := range c {
			if n >= need {
				return true
			}
		}
		return false
	}

	if len(r.Pattern) == 1 && r.Count > 0 {
		return c[r.Pattern[0]] >= r.Count
	}

	if len(r.Pattern) > len(reels) {
		return false
	}
	if r.Ordered {
		for i, k := range r.Pattern {
			if reels[i] != k {
				return false
			}
		}
		return true
	}
	for k, n := range counts(r.Pattern) {
		if c[k] < n {
			return false
		}
	}
	return true
}

// SortRules orders rules by descending priority, keeping configured order
// among equal priorities.
func SortRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

const gateResolution = 10_000

func fires(r *Rule, src Source) (bool, error) {
	if r.Probability == nil {
		return true, nil
	}
	p := r.Probability.Shift(4).IntPart()
	if p <= 0 {
		return false, nil
	}
	if p >= gateResolution {
		return true, nil
	}
	n, err := src.Int63n(gateResolution)
	if err != nil {
		return false, err
	}
	return n < p, nil
}

// Evaluate selects the highest-priority primary rule that matches and passes
// its gate, and samples every matching modifier rule against its probability.
func Evaluate(reels []string, rules []Rule, comb Combination, src Source) (*Outcome, error) {
	out := &Outcome{}
	var modifiers []Rule
	for _, r := range SortRules(rules) {
		r := r
		if !r.Matches(reels) {
			continue
		}
		switch r.Type {
		case RulePrimary:
			if out.Primary != nil {
				continue
			}
			ok, err := fires(&r, src)
			if err != nil {
				return nil, err
			}
			if ok {
				out.Primary = &r
			}
		case RuleBonus, RulePenalty, RuleShield:
			ok, err := fires(&r, src)
			if err != nil {
				return nil, err
			}
			if ok {
				modifiers = append(modifiers, r)
			}
		default:
			return nil, errors.New(errors.ErrCodeValidation, "unknown rule type "+r.Type)
		}
	}

	if out.Primary != nil {
		out.Fired = append(out.Fired, *out.Primary)
	}
	out.Fired = append(out.Fired, modifiers...)
	out.Multiplier, out.FixedPoints = Combine(out.Primary, modifiers, comb)
	return out, nil
}

// Combine folds the primary rule and fired modifiers into one multiplier
// and a fixed points adjustment.
func Combine(primary *Rule, modifiers []Rule, comb Combination) (decimal.Decimal, int64) {
	shielded := false
	if comb.ShieldCancelsPenalty {
		for _, m := range modifiers {
			if m.Type == RuleShield {
				shielded = true
				break
			}
		}
	}

	mult := decimal.Zero
	var fixed int64
	if primary != nil {
		mult = primary.Multiplier
		fixed = primary.FixedPoints
	}

	for _, m := range modifiers {
		switch m.Type {
		case RuleBonus:
			fixed += m.FixedPoints
			if comb.Mode == Multiplicative {
				if !m.Multiplier.IsZero() {
					mult = mult.Mul(m.Multiplier)
				}
			} else {
				mult = mult.Add(m.Multiplier)
			}
		case RulePenalty:
			if shielded {
				continue
			}
			fixed -= m.FixedPoints
			if comb.Mode == Multiplicative {
				if !m.Multiplier.IsZero() {
					mult = mult.Mul(m.Multiplier)
				}
			} else {
				mult = mult.Sub(m.Multiplier)
			}
		}
	}

	if comb.ClampMin != nil && mult.LessThan(*comb.ClampMin) {
		mult = *comb.ClampMin
	}
	if comb.ClampMax != nil && mult.GreaterThan(*comb.ClampMax) {
		mult = *comb.ClampMax
	}
	return mult, fixed
}

// DefaultRules builds the rule table used when none is configured: n of a
// kind pays the symbol multiplier, two of a kind pays twoKind.
func DefaultRules(symbols []Symbol, n int, twoKind decimal.Decimal) []Rule {
	rules := make([]Rule, 0, len(symbols)+1)
	for _, s := range symbols {
		if !s.Multiplier.IsPositive() {
			continue
		}
		rules = append(rules, Rule{
			Name:       s.Key + " x" + strconv.Itoa(n),
			Type:       RulePrimary,
			Pattern:    []string{s.Key},
			Count:      n,
			Multiplier: s.Multiplier,
			Priority:   100,
		})
	}
	if twoKind.IsPositive() && n > 2 {
		rules = append(rules, Rule{
			Name:       "two of a kind",
			Type:       RulePrimary,
			Count:      2,
			Multiplier: twoKind,
		})
	}
	return rules
}
