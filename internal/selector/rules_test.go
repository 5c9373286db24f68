package selector

import (
	"math"
	"testing"
)

func TestRule_Matches(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		reels []string
		want  bool
	}{
		{name: "Wildcard three of a kind", rule: Rule{Count: 3}, reels: []string{"a", "a", "a"}, want: true},
		{name: "Wildcard default count is reel count", rule: Rule{}, reels: []string{"a", "a", "b"}, want: false},
		{name: "Wildcard two of a kind", rule: Rule{Count: 2}, reels: []string{"b", "a", "b"}, want: true},
		{name: "Single symbol count", rule: Rule{Pattern: []string{"seven"}, Count: 2}, reels: []string{"seven", "a", "seven"}, want: true},
		{name: "Single symbol count short", rule: Rule{Pattern: []string{"seven"}, Count: 3}, reels: []string{"seven", "a", "seven"}, want: false},
		{name: "Single symbol presence", rule: Rule{Pattern: []string{"bell"}}, reels: []string{"a", "bell", "c"}, want: true},
		{name: "Ordered prefix", rule: Rule{Pattern: []string{"j", "n", "t"}, Ordered: true}, reels: []string{"j", "n", "t", "m"}, want: true},
		{name: "Ordered wrong order", rule: Rule{Pattern: []string{"j", "n", "t"}, Ordered: true}, reels: []string{"n", "j", "t", "m"}, want: false},
		{name: "Unordered multiset", rule: Rule{Pattern: []string{"j", "n", "t"}}, reels: []string{"t", "m", "n", "j"}, want: true},
		{name: "Unordered needs multiplicity", rule: Rule{Pattern: []string{"a", "a"}}, reels: []string{"a", "b", "c"}, want: false},
		{name: "Pattern longer than reels", rule: Rule{Pattern: []string{"a", "b", "c", "d"}}, reels: []string{"a", "b", "c"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(tt.reels); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_PriorityAndTies(t *testing.T) {
	rules := []Rule{
		{Name: "pair", Type: RulePrimary, Count: 2, Multiplier: dec("1.5")},
		{Name: "triple seven", Type: RulePrimary, Pattern: []string{"7"}, Count: 3, Multiplier: dec("50"), Priority: 100},
		{Name: "triple any", Type: RulePrimary, Count: 3, Multiplier: dec("10"), Priority: 100},
	}

	out, err := Evaluate([]string{"7", "7", "7"}, rules, Combination{Mode: Additive}, &seqSource{vals: []int64{0}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if out.Primary == nil || out.Primary.Name != "triple seven" {
		t.Fatalf("Primary = %+v, want triple seven (first of equal priority)", out.Primary)
	}
	if !out.Multiplier.Equal(dec("50")) {
		t.Errorf("Multiplier = %s, want 50", out.Multiplier)
	}

	out, err = Evaluate([]string{"a", "7", "a"}, rules, Combination{Mode: Additive}, &seqSource{vals: []int64{0}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if out.Primary == nil || out.Primary.Name != "pair" {
		t.Errorf("Primary = %+v, want pair", out.Primary)
	}
}

func TestEvaluate_ProbabilityGate(t *testing.T) {
	rules := []Rule{
		{Name: "triple", Type: RulePrimary, Count: 3, Multiplier: dec("10")},
		{Name: "lawyer letter", Type: RulePenalty, Pattern: []string{"x"}, Multiplier: dec("2"), Probability: decPtr("0.3")},
	}
	reels := []string{"x", "x", "x"}

	tests := []struct {
		name string
		draw int64
		want string
	}{
		{name: "Gate passes", draw: 2999, want: "8"},
		{name: "Gate fails", draw: 3000, want: "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Evaluate(reels, rules, Combination{Mode: Additive}, &seqSource{vals: []int64{tt.draw}})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if !out.Multiplier.Equal(dec(tt.want)) {
				t.Errorf("Multiplier = %s, want %s", out.Multiplier, tt.want)
			}
		})
	}
}

func TestEvaluate_PrimaryGate(t *testing.T) {
	rules := []Rule{
		{Name: "lucky triple", Type: RulePrimary, Count: 3, Multiplier: dec("50"), Probability: decPtr("0.1"), Priority: 10},
		{Name: "triple", Type: RulePrimary, Count: 3, Multiplier: dec("5")},
	}
	reels := []string{"x", "x", "x"}

	tests := []struct {
		name        string
		draw        int64
		wantPrimary string
		wantMult    string
	}{
		{name: "Gate passes", draw: 999, wantPrimary: "lucky triple", wantMult: "50"},
		{name: "Gate fails falls through", draw: 1000, wantPrimary: "triple", wantMult: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Evaluate(reels, rules, Combination{Mode: Additive}, &seqSource{vals: []int64{tt.draw}})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if out.Primary == nil || out.Primary.Name != tt.wantPrimary {
				t.Fatalf("Primary = %+v, want %s", out.Primary, tt.wantPrimary)
			}
			if !out.Multiplier.Equal(dec(tt.wantMult)) {
				t.Errorf("Multiplier = %s, want %s", out.Multiplier, tt.wantMult)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	primary := &Rule{Type: RulePrimary, Multiplier: dec("4"), FixedPoints: 5}
	bonus := Rule{Type: RuleBonus, Multiplier: dec("2"), FixedPoints: 10}
	penalty := Rule{Type: RulePenalty, Multiplier: dec("0.5"), FixedPoints: 3}
	shield := Rule{Type: RuleShield}

	tests := []struct {
		name      string
		primary   *Rule
		mods      []Rule
		comb      Combination
		wantMult  string
		wantFixed int64
	}{
		{name: "Additive", primary: primary, mods: []Rule{bonus, penalty}, comb: Combination{Mode: Additive}, wantMult: "5.5", wantFixed: 12},
		{name: "Multiplicative", primary: primary, mods: []Rule{bonus, penalty}, comb: Combination{Mode: Multiplicative}, wantMult: "4", wantFixed: 12},
		{name: "Shield cancels penalty", primary: primary, mods: []Rule{penalty, shield}, comb: Combination{Mode: Additive, ShieldCancelsPenalty: true}, wantMult: "4", wantFixed: 5},
		{name: "Shield ignored when disabled", primary: primary, mods: []Rule{penalty, shield}, comb: Combination{Mode: Additive}, wantMult: "3.5", wantFixed: 2},
		{name: "Penalty without primary", primary: nil, mods: []Rule{penalty}, comb: Combination{Mode: Additive}, wantMult: "-0.5", wantFixed: -3},
		{name: "Clamp max", primary: primary, mods: []Rule{bonus}, comb: Combination{Mode: Additive, ClampMax: decPtr("5")}, wantMult: "5", wantFixed: 15},
		{name: "Clamp min", primary: nil, mods: []Rule{penalty}, comb: Combination{Mode: Additive, ClampMin: decPtr("0")}, wantMult: "0", wantFixed: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mult, fixed := Combine(tt.primary, tt.mods, tt.comb)
			if !mult.Equal(dec(tt.wantMult)) {
				t.Errorf("Combine() multiplier = %s, want %s", mult, tt.wantMult)
			}
			if fixed != tt.wantFixed {
				t.Errorf("Combine() fixed = %d, want %d", fixed, tt.wantFixed)
			}
		})
	}
}

func TestSpinReels(t *testing.T) {
	symbols := []Symbol{{Key: "a", Weight: dec("1")}, {Key: "b", Weight: dec("1")}}
	reels, err := SpinReels(symbols, 3, &seqSource{vals: []int64{0, 10000, 0}})
	if err != nil {
		t.Fatalf("SpinReels() error = %v", err)
	}
	want := []string{"a", "b", "a"}
	for i := range want {
		if reels[i] != want[i] {
			t.Errorf("SpinReels() = %v, want %v", reels, want)
			break
		}
	}
	if _, err := SpinReels(symbols, 0, CryptoSource{}); err == nil {
		t.Error("SpinReels() with zero reels should fail")
	}
}

func TestDefaultRules(t *testing.T) {
	symbols := []Symbol{
		{Key: "cherry", Weight: dec("5"), Multiplier: dec("3")},
		{Key: "blank", Weight: dec("5"), Multiplier: dec("0")},
	}
	rules := DefaultRules(symbols, 3, dec("1.5"))
	if len(rules) != 2 {
		t.Fatalf("DefaultRules() returned %d rules, want 2", len(rules))
	}

	out, err := Evaluate([]string{"cherry", "cherry", "cherry"}, rules, Combination{}, CryptoSource{})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !out.Multiplier.Equal(dec("3")) {
		t.Errorf("three cherries multiplier = %s, want 3", out.Multiplier)
	}

	out, err = Evaluate([]string{"blank", "blank", "blank"}, rules, Combination{}, CryptoSource{})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !out.Multiplier.Equal(dec("1.5")) {
		t.Errorf("three blanks multiplier = %s, want 1.5 from the pair rule", out.Multiplier)
	}
}

func TestTheoreticalRTP(t *testing.T) {
	// Two equally likely symbols on two reels: a pair shows half the time.
	symbols := []Symbol{{Key: "a", Weight: dec("1")}, {Key: "b", Weight: dec("1")}}
	rules := []Rule{{Name: "pair", Type: RulePrimary, Count: 2, Multiplier: dec("1.5")}}

	rtp, err := TheoreticalRTP(symbols, 2, rules, Combination{Mode: Additive}, 10)
	if err != nil {
		t.Fatalf("TheoreticalRTP() error = %v", err)
	}
	if math.Abs(rtp-0.75) > 1e-9 {
		t.Errorf("TheoreticalRTP() = %v, want 0.75", rtp)
	}

	gated := append(rules, Rule{Name: "bonus", Type: RuleBonus, Pattern: []string{"a"}, FixedPoints: 4, Probability: decPtr("0.5")})
	rtp, err = TheoreticalRTP(symbols, 2, gated, Combination{Mode: Additive}, 10)
	if err != nil {
		t.Fatalf("TheoreticalRTP() error = %v", err)
	}
	// "a" shows on 3 of 4 results, fires half the time for 4 points: +0.15
	if math.Abs(rtp-0.9) > 1e-9 {
		t.Errorf("TheoreticalRTP() with bonus = %v, want 0.9", rtp)
	}

	if _, err := TheoreticalRTP(symbols, 2, rules, Combination{}, 0); err == nil {
		t.Error("TheoreticalRTP() with zero cost should fail")
	}
}
