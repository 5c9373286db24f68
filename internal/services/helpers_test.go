package services

import (
	"strings"
	"testing"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/selector"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func intPtr(v int) *int { return &v }

func TestRemainingAfter(t *testing.T) {
	tests := []struct {
		name   string
		actor  Actor
		limit  *int
		charge Charge
		want   *int
	}{
		{name: "Paid play", actor: Actor{AccountID: 1}, limit: intPtr(5), charge: Charge{Cost: 50, PlaysToday: 2}, want: intPtr(3)},
		{name: "Last play", actor: Actor{AccountID: 1}, limit: intPtr(5), charge: Charge{Cost: 50, PlaysToday: 5}, want: intPtr(0)},
		{name: "Unlimited", actor: Actor{AccountID: 1}, limit: nil, charge: Charge{Cost: 50, PlaysToday: 9}, want: nil},
		{name: "Admin", actor: Actor{AccountID: 1, IsAdmin: true}, limit: intPtr(5), charge: Charge{Cost: 50, PlaysToday: 9}, want: nil},
		{name: "Free credit", actor: Actor{AccountID: 1}, limit: intPtr(5), charge: Charge{UsedFreeCredit: true}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := remainingAfter(tt.actor, tt.limit, tt.charge)
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("remainingAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSigninRewards_BonusFor(t *testing.T) {
	rewards := SigninRewards{BasePoints: 10, MilestoneDays: 7, MilestoneBonus: 50}

	tests := []struct {
		day  int
		want int64
	}{
		{day: 1, want: 0},
		{day: 6, want: 0},
		{day: 7, want: 50},
		{day: 14, want: 50},
		{day: 15, want: 0},
	}
	for _, tt := range tests {
		if got := rewards.bonusFor(tt.day); got != tt.want {
			t.Errorf("bonusFor(%d) = %d, want %d", tt.day, got, tt.want)
		}
	}

	if got := (SigninRewards{MilestoneBonus: 50}).bonusFor(7); got != 0 {
		t.Errorf("bonusFor() without milestone days = %d, want 0", got)
	}
}

func TestActor_RequireAdmin(t *testing.T) {
	if err := (Actor{AccountID: 1}).requireAdmin(); !errors.Is(err, errors.ErrCodeForbidden) {
		t.Errorf("requireAdmin() = %v, want FORBIDDEN", err)
	}
	if err := (Actor{AccountID: 1, IsAdmin: true}).requireAdmin(); err != nil {
		t.Errorf("requireAdmin() = %v, want nil", err)
	}
}

func TestCheckToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"present", "t1", false},
		{"missing", "", true},
		{"longest allowed", strings.Repeat("a", maxTokenLen), false},
		{"too long", strings.Repeat("a", maxTokenLen+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeValidation) {
				t.Errorf("checkToken() error = %v, want VALIDATION_ERROR", err)
			}
		})
	}
}

func TestMarketView_Odds(t *testing.T) {
	market := &models.PredictionMarket{
		ID:         1,
		Status:     models.MarketStatusOpen,
		FeeRate:    decimal.RequireFromString("0.1"),
		Settlement: datatypes.NewJSONType(models.Settlement{}),
		Options: []models.MarketOption{
			{ID: 10, Label: "A", TotalStake: 300},
			{ID: 11, Label: "B", TotalStake: 700},
			{ID: 12, Label: "C"},
		},
	}

	view := marketView(market)
	if view.TotalPool != 1000 {
		t.Errorf("TotalPool = %d, want 1000", view.TotalPool)
	}
	if view.Options[0].Odds == nil || !view.Options[0].Odds.Equal(decimal.NewFromInt(3)) {
		t.Errorf("odds(A) = %v, want 3", view.Options[0].Odds)
	}
	if view.Options[2].Odds != nil {
		t.Errorf("odds(C) = %v, want nil", view.Options[2].Odds)
	}
	if view.Settlement != nil {
		t.Error("open market should not expose a settlement")
	}
}

func TestIsJackpot(t *testing.T) {
	cfg := &models.SlotConfig{JackpotThreshold: decimal.NewFromInt(50)}
	syms := []selector.Symbol{
		{Key: "A", Weight: decimal.NewFromInt(5), Multiplier: decimal.NewFromInt(5)},
		{Key: "7", Weight: decimal.NewFromInt(1), Multiplier: decimal.NewFromInt(10), IsJackpot: true},
	}

	tests := []struct {
		name  string
		reels []string
		mult  decimal.Decimal
		want  bool
	}{
		{name: "Threshold reached", reels: []string{"A", "B", "C"}, mult: decimal.NewFromInt(50), want: true},
		{name: "Jackpot symbol line", reels: []string{"7", "7", "7"}, mult: decimal.NewFromInt(10), want: true},
		{name: "Plain line", reels: []string{"A", "A", "A"}, mult: decimal.NewFromInt(5), want: false},
		{name: "Mixed", reels: []string{"7", "7", "A"}, mult: decimal.NewFromInt(2), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isJackpot(cfg, syms, tt.reels, tt.mult); got != tt.want {
				t.Errorf("isJackpot() = %v, want %v", got, tt.want)
			}
		})
	}
}
