package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAccount_BeforeSave(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		balance int64
		wantErr bool
	}{
		{
			name:    "User role",
			role:    RoleUser,
			balance: 100,
			wantErr: false,
		},
		{
			name:    "Admin role",
			role:    RoleAdmin,
			balance: 0,
			wantErr: false,
		},
		{
			name:    "Unknown role",
			role:    "owner",
			balance: 0,
			wantErr: true,
		},
		{
			name:    "Negative balance",
			role:    RoleUser,
			balance: -1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := &Account{
				ExternalID: "tg:123456789",
				Role:       tt.role,
				Balance:    tt.balance,
			}

			err := account.BeforeSave(nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("BeforeSave() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrizeEntry_Eligible(t *testing.T) {
	zero, five := int64(0), int64(5)

	tests := []struct {
		name  string
		entry PrizeEntry
		want  bool
	}{
		{name: "Unlimited", entry: PrizeEntry{IsEnabled: true, Weight: decimal.NewFromInt(1)}, want: true},
		{name: "In stock", entry: PrizeEntry{IsEnabled: true, Weight: decimal.NewFromInt(1), Stock: &five}, want: true},
		{name: "Out of stock", entry: PrizeEntry{IsEnabled: true, Weight: decimal.NewFromInt(1), Stock: &zero}, want: false},
		{name: "Disabled", entry: PrizeEntry{IsEnabled: false, Weight: decimal.NewFromInt(1)}, want: false},
		{name: "Zero weight", entry: PrizeEntry{IsEnabled: true, Weight: decimal.Zero}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Eligible(); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredictionMarket_AcceptsBets(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name   string
		market PredictionMarket
		want   bool
	}{
		{name: "Open without close time", market: PredictionMarket{Status: MarketStatusOpen}, want: true},
		{name: "Open before close time", market: PredictionMarket{Status: MarketStatusOpen, ClosesAt: &later}, want: true},
		{name: "Open after close time", market: PredictionMarket{Status: MarketStatusOpen, ClosesAt: &earlier}, want: false},
		{name: "Open at close time", market: PredictionMarket{Status: MarketStatusOpen, ClosesAt: &now}, want: false},
		{name: "Draft", market: PredictionMarket{Status: MarketStatusDraft}, want: false},
		{name: "Closed", market: PredictionMarket{Status: MarketStatusClosed}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.market.AcceptsBets(now); got != tt.want {
				t.Errorf("AcceptsBets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskDefinition_ActiveAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		def  TaskDefinition
		want bool
	}{
		{name: "Always active", def: TaskDefinition{IsActive: true}, want: true},
		{name: "Inactive", def: TaskDefinition{IsActive: false}, want: false},
		{name: "Not started", def: TaskDefinition{IsActive: true, StartsAt: &after}, want: false},
		{name: "Ended", def: TaskDefinition{IsActive: true, EndsAt: &before}, want: false},
		{name: "Within window", def: TaskDefinition{IsActive: true, StartsAt: &before, EndsAt: &after}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.def.ActiveAt(now); got != tt.want {
				t.Errorf("ActiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClosedSets(t *testing.T) {
	if !IsLedgerReason(ReasonBetRefund) || IsLedgerReason("GIFT") {
		t.Error("IsLedgerReason() does not match the reason set")
	}
	if !IsTaskType(TaskTypeChainBonus) || IsTaskType("SHARE") {
		t.Error("IsTaskType() does not match the task type set")
	}
	if !IsGame(GameScratch) || IsGame("poker") {
		t.Error("IsGame() does not match the game set")
	}
	if !IsPrizeType(PrizeTypeRedemptionCode) || IsPrizeType("coupon") {
		t.Error("IsPrizeType() does not match the prize type set")
	}
}

func TestAchievementDefinition_Progress(t *testing.T) {
	stats := AccountStats{
		GachaDraws:   12,
		GachaRare:    1,
		SlotJackpots: 0,
		BetsSettled:  10,
		BetsWon:      7,
		SigninStreak: 3,
	}

	tests := []struct {
		name      string
		ruleType  string
		target    int
		wantValue int
		wantDone  bool
	}{
		{"gacha count reached", RuleGachaCount, 10, 12, true},
		{"gacha rare short", RuleGachaRare, 3, 1, false},
		{"jackpot none", RuleSlotJackpot, 1, 0, false},
		{"accuracy reached", RulePredictionAccuracy, 70, 70, true},
		{"accuracy short", RulePredictionAccuracy, 80, 70, false},
		{"signin streak", RuleSigninStreak, 3, 3, true},
		{"manual never unlocks", RuleManual, 0, 0, false},
		{"unknown rule", "cheer_count", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &AchievementDefinition{RuleType: tt.ruleType, TargetValue: tt.target}
			value, done := def.Progress(stats)
			if value != tt.wantValue || done != tt.wantDone {
				t.Errorf("Progress() = (%d, %v), want (%d, %v)", value, done, tt.wantValue, tt.wantDone)
			}
		})
	}
}

func TestAchievementDefinition_AccuracyNeedsSettledBets(t *testing.T) {
	def := &AchievementDefinition{RuleType: RulePredictionAccuracy, TargetValue: 50}
	value, done := def.Progress(AccountStats{BetsSettled: MinSettledForAccuracy - 1, BetsWon: MinSettledForAccuracy - 1})
	if value != 0 || done {
		t.Errorf("Progress() = (%d, %v), want (0, false) below %d settled bets", value, done, MinSettledForAccuracy)
	}
}
