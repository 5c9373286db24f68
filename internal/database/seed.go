package database

import (
	"fmt"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func points(n int64) datatypes.JSONType[models.PrizeValue] {
	return datatypes.NewJSONType(models.PrizeValue{Amount: n})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func stock(n int64) *int64 {
	return &n
}

// SeedDefaults creates a playable configuration for every game when the
// corresponding table is empty.
func SeedDefaults(db *gorm.DB) error {
	seeds := []struct {
		name  string
		model interface{}
		seed  func(tx *gorm.DB) error
	}{
		{"gacha", &models.RewardConfig{}, seedGacha},
		{"slot", &models.SlotConfig{}, seedSlot},
		{"scratch", &models.ScratchConfig{}, seedScratch},
		{"tasks", &models.TaskDefinition{}, seedTasks},
		{"exchange", &models.ExchangeItem{}, seedExchange},
		{"achievements", &models.AchievementDefinition{}, seedAchievements},
	}

	for _, s := range seeds {
		var count int64
		if err := db.Model(s.model).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count %s rows: %w", s.name, err)
		}
		if count > 0 {
			continue
		}
		logger.Info("Seeding default configuration", "section", s.name)
		if err := db.Transaction(s.seed); err != nil {
			return fmt.Errorf("failed to seed %s: %w", s.name, err)
		}
	}
	return nil
}

func seedGacha(tx *gorm.DB) error {
	cfg := &models.RewardConfig{
		Name:            "Default pool",
		IsActive:        true,
		CostPoints:      50,
		ConsolationName: "Better luck next time",
		Prizes: []models.PrizeEntry{
			{PrizeType: models.PrizeTypePoints, PrizeName: "10 points", PrizeValue: points(10), Weight: dec("40"), IsEnabled: true, SortOrder: 1},
			{PrizeType: models.PrizeTypePoints, PrizeName: "50 points", PrizeValue: points(50), Weight: dec("25"), IsEnabled: true, SortOrder: 2},
			{PrizeType: models.PrizeTypePoints, PrizeName: "200 points", PrizeValue: points(200), Weight: dec("5"), IsEnabled: true, IsRare: true, SortOrder: 3},
			{
				PrizeType:  models.PrizeTypeItem,
				PrizeName:  "Cheer stick",
				PrizeValue: datatypes.NewJSONType(models.PrizeValue{ItemType: "cheer_stick", Amount: 1}),
				Weight:     dec("15"),
				IsEnabled:  true,
				SortOrder:  4,
			},
			{
				PrizeType:  models.PrizeTypeBadge,
				PrizeName:  "Lucky star badge",
				PrizeValue: datatypes.NewJSONType(models.PrizeValue{BadgeKey: "lucky_star", FallbackPoints: 30}),
				Weight:     dec("5"),
				IsEnabled:  true,
				IsRare:     true,
				SortOrder:  5,
			},
			{
				PrizeType:  models.PrizeTypeRedemptionCode,
				PrizeName:  "Gift code",
				PrizeValue: datatypes.NewJSONType(models.PrizeValue{UsageType: "gift"}),
				Weight:     dec("1"),
				Stock:      stock(10),
				IsEnabled:  true,
				IsRare:     true,
				SortOrder:  6,
			},
			{PrizeType: models.PrizeTypeEmpty, PrizeName: "Nothing", Weight: dec("9"), IsEnabled: true, SortOrder: 7},
		},
	}
	return tx.Create(cfg).Error
}

func seedSlot(tx *gorm.DB) error {
	cfg := &models.SlotConfig{
		Name:                 "Classic reels",
		IsActive:             true,
		CostPoints:           30,
		Reels:                3,
		TwoKindMultiplier:    dec("0.5"),
		JackpotThreshold:     dec("50"),
		CombineMode:          models.CombineAdditive,
		ShieldCancelsPenalty: true,
		Symbols: []models.SlotSymbol{
			{SymbolKey: "cherry", Emoji: "🍒", Multiplier: dec("3"), Weight: dec("30"), IsEnabled: true, SortOrder: 1},
			{SymbolKey: "lemon", Emoji: "🍋", Multiplier: dec("5"), Weight: dec("25"), IsEnabled: true, SortOrder: 2},
			{SymbolKey: "bell", Emoji: "🔔", Multiplier: dec("10"), Weight: dec("15"), IsEnabled: true, SortOrder: 3},
			{SymbolKey: "star", Emoji: "⭐", Multiplier: dec("20"), Weight: dec("8"), IsEnabled: true, SortOrder: 4},
			{SymbolKey: "seven", Emoji: "7️⃣", Multiplier: dec("50"), Weight: dec("2"), IsEnabled: true, IsJackpot: true, SortOrder: 5},
		},
		Rules: []models.MatchRule{
			{
				Name:        "Lucky cherry",
				RuleType:    models.RuleTypeBonus,
				Pattern:     datatypes.NewJSONSlice([]string{"cherry"}),
				Count:       1,
				Multiplier:  dec("0.2"),
				Probability: decimal.NewNullDecimal(dec("0.25")),
				IsEnabled:   true,
				SortOrder:   1,
			},
		},
	}
	return tx.Create(cfg).Error
}

func seedScratch(tx *gorm.DB) error {
	cfg := &models.ScratchConfig{
		Name:       "Silver card",
		IsActive:   true,
		CostPoints: 20,
		Prizes: []models.ScratchPrize{
			{PrizeType: models.PrizeTypePoints, PrizeName: "10 points", PrizeValue: points(10), Probability: dec("0.3"), IsEnabled: true, SortOrder: 1},
			{PrizeType: models.PrizeTypePoints, PrizeName: "50 points", PrizeValue: points(50), Probability: dec("0.1"), IsEnabled: true, SortOrder: 2},
			{PrizeType: models.PrizeTypePoints, PrizeName: "500 points", PrizeValue: points(500), Probability: dec("0.005"), IsEnabled: true, IsRare: true, SortOrder: 3},
		},
	}
	return tx.Create(cfg).Error
}

func seedTasks(tx *gorm.DB) error {
	defs := []models.TaskDefinition{
		{TaskKey: "daily_signin", Name: "Sign in", Schedule: models.TaskScheduleDaily, TaskType: models.TaskTypeSignin, TargetValue: 1, RewardPoints: 5, IsActive: true, AutoClaim: true, SortOrder: 1, ChainGroupKey: "daily_core"},
		{TaskKey: "daily_gacha", Name: "Draw once", Schedule: models.TaskScheduleDaily, TaskType: models.TaskTypeGacha, TargetValue: 1, RewardPoints: 10, IsActive: true, SortOrder: 2, ChainGroupKey: "daily_core"},
		{TaskKey: "daily_bet", Name: "Place a prediction", Schedule: models.TaskScheduleDaily, TaskType: models.TaskTypePrediction, TargetValue: 1, RewardPoints: 10, IsActive: true, SortOrder: 3, ChainGroupKey: "daily_core"},
		{TaskKey: "daily_core_bonus", Name: "Complete all daily tasks", Schedule: models.TaskScheduleDaily, TaskType: models.TaskTypeChainBonus, TargetValue: 1, RewardPoints: 30, IsActive: true, SortOrder: 4, ChainRequiresGroupKey: "daily_core"},
		{TaskKey: "weekly_slot", Name: "Spin 20 times", Schedule: models.TaskScheduleWeekly, TaskType: models.TaskTypeSlot, TargetValue: 20, RewardPoints: 100, IsActive: true, SortOrder: 5},
		{TaskKey: "weekly_vote", Name: "Vote 5 times", Schedule: models.TaskScheduleWeekly, TaskType: models.TaskTypeVote, TargetValue: 5, RewardPoints: 50, IsActive: true, SortOrder: 6},
	}
	return tx.Create(&defs).Error
}

func seedExchange(tx *gorm.DB) error {
	items := []models.ExchangeItem{
		{Name: "3 free draws", Game: models.GameGacha, Quantity: 3, CostPoints: 120, IsActive: true},
		{Name: "5 free spins", Game: models.GameSlot, Quantity: 5, CostPoints: 120, IsActive: true},
		{Name: "Scratch card", Game: models.GameScratch, Quantity: 1, CostPoints: 18, Stock: stock(1000), IsActive: true},
	}
	return tx.Create(&items).Error
}

func seedAchievements(tx *gorm.DB) error {
	defs := []models.AchievementDefinition{
		{AchievementKey: "gacha_beginner", Name: "Gacha beginner", Category: "gacha", BadgeIcon: "🥚", Points: 10, RuleType: models.RuleGachaCount, TargetValue: 1, SortOrder: 1},
		{AchievementKey: "gacha_addict", Name: "Gacha addict", Category: "gacha", BadgeIcon: "🎰", BadgeTier: "silver", Points: 30, RuleType: models.RuleGachaCount, TargetValue: 10, SortOrder: 2},
		{AchievementKey: "gacha_master", Name: "Gacha master", Category: "gacha", BadgeIcon: "👑", BadgeTier: "gold", Points: 100, RuleType: models.RuleGachaCount, TargetValue: 50, SortOrder: 3},
		{AchievementKey: "lucky_egg", Name: "Lucky egg", Category: "gacha", BadgeIcon: "🍀", Points: 20, RuleType: models.RuleGachaRare, TargetValue: 1, SortOrder: 4},
		{AchievementKey: "golden_touch", Name: "Golden touch", Category: "gacha", BadgeIcon: "✨", BadgeTier: "gold", Points: 80, RuleType: models.RuleGachaRare, TargetValue: 5, SortOrder: 5},
		{AchievementKey: "jackpot", Name: "Jackpot", Category: "slot", BadgeIcon: "💰", BadgeTier: "gold", Points: 50, RuleType: models.RuleSlotJackpot, TargetValue: 1, SortOrder: 6},
		{AchievementKey: "scratcher", Name: "Scratcher", Category: "scratch", BadgeIcon: "🎫", Points: 20, RuleType: models.RuleScratchCount, TargetValue: 10, SortOrder: 7},
		{AchievementKey: "daily_warrior", Name: "Daily warrior", Category: "tasks", BadgeIcon: "⚔️", BadgeTier: "silver", Points: 50, RuleType: models.RuleDailyTaskStreak, TargetValue: 7, SortOrder: 8},
		{AchievementKey: "weekly_champion", Name: "Weekly champion", Category: "tasks", BadgeIcon: "🏆", BadgeTier: "gold", Points: 100, RuleType: models.RuleWeeklyTaskComplete, TargetValue: 4, SortOrder: 9},
		{AchievementKey: "streak_7", Name: "Seven days", Category: "signin", BadgeIcon: "📅", Points: 30, RuleType: models.RuleSigninStreak, TargetValue: 7, SortOrder: 10},
		{AchievementKey: "prediction_king", Name: "Prediction king", Category: "prediction", BadgeIcon: "🔮", BadgeTier: "gold", Points: 100, RuleType: models.RulePredictionAccuracy, TargetValue: 80, SortOrder: 11},
		{AchievementKey: "lucky_star", Name: "Lucky star", Category: "special", BadgeIcon: "🌟", BadgeTier: "gold", Points: 50, RuleType: models.RuleManual, TargetValue: 1, SortOrder: 12},
	}
	return tx.Create(&defs).Error
}
