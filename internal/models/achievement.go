package models

import (
	"time"
)

// Achievement statuses
const (
	AchievementLocked   = "LOCKED"
	AchievementUnlocked = "UNLOCKED"
	AchievementClaimed  = "CLAIMED"
)

// Achievement rule types say which counter of AccountStats a definition
// measures. RuleManual is only ever unlocked by an admin.
const (
	RuleGachaCount         = "gacha_count"
	RuleGachaRare          = "gacha_rare"
	RuleSlotCount          = "slot_count"
	RuleSlotJackpot        = "slot_jackpot"
	RuleScratchCount       = "scratch_count"
	RuleBetCount           = "bet_count"
	RulePredictionAccuracy = "prediction_accuracy"
	RuleDailyTaskStreak    = "daily_task_streak"
	RuleWeeklyTaskComplete = "weekly_task_complete"
	RuleSigninStreak       = "signin_streak"
	RuleManual             = "manual"
)

// MinSettledForAccuracy is the number of settled bets needed before
// prediction accuracy counts.
const MinSettledForAccuracy = 10

// ShowcaseSlots is the number of badges an account can pin.
const ShowcaseSlots = 3

var achievementRules = map[string]bool{
	RuleGachaCount:         true,
	RuleGachaRare:          true,
	RuleSlotCount:          true,
	RuleSlotJackpot:        true,
	RuleScratchCount:       true,
	RuleBetCount:           true,
	RulePredictionAccuracy: true,
	RuleDailyTaskStreak:    true,
	RuleWeeklyTaskComplete: true,
	RuleSigninStreak:       true,
	RuleManual:             true,
}

func IsAchievementRule(t string) bool {
	return achievementRules[t]
}

// AchievementDefinition pays Points once, when an account claims it.
type AchievementDefinition struct {
	ID             uint      `gorm:"primaryKey"`
	AchievementKey string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name           string    `gorm:"type:varchar(100);not null"`
	Description    string    `gorm:"type:varchar(500)"`
	Category       string    `gorm:"type:varchar(32);not null;index"`
	BadgeIcon      string    `gorm:"type:varchar(32)"`
	BadgeTier      string    `gorm:"type:varchar(16);default:'bronze';not null"`
	Points         int64     `gorm:"default:0;not null"`
	RuleType       string    `gorm:"type:varchar(32);not null"`
	TargetValue    int       `gorm:"default:1;not null"`
	IsActive       bool      `gorm:"default:true;not null"`
	SortOrder      int       `gorm:"default:0;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (AchievementDefinition) TableName() string {
	return "achievement_definitions"
}

// Progress measures stats against the rule. Manual achievements never
// progress on their own.
func (d *AchievementDefinition) Progress(stats AccountStats) (int, bool) {
	var value int
	switch d.RuleType {
	case RuleGachaCount:
		value = stats.GachaDraws
	case RuleGachaRare:
		value = stats.GachaRare
	case RuleSlotCount:
		value = stats.SlotSpins
	case RuleSlotJackpot:
		value = stats.SlotJackpots
	case RuleScratchCount:
		value = stats.ScratchCards
	case RuleBetCount:
		value = stats.BetsPlaced
	case RulePredictionAccuracy:
		if stats.BetsSettled < MinSettledForAccuracy {
			return 0, false
		}
		value = stats.BetsWon * 100 / stats.BetsSettled
	case RuleDailyTaskStreak:
		value = stats.TaskStreakLongest
	case RuleWeeklyTaskComplete:
		value = stats.WeeklyTasksCompleted
	case RuleSigninStreak:
		value = stats.SigninStreak
	default:
		return 0, false
	}
	return value, value >= d.TargetValue
}

// AccountAchievement is one account's state on one achievement.
type AccountAchievement struct {
	ID             uint   `gorm:"primaryKey"`
	AccountID      uint   `gorm:"not null;uniqueIndex:idx_account_achievement"`
	AchievementKey string `gorm:"type:varchar(64);not null;uniqueIndex:idx_account_achievement"`
	Status         string `gorm:"type:varchar(16);not null;default:'LOCKED'"`
	ProgressValue  int    `gorm:"default:0;not null"`
	UnlockedAt     *time.Time
	ClaimedAt      *time.Time
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (AccountAchievement) TableName() string {
	return "account_achievements"
}

// BadgeShowcase pins an earned achievement to one of the account's slots.
type BadgeShowcase struct {
	AccountID      uint      `gorm:"primaryKey;autoIncrement:false"`
	Slot           int       `gorm:"primaryKey;autoIncrement:false"`
	AchievementKey string    `gorm:"type:varchar(64);not null"`
	PinnedAt       time.Time `gorm:"not null"`
}

func (BadgeShowcase) TableName() string {
	return "badge_showcases"
}

// AccountStats are the counters achievements are measured against. They are
// computed from the game, market, task and sign-in tables.
type AccountStats struct {
	GachaDraws           int `json:"gacha_draws"`
	GachaRare            int `json:"gacha_rare"`
	SlotSpins            int `json:"slot_spins"`
	SlotJackpots         int `json:"slot_jackpots"`
	ScratchCards         int `json:"scratch_cards"`
	BetsPlaced           int `json:"bets_placed"`
	BetsSettled          int `json:"bets_settled"`
	BetsWon              int `json:"bets_won"`
	TaskStreakLongest    int `json:"task_streak_longest"`
	WeeklyTasksCompleted int `json:"weekly_tasks_completed"`
	SigninStreak         int `json:"signin_streak"`
	AchievementsUnlocked int `json:"achievements_unlocked"`
}
