package models

import (
	"time"

	"gorm.io/datatypes"
)

// IdempotencyKey reserves a caller-supplied request token. Result holds the
// JSON response of the action that consumed the token.
type IdempotencyKey struct {
	ID        uint           `gorm:"primaryKey"`
	AccountID uint           `gorm:"not null;uniqueIndex:idx_idempotency_token"`
	Token     string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_idempotency_token"`
	Scope     string         `gorm:"type:varchar(32);not null"`
	Result    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index"`
}

// Idempotency scopes
const (
	ScopeGachaPlay    = "gacha_play"
	ScopeSlotSpin     = "slot_spin"
	ScopeScratchBuy   = "scratch_buy"
	ScopeBetPlace     = "bet_place"
	ScopeTaskClaim    = "task_claim"
	ScopeExchange     = "exchange_redeem"
	ScopeAdminAdjust  = "admin_adjust"
	ScopeVoucherGrant = "voucher_grant"
	ScopeSignin       = "signin"
	ScopeAchievement  = "achievement_claim"
)

func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// QuotaCounter counts one kind of action for one account in one period.
type QuotaCounter struct {
	ID         uint      `gorm:"primaryKey"`
	AccountID  uint      `gorm:"not null;uniqueIndex:idx_quota_period"`
	ActionKind string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_quota_period"`
	PeriodKey  string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_quota_period"`
	Count      int       `gorm:"default:0;not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (QuotaCounter) TableName() string {
	return "quota_counters"
}

// FreeCredit is a voucher balance granting free plays of one game.
type FreeCredit struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID uint      `gorm:"not null;uniqueIndex:idx_free_credit"`
	Game      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_free_credit"`
	Quantity  int       `gorm:"default:0;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Games
const (
	GameGacha   = "gacha"
	GameSlot    = "slot"
	GameScratch = "scratch"
)

// IsGame reports whether game names a playable game.
func IsGame(game string) bool {
	return game == GameGacha || game == GameSlot || game == GameScratch
}

func (FreeCredit) TableName() string {
	return "free_credits"
}
