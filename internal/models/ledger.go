package models

import (
	"time"
)

// LedgerEntry is an immutable point movement. The sum of an account's
// entries is its balance.
type LedgerEntry struct {
	ID           uint      `gorm:"primaryKey"`
	AccountID    uint      `gorm:"not null;index:idx_ledger_account_time"`
	Amount       int64     `gorm:"not null"`
	BalanceAfter int64     `gorm:"not null"`
	Reason       string    `gorm:"type:varchar(32);not null;index"`
	RefType      string    `gorm:"type:varchar(32)"`
	RefID        uint      `gorm:"default:0"`
	Description  string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_ledger_account_time"`
}

// Ledger reasons
const (
	ReasonSignin        = "SIGNIN"
	ReasonSigninBonus   = "SIGNIN_BONUS"
	ReasonGachaSpend    = "GACHA_SPEND"
	ReasonGachaWin      = "GACHA_WIN"
	ReasonSlotSpend     = "SLOT_SPEND"
	ReasonSlotWin       = "SLOT_WIN"
	ReasonSlotPenalty   = "SLOT_PENALTY"
	ReasonScratchSpend  = "SCRATCH_SPEND"
	ReasonScratchWin    = "SCRATCH_WIN"
	ReasonBetStake      = "BET_STAKE"
	ReasonBetPayout     = "BET_PAYOUT"
	ReasonBetRefund     = "BET_REFUND"
	ReasonTaskReward    = "TASK_REWARD"
	ReasonExchangeSpend = "EXCHANGE_SPEND"
	ReasonWelcomeBonus  = "WELCOME_BONUS"
	ReasonAdminAdjust   = "ADMIN_ADJUST"
	ReasonAchievement   = "ACHIEVEMENT_REWARD"
)

var ledgerReasons = map[string]bool{
	ReasonSignin:        true,
	ReasonSigninBonus:   true,
	ReasonGachaSpend:    true,
	ReasonGachaWin:      true,
	ReasonSlotSpend:     true,
	ReasonSlotWin:       true,
	ReasonSlotPenalty:   true,
	ReasonScratchSpend:  true,
	ReasonScratchWin:    true,
	ReasonBetStake:      true,
	ReasonBetPayout:     true,
	ReasonBetRefund:     true,
	ReasonTaskReward:    true,
	ReasonExchangeSpend: true,
	ReasonWelcomeBonus:  true,
	ReasonAdminAdjust:   true,
	ReasonAchievement:   true,
}

// IsLedgerReason reports whether reason belongs to the closed reason set.
func IsLedgerReason(reason string) bool {
	return ledgerReasons[reason]
}

// Ref points a ledger entry at the object that caused it.
type Ref struct {
	Type        string
	ID          uint
	Description string
}

// Reference types
const (
	RefTypeGacha    = "gacha_draw"
	RefTypeSlot     = "slot_draw"
	RefTypeScratch  = "scratch_card"
	RefTypeBet      = "bet"
	RefTypeTask     = "task_claim"
	RefTypeSignin   = "signin"
	RefTypeExchange = "exchange"
	RefTypeAdmin    = "admin"
	RefTypeAccount  = "account"
	RefTypeAchieve  = "achievement"
)

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
