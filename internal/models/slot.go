package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SlotConfig is the reel game configuration including how matched rules
// are combined into one payout multiplier.
type SlotConfig struct {
	ID                   uint                `gorm:"primaryKey"`
	Name                 string              `gorm:"type:varchar(100);not null"`
	IsActive             bool                `gorm:"default:true;not null;index"`
	CostPoints           int64               `gorm:"default:30;not null"`
	Reels                int                 `gorm:"default:3;not null"`
	DailyLimit           *int                `gorm:"default:20"`
	TwoKindMultiplier    decimal.Decimal     `gorm:"type:numeric(10,2);default:1.5;not null"`
	JackpotThreshold     decimal.Decimal     `gorm:"type:numeric(10,2);default:50;not null"`
	CombineMode          string              `gorm:"type:varchar(20);default:'additive';not null"`
	ClampMin             decimal.NullDecimal `gorm:"type:numeric(10,2)"`
	ClampMax             decimal.NullDecimal `gorm:"type:numeric(10,2)"`
	ShieldCancelsPenalty bool                `gorm:"default:true;not null"`
	Symbols              []SlotSymbol        `gorm:"foreignKey:ConfigID"`
	Rules                []MatchRule         `gorm:"foreignKey:ConfigID"`
	CreatedAt            time.Time           `gorm:"autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"autoUpdateTime"`
}

// Combination modes
const (
	CombineAdditive       = "additive"
	CombineMultiplicative = "multiplicative"
)

func (SlotConfig) TableName() string {
	return "slot_configs"
}

type SlotSymbol struct {
	ID         uint            `gorm:"primaryKey"`
	ConfigID   uint            `gorm:"not null;uniqueIndex:idx_slot_symbol_key"`
	SymbolKey  string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_slot_symbol_key"`
	Emoji      string          `gorm:"type:varchar(16)"`
	Multiplier decimal.Decimal `gorm:"type:numeric(10,2);default:0;not null"`
	Weight     decimal.Decimal `gorm:"type:numeric(10,2);default:1;not null"`
	IsEnabled  bool            `gorm:"default:true;not null"`
	IsJackpot  bool            `gorm:"default:false;not null"`
	SortOrder  int             `gorm:"default:0;not null"`
}

func (SlotSymbol) TableName() string {
	return "slot_symbols"
}

// Rule types. Primary rules compete by priority; the others are sampled
// against their own probability and combined with the primary result.
const (
	RuleTypePrimary = "primary"
	RuleTypeBonus   = "bonus"
	RuleTypePenalty = "penalty"
	RuleTypeShield  = "shield"
)

// MatchRule matches reel symbols. A nil Pattern is a wildcard: Count reels
// showing the same symbol.
type MatchRule struct {
	ID          uint                        `gorm:"primaryKey"`
	ConfigID    uint                        `gorm:"not null;index"`
	Name        string                      `gorm:"type:varchar(100);not null"`
	RuleType    string                      `gorm:"type:varchar(20);not null"`
	Pattern     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Ordered     bool                        `gorm:"default:false;not null"`
	Count       int                         `gorm:"default:0;not null"`
	Multiplier  decimal.Decimal             `gorm:"type:numeric(10,2);default:0;not null"`
	FixedPoints int64                       `gorm:"default:0;not null"`
	Probability decimal.NullDecimal         `gorm:"type:numeric(5,4)"`
	Priority    int                         `gorm:"default:0;not null"`
	IsEnabled   bool                        `gorm:"default:true;not null"`
	SortOrder   int                         `gorm:"default:0;not null"`
}

func (MatchRule) TableName() string {
	return "match_rules"
}

// MatchedRule is the snapshot of a rule that fired on a spin.
type MatchedRule struct {
	Name        string          `json:"name"`
	RuleType    string          `json:"rule_type"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	FixedPoints int64           `json:"fixed_points"`
}

type SlotDraw struct {
	ID             uint                             `gorm:"primaryKey"`
	AccountID      uint                             `gorm:"not null;index;uniqueIndex:idx_slot_request"`
	ConfigID       uint                             `gorm:"not null;index"`
	Reels          datatypes.JSONSlice[string]      `gorm:"type:jsonb;not null"`
	Matched        datatypes.JSONSlice[MatchedRule] `gorm:"type:jsonb"`
	Multiplier     decimal.Decimal                  `gorm:"type:numeric(10,2);not null"`
	Payout         int64                            `gorm:"not null"`
	IsJackpot      bool                             `gorm:"default:false;not null"`
	CostPoints     int64                            `gorm:"default:0;not null"`
	UsedFreeCredit bool                             `gorm:"default:false;not null"`
	RequestID      string                           `gorm:"type:varchar(64);not null;uniqueIndex:idx_slot_request"`
	CreatedAt      time.Time                        `gorm:"autoCreateTime;index"`
}

func (SlotDraw) TableName() string {
	return "slot_draws"
}
