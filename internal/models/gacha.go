package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RewardConfig is an admin-editable weighted prize pool.
type RewardConfig struct {
	ID              uint         `gorm:"primaryKey"`
	Name            string       `gorm:"type:varchar(100);not null"`
	IsActive        bool         `gorm:"default:true;not null;index"`
	CostPoints      int64        `gorm:"default:50;not null"`
	DailyLimit      *int         `gorm:"default:30"`
	ConsolationName string       `gorm:"type:varchar(100)"`
	Prizes          []PrizeEntry `gorm:"foreignKey:ConfigID"`
	CreatedAt       time.Time    `gorm:"autoCreateTime"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime"`
}

func (RewardConfig) TableName() string {
	return "reward_configs"
}

// Prize types
const (
	PrizeTypePoints         = "points"
	PrizeTypeItem           = "item"
	PrizeTypeBadge          = "badge"
	PrizeTypeRedemptionCode = "redemption_code"
	PrizeTypeEmpty          = "empty"
)

func IsPrizeType(t string) bool {
	switch t {
	case PrizeTypePoints, PrizeTypeItem, PrizeTypeBadge, PrizeTypeRedemptionCode, PrizeTypeEmpty:
		return true
	}
	return false
}

// PrizeValue is the typed payload of a prize. Which fields are used depends
// on the prize type.
type PrizeValue struct {
	Amount         int64  `json:"amount,omitempty"`
	ItemType       string `json:"item_type,omitempty"`
	BadgeKey       string `json:"badge_key,omitempty"`
	FallbackPoints int64  `json:"fallback_points,omitempty"`
	UsageType      string `json:"usage_type,omitempty"`
	Code           string `json:"code,omitempty"`
	Quota          int64  `json:"quota,omitempty"`
	Message        string `json:"message,omitempty"`
}

type PrizeEntry struct {
	ID         uint                           `gorm:"primaryKey"`
	ConfigID   uint                           `gorm:"not null;index"`
	PrizeType  string                         `gorm:"type:varchar(20);not null"`
	PrizeName  string                         `gorm:"type:varchar(100);not null"`
	PrizeValue datatypes.JSONType[PrizeValue] `gorm:"type:jsonb"`
	Weight     decimal.Decimal                `gorm:"type:numeric(10,2);default:1;not null"`
	Stock      *int64                         `gorm:"check:chk_prize_stock,stock IS NULL OR stock >= 0"`
	IsRare     bool                           `gorm:"default:false;not null"`
	IsEnabled  bool                           `gorm:"default:true;not null"`
	SortOrder  int                            `gorm:"default:0;not null"`
	CreatedAt  time.Time                      `gorm:"autoCreateTime"`
}

// Eligible reports whether the entry can currently be drawn.
func (p *PrizeEntry) Eligible() bool {
	return p.IsEnabled && p.Weight.IsPositive() && (p.Stock == nil || *p.Stock > 0)
}

func (PrizeEntry) TableName() string {
	return "prize_entries"
}

// DrawRecord is one executed gacha draw with a snapshot of the prize.
type DrawRecord struct {
	ID             uint                           `gorm:"primaryKey"`
	AccountID      uint                           `gorm:"not null;index;uniqueIndex:idx_draw_request"`
	ConfigID       uint                           `gorm:"not null;index"`
	PrizeID        uint                           `gorm:"default:0"`
	CostPoints     int64                          `gorm:"default:0;not null"`
	PrizeType      string                         `gorm:"type:varchar(20);not null"`
	PrizeName      string                         `gorm:"type:varchar(100);not null"`
	PrizeValue     datatypes.JSONType[PrizeValue] `gorm:"type:jsonb"`
	IsRare         bool                           `gorm:"default:false;not null"`
	UsedFreeCredit bool                           `gorm:"default:false;not null"`
	RequestID      string                         `gorm:"type:varchar(64);not null;uniqueIndex:idx_draw_request"`
	CreatedAt      time.Time                      `gorm:"autoCreateTime;index"`
}

func (DrawRecord) TableName() string {
	return "draw_records"
}

// RedemptionCode backs redemption-code prizes.
type RedemptionCode struct {
	ID         uint   `gorm:"primaryKey"`
	Code       string `gorm:"type:varchar(64);uniqueIndex;not null"`
	UsageType  string `gorm:"type:varchar(50);index"`
	Quota      int64  `gorm:"default:0;not null"`
	AssignedTo *uint  `gorm:"index"`
	AssignedAt *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (RedemptionCode) TableName() string {
	return "redemption_codes"
}
