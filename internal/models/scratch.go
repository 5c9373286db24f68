package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ScratchConfig struct {
	ID         uint           `gorm:"primaryKey"`
	Name       string         `gorm:"type:varchar(100);not null"`
	IsActive   bool           `gorm:"default:true;not null;index"`
	CostPoints int64          `gorm:"default:20;not null"`
	DailyLimit *int           `gorm:"default:10"`
	Prizes     []ScratchPrize `gorm:"foreignKey:ConfigID"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
}

func (ScratchConfig) TableName() string {
	return "scratch_configs"
}

// ScratchPrize has a fixed win probability. Probabilities of one config sum
// to at most 1; the remainder is the losing outcome.
type ScratchPrize struct {
	ID          uint                           `gorm:"primaryKey"`
	ConfigID    uint                           `gorm:"not null;index"`
	PrizeType   string                         `gorm:"type:varchar(20);not null"`
	PrizeName   string                         `gorm:"type:varchar(100);not null"`
	PrizeValue  datatypes.JSONType[PrizeValue] `gorm:"type:jsonb"`
	Probability decimal.Decimal                `gorm:"type:numeric(7,6);not null"`
	IsRare      bool                           `gorm:"default:false;not null"`
	IsEnabled   bool                           `gorm:"default:true;not null"`
	SortOrder   int                            `gorm:"default:0;not null"`
}

func (ScratchPrize) TableName() string {
	return "scratch_prizes"
}

// Scratch card statuses
const (
	ScratchStatusSold     = "SOLD"
	ScratchStatusRevealed = "REVEALED"
)

// ScratchCard carries its outcome from the moment it is sold; reveal only
// discloses and grants it.
type ScratchCard struct {
	ID             uint                           `gorm:"primaryKey"`
	AccountID      uint                           `gorm:"not null;index;uniqueIndex:idx_scratch_request"`
	ConfigID       uint                           `gorm:"not null;index"`
	Serial         string                         `gorm:"type:varchar(36);uniqueIndex;not null"`
	Status         string                         `gorm:"type:varchar(16);not null;default:'SOLD'"`
	PrizeID        uint                           `gorm:"default:0"`
	PrizeType      string                         `gorm:"type:varchar(20);not null"`
	PrizeName      string                         `gorm:"type:varchar(100);not null"`
	PrizeValue     datatypes.JSONType[PrizeValue] `gorm:"type:jsonb"`
	IsRare         bool                           `gorm:"default:false;not null"`
	CostPoints     int64                          `gorm:"default:0;not null"`
	UsedFreeCredit bool                           `gorm:"default:false;not null"`
	RequestID      string                         `gorm:"type:varchar(64);not null;uniqueIndex:idx_scratch_request"`
	RevealedAt     *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

func (ScratchCard) TableName() string {
	return "scratch_cards"
}
