package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Market statuses. CANCELED is reachable from every status except SETTLED.
const (
	MarketStatusDraft    = "DRAFT"
	MarketStatusOpen     = "OPEN"
	MarketStatusClosed   = "CLOSED"
	MarketStatusSettled  = "SETTLED"
	MarketStatusCanceled = "CANCELED"
)

// Settlement is stored on the market when it settles so that a repeated
// settle call can answer without touching bets again.
type Settlement struct {
	WinnerOptionIDs []uint `json:"winner_option_ids"`
	TotalPool       int64  `json:"total_pool"`
	WinningStake    int64  `json:"winning_stake"`
	Distributable   int64  `json:"distributable"`
	TotalPayout     int64  `json:"total_payout"`
	WinnerCount     int    `json:"winner_count"`
	LoserCount      int    `json:"loser_count"`
	RefundCount     int    `json:"refund_count"`
}

type PredictionMarket struct {
	ID          uint            `gorm:"primaryKey"`
	Title       string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	Status      string          `gorm:"type:varchar(16);not null;default:'DRAFT';index"`
	FeeRate     decimal.Decimal `gorm:"type:numeric(5,4);not null;default:0.05"`
	MinBet      int64           `gorm:"default:10;not null"`
	MaxBet      *int64
	OpensAt     *time.Time `gorm:"index"`
	ClosesAt    *time.Time `gorm:"index"`
	SettledAt   *time.Time
	TotalPool   int64                          `gorm:"default:0;not null;check:chk_market_pool,total_pool >= 0"`
	Settlement  datatypes.JSONType[Settlement] `gorm:"type:jsonb"`
	CreatedBy   uint                           `gorm:"default:0"`
	Options     []MarketOption                 `gorm:"foreignKey:MarketID"`
	CreatedAt   time.Time                      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time                      `gorm:"autoUpdateTime"`
}

// AcceptsBets reports whether a bet placed at now is allowed.
func (m *PredictionMarket) AcceptsBets(now time.Time) bool {
	if m.Status != MarketStatusOpen {
		return false
	}
	return m.ClosesAt == nil || now.Before(*m.ClosesAt)
}

func (PredictionMarket) TableName() string {
	return "prediction_markets"
}

type MarketOption struct {
	ID          uint   `gorm:"primaryKey"`
	MarketID    uint   `gorm:"not null;index"`
	Label       string `gorm:"type:varchar(100);not null"`
	Description string `gorm:"type:text"`
	SortOrder   int    `gorm:"default:0;not null"`
	TotalStake  int64  `gorm:"default:0;not null"`
	IsWinner    *bool
}

func (MarketOption) TableName() string {
	return "market_options"
}

// Bet statuses
const (
	BetStatusPlaced   = "PLACED"
	BetStatusWon      = "WON"
	BetStatusLost     = "LOST"
	BetStatusRefunded = "REFUNDED"
)

type Bet struct {
	ID        uint   `gorm:"primaryKey"`
	AccountID uint   `gorm:"not null;index;uniqueIndex:idx_bet_request"`
	MarketID  uint   `gorm:"not null;index"`
	OptionID  uint   `gorm:"not null;index"`
	Stake     int64  `gorm:"not null"`
	Status    string `gorm:"type:varchar(16);not null;default:'PLACED'"`
	Payout    *int64
	RequestID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_bet_request"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Bet) TableName() string {
	return "bets"
}
