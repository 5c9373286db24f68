package models

import (
	"time"
)

type SigninRecord struct {
	ID          uint      `gorm:"primaryKey"`
	AccountID   uint      `gorm:"not null;uniqueIndex:idx_signin_day"`
	SigninDate  time.Time `gorm:"type:date;not null;uniqueIndex:idx_signin_day"`
	StreakDay   int       `gorm:"default:1;not null"`
	BasePoints  int64     `gorm:"default:0;not null"`
	BonusPoints int64     `gorm:"default:0;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (SigninRecord) TableName() string {
	return "signin_records"
}

// ExchangeItem sells free-credit vouchers for points.
type ExchangeItem struct {
	ID         uint      `gorm:"primaryKey"`
	Name       string    `gorm:"type:varchar(100);not null"`
	Game       string    `gorm:"type:varchar(20);not null"`
	Quantity   int       `gorm:"default:1;not null"`
	CostPoints int64     `gorm:"not null"`
	Stock      *int64    `gorm:"check:chk_exchange_stock,stock IS NULL OR stock >= 0"`
	IsActive   bool      `gorm:"default:true;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (ExchangeItem) TableName() string {
	return "exchange_items"
}

// ExchangeRecord is one redemption of an exchange item.
type ExchangeRecord struct {
	ID         uint      `gorm:"primaryKey"`
	AccountID  uint      `gorm:"not null;index:idx_exchange_account_time;uniqueIndex:idx_exchange_request"`
	ItemID     uint      `gorm:"not null;index"`
	ItemName   string    `gorm:"type:varchar(100);not null"`
	Game       string    `gorm:"type:varchar(20);not null"`
	Quantity   int       `gorm:"not null"`
	CostPoints int64     `gorm:"not null"`
	RequestID  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_exchange_request"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_exchange_account_time"`
}

func (ExchangeRecord) TableName() string {
	return "exchange_records"
}
