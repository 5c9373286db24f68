package models

import (
	"time"

	"gorm.io/gorm"
)

// Account owns exactly one balance. Balance is a cache of the ledger sum and
// is only ever written by the ledger repository.
type Account struct {
	ID          uint      `gorm:"primaryKey"`
	ExternalID  string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Username    string    `gorm:"type:varchar(100)"`
	Role        string    `gorm:"type:varchar(20);default:'user';not null"`
	Balance     int64     `gorm:"default:0;not null"`
	TotalEarned int64     `gorm:"default:0;not null"`
	TotalSpent  int64     `gorm:"default:0;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// BeforeSave hook for validation
func (a *Account) BeforeSave(tx *gorm.DB) error {
	if a.Role != RoleUser && a.Role != RoleAdmin {
		return gorm.ErrInvalidData
	}
	if a.Balance < 0 {
		return gorm.ErrInvalidData
	}
	return nil
}

func (Account) TableName() string {
	return "accounts"
}

// AccountItem is the inventory of item prizes.
type AccountItem struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID uint      `gorm:"not null;uniqueIndex:idx_account_item"`
	ItemType  string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_account_item"`
	Quantity  int64     `gorm:"default:0;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (AccountItem) TableName() string {
	return "account_items"
}

// AccountBadge records a badge prize; each badge is owned at most once.
type AccountBadge struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID uint      `gorm:"not null;uniqueIndex:idx_account_badge"`
	BadgeKey  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_account_badge"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AccountBadge) TableName() string {
	return "account_badges"
}
