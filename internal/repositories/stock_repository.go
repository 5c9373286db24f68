package repositories

import (
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockRepository decrements bounded stock without ever going below zero.
type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

// TryReserve takes one unit of a prize. Unlimited prizes always succeed.
func (r *StockRepository) TryReserve(tx *gorm.DB, prizeID uint) (bool, error) {
	return r.reserve(tx, &models.PrizeEntry{}, prizeID)
}

// TryReserveExchange takes one unit of an exchange item.
func (r *StockRepository) TryReserveExchange(tx *gorm.DB, itemID uint) (bool, error) {
	return r.reserve(tx, &models.ExchangeItem{}, itemID)
}

func (r *StockRepository) reserve(tx *gorm.DB, model interface{}, id uint) (bool, error) {
	result := tx.Model(model).
		Where("id = ? AND stock > 0", id).
		UpdateColumn("stock", gorm.Expr("stock - 1"))
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to reserve stock")
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	var unlimited int64
	if err := tx.Model(model).Where("id = ? AND stock IS NULL", id).Count(&unlimited).Error; err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to check stock")
	}
	return unlimited == 1, nil
}

// Remaining returns the prize stock, nil meaning unlimited.
func (r *StockRepository) Remaining(prizeID uint) (*int64, error) {
	var prize models.PrizeEntry
	if err := r.db.Select("id", "stock").First(&prize, prizeID).Error; err != nil {
		if isNotFound(err) {
			return nil, errors.New(errors.ErrCodeNotFound, "prize not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get stock")
	}
	return prize.Stock, nil
}

// AssignRedemptionCode hands the next free code of usageType to the account.
// It returns nil when the pool is empty.
func (r *StockRepository) AssignRedemptionCode(tx *gorm.DB, accountID uint, usageType string) (*models.RedemptionCode, error) {
	var code models.RedemptionCode
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("assigned_to IS NULL AND usage_type = ?", usageType).
		Order("id ASC").
		First(&code).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to pick redemption code")
	}

	now := tx.NowFunc()
	if err := tx.Model(&code).Updates(map[string]interface{}{"assigned_to": accountID, "assigned_at": now}).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to assign redemption code")
	}
	code.AssignedTo = &accountID
	code.AssignedAt = &now
	return &code, nil
}

// AddRedemptionCodes loads codes into the pool, skipping known ones.
func (r *StockRepository) AddRedemptionCodes(codes []models.RedemptionCode) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&codes)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to add redemption codes")
	}
	return result.RowsAffected, nil
}
