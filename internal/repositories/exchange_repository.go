package repositories

import (
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
)

type ExchangeRepository struct {
	db *gorm.DB
}

func NewExchangeRepository(db *gorm.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

func (r *ExchangeRepository) Create(tx *gorm.DB, record *models.ExchangeRecord) error {
	if err := tx.Create(record).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record exchange")
	}
	return nil
}

// History returns an account's redemptions, newest first.
func (r *ExchangeRepository) History(accountID uint, limit int) ([]models.ExchangeRecord, error) {
	var records []models.ExchangeRecord
	err := r.db.Where("account_id = ?", accountID).Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get exchange history")
	}
	return records, nil
}
