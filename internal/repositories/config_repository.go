package repositories

import (
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
)

// ConfigRepository reads and edits the admin-managed game configurations.
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func sorted(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, id ASC")
}

// ActiveRewardConfig returns the newest active gacha pool with its prizes.
func (r *ConfigRepository) ActiveRewardConfig(tx *gorm.DB) (*models.RewardConfig, error) {
	var cfg models.RewardConfig
	err := tx.Preload("Prizes", sorted).
		Where("is_active = ?", true).
		Order("id DESC").
		First(&cfg).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "no active gacha configuration")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get gacha configuration")
	}
	return &cfg, nil
}

// ActiveSlotConfig returns the newest active slot configuration with symbols and rules.
func (r *ConfigRepository) ActiveSlotConfig(tx *gorm.DB) (*models.SlotConfig, error) {
	var cfg models.SlotConfig
	err := tx.Preload("Symbols", sorted).
		Preload("Rules", sorted).
		Where("is_active = ?", true).
		Order("id DESC").
		First(&cfg).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "no active slot configuration")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get slot configuration")
	}
	return &cfg, nil
}

// ActiveScratchConfig returns the newest active scratch configuration with its prizes.
func (r *ConfigRepository) ActiveScratchConfig(tx *gorm.DB) (*models.ScratchConfig, error) {
	var cfg models.ScratchConfig
	err := tx.Preload("Prizes", sorted).
		Where("is_active = ?", true).
		Order("id DESC").
		First(&cfg).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "no active scratch configuration")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get scratch configuration")
	}
	return &cfg, nil
}

// ReplacePrizes swaps the prize list of a gacha configuration.
func (r *ConfigRepository) ReplacePrizes(configID uint, prizes []models.PrizeEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var cfg models.RewardConfig
		if err := tx.First(&cfg, configID).Error; err != nil {
			if isNotFound(err) {
				return errors.New(errors.ErrCodeNotFound, "gacha configuration not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get gacha configuration")
		}
		if err := tx.Where("config_id = ?", configID).Delete(&models.PrizeEntry{}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to remove prizes")
		}
		for i := range prizes {
			prizes[i].ID = 0
			prizes[i].ConfigID = configID
		}
		if len(prizes) == 0 {
			return nil
		}
		if err := tx.Create(&prizes).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create prizes")
		}
		return nil
	})
}

// SetPrizeEnabled toggles one prize entry.
func (r *ConfigRepository) SetPrizeEnabled(prizeID uint, enabled bool) error {
	result := r.db.Model(&models.PrizeEntry{}).Where("id = ?", prizeID).Update("is_enabled", enabled)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update prize")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "prize not found")
	}
	return nil
}

func (r *ConfigRepository) ExchangeItems() ([]models.ExchangeItem, error) {
	var items []models.ExchangeItem
	if err := r.db.Where("is_active = ?", true).Order("cost_points ASC, id ASC").Find(&items).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get exchange items")
	}
	return items, nil
}

func (r *ConfigRepository) GetExchangeItem(tx *gorm.DB, id uint) (*models.ExchangeItem, error) {
	var item models.ExchangeItem
	err := tx.First(&item, id).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "exchange item not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get exchange item")
	}
	return &item, nil
}
