package repositories

import (
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoucherRepository manages free-credit balances per game.
type VoucherRepository struct {
	db *gorm.DB
}

func NewVoucherRepository(db *gorm.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

func (r *VoucherRepository) HasFreeCredit(accountID uint, game string) (bool, error) {
	var count int64
	err := r.db.Model(&models.FreeCredit{}).
		Where("account_id = ? AND game = ? AND quantity > 0", accountID, game).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to check free credit")
	}
	return count > 0, nil
}

// ConsumeFreeCredit takes one voucher. It reports false when none is left.
func (r *VoucherRepository) ConsumeFreeCredit(tx *gorm.DB, accountID uint, game string) (bool, error) {
	result := tx.Model(&models.FreeCredit{}).
		Where("account_id = ? AND game = ? AND quantity > 0", accountID, game).
		UpdateColumn("quantity", gorm.Expr("quantity - 1"))
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to consume free credit")
	}
	return result.RowsAffected == 1, nil
}

// Grant adds qty vouchers for game.
func (r *VoucherRepository) Grant(tx *gorm.DB, accountID uint, game string, qty int) error {
	if !models.IsGame(game) {
		return errors.New(errors.ErrCodeValidation, "unknown game")
	}
	if qty <= 0 {
		return errors.New(errors.ErrCodeValidation, "quantity must be positive")
	}
	credit := &models.FreeCredit{AccountID: accountID, Game: game, Quantity: qty}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "game"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("free_credits.quantity + ?", qty)}),
	}).Create(credit).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to grant free credit")
	}
	return nil
}

// Quantity returns the vouchers left for one game.
func (r *VoucherRepository) Quantity(tx *gorm.DB, accountID uint, game string) (int, error) {
	var qty int
	err := tx.Model(&models.FreeCredit{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("account_id = ? AND game = ?", accountID, game).
		Scan(&qty).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get free credits")
	}
	return qty, nil
}

// Balances returns voucher counts keyed by game.
func (r *VoucherRepository) Balances(accountID uint) (map[string]int, error) {
	var credits []models.FreeCredit
	if err := r.db.Where("account_id = ?", accountID).Find(&credits).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get free credits")
	}
	out := make(map[string]int, len(credits))
	for _, c := range credits {
		out[c.Game] = c.Quantity
	}
	return out, nil
}
