package repositories

import (
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateIfAbsent inserts the account unless its external ID is known. It
// reports whether a row was created; account is loaded either way.
func (r *AccountRepository) CreateIfAbsent(tx *gorm.DB, account *models.Account) (bool, error) {
	if account.Role == "" {
		account.Role = models.RoleUser
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(account)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create account")
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	if err := tx.Where("external_id = ?", account.ExternalID).First(account).Error; err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load account")
	}
	return false, nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	result := r.db.First(&account, id)

	if isNotFound(result.Error) {
		return nil, errors.New(errors.ErrCodeNotFound, "account not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get account")
	}

	return &account, nil
}

// GetByExternalID retrieves an account by the identity provider's ID
func (r *AccountRepository) GetByExternalID(externalID string) (*models.Account, error) {
	var account models.Account
	result := r.db.Where("external_id = ?", externalID).First(&account)

	if isNotFound(result.Error) {
		return nil, errors.New(errors.ErrCodeNotFound, "account not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get account")
	}

	return &account, nil
}

func (r *AccountRepository) SetRole(id uint, role string) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return errors.New(errors.ErrCodeValidation, "unknown role")
	}
	result := r.db.Model(&models.Account{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update role")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "account not found")
	}
	return nil
}

// IDs returns account IDs in ascending order, for batch jobs.
func (r *AccountRepository) IDs(afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Account{}).Where("id > ?", afterID).Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list accounts")
	}
	return ids, nil
}

// AddItem increments the inventory count of itemType.
func (r *AccountRepository) AddItem(tx *gorm.DB, accountID uint, itemType string, qty int64) error {
	item := &models.AccountItem{AccountID: accountID, ItemType: itemType, Quantity: qty}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "item_type"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("account_items.quantity + ?", qty)}),
	}).Create(item).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to add item")
	}
	return nil
}

// GrantBadge reports false when the account already owns the badge.
func (r *AccountRepository) GrantBadge(tx *gorm.DB, accountID uint, badgeKey string) (bool, error) {
	badge := &models.AccountBadge{AccountID: accountID, BadgeKey: badgeKey}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(badge)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to grant badge")
	}
	return result.RowsAffected == 1, nil
}

func (r *AccountRepository) Items(accountID uint) ([]models.AccountItem, error) {
	var items []models.AccountItem
	if err := r.db.Where("account_id = ? AND quantity > 0", accountID).Order("item_type").Find(&items).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get items")
	}
	return items, nil
}

func (r *AccountRepository) Badges(accountID uint) ([]models.AccountBadge, error) {
	var badges []models.AccountBadge
	if err := r.db.Where("account_id = ?", accountID).Order("created_at").Find(&badges).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get badges")
	}
	return badges, nil
}
