package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Begin reserves token for the account inside tx. isNew is false when the
// token was already consumed; the returned key then carries the prior result.
//
// A concurrent Begin with the same token blocks on the unique index until the
// first transaction finishes, then sees its committed row.
func (r *IdempotencyRepository) Begin(tx *gorm.DB, accountID uint, scope, token string) (*models.IdempotencyKey, bool, error) {
	if token == "" {
		return nil, false, errors.New(errors.ErrCodeValidation, "request token is required")
	}
	if len(token) > 64 {
		return nil, false, errors.New(errors.ErrCodeValidation, "request token is too long")
	}

	key := &models.IdempotencyKey{
		AccountID: accountID,
		Token:     token,
		Scope:     scope,
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(key)
	if result.Error != nil {
		return nil, false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to reserve request token")
	}
	if result.RowsAffected == 1 {
		return key, true, nil
	}

	var existing models.IdempotencyKey
	if err := tx.Where("account_id = ? AND token = ?", accountID, token).First(&existing).Error; err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load request token")
	}
	if existing.Scope != scope {
		return nil, false, errors.New(errors.ErrCodeIdempotencyConflict, fmt.Sprintf("token already used for %s", existing.Scope))
	}
	return &existing, false, nil
}

// Complete stores the result of the action that consumed the key.
func (r *IdempotencyRepository) Complete(tx *gorm.DB, key *models.IdempotencyKey, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode result")
	}
	key.Result = data
	if err := tx.Model(key).Update("result", key.Result).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to store result")
	}
	return nil
}

// Decode unmarshals the stored result of a replayed key into out.
func (r *IdempotencyRepository) Decode(key *models.IdempotencyKey, out interface{}) error {
	if len(key.Result) == 0 {
		return errors.New(errors.ErrCodeInternalError, "request token has no stored result")
	}
	if err := json.Unmarshal(key.Result, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to decode stored result")
	}
	return nil
}
