package repositories

import (
	"fmt"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository is the only writer of account balances.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// LockAccount loads the account row FOR UPDATE inside tx.
func (r *LedgerRepository) LockAccount(tx *gorm.DB, accountID uint) (*models.Account, error) {
	var account models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, accountID).Error; err != nil {
		if isNotFound(err) {
			return nil, errors.New(errors.ErrCodeNotFound, "account not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock account")
	}
	return &account, nil
}

// Debit removes amount from the balance and appends a negative entry.
// Fails with INSUFFICIENT_FUNDS without touching state if the balance is short.
func (r *LedgerRepository) Debit(tx *gorm.DB, accountID uint, amount int64, reason string, ref models.Ref) (*models.LedgerEntry, error) {
	if err := validateMovement(amount, reason); err != nil {
		return nil, err
	}
	account, err := r.LockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Balance < amount {
		return nil, errors.New(errors.ErrCodeInsufficientFunds, fmt.Sprintf("insufficient points: have %d, need %d", account.Balance, amount))
	}
	return r.apply(tx, account, -amount, reason, ref)
}

// Credit adds amount to the balance and appends a positive entry.
func (r *LedgerRepository) Credit(tx *gorm.DB, accountID uint, amount int64, reason string, ref models.Ref) (*models.LedgerEntry, error) {
	if err := validateMovement(amount, reason); err != nil {
		return nil, err
	}
	account, err := r.LockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}
	return r.apply(tx, account, amount, reason, ref)
}

func validateMovement(amount int64, reason string) error {
	if amount <= 0 {
		return errors.New(errors.ErrCodeValidation, "amount must be positive")
	}
	if !models.IsLedgerReason(reason) {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("unknown ledger reason %q", reason))
	}
	return nil
}

func (r *LedgerRepository) apply(tx *gorm.DB, account *models.Account, delta int64, reason string, ref models.Ref) (*models.LedgerEntry, error) {
	updates := map[string]interface{}{
		"balance": gorm.Expr("balance + ?", delta),
	}
	if delta > 0 {
		updates["total_earned"] = gorm.Expr("total_earned + ?", delta)
	} else {
		updates["total_spent"] = gorm.Expr("total_spent + ?", -delta)
	}
	if err := tx.Model(&models.Account{}).Where("id = ?", account.ID).Updates(updates).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to update balance")
	}

	entry := &models.LedgerEntry{
		AccountID:    account.ID,
		Amount:       delta,
		BalanceAfter: account.Balance + delta,
		Reason:       reason,
		RefType:      ref.Type,
		RefID:        ref.ID,
		Description:  ref.Description,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create ledger entry")
	}
	account.Balance += delta
	return entry, nil
}

// Balance returns the cached balance.
func (r *LedgerRepository) Balance(accountID uint) (int64, error) {
	var account models.Account
	result := r.db.Select("balance").First(&account, accountID)

	if isNotFound(result.Error) {
		return 0, errors.New(errors.ErrCodeNotFound, "account not found")
	}
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get balance")
	}

	return account.Balance, nil
}

// History returns the newest entries first.
func (r *LedgerRepository) History(accountID uint, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	result := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get ledger history")
	}

	return entries, nil
}

// Entries returns every entry created in [from, to), oldest first.
func (r *LedgerRepository) Entries(from, to time.Time, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	result := r.db.Where("created_at >= ? AND created_at < ?", from, to).
		Order("id ASC").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list ledger entries")
	}
	return entries, nil
}

// Verify compares the cached balance with the ledger sum.
func (r *LedgerRepository) Verify(accountID uint) error {
	var row struct {
		Balance int64
		Total   int64
	}
	err := r.db.Raw(`SELECT a.balance AS balance, COALESCE(SUM(l.amount), 0) AS total
		FROM accounts a LEFT JOIN ledger_entries l ON l.account_id = a.id
		WHERE a.id = ? GROUP BY a.id`, accountID).Scan(&row).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to verify ledger")
	}
	if row.Balance != row.Total {
		logger.Error("Ledger invariant violated", "account_id", accountID, "balance", row.Balance, "ledger_sum", row.Total)
		return errors.New(errors.ErrCodeInvariantViolation, fmt.Sprintf("balance %d does not match ledger sum %d", row.Balance, row.Total))
	}
	return nil
}

// Mismatch is an account whose balance drifted from its ledger.
type Mismatch struct {
	AccountID uint
	Balance   int64
	LedgerSum int64
}

// VerifyAll returns every account whose balance differs from its ledger sum.
func (r *LedgerRepository) VerifyAll() ([]Mismatch, error) {
	var rows []Mismatch
	err := r.db.Raw(`SELECT a.id AS account_id, a.balance AS balance, COALESCE(SUM(l.amount), 0) AS ledger_sum
		FROM accounts a LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id HAVING a.balance <> COALESCE(SUM(l.amount), 0)`).Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to audit ledger")
	}
	for _, m := range rows {
		logger.Error("Ledger invariant violated", "account_id", m.AccountID, "balance", m.Balance, "ledger_sum", m.LedgerSum)
	}
	return rows, nil
}
