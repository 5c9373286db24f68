package services

import (
	"fmt"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
)

// Charge is how a play was paid for.
type Charge struct {
	UsedFreeCredit bool
	Cost           int64
	PlaysToday     int
}

// CreditSource resolves how a game play is funded: a free-credit voucher
// when requested and available, otherwise the daily quota and points.
type CreditSource struct {
	store   *Store
	periods Periods
}

func NewCreditSource(store *Store, periods Periods) *CreditSource {
	return &CreditSource{store: store, periods: periods}
}

// Resolve reserves the means of payment inside tx. Paid plays lock the
// account row and fail early when the balance cannot cover cost.
func (c *CreditSource) Resolve(tx *gorm.DB, actor Actor, game string, useFree bool, limit *int, cost int64, at time.Time) (Charge, error) {
	if useFree {
		ok, err := c.store.Vouchers.ConsumeFreeCredit(tx, actor.AccountID, game)
		if err != nil {
			return Charge{}, err
		}
		if ok {
			return Charge{UsedFreeCredit: true}, nil
		}
	}

	count, err := c.store.Quota.CheckAndIncrement(tx, actor.AccountID, game, c.periods.DayKey(at), limit, actor.IsAdmin)
	if err != nil {
		return Charge{}, err
	}

	account, err := c.store.Ledger.LockAccount(tx, actor.AccountID)
	if err != nil {
		return Charge{}, err
	}
	if account.Balance < cost {
		return Charge{}, errors.New(errors.ErrCodeInsufficientFunds, fmt.Sprintf("insufficient points: have %d, need %d", account.Balance, cost))
	}
	return Charge{Cost: cost, PlaysToday: count}, nil
}

// Collect debits the cost of a paid play.
func (c *CreditSource) Collect(tx *gorm.DB, accountID uint, charge Charge, reason string, ref models.Ref) error {
	if charge.UsedFreeCredit || charge.Cost <= 0 {
		return nil
	}
	_, err := c.store.Ledger.Debit(tx, accountID, charge.Cost, reason, ref)
	return err
}

// Remaining returns the plays left today, nil meaning unlimited.
func (c *CreditSource) Remaining(actor Actor, game string, limit *int, at time.Time) (*int, error) {
	if actor.IsAdmin {
		return nil, nil
	}
	return c.store.Quota.Remaining(actor.AccountID, game, c.periods.DayKey(at), limit)
}
