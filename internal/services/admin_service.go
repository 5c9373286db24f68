package services

import (
	"context"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/repositories"
	"github.com/mroshb/reward_engine/internal/security"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/gorm"
)

// AdminService holds the operator actions that move points or vouchers
// outside of games.
type AdminService struct {
	store *Store
}

func NewAdminService(store *Store) *AdminService {
	return &AdminService{store: store}
}

type AdjustRequest struct {
	Token     string `json:"request_id"`
	AccountID uint   `json:"account_id"`
	Amount    int64  `json:"amount"`
	Note      string `json:"note"`
}

type AdjustResult struct {
	AccountID uint  `json:"account_id"`
	EntryID   uint  `json:"entry_id"`
	Amount    int64 `json:"amount"`
	Balance   int64 `json:"balance"`
	Replayed  bool  `json:"replayed"`
}

// AdjustPoints credits a positive amount or debits a negative one. A debit
// larger than the balance fails with INSUFFICIENT_FUNDS.
func (s *AdminService) AdjustPoints(ctx context.Context, actor Actor, req AdjustRequest) (*AdjustResult, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if req.Amount == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount must not be zero")
	}
	if err := checkToken(req.Token); err != nil {
		return nil, err
	}
	token := req.Token
	var result AdjustResult

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeAdminAdjust, token)
		if err != nil {
			return err
		}
		if !isNew {
			if err := s.store.Idempotency.Decode(key, &result); err != nil {
				return err
			}
			result.Replayed = true
			return nil
		}

		ref := models.Ref{Type: models.RefTypeAdmin, ID: actor.AccountID, Description: security.CleanText(req.Note, 500)}
		var entry *models.LedgerEntry
		if req.Amount > 0 {
			entry, err = s.store.Ledger.Credit(tx, req.AccountID, req.Amount, models.ReasonAdminAdjust, ref)
		} else {
			entry, err = s.store.Ledger.Debit(tx, req.AccountID, -req.Amount, models.ReasonAdminAdjust, ref)
		}
		if err != nil {
			return err
		}

		result = AdjustResult{
			AccountID: req.AccountID,
			EntryID:   entry.ID,
			Amount:    req.Amount,
			Balance:   entry.BalanceAfter,
		}
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		logger.Info("Points adjusted", "admin_id", actor.AccountID, "account_id", req.AccountID, "amount", req.Amount)
	}
	return &result, nil
}

type VoucherGrantRequest struct {
	Token     string `json:"request_id"`
	AccountID uint   `json:"account_id"`
	Game      string `json:"game"`
	Quantity  int    `json:"quantity"`
}

type VoucherGrantResult struct {
	AccountID   uint   `json:"account_id"`
	Game        string `json:"game"`
	FreeCredits int    `json:"free_credits"`
	Replayed    bool   `json:"replayed"`
}

// GrantVoucher adds free-credit vouchers to an account.
func (s *AdminService) GrantVoucher(ctx context.Context, actor Actor, req VoucherGrantRequest) (*VoucherGrantResult, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if err := checkToken(req.Token); err != nil {
		return nil, err
	}
	token := req.Token
	var result VoucherGrantResult

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeVoucherGrant, token)
		if err != nil {
			return err
		}
		if !isNew {
			if err := s.store.Idempotency.Decode(key, &result); err != nil {
				return err
			}
			result.Replayed = true
			return nil
		}

		if _, err := s.store.Ledger.LockAccount(tx, req.AccountID); err != nil {
			return err
		}
		if err := s.store.Vouchers.Grant(tx, req.AccountID, req.Game, req.Quantity); err != nil {
			return err
		}
		credits, err := s.store.Vouchers.Quantity(tx, req.AccountID, req.Game)
		if err != nil {
			return err
		}

		result = VoucherGrantResult{AccountID: req.AccountID, Game: req.Game, FreeCredits: credits}
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		logger.Info("Vouchers granted", "admin_id", actor.AccountID, "account_id", req.AccountID, "game", req.Game, "quantity", req.Quantity)
	}
	return &result, nil
}

// AuditLedger checks every balance against its ledger sum.
func (s *AdminService) AuditLedger(ctx context.Context, actor Actor) ([]repositories.Mismatch, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	return s.store.Ledger.VerifyAll()
}

// LedgerEntries returns entries created in [from, to) for export.
func (s *AdminService) LedgerEntries(actor Actor, from, to time.Time, limit int) ([]models.LedgerEntry, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, errors.New(errors.ErrCodeValidation, "empty time range")
	}
	return s.store.Ledger.Entries(from, to, limit)
}

func (s *AdminService) SetRole(actor Actor, accountID uint, role string) error {
	if err := actor.requireAdmin(); err != nil {
		return err
	}
	if err := s.store.Accounts.SetRole(accountID, role); err != nil {
		return err
	}
	logger.Info("Role changed", "admin_id", actor.AccountID, "account_id", accountID, "role", role)
	return nil
}

func (s *AdminService) SetPrizeEnabled(actor Actor, prizeID uint, enabled bool) error {
	if err := actor.requireAdmin(); err != nil {
		return err
	}
	return s.store.Configs.SetPrizeEnabled(prizeID, enabled)
}

// AddRedemptionCodes stocks the code pool of a usage type.
func (s *AdminService) AddRedemptionCodes(actor Actor, usageType string, codes []string, quota int64) (int64, error) {
	if err := actor.requireAdmin(); err != nil {
		return 0, err
	}
	rows := make([]models.RedemptionCode, 0, len(codes))
	for _, c := range codes {
		c = security.SanitizeString(c, 64)
		if c == "" {
			continue
		}
		rows = append(rows, models.RedemptionCode{Code: c, UsageType: usageType, Quota: quota})
	}
	if len(rows) == 0 {
		return 0, errors.New(errors.ErrCodeValidation, "no codes given")
	}
	return s.store.Stock.AddRedemptionCodes(rows)
}
