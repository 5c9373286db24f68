package services

import (
	"context"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/security"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/gorm"
)

type AccountService struct {
	store         *Store
	credit        *CreditSource
	welcomePoints int64
	now           Clock
}

func NewAccountService(store *Store, credit *CreditSource, welcomePoints int64) *AccountService {
	return &AccountService{store: store, credit: credit, welcomePoints: welcomePoints, now: systemClock}
}

// EnsureAccount returns the account of an external identity, creating it
// with the welcome bonus on first sight. created reports the first sight.
func (s *AccountService) EnsureAccount(ctx context.Context, externalID, username string) (account *models.Account, created bool, err error) {
	externalID = security.SanitizeString(externalID, 64)
	if externalID == "" {
		return nil, false, errors.New(errors.ErrCodeValidation, "external id is required")
	}
	account = &models.Account{
		ExternalID: externalID,
		Username:   security.CleanText(username, 100),
		Role:       models.RoleUser,
	}

	err = s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err = s.store.Accounts.CreateIfAbsent(tx, account)
		if err != nil {
			return err
		}
		if !created || s.welcomePoints <= 0 {
			return nil
		}
		locked, err := s.store.Ledger.LockAccount(tx, account.ID)
		if err != nil {
			return err
		}
		if _, err := s.store.Ledger.Credit(tx, account.ID, s.welcomePoints, models.ReasonWelcomeBonus, models.Ref{
			Type: models.RefTypeAccount,
			ID:   account.ID,
		}); err != nil {
			return err
		}
		account.Balance = locked.Balance + s.welcomePoints
		logger.Info("Account created", "account_id", account.ID, "external_id", externalID)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return account, created, nil
}

func (s *AccountService) Get(accountID uint) (*models.Account, error) {
	return s.store.Accounts.GetByID(accountID)
}

// GameStatus is what a client shows before a play.
type GameStatus struct {
	Game           string `json:"game"`
	CostPoints     int64  `json:"cost_points"`
	DailyLimit     *int   `json:"daily_limit"`
	RemainingToday *int   `json:"remaining_today"`
	FreeCredits    int    `json:"free_credits"`
}

type AccountStatus struct {
	AccountID   uint         `json:"account_id"`
	Balance     int64        `json:"balance"`
	TotalEarned int64        `json:"total_earned"`
	TotalSpent  int64        `json:"total_spent"`
	Games       []GameStatus `json:"games"`
}

// Status reports the balance and, per game, cost, free credits and the
// plays left today. A game without an active configuration is omitted.
func (s *AccountService) Status(ctx context.Context, actor Actor) (*AccountStatus, error) {
	account, err := s.store.Accounts.GetByID(actor.AccountID)
	if err != nil {
		return nil, err
	}
	vouchers, err := s.store.Vouchers.Balances(actor.AccountID)
	if err != nil {
		return nil, err
	}

	status := &AccountStatus{
		AccountID:   account.ID,
		Balance:     account.Balance,
		TotalEarned: account.TotalEarned,
		TotalSpent:  account.TotalSpent,
	}

	db := s.store.DB.WithContext(ctx)
	type gameConfig struct {
		game  string
		cost  int64
		limit *int
	}
	var games []gameConfig
	if cfg, err := s.store.Configs.ActiveRewardConfig(db); err == nil {
		games = append(games, gameConfig{models.GameGacha, cfg.CostPoints, cfg.DailyLimit})
	} else if !errors.Is(err, errors.ErrCodeNotFound) {
		return nil, err
	}
	if cfg, err := s.store.Configs.ActiveSlotConfig(db); err == nil {
		games = append(games, gameConfig{models.GameSlot, cfg.CostPoints, cfg.DailyLimit})
	} else if !errors.Is(err, errors.ErrCodeNotFound) {
		return nil, err
	}
	if cfg, err := s.store.Configs.ActiveScratchConfig(db); err == nil {
		games = append(games, gameConfig{models.GameScratch, cfg.CostPoints, cfg.DailyLimit})
	} else if !errors.Is(err, errors.ErrCodeNotFound) {
		return nil, err
	}

	now := s.now()
	for _, g := range games {
		remaining, err := s.credit.Remaining(actor, g.game, g.limit, now)
		if err != nil {
			return nil, err
		}
		status.Games = append(status.Games, GameStatus{
			Game:           g.game,
			CostPoints:     g.cost,
			DailyLimit:     g.limit,
			RemainingToday: remaining,
			FreeCredits:    vouchers[g.game],
		})
	}
	return status, nil
}

// History returns ledger entries newest first.
func (s *AccountService) History(accountID uint, limit, offset int) ([]models.LedgerEntry, error) {
	return s.store.Ledger.History(accountID, limit, offset)
}

type Inventory struct {
	Items  []models.AccountItem  `json:"items"`
	Badges []models.AccountBadge `json:"badges"`
}

func (s *AccountService) Inventory(accountID uint) (*Inventory, error) {
	items, err := s.store.Accounts.Items(accountID)
	if err != nil {
		return nil, err
	}
	badges, err := s.store.Accounts.Badges(accountID)
	if err != nil {
		return nil, err
	}
	return &Inventory{Items: items, Badges: badges}, nil
}
