package services

import (
	"time"

	"github.com/mroshb/reward_engine/internal/repositories"
	"gorm.io/gorm"
)

// Store bundles the database handle with every repository. Services open
// transactions on DB and pass the transaction to the repositories.
type Store struct {
	DB           *gorm.DB
	Accounts     *repositories.AccountRepository
	Ledger       *repositories.LedgerRepository
	Idempotency  *repositories.IdempotencyRepository
	Quota        *repositories.QuotaRepository
	Stock        *repositories.StockRepository
	Vouchers     *repositories.VoucherRepository
	Games        *repositories.GameRepository
	Configs      *repositories.ConfigRepository
	Markets      *repositories.MarketRepository
	Tasks        *repositories.TaskRepository
	Signins      *repositories.SigninRepository
	Exchanges    *repositories.ExchangeRepository
	Achievements *repositories.AchievementRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		DB:           db,
		Accounts:     repositories.NewAccountRepository(db),
		Ledger:       repositories.NewLedgerRepository(db),
		Idempotency:  repositories.NewIdempotencyRepository(db),
		Quota:        repositories.NewQuotaRepository(db),
		Stock:        repositories.NewStockRepository(db),
		Vouchers:     repositories.NewVoucherRepository(db),
		Games:        repositories.NewGameRepository(db),
		Configs:      repositories.NewConfigRepository(db),
		Markets:      repositories.NewMarketRepository(db),
		Tasks:        repositories.NewTaskRepository(db),
		Signins:      repositories.NewSigninRepository(db),
		Exchanges:    repositories.NewExchangeRepository(db),
		Achievements: repositories.NewAchievementRepository(db),
	}
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}
