package repositories

import (
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarketRepository struct {
	db *gorm.DB
}

func NewMarketRepository(db *gorm.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts the market together with its options.
func (r *MarketRepository) Create(tx *gorm.DB, market *models.PredictionMarket) error {
	if err := tx.Create(market).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create market")
	}
	return nil
}

// Get loads a market with its options.
func (r *MarketRepository) Get(tx *gorm.DB, id uint) (*models.PredictionMarket, error) {
	var market models.PredictionMarket
	err := tx.Preload("Options", sorted).First(&market, id).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "market not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get market")
	}
	return &market, nil
}

// Lock loads a market row with the given lock strength ("KEY SHARE" or "UPDATE").
func (r *MarketRepository) Lock(tx *gorm.DB, id uint, strength string) (*models.PredictionMarket, error) {
	var market models.PredictionMarket
	err := tx.Clauses(clause.Locking{Strength: strength}).First(&market, id).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "market not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock market")
	}
	return &market, nil
}

// List returns markets newest first, optionally filtered by status.
func (r *MarketRepository) List(status string, limit, offset int) ([]models.PredictionMarket, error) {
	var markets []models.PredictionMarket
	query := r.db.Preload("Options", sorted)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&markets).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list markets")
	}
	return markets, nil
}

func (r *MarketRepository) Options(tx *gorm.DB, marketID uint) ([]models.MarketOption, error) {
	var options []models.MarketOption
	if err := sorted(tx.Where("market_id = ?", marketID)).Find(&options).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get market options")
	}
	return options, nil
}

// UpdateStatus moves a market from one status to another. It reports false
// when the market was no longer in the expected status.
func (r *MarketRepository) UpdateStatus(tx *gorm.DB, id uint, from []string, fields map[string]interface{}) (bool, error) {
	result := tx.Model(&models.PredictionMarket{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update market")
	}
	return result.RowsAffected == 1, nil
}

// AddStake adds stake to the option and to the market pool. Bets hold a KEY
// SHARE lock on the market, which the pool update's NO KEY UPDATE lock does
// not conflict with; close and settle take FOR UPDATE and still wait.
func (r *MarketRepository) AddStake(tx *gorm.DB, marketID, optionID uint, stake int64) error {
	result := tx.Model(&models.MarketOption{}).
		Where("id = ? AND market_id = ?", optionID, marketID).
		UpdateColumn("total_stake", gorm.Expr("total_stake + ?", stake))
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update option stake")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "option not found")
	}

	if err := tx.Model(&models.PredictionMarket{}).Where("id = ?", marketID).
		UpdateColumn("total_pool", gorm.Expr("total_pool + ?", stake)).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update market pool")
	}
	return nil
}

// RefreshPool stores the sum of option stakes as the market pool.
func (r *MarketRepository) RefreshPool(tx *gorm.DB, marketID uint) (int64, error) {
	var pool int64
	if err := tx.Model(&models.MarketOption{}).
		Select("COALESCE(SUM(total_stake), 0)").
		Where("market_id = ?", marketID).
		Scan(&pool).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to sum market pool")
	}
	if err := tx.Model(&models.PredictionMarket{}).Where("id = ?", marketID).
		UpdateColumn("total_pool", pool).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to update market pool")
	}
	return pool, nil
}

// MarkWinners flags the winning options and every other option as losing.
func (r *MarketRepository) MarkWinners(tx *gorm.DB, marketID uint, winners []uint) error {
	if err := tx.Model(&models.MarketOption{}).Where("market_id = ?", marketID).
		Update("is_winner", gorm.Expr("id IN ?", winners)).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to mark winners")
	}
	return nil
}

func (r *MarketRepository) CreateBet(tx *gorm.DB, bet *models.Bet) error {
	if err := tx.Create(bet).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create bet")
	}
	return nil
}

// PlacedBets returns the unsettled bets of a market ordered by account, so
// payouts lock accounts in ascending id order.
func (r *MarketRepository) PlacedBets(tx *gorm.DB, marketID uint) ([]models.Bet, error) {
	var bets []models.Bet
	err := tx.Where("market_id = ? AND status = ?", marketID, models.BetStatusPlaced).
		Order("account_id ASC, id ASC").
		Find(&bets).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get bets")
	}
	return bets, nil
}

// FinishBet writes a terminal status once.
func (r *MarketRepository) FinishBet(tx *gorm.DB, betID uint, status string, payout int64) error {
	result := tx.Model(&models.Bet{}).
		Where("id = ? AND status = ?", betID, models.BetStatusPlaced).
		Updates(map[string]interface{}{"status": status, "payout": payout})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to settle bet")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeInvariantViolation, "bet already settled")
	}
	return nil
}

// BetsByAccount returns an account's bets newest first.
func (r *MarketRepository) BetsByAccount(accountID, marketID uint, limit int) ([]models.Bet, error) {
	var bets []models.Bet
	query := r.db.Where("account_id = ?", accountID)
	if marketID != 0 {
		query = query.Where("market_id = ?", marketID)
	}
	if err := query.Order("id DESC").Limit(limit).Find(&bets).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get bets")
	}
	return bets, nil
}

// BetStats aggregates the bets of a market by status.
type BetStats struct {
	Status string
	Count  int64
	Stake  int64
	Payout int64
}

func (r *MarketRepository) BetStats(marketID uint) ([]BetStats, error) {
	var stats []BetStats
	err := r.db.Model(&models.Bet{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(stake), 0) AS stake, COALESCE(SUM(payout), 0) AS payout").
		Where("market_id = ?", marketID).
		Group("status").
		Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get bet stats")
	}
	return stats, nil
}

// DueToOpen returns draft markets whose opening time has passed.
func (r *MarketRepository) DueToOpen(now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.PredictionMarket{}).
		Where("status = ? AND opens_at IS NOT NULL AND opens_at <= ?", models.MarketStatusDraft, now).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get markets to open")
	}
	return ids, nil
}

// DueToClose returns open markets whose closing time has passed.
func (r *MarketRepository) DueToClose(now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.PredictionMarket{}).
		Where("status = ? AND closes_at IS NOT NULL AND closes_at <= ?", models.MarketStatusOpen, now).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get markets to close")
	}
	return ids, nil
}
