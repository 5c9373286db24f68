package repositories

import (
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameRepository stores played games: gacha draws, slot spins and scratch cards.
type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) CreateDraw(tx *gorm.DB, draw *models.DrawRecord) error {
	if err := tx.Create(draw).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record draw")
	}
	return nil
}

func (r *GameRepository) CreateSlotDraw(tx *gorm.DB, draw *models.SlotDraw) error {
	if err := tx.Create(draw).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record spin")
	}
	return nil
}

func (r *GameRepository) CreateScratchCard(tx *gorm.DB, card *models.ScratchCard) error {
	if err := tx.Create(card).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create scratch card")
	}
	return nil
}

// LockScratchCard loads an owned card FOR UPDATE.
func (r *GameRepository) LockScratchCard(tx *gorm.DB, accountID uint, serial string) (*models.ScratchCard, error) {
	var card models.ScratchCard
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("serial = ? AND account_id = ?", serial, accountID).
		First(&card).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "scratch card not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get scratch card")
	}
	return &card, nil
}

// MarkRevealed flips a sold card to revealed.
func (r *GameRepository) MarkRevealed(tx *gorm.DB, card *models.ScratchCard, at time.Time) error {
	result := tx.Model(card).
		Where("status = ?", models.ScratchStatusSold).
		Updates(map[string]interface{}{"status": models.ScratchStatusRevealed, "revealed_at": at})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to reveal scratch card")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeInvalidState, "scratch card already revealed")
	}
	card.Status = models.ScratchStatusRevealed
	card.RevealedAt = &at
	return nil
}

// GetRecentDraws retrieves the latest gacha draws of an account
func (r *GameRepository) GetRecentDraws(accountID uint, limit int) ([]models.DrawRecord, error) {
	var draws []models.DrawRecord
	result := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&draws)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get draws")
	}

	return draws, nil
}

// GetRecentSpins retrieves the latest slot spins of an account
func (r *GameRepository) GetRecentSpins(accountID uint, limit int) ([]models.SlotDraw, error) {
	var spins []models.SlotDraw
	result := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&spins)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get spins")
	}

	return spins, nil
}

// GetScratchCards lists an account's cards, optionally filtered by status
func (r *GameRepository) GetScratchCards(accountID uint, status string, limit int) ([]models.ScratchCard, error) {
	var cards []models.ScratchCard
	query := r.db.Where("account_id = ?", accountID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&cards).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get scratch cards")
	}

	return cards, nil
}

// SpinStats aggregates slot spins since a point in time.
type SpinStats struct {
	Spins       int64
	TotalCost   int64
	TotalPayout int64
	Jackpots    int64
}

func (r *GameRepository) SpinStats(configID uint, since time.Time) (*SpinStats, error) {
	var stats SpinStats
	err := r.db.Model(&models.SlotDraw{}).
		Select("COUNT(*) AS spins, COALESCE(SUM(cost_points), 0) AS total_cost, COALESCE(SUM(payout), 0) AS total_payout, COALESCE(SUM(CASE WHEN is_jackpot THEN 1 ELSE 0 END), 0) AS jackpots").
		Where("config_id = ? AND created_at >= ?", configID, since).
		Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get spin stats")
	}
	return &stats, nil
}

// LuckyAccount is one row of the rare-draw leaderboard.
type LuckyAccount struct {
	AccountID uint      `json:"account_id"`
	Username  string    `json:"username"`
	WinCount  int64     `json:"win_count"`
	LastWinAt time.Time `json:"last_win_at"`
}

// LuckyLeaderboard ranks accounts by rare gacha draws, most first, ties
// going to the most recent win.
func (r *GameRepository) LuckyLeaderboard(limit int) ([]LuckyAccount, error) {
	var rows []LuckyAccount
	err := r.db.Model(&models.DrawRecord{}).
		Select("draw_records.account_id, accounts.username, COUNT(*) AS win_count, MAX(draw_records.created_at) AS last_win_at").
		Joins("JOIN accounts ON accounts.id = draw_records.account_id").
		Where("draw_records.is_rare = ?", true).
		Group("draw_records.account_id, accounts.username").
		Order("win_count DESC, last_win_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get lucky leaderboard")
	}
	return rows, nil
}

// RarePrizes returns the rare prize names each account drew, newest first.
func (r *GameRepository) RarePrizes(accountIDs []uint) (map[uint][]string, error) {
	prizes := make(map[uint][]string, len(accountIDs))
	if len(accountIDs) == 0 {
		return prizes, nil
	}
	var draws []models.DrawRecord
	err := r.db.Select("account_id", "prize_name").
		Where("is_rare = ? AND account_id IN ?", true, accountIDs).
		Order("created_at DESC, id DESC").
		Find(&draws).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get rare prizes")
	}
	for _, d := range draws {
		prizes[d.AccountID] = append(prizes[d.AccountID], d.PrizeName)
	}
	return prizes, nil
}

// RareWinner is one recent rare gacha draw.
type RareWinner struct {
	AccountID uint      `json:"account_id"`
	Username  string    `json:"username"`
	PrizeName string    `json:"prize_name"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentWinners returns the latest rare gacha draws, newest first.
func (r *GameRepository) RecentWinners(limit int) ([]RareWinner, error) {
	var rows []RareWinner
	err := r.db.Model(&models.DrawRecord{}).
		Select("draw_records.account_id, accounts.username, draw_records.prize_name, draw_records.created_at").
		Joins("JOIN accounts ON accounts.id = draw_records.account_id").
		Where("draw_records.is_rare = ?", true).
		Order("draw_records.created_at DESC, draw_records.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get recent winners")
	}
	return rows, nil
}
