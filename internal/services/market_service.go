package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/security"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxTitleLength  = 200
	maxLabelLength  = 100
	maxMarketOption = 20
)

// MarketDefaults fill the fields an admin leaves empty.
type MarketDefaults struct {
	FeeRate decimal.Decimal
	MinBet  int64
}

// MarketService runs pari-mutuel prediction markets.
type MarketService struct {
	store    *Store
	tasks    *TaskService
	defaults MarketDefaults
	now      Clock
}

func NewMarketService(store *Store, tasks *TaskService, defaults MarketDefaults) *MarketService {
	return &MarketService{store: store, tasks: tasks, defaults: defaults, now: systemClock}
}

type CreateMarketRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Options     []string         `json:"options"`
	FeeRate     *decimal.Decimal `json:"fee_rate"`
	MinBet      int64            `json:"min_bet"`
	MaxBet      *int64           `json:"max_bet"`
	OpensAt     *time.Time       `json:"opens_at"`
	ClosesAt    *time.Time       `json:"closes_at"`
}

type OptionView struct {
	ID         uint             `json:"id"`
	Label      string           `json:"label"`
	TotalStake int64            `json:"total_stake"`
	Odds       *decimal.Decimal `json:"odds"`
	IsWinner   *bool            `json:"is_winner,omitempty"`
}

// MarketView shows indicative odds. They change with every bet and are not
// the payout a bet is settled with.
type MarketView struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      string             `json:"status"`
	FeeRate     decimal.Decimal    `json:"fee_rate"`
	MinBet      int64              `json:"min_bet"`
	MaxBet      *int64             `json:"max_bet,omitempty"`
	OpensAt     *time.Time         `json:"opens_at,omitempty"`
	ClosesAt    *time.Time         `json:"closes_at,omitempty"`
	TotalPool   int64              `json:"total_pool"`
	Options     []OptionView       `json:"options"`
	Settlement  *models.Settlement `json:"settlement,omitempty"`
}

func marketView(m *models.PredictionMarket) MarketView {
	var pool int64
	for _, o := range m.Options {
		pool += o.TotalStake
	}
	view := MarketView{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      m.Status,
		FeeRate:     m.FeeRate,
		MinBet:      m.MinBet,
		MaxBet:      m.MaxBet,
		OpensAt:     m.OpensAt,
		ClosesAt:    m.ClosesAt,
		TotalPool:   pool,
		Options:     make([]OptionView, len(m.Options)),
	}
	for i, o := range m.Options {
		view.Options[i] = OptionView{
			ID:         o.ID,
			Label:      o.Label,
			TotalStake: o.TotalStake,
			Odds:       Odds(pool, o.TotalStake, m.FeeRate),
			IsWinner:   o.IsWinner,
		}
	}
	if m.Status == models.MarketStatusSettled {
		s := m.Settlement.Data()
		view.Settlement = &s
	}
	return view
}

// Create stores a new DRAFT market.
func (s *MarketService) Create(ctx context.Context, actor Actor, req CreateMarketRequest) (*MarketView, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}

	title := security.CleanText(req.Title, maxTitleLength)
	if title == "" {
		return nil, errors.New(errors.ErrCodeValidation, "title is required")
	}
	if len(req.Options) < 2 || len(req.Options) > maxMarketOption {
		return nil, errors.New(errors.ErrCodeValidation, fmt.Sprintf("a market needs between 2 and %d options", maxMarketOption))
	}

	fee := s.defaults.FeeRate
	if req.FeeRate != nil {
		fee = *req.FeeRate
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.New(errors.ErrCodeValidation, "fee rate must be in [0, 1)")
	}
	minBet := req.MinBet
	if minBet == 0 {
		minBet = s.defaults.MinBet
	}
	if minBet <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "minimum bet must be positive")
	}
	if req.MaxBet != nil && *req.MaxBet < minBet {
		return nil, errors.New(errors.ErrCodeValidation, "maximum bet is below the minimum bet")
	}
	if req.OpensAt != nil && req.ClosesAt != nil && !req.ClosesAt.After(*req.OpensAt) {
		return nil, errors.New(errors.ErrCodeValidation, "closes_at must be after opens_at")
	}

	market := &models.PredictionMarket{
		Title:       title,
		Description: security.CleanText(req.Description, 2000),
		Status:      models.MarketStatusDraft,
		FeeRate:     fee,
		MinBet:      minBet,
		MaxBet:      req.MaxBet,
		OpensAt:     req.OpensAt,
		ClosesAt:    req.ClosesAt,
		Settlement:  datatypes.NewJSONType(models.Settlement{}),
		CreatedBy:   actor.AccountID,
	}
	seen := make(map[string]bool, len(req.Options))
	for i, raw := range req.Options {
		label := security.CleanText(raw, maxLabelLength)
		if label == "" {
			return nil, errors.New(errors.ErrCodeValidation, "option labels must not be empty")
		}
		if seen[label] {
			return nil, errors.New(errors.ErrCodeValidation, "duplicate option "+label)
		}
		seen[label] = true
		market.Options = append(market.Options, models.MarketOption{Label: label, SortOrder: i})
	}

	if err := s.store.Markets.Create(s.store.DB.WithContext(ctx), market); err != nil {
		return nil, err
	}
	logger.Info("Market created", "market_id", market.ID, "admin_id", actor.AccountID, "options", len(market.Options))

	view := marketView(market)
	return &view, nil
}

// Open moves a DRAFT market to OPEN.
func (s *MarketService) Open(ctx context.Context, actor Actor, marketID uint) (*MarketView, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, marketID, models.MarketStatusDraft, models.MarketStatusOpen); err != nil {
		return nil, err
	}
	return s.Get(ctx, marketID)
}

// Close stops betting on an OPEN market.
func (s *MarketService) Close(ctx context.Context, actor Actor, marketID uint) (*MarketView, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, marketID, models.MarketStatusOpen, models.MarketStatusClosed); err != nil {
		return nil, err
	}
	return s.Get(ctx, marketID)
}

func (s *MarketService) transition(ctx context.Context, marketID uint, from, to string) error {
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		market, err := s.store.Markets.Lock(tx, marketID, "UPDATE")
		if err != nil {
			return err
		}
		if market.Status != from {
			return errors.New(errors.ErrCodeInvalidState, fmt.Sprintf("market is %s, expected %s", market.Status, from))
		}
		fields := map[string]interface{}{"status": to}
		if to == models.MarketStatusClosed {
			pool, err := s.store.Markets.RefreshPool(tx, marketID)
			if err != nil {
				return err
			}
			fields["total_pool"] = pool
		}
		if _, err := s.store.Markets.UpdateStatus(tx, marketID, []string{from}, fields); err != nil {
			return err
		}
		logger.Info("Market status changed", "market_id", marketID, "from", from, "to", to)
		return nil
	})
}

type PlaceBetRequest struct {
	Token    string `json:"request_id"`
	OptionID uint   `json:"option_id"`
	Stake    int64  `json:"stake"`
}

type BetResult struct {
	BetID    uint             `json:"bet_id"`
	MarketID uint             `json:"market_id"`
	OptionID uint             `json:"option_id"`
	Stake    int64            `json:"stake"`
	Odds     *decimal.Decimal `json:"current_odds"`
	Balance  int64            `json:"balance"`
	Replayed bool             `json:"replayed"`
}

// PlaceBet stakes points on an option of an OPEN market. The market row is
// key-share locked so that close and settle wait for in-flight bets.
func (s *MarketService) PlaceBet(ctx context.Context, actor Actor, marketID uint, req PlaceBetRequest) (*BetResult, error) {
	if err := checkToken(req.Token); err != nil {
		return nil, err
	}
	token := req.Token
	var result BetResult

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeBetPlace, token)
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

		market, err := s.store.Markets.Lock(tx, marketID, "KEY SHARE")
		if err != nil {
			return err
		}
		now := s.now()
		if !market.AcceptsBets(now) {
			return errors.New(errors.ErrCodeMarketNotOpen, "market is not accepting bets")
		}
		if req.Stake < market.MinBet {
			return errors.New(errors.ErrCodeValidation, fmt.Sprintf("minimum bet is %d", market.MinBet))
		}
		if market.MaxBet != nil && req.Stake > *market.MaxBet {
			return errors.New(errors.ErrCodeValidation, fmt.Sprintf("maximum bet is %d", *market.MaxBet))
		}

		bet := &models.Bet{
			AccountID: actor.AccountID,
			MarketID:  marketID,
			OptionID:  req.OptionID,
			Stake:     req.Stake,
			Status:    models.BetStatusPlaced,
			RequestID: token,
		}
		if err := s.store.Markets.AddStake(tx, marketID, req.OptionID, req.Stake); err != nil {
			return err
		}
		if err := s.store.Markets.CreateBet(tx, bet); err != nil {
			return err
		}

		ref := models.Ref{Type: models.RefTypeBet, ID: bet.ID, Description: market.Title}
		entry, err := s.store.Ledger.Debit(tx, actor.AccountID, req.Stake, models.ReasonBetStake, ref)
		if err != nil {
			return err
		}
		if err := s.tasks.RecordEvent(tx, actor.AccountID, models.TaskTypePrediction, fmt.Sprintf("bet:%d", bet.ID), ref, now); err != nil {
			return err
		}

		options, err := s.store.Markets.Options(tx, marketID)
		if err != nil {
			return err
		}
		var pool, optionStake int64
		for _, o := range options {
			pool += o.TotalStake
			if o.ID == req.OptionID {
				optionStake = o.TotalStake
			}
		}

		result = BetResult{
			BetID:    bet.ID,
			MarketID: marketID,
			OptionID: req.OptionID,
			Stake:    req.Stake,
			Odds:     Odds(pool, optionStake, market.FeeRate),
			Balance:  entry.BalanceAfter,
		}
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		logger.Info("Bet placed", "account_id", actor.AccountID, "market_id", marketID, "option_id", req.OptionID, "stake", req.Stake)
	}
	return &result, nil
}

// SettleResult is the settlement summary. Replayed is set when the market
// had already been settled with the same winners.
type SettleResult struct {
	MarketID   uint              `json:"market_id"`
	Settlement models.Settlement `json:"settlement"`
	Replayed   bool              `json:"replayed"`
}

// Settle pays a CLOSED market. Settling again with the same winners returns
// the stored summary without paying anything.
func (s *MarketService) Settle(ctx context.Context, actor Actor, marketID uint, winners []uint) (*SettleResult, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "at least one winning option is required")
	}
	result := &SettleResult{MarketID: marketID}

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		market, err := s.store.Markets.Lock(tx, marketID, "UPDATE")
		if err != nil {
			return err
		}

		switch market.Status {
		case models.MarketStatusSettled:
			stored := market.Settlement.Data()
			if !sameIDs(stored.WinnerOptionIDs, winners) {
				return errors.New(errors.ErrCodeAlreadySettled, "market was settled with different winners")
			}
			result.Settlement = stored
			result.Replayed = true
			return nil
		case models.MarketStatusClosed:
		default:
			return errors.New(errors.ErrCodeInvalidState, fmt.Sprintf("market is %s, expected %s", market.Status, models.MarketStatusClosed))
		}

		options, err := s.store.Markets.Options(tx, marketID)
		if err != nil {
			return err
		}
		known := make(map[uint]bool, len(options))
		for _, o := range options {
			known[o.ID] = true
		}
		for _, w := range winners {
			if !known[w] {
				return errors.New(errors.ErrCodeValidation, fmt.Sprintf("option %d does not belong to market %d", w, marketID))
			}
		}

		pool, err := s.store.Markets.RefreshPool(tx, marketID)
		if err != nil {
			return err
		}
		bets, err := s.store.Markets.PlacedBets(tx, marketID)
		if err != nil {
			return err
		}
		staked := make([]StakedBet, len(bets))
		for i, b := range bets {
			staked[i] = StakedBet{ID: b.ID, OptionID: b.OptionID, Stake: b.Stake}
		}

		payouts, summary := ComputePayouts(staked, winners, market.FeeRate)
		if summary.TotalPool != pool {
			logger.Error("Market pool differs from placed stakes", "market_id", marketID, "pool", pool, "stakes", summary.TotalPool)
			return errors.New(errors.ErrCodeInvariantViolation, "market pool does not match its bets")
		}

		for i, p := range payouts {
			if err := s.store.Markets.FinishBet(tx, p.BetID, p.Status, p.Amount); err != nil {
				return err
			}
			if p.Amount <= 0 {
				continue
			}
			reason := models.ReasonBetPayout
			if p.Status == models.BetStatusRefunded {
				reason = models.ReasonBetRefund
			}
			ref := models.Ref{Type: models.RefTypeBet, ID: p.BetID, Description: market.Title}
			if _, err := s.store.Ledger.Credit(tx, bets[i].AccountID, p.Amount, reason, ref); err != nil {
				return err
			}
		}

		if err := s.store.Markets.MarkWinners(tx, marketID, winners); err != nil {
			return err
		}
		if _, err := s.store.Markets.UpdateStatus(tx, marketID, []string{models.MarketStatusClosed}, map[string]interface{}{
			"status":     models.MarketStatusSettled,
			"settled_at": s.now(),
			"settlement": datatypes.NewJSONType(summary),
		}); err != nil {
			return err
		}
		result.Settlement = summary
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		logger.Info("Market settled",
			"market_id", marketID,
			"winners", result.Settlement.WinnerCount,
			"losers", result.Settlement.LoserCount,
			"refunds", result.Settlement.RefundCount,
			"payout", result.Settlement.TotalPayout,
		)
	}
	return result, nil
}

// CancelResult reports the refunds of a canceled market.
type CancelResult struct {
	MarketID     uint  `json:"market_id"`
	Refunded     int   `json:"refunded"`
	RefundAmount int64 `json:"refund_amount"`
}

// Cancel refunds every placed bet. A settled market cannot be canceled.
func (s *MarketService) Cancel(ctx context.Context, actor Actor, marketID uint) (*CancelResult, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	result := &CancelResult{MarketID: marketID}

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		market, err := s.store.Markets.Lock(tx, marketID, "UPDATE")
		if err != nil {
			return err
		}
		switch market.Status {
		case models.MarketStatusSettled:
			return errors.New(errors.ErrCodeAlreadySettled, "market is already settled")
		case models.MarketStatusCanceled:
			return errors.New(errors.ErrCodeInvalidState, "market is already canceled")
		}

		bets, err := s.store.Markets.PlacedBets(tx, marketID)
		if err != nil {
			return err
		}
		for _, b := range bets {
			if err := s.store.Markets.FinishBet(tx, b.ID, models.BetStatusRefunded, b.Stake); err != nil {
				return err
			}
			ref := models.Ref{Type: models.RefTypeBet, ID: b.ID, Description: market.Title}
			if _, err := s.store.Ledger.Credit(tx, b.AccountID, b.Stake, models.ReasonBetRefund, ref); err != nil {
				return err
			}
			result.Refunded++
			result.RefundAmount += b.Stake
		}

		if _, err := s.store.Markets.RefreshPool(tx, marketID); err != nil {
			return err
		}
		_, err = s.store.Markets.UpdateStatus(tx, marketID, []string{market.Status}, map[string]interface{}{
			"status": models.MarketStatusCanceled,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Market canceled", "market_id", marketID, "refunded", result.Refunded, "amount", result.RefundAmount)
	return result, nil
}

func (s *MarketService) Get(ctx context.Context, marketID uint) (*MarketView, error) {
	market, err := s.store.Markets.Get(s.store.DB.WithContext(ctx), marketID)
	if err != nil {
		return nil, err
	}
	view := marketView(market)
	return &view, nil
}

func (s *MarketService) List(status string, limit, offset int) ([]MarketView, error) {
	markets, err := s.store.Markets.List(status, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]MarketView, len(markets))
	for i := range markets {
		views[i] = marketView(&markets[i])
	}
	return views, nil
}

type BetView struct {
	ID        uint      `json:"id"`
	MarketID  uint      `json:"market_id"`
	OptionID  uint      `json:"option_id"`
	Stake     int64     `json:"stake"`
	Status    string    `json:"status"`
	Payout    *int64    `json:"payout,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Bets lists the account's bets, optionally for one market.
func (s *MarketService) Bets(accountID, marketID uint, limit int) ([]BetView, error) {
	bets, err := s.store.Markets.BetsByAccount(accountID, marketID, limit)
	if err != nil {
		return nil, err
	}
	views := make([]BetView, len(bets))
	for i, b := range bets {
		views[i] = BetView{
			ID:        b.ID,
			MarketID:  b.MarketID,
			OptionID:  b.OptionID,
			Stake:     b.Stake,
			Status:    b.Status,
			Payout:    b.Payout,
			CreatedAt: b.CreatedAt,
		}
	}
	return views, nil
}

type BetStatusStats struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Stake  int64  `json:"stake"`
	Payout int64  `json:"payout"`
}

type MarketStats struct {
	Market   MarketView       `json:"market"`
	ByStatus []BetStatusStats `json:"by_status"`
}

// Stats returns the market with its bets aggregated by status.
func (s *MarketService) Stats(ctx context.Context, actor Actor, marketID uint) (*MarketStats, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	view, err := s.Get(ctx, marketID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Markets.BetStats(marketID)
	if err != nil {
		return nil, err
	}
	stats := &MarketStats{Market: *view}
	for _, r := range rows {
		stats.ByStatus = append(stats.ByStatus, BetStatusStats{
			Status: r.Status,
			Count:  r.Count,
			Stake:  r.Stake,
			Payout: r.Payout,
		})
	}
	return stats, nil
}

// SweepSchedules opens and closes markets whose scheduled time has passed.
// A market that fails to move is logged and skipped.
func (s *MarketService) SweepSchedules(ctx context.Context) (opened, closed int) {
	now := s.now()

	toOpen, err := s.store.Markets.DueToOpen(now)
	if err != nil {
		logger.Error("Failed to list markets to open", "error", err)
	}
	for _, id := range toOpen {
		if err := s.transition(ctx, id, models.MarketStatusDraft, models.MarketStatusOpen); err != nil {
			logger.Warn("Failed to open market", "market_id", id, "error", err)
			continue
		}
		opened++
	}

	toClose, err := s.store.Markets.DueToClose(now)
	if err != nil {
		logger.Error("Failed to list markets to close", "error", err)
	}
	for _, id := range toClose {
		if err := s.transition(ctx, id, models.MarketStatusOpen, models.MarketStatusClosed); err != nil {
			logger.Warn("Failed to close market", "market_id", id, "error", err)
			continue
		}
		closed++
	}
	return opened, closed
}
