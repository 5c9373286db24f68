package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/gorm"
)

// TaskService turns business events into task progress and pays task rewards.
type TaskService struct {
	store   *Store
	periods Periods
	now     Clock
}

func NewTaskService(store *Store, periods Periods) *TaskService {
	return &TaskService{store: store, periods: periods, now: systemClock}
}

// ClaimResult is returned by Claim and stored for token replays.
type ClaimResult struct {
	TaskID      uint      `json:"task_id"`
	ClaimID     uint      `json:"claim_id"`
	Reward      int64     `json:"reward_points"`
	PeriodStart time.Time `json:"period_start"`
	Balance     int64     `json:"balance"`
	Replayed    bool      `json:"replayed"`
}

// TaskView is a definition with the account's progress in the current period.
type TaskView struct {
	ID           uint       `json:"id"`
	TaskKey      string     `json:"task_key"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Schedule     string     `json:"schedule"`
	TaskType     string     `json:"task_type"`
	RewardPoints int64      `json:"reward_points"`
	Progress     int        `json:"progress"`
	Target       int        `json:"target"`
	Completed    bool       `json:"completed"`
	Claimed      bool       `json:"claimed"`
	AutoClaim    bool       `json:"auto_claim"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RecordEvent counts a business event for every active task of taskType.
// An eventKey counts at most once per account and period; repeats are a
// no-op. It runs inside the caller's transaction.
func (s *TaskService) RecordEvent(tx *gorm.DB, accountID uint, taskType, eventKey string, ref models.Ref, at time.Time) error {
	if taskType == models.TaskTypeChainBonus {
		return errors.New(errors.ErrCodeValidation, "chain bonuses cannot be driven by events")
	}
	defs, err := s.store.Tasks.Definitions(tx, taskType)
	if err != nil {
		return err
	}

	bySchedule := make(map[string][]models.TaskDefinition)
	for _, d := range defs {
		if d.ActiveAt(at) {
			bySchedule[d.Schedule] = append(bySchedule[d.Schedule], d)
		}
	}

	for _, schedule := range []string{models.TaskScheduleDaily, models.TaskScheduleWeekly} {
		scheduled := bySchedule[schedule]
		if len(scheduled) == 0 {
			continue
		}
		start, end := s.periods.Bounds(schedule, at)

		fresh, err := s.store.Tasks.InsertEvent(tx, &models.TaskEvent{
			AccountID:   accountID,
			Schedule:    schedule,
			PeriodStart: start,
			EventKey:    eventKey,
			TaskType:    taskType,
			RefType:     ref.Type,
			RefID:       ref.ID,
		})
		if err != nil {
			return err
		}
		if !fresh {
			logger.Debug("Duplicate task event ignored", "account_id", accountID, "event_key", eventKey, "schedule", schedule)
			continue
		}

		for i := range scheduled {
			if err := s.advance(tx, accountID, &scheduled[i], start, end, at); err != nil {
				return err
			}
		}
	}
	return nil
}

// externalTaskTypes are fed by other systems rather than by this engine.
var externalTaskTypes = map[string]bool{
	models.TaskTypeBrowse:  true,
	models.TaskTypeCheer:   true,
	models.TaskTypeVote:    true,
	models.TaskTypeComment: true,
}

// Track records an event reported by a trusted integration for accountID.
func (s *TaskService) Track(ctx context.Context, actor Actor, accountID uint, taskType, eventKey string) error {
	if err := actor.requireAdmin(); err != nil {
		return err
	}
	if !externalTaskTypes[taskType] {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("task type %q cannot be reported externally", taskType))
	}
	if eventKey == "" || len(eventKey) > 128 {
		return errors.New(errors.ErrCodeValidation, "event key must be 1 to 128 characters")
	}
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.store.Ledger.LockAccount(tx, accountID); err != nil {
			return err
		}
		return s.RecordEvent(tx, accountID, taskType, eventKey, models.Ref{Type: strings.ToLower(taskType)}, s.now())
	})
}

func (s *TaskService) advance(tx *gorm.DB, accountID uint, def *models.TaskDefinition, start, end, at time.Time) error {
	progress, err := s.store.Tasks.LockProgress(tx, accountID, def, start, end)
	if err != nil {
		return err
	}
	if progress.Completed() {
		return nil
	}

	progress.ProgressValue++
	progress.LastEventAt = &at
	if progress.ProgressValue >= progress.TargetValue {
		progress.CompletedAt = &at
	}
	if err := s.store.Tasks.SaveProgress(tx, progress); err != nil {
		return err
	}
	if !progress.Completed() {
		return nil
	}
	return s.onCompleted(tx, accountID, def, progress, at)
}

func (s *TaskService) onCompleted(tx *gorm.DB, accountID uint, def *models.TaskDefinition, progress *models.TaskProgress, at time.Time) error {
	logger.Info("Task completed", "account_id", accountID, "task_key", def.TaskKey, "period_start", progress.PeriodStart)

	if def.Schedule == models.TaskScheduleDaily {
		if err := s.updateStreak(tx, accountID, progress.PeriodStart); err != nil {
			return err
		}
	}
	if def.AutoClaim {
		if _, err := s.claim(tx, accountID, def, progress, at); err != nil {
			return err
		}
	}
	if def.ChainGroupKey != "" {
		return s.unlockChainBonuses(tx, accountID, def.ChainGroupKey, at)
	}
	return nil
}

// unlockChainBonuses completes chain bonuses whose required group is done.
func (s *TaskService) unlockChainBonuses(tx *gorm.DB, accountID uint, group string, at time.Time) error {
	bonuses, err := s.store.Tasks.ChainBonuses(tx, group)
	if err != nil {
		return err
	}
	for i := range bonuses {
		bonus := &bonuses[i]
		if !bonus.ActiveAt(at) {
			continue
		}
		start, end := s.periods.Bounds(bonus.Schedule, at)
		total, completed, err := s.store.Tasks.GroupCompletion(tx, accountID, group, start)
		if err != nil {
			return err
		}
		if total == 0 || completed < total {
			continue
		}

		progress, err := s.store.Tasks.LockProgress(tx, accountID, bonus, start, end)
		if err != nil {
			return err
		}
		if progress.Completed() {
			continue
		}
		progress.ProgressValue = progress.TargetValue
		progress.CompletedAt = &at
		progress.LastEventAt = &at
		if err := s.store.Tasks.SaveProgress(tx, progress); err != nil {
			return err
		}
		if err := s.onCompleted(tx, accountID, bonus, progress, at); err != nil {
			return err
		}
	}
	return nil
}

func (s *TaskService) updateStreak(tx *gorm.DB, accountID uint, day time.Time) error {
	streak, err := s.store.Tasks.LockStreak(tx, accountID)
	if err != nil {
		return err
	}
	if streak.LastDate != nil && streak.LastDate.Equal(day) {
		return nil
	}
	if streak.LastDate != nil && streak.LastDate.AddDate(0, 0, 1).Equal(day) {
		streak.Current++
	} else {
		streak.Current = 1
	}
	if streak.Current > streak.Longest {
		streak.Longest = streak.Current
	}
	streak.LastDate = &day
	return s.store.Tasks.SaveStreak(tx, streak)
}

// Claim pays the reward of a completed task for the current period. The
// account row is locked before the progress row, the order every play uses.
func (s *TaskService) Claim(ctx context.Context, actor Actor, taskID uint, token string) (*ClaimResult, error) {
	if err := checkToken(token); err != nil {
		return nil, err
	}
	var result ClaimResult

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeTaskClaim, token)
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

		def, err := s.store.Tasks.GetDefinition(tx, taskID)
		if err != nil {
			return err
		}
		now := s.now()
		if !def.ActiveAt(now) {
			return errors.New(errors.ErrCodeInvalidState, "task is not active")
		}
		if _, err := s.store.Ledger.LockAccount(tx, actor.AccountID); err != nil {
			return err
		}
		start, end := s.periods.Bounds(def.Schedule, now)
		progress, err := s.store.Tasks.LockProgress(tx, actor.AccountID, def, start, end)
		if err != nil {
			return err
		}

		claimed, err := s.claim(tx, actor.AccountID, def, progress, now)
		if err != nil {
			return err
		}
		result = *claimed
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *TaskService) claim(tx *gorm.DB, accountID uint, def *models.TaskDefinition, progress *models.TaskProgress, at time.Time) (*ClaimResult, error) {
	if !progress.Completed() {
		return nil, errors.New(errors.ErrCodeTaskNotCompleted, "task is not completed yet")
	}
	if progress.ClaimedAt != nil {
		return nil, errors.New(errors.ErrCodeAlreadyClaimed, "task reward already claimed")
	}

	claim := &models.TaskClaim{
		AccountID:    accountID,
		TaskID:       def.ID,
		PeriodStart:  progress.PeriodStart,
		RewardPoints: progress.RewardPoints,
		RequestID:    fmt.Sprintf("task:%d:%s", def.ID, progress.PeriodStart.Format("2006-01-02")),
	}
	created, err := s.store.Tasks.CreateClaim(tx, claim)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, errors.New(errors.ErrCodeAlreadyClaimed, "task reward already claimed")
	}

	var balance int64
	if progress.RewardPoints > 0 {
		entry, err := s.store.Ledger.Credit(tx, accountID, progress.RewardPoints, models.ReasonTaskReward, models.Ref{
			Type:        models.RefTypeTask,
			ID:          claim.ID,
			Description: def.Name,
		})
		if err != nil {
			return nil, err
		}
		balance = entry.BalanceAfter
	} else {
		account, err := s.store.Ledger.LockAccount(tx, accountID)
		if err != nil {
			return nil, err
		}
		balance = account.Balance
	}

	progress.ClaimedAt = &at
	if err := s.store.Tasks.SaveProgress(tx, progress); err != nil {
		return nil, err
	}

	return &ClaimResult{
		TaskID:      def.ID,
		ClaimID:     claim.ID,
		Reward:      progress.RewardPoints,
		PeriodStart: progress.PeriodStart,
		Balance:     balance,
	}, nil
}

// List returns the active tasks with the account's current progress.
func (s *TaskService) List(ctx context.Context, accountID uint) ([]TaskView, error) {
	now := s.now()
	defs, err := s.store.Tasks.Definitions(s.store.DB.WithContext(ctx), "")
	if err != nil {
		return nil, err
	}

	dayStart, _ := s.periods.Bounds(models.TaskScheduleDaily, now)
	weekStart, _ := s.periods.Bounds(models.TaskScheduleWeekly, now)
	rows, err := s.store.Tasks.Progress(accountID, []time.Time{dayStart, weekStart})
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]models.TaskProgress, len(rows))
	for _, p := range rows {
		byKey[fmt.Sprintf("%d:%s", p.TaskID, p.PeriodStart.Format("2006-01-02"))] = p
	}

	views := make([]TaskView, 0, len(defs))
	for _, d := range defs {
		if !d.ActiveAt(now) {
			continue
		}
		start, end := s.periods.Bounds(d.Schedule, now)
		view := TaskView{
			ID:           d.ID,
			TaskKey:      d.TaskKey,
			Name:         d.Name,
			Description:  d.Description,
			Schedule:     d.Schedule,
			TaskType:     d.TaskType,
			RewardPoints: d.RewardPoints,
			Target:       d.TargetValue,
			AutoClaim:    d.AutoClaim,
			PeriodStart:  start,
			PeriodEnd:    end,
		}
		if p, ok := byKey[fmt.Sprintf("%d:%s", d.ID, start.Format("2006-01-02"))]; ok {
			view.Progress = p.ProgressValue
			view.Target = p.TargetValue
			view.RewardPoints = p.RewardPoints
			view.Completed = p.Completed()
			view.Claimed = p.ClaimedAt != nil
			view.CompletedAt = p.CompletedAt
		}
		views = append(views, view)
	}
	return views, nil
}

// Streak returns the daily completion streak.
func (s *TaskService) Streak(accountID uint) (*models.TaskStreak, error) {
	return s.store.Tasks.Streak(accountID)
}
