package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
)

func (e *engine) task(t *testing.T, def *models.TaskDefinition) *models.TaskDefinition {
	t.Helper()
	def.IsActive = true
	if def.Schedule == "" {
		def.Schedule = models.TaskScheduleDaily
	}
	if err := e.store.DB.Create(def).Error; err != nil {
		t.Fatalf("create task %s: %v", def.TaskKey, err)
	}
	return def
}

func (e *engine) event(t *testing.T, actor Actor, taskType, key string) {
	t.Helper()
	err := e.store.DB.Transaction(func(tx *gorm.DB) error {
		return e.tasks.RecordEvent(tx, actor.AccountID, taskType, key, models.Ref{}, time.Now())
	})
	if err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}
}

func TestTasks_ClaimOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	player := e.fund(t, "claimer", 0)
	def := e.task(t, &models.TaskDefinition{TaskKey: "daily_signin", Name: "Sign in", TaskType: models.TaskTypeSignin, TargetValue: 1, RewardPoints: 15})

	e.event(t, player, models.TaskTypeSignin, "signin:today")

	// The open period keeps the reward it started with.
	if err := e.store.DB.Model(def).Update("reward_points", 999).Error; err != nil {
		t.Fatalf("update reward: %v", err)
	}

	first, err := e.tasks.Claim(ctx, player, def.ID, "c1")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if first.Reward != 15 || first.Balance != 15 {
		t.Errorf("Claim() = %+v, want reward 15 and balance 15", first)
	}

	tests := []struct {
		name         string
		token        string
		wantCode     string
		wantReplayed bool
	}{
		{"same token replays", "c1", "", true},
		{"new token is rejected", "c2", errors.ErrCodeAlreadyClaimed, false},
		{"missing token", "", errors.ErrCodeValidation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.tasks.Claim(ctx, player, def.ID, tt.token)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("Claim() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Claim() error = %v", err)
			}
			if result.Replayed != tt.wantReplayed || result.ClaimID != first.ClaimID {
				t.Errorf("Claim() = %+v, want replay of %+v", result, first)
			}
		})
	}

	if got := e.balance(t, player); got != 15 {
		t.Errorf("balance = %d, want 15", got)
	}
}

func TestTasks_ClaimInactive(t *testing.T) {
	e := newEngine(t)
	player := e.fund(t, "late", 0)
	ended := time.Now().Add(-time.Hour)
	def := e.task(t, &models.TaskDefinition{TaskKey: "expired", Name: "Expired", TaskType: models.TaskTypeSignin, TargetValue: 1, RewardPoints: 5, EndsAt: &ended})

	_, err := e.tasks.Claim(context.Background(), player, def.ID, "c1")
	if !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("Claim() error = %v, want INVALID_STATE", err)
	}
}

func TestTasks_ConcurrentClaim(t *testing.T) {
	const attempts = 5

	e := newEngine(t)
	player := e.fund(t, "racer", 0)
	def := e.task(t, &models.TaskDefinition{TaskKey: "daily_signin", Name: "Sign in", TaskType: models.TaskTypeSignin, TargetValue: 1, RewardPoints: 15})
	e.event(t, player, models.TaskTypeSignin, "signin:today")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.tasks.Claim(context.Background(), player, def.ID, fmt.Sprintf("c%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, errors.ErrCodeAlreadyClaimed):
				rejected++
			default:
				t.Errorf("Claim() unexpected error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 || rejected != attempts-1 {
		t.Errorf("succeeded = %d, rejected = %d, want 1 and %d", succeeded, rejected, attempts-1)
	}
	if got := e.balance(t, player); got != 15 {
		t.Errorf("balance = %d, want 15", got)
	}
}

func TestTasks_ChainBonusUnlocksWhenGroupCompletes(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	player := e.fund(t, "chainer", 0)
	e.task(t, &models.TaskDefinition{TaskKey: "sign", Name: "Sign in", TaskType: models.TaskTypeSignin, TargetValue: 1, RewardPoints: 5, ChainGroupKey: "daily"})
	e.task(t, &models.TaskDefinition{TaskKey: "draw", Name: "Draw once", TaskType: models.TaskTypeGacha, TargetValue: 1, RewardPoints: 5, ChainGroupKey: "daily"})
	bonus := e.task(t, &models.TaskDefinition{TaskKey: "all_daily", Name: "All daily tasks", TaskType: models.TaskTypeChainBonus, TargetValue: 1, RewardPoints: 25, ChainRequiresGroupKey: "daily"})

	e.event(t, player, models.TaskTypeSignin, "signin:today")
	if _, err := e.tasks.Claim(ctx, player, bonus.ID, "early"); !errors.Is(err, errors.ErrCodeTaskNotCompleted) {
		t.Fatalf("Claim() with half the group error = %v, want TASK_NOT_COMPLETED", err)
	}

	// Completing the group unlocks the bonus without claiming the group tasks.
	e.event(t, player, models.TaskTypeGacha, "gacha:1")
	result, err := e.tasks.Claim(ctx, player, bonus.ID, "bonus")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if result.Reward != 25 || result.Balance != 25 {
		t.Errorf("Claim() = %+v, want reward 25 and balance 25", result)
	}
}

// Claims lock the account before task progress, like plays do, so a claim
// racing plays that advance the same task never deadlocks.
func TestTasks_ClaimDuringPlays(t *testing.T) {
	const rounds = 5

	e := newEngine(t)
	e.gachaConfig(t, 20, nil)
	player := e.fund(t, "busy", 1000)
	def := e.task(t, &models.TaskDefinition{TaskKey: "daily_draws", Name: "Draw twice", TaskType: models.TaskTypeGacha, TargetValue: 2, RewardPoints: 10})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.gacha.Play(ctx, player, PlayRequest{Token: fmt.Sprintf("warm%d", i)}); err != nil {
			t.Fatalf("Play() error = %v", err)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	claims := 0
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := e.gacha.Play(ctx, player, PlayRequest{Token: fmt.Sprintf("p%d", i)}); err != nil {
				t.Errorf("Play() error = %v", err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := e.tasks.Claim(ctx, player, def.ID, fmt.Sprintf("c%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claims++
			case errors.Is(err, errors.ErrCodeAlreadyClaimed):
			default:
				t.Errorf("Claim() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if claims != 1 {
		t.Errorf("successful claims = %d, want 1", claims)
	}
	want := int64(1000 - (2+rounds)*50 + 10)
	if got := e.balance(t, player); got != want {
		t.Errorf("balance = %d, want %d", got, want)
	}
}
