package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
)

func (e *engine) achievementDefs(t *testing.T) {
	t.Helper()
	defs := []models.AchievementDefinition{
		{AchievementKey: "first_draw", Name: "First draw", Category: "gacha", Points: 10, RuleType: models.RuleGachaCount, TargetValue: 1, SortOrder: 1},
		{AchievementKey: "ten_draws", Name: "Ten draws", Category: "gacha", Points: 30, RuleType: models.RuleGachaCount, TargetValue: 10, SortOrder: 2},
		{AchievementKey: "lucky_star", Name: "Lucky star", Category: "special", Points: 50, RuleType: models.RuleManual, TargetValue: 1, SortOrder: 3},
	}
	if err := e.store.DB.Create(&defs).Error; err != nil {
		t.Fatalf("create achievements: %v", err)
	}
}

func TestAchievements_ClaimOnce(t *testing.T) {
	e := newEngine(t)
	e.gachaConfig(t, 10, nil)
	e.achievementDefs(t)
	player := e.fund(t, "achiever", 100)
	ctx := context.Background()

	if _, err := e.gacha.Play(ctx, player, PlayRequest{Token: "d1"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	views, err := e.achievements.List(ctx, player)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	wantStatus := map[string]string{
		"first_draw": models.AchievementUnlocked,
		"ten_draws":  models.AchievementLocked,
		"lucky_star": models.AchievementLocked,
	}
	if len(views) != len(wantStatus) {
		t.Fatalf("List() returned %d achievements, want %d", len(views), len(wantStatus))
	}
	for _, v := range views {
		if v.Status != wantStatus[v.Key] {
			t.Errorf("%s status = %s, want %s", v.Key, v.Status, wantStatus[v.Key])
		}
	}
	if views[1].ProgressValue != 1 || views[1].ProgressPercent != 10 {
		t.Errorf("ten_draws progress = %d (%d%%), want 1 (10%%)", views[1].ProgressValue, views[1].ProgressPercent)
	}

	first, err := e.achievements.Claim(ctx, player, "first_draw", "a1")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if first.Points != 10 || first.Balance != 60 {
		t.Errorf("Claim() = %+v, want 10 points and balance 60", first)
	}

	tests := []struct {
		name     string
		key      string
		token    string
		wantCode string
	}{
		{"same token replays", "first_draw", "a1", ""},
		{"second claim", "first_draw", "a2", errors.ErrCodeAlreadyClaimed},
		{"still locked", "ten_draws", "a3", errors.ErrCodeInvalidState},
		{"unknown key", "no_such", "a4", errors.ErrCodeNotFound},
		{"missing token", "first_draw", "", errors.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.achievements.Claim(ctx, player, tt.key, tt.token)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("Claim() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Claim() error = %v", err)
			}
			if !result.Replayed || result.Balance != first.Balance {
				t.Errorf("Claim() = %+v, want replay of %+v", result, first)
			}
		})
	}

	if got := e.balance(t, player); got != 60 {
		t.Errorf("balance = %d, want 60", got)
	}
	stats, err := e.achievements.Stats(ctx, player)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.GachaDraws != 1 || stats.AchievementsUnlocked != 1 {
		t.Errorf("Stats() = %+v, want 1 draw and 1 unlocked", stats)
	}
}

func TestAchievements_ConcurrentClaim(t *testing.T) {
	const attempts = 4

	e := newEngine(t)
	e.achievementDefs(t)
	player := e.fund(t, "racer", 0)
	ctx := context.Background()
	if err := e.achievements.Grant(ctx, admin, player.AccountID, "lucky_star"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.achievements.Claim(ctx, player, "lucky_star", fmt.Sprintf("c%d", i))
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
	if got := e.balance(t, player); got != 50 {
		t.Errorf("balance = %d, want 50", got)
	}
}

func TestAchievements_Grant(t *testing.T) {
	e := newEngine(t)
	e.achievementDefs(t)
	player := e.fund(t, "granted", 0)
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    Actor
		key      string
		wantCode string
	}{
		{"not an admin", player, "lucky_star", errors.ErrCodeForbidden},
		{"unknown key", admin, "no_such", errors.ErrCodeNotFound},
		{"grant", admin, "lucky_star", ""},
		{"grant twice", admin, "lucky_star", errors.ErrCodeAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.achievements.Grant(ctx, tt.actor, player.AccountID, tt.key)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Grant() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("Grant() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestAchievements_Showcase(t *testing.T) {
	e := newEngine(t)
	e.achievementDefs(t)
	player := e.fund(t, "shower", 0)
	ctx := context.Background()
	if err := e.achievements.Grant(ctx, admin, player.AccountID, "lucky_star"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	tests := []struct {
		name     string
		slot     int
		key      string
		wantCode string
	}{
		{"pin earned badge", 1, "lucky_star", ""},
		{"slot out of range", models.ShowcaseSlots + 1, "lucky_star", errors.ErrCodeValidation},
		{"badge not earned", 2, "ten_draws", errors.ErrCodeInvalidState},
		{"unknown badge", 2, "no_such", errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.achievements.SetShowcase(ctx, player, tt.slot, tt.key)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("SetShowcase() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("SetShowcase() error = %v, want %s", err, tt.wantCode)
			}
		})
	}

	badges, err := e.achievements.Showcase(player.AccountID)
	if err != nil {
		t.Fatalf("Showcase() error = %v", err)
	}
	if len(badges) != 1 || badges[0].Slot != 1 || badges[0].Name != "Lucky star" {
		t.Errorf("Showcase() = %+v, want lucky star in slot 1", badges)
	}

	if err := e.achievements.RemoveShowcase(ctx, player, 1); err != nil {
		t.Fatalf("RemoveShowcase() error = %v", err)
	}
	if err := e.achievements.RemoveShowcase(ctx, player, 1); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("RemoveShowcase() of empty slot error = %v, want NOT_FOUND", err)
	}
}

func TestGacha_LuckyLeaderboard(t *testing.T) {
	e := newEngine(t)
	alice := e.fund(t, "alice", 0)
	bob := e.fund(t, "bob", 0)
	carol := e.fund(t, "carol", 0)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	draws := []struct {
		actor Actor
		rare  bool
		prize string
		at    time.Duration
	}{
		{alice, true, "Golden egg", 0},
		{alice, true, "Silver egg", time.Hour},
		{bob, true, "Golden egg", 2 * time.Hour},
		{bob, true, "Golden egg", 3 * time.Hour},
		{carol, true, "Silver egg", 4 * time.Hour},
		{carol, false, "Sticker", 5 * time.Hour},
	}
	for i, d := range draws {
		record := &models.DrawRecord{
			AccountID: d.actor.AccountID,
			PrizeType: models.PrizeTypeItem,
			PrizeName: d.prize,
			IsRare:    d.rare,
			RequestID: fmt.Sprintf("d%d", i),
			CreatedAt: base.Add(d.at),
		}
		if err := e.store.DB.Create(record).Error; err != nil {
			t.Fatalf("create draw: %v", err)
		}
	}

	board, err := e.gacha.LuckyLeaderboard()
	if err != nil {
		t.Fatalf("LuckyLeaderboard() error = %v", err)
	}
	wantOrder := []struct {
		account uint
		wins    int64
		prizes  int
	}{
		{bob.AccountID, 2, 2},
		{alice.AccountID, 2, 2},
		{carol.AccountID, 1, 1},
	}
	if len(board) != len(wantOrder) {
		t.Fatalf("LuckyLeaderboard() = %+v, want %d rows", board, len(wantOrder))
	}
	for i, want := range wantOrder {
		got := board[i]
		if got.Rank != i+1 || got.AccountID != want.account || got.WinCount != want.wins || len(got.Prizes) != want.prizes {
			t.Errorf("row %d = %+v, want account %d with %d wins", i, got, want.account, want.wins)
		}
	}

	winners, err := e.gacha.RecentWinners()
	if err != nil {
		t.Fatalf("RecentWinners() error = %v", err)
	}
	if len(winners) != 5 || winners[0].AccountID != carol.AccountID || winners[0].PrizeName != "Silver egg" {
		t.Errorf("RecentWinners() = %+v, want 5 rare draws led by carol", winners)
	}
}
