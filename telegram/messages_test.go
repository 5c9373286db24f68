package telegram

import (
	"strings"
	"testing"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/services"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/shopspring/decimal"
)

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"insufficient funds", errors.New(errors.ErrCodeInsufficientFunds, "balance 3 < cost 50"), "Not enough points"},
		{"quota", errors.New(errors.ErrCodeQuotaExceeded, "limit"), "Daily limit"},
		{"validation shows message", errors.New(errors.ErrCodeValidation, "stake <b>below</b> minimum"), "stake &lt;b&gt;below&lt;/b&gt; minimum"},
		{"internal hides detail", errors.New(errors.ErrCodeInternalError, "pq: relation missing"), "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorText(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("errorText() = %q, want it to contain %q", got, tt.want)
			}
			if strings.Contains(got, "pq:") {
				t.Errorf("errorText() leaked internal detail: %q", got)
			}
		})
	}
}

func TestParseBetArgs(t *testing.T) {
	tests := []struct {
		args                string
		wantMarket, wantOpt uint
		wantStake           int64
		wantOK              bool
	}{
		{"3 7 100", 3, 7, 100, true},
		{"  3   7  100 ", 3, 7, 100, true},
		{"3 7", 0, 0, 0, false},
		{"3 7 -5", 0, 0, 0, false},
		{"0 7 10", 0, 0, 0, false},
		{"a b c", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			m, o, s, ok := parseBetArgs(tt.args)
			if ok != tt.wantOK || m != tt.wantMarket || o != tt.wantOpt || s != tt.wantStake {
				t.Errorf("parseBetArgs(%q) = %d %d %d %v, want %d %d %d %v",
					tt.args, m, o, s, ok, tt.wantMarket, tt.wantOpt, tt.wantStake, tt.wantOK)
			}
		})
	}
}

func TestParseBetData(t *testing.T) {
	tests := []struct {
		data   string
		market uint
		option uint
		ok     bool
	}{
		{"bet:12:4", 12, 4, true},
		{"bet:12", 0, 0, false},
		{"bet:x:4", 0, 0, false},
		{"claim:12", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			m, o, ok := parseBetData(tt.data)
			if m != tt.market || o != tt.option || ok != tt.ok {
				t.Errorf("parseBetData(%q) = %d %d %v, want %d %d %v", tt.data, m, o, ok, tt.market, tt.option, tt.ok)
			}
		})
	}
}

func TestMarketBetKeyboardRoundTrip(t *testing.T) {
	kb := MarketBetKeyboard(services.MarketView{
		ID:     5,
		MinBet: 10,
		Options: []services.OptionView{
			{ID: 11, Label: "Yes"},
			{ID: 12, Label: "No"},
		},
	})
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(kb.InlineKeyboard))
	}
	data := *kb.InlineKeyboard[1][0].CallbackData
	m, o, ok := parseBetData(data)
	if !ok || m != 5 || o != 12 {
		t.Errorf("parseBetData(%q) = %d %d %v", data, m, o, ok)
	}
}

func TestTaskClaimKeyboard(t *testing.T) {
	tasks := []services.TaskView{
		{ID: 1, Name: "Sign in", Completed: true, AutoClaim: true},
		{ID: 2, Name: "Draw once", Completed: true},
		{ID: 3, Name: "Bet", Completed: true, Claimed: true},
		{ID: 4, Name: "Spin", Completed: false},
	}
	kb, ok := TaskClaimKeyboard(tasks)
	if !ok {
		t.Fatal("TaskClaimKeyboard() found nothing to claim")
	}
	if len(kb.InlineKeyboard) != 1 {
		t.Fatalf("rows = %d, want 1", len(kb.InlineKeyboard))
	}
	if got := *kb.InlineKeyboard[0][0].CallbackData; got != "claim:2" {
		t.Errorf("callback = %q, want claim:2", got)
	}

	if _, ok := TaskClaimKeyboard(tasks[2:]); ok {
		t.Error("TaskClaimKeyboard() offered a claim with nothing completed")
	}
}

func TestCommandForButton(t *testing.T) {
	tests := map[string]string{
		BtnGacha:   "gacha",
		BtnSlot:    "slot",
		BtnBalance: "balance",
		"hello":    "",
	}
	for text, want := range tests {
		if got := commandForButton(text); got != want {
			t.Errorf("commandForButton(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestFormatSpin(t *testing.T) {
	remaining := 4
	tests := []struct {
		name   string
		result services.SpinResult
		want   []string
	}{
		{
			name: "jackpot",
			result: services.SpinResult{
				Reels:          []string{"seven", "seven", "seven"},
				Matched:        []models.MatchedRule{{Name: "Three seven", Multiplier: decimal.NewFromInt(50)}},
				Payout:         1500,
				IsJackpot:      true,
				CostPoints:     30,
				Balance:        1570,
				RemainingToday: &remaining,
			},
			want: []string{"seven | seven | seven", "JACKPOT! +1500", "Three seven ×50", "Spins left today: 4"},
		},
		{
			name:   "penalty on free spin",
			result: services.SpinResult{Reels: []string{"a", "b", "c"}, Payout: -20, UsedFreeCredit: true},
			want:   []string{"-20 points", "free credit", "unlimited"},
		},
		{
			name:   "no win",
			result: services.SpinResult{Reels: []string{"a", "b", "c"}, CostPoints: 30},
			want:   []string{"No win", "30 points"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatSpin(&tt.result)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("formatSpin() = %q, missing %q", got, w)
				}
			}
		})
	}
}

func TestPrizeText(t *testing.T) {
	tests := []struct {
		name      string
		prizeType string
		prize     string
		value     *models.PrizeValue
		awarded   int64
		want      string
	}{
		{"empty", models.PrizeTypeEmpty, "Nothing", nil, 0, "nothing this time"},
		{"points", models.PrizeTypePoints, "50 points", nil, 50, "50 points"},
		{"code", models.PrizeTypeRedemptionCode, "Gift", &models.PrizeValue{Code: "ABC-1"}, 0, "Gift: <code>ABC-1</code>"},
		{"badge fallback", models.PrizeTypeBadge, "Star", &models.PrizeValue{BadgeKey: "star"}, 30, "Star (converted to 30 points)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prizeText(tt.prizeType, tt.prize, tt.value, tt.awarded); got != tt.want {
				t.Errorf("prizeText() = %q, want %q", got, tt.want)
			}
		})
	}
}
