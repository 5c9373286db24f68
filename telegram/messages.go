package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/services"
	"github.com/mroshb/reward_engine/pkg/errors"
)

const (
	MsgWelcome = "👋 Welcome! Your account is ready.\n" +
		"You received <b>%d</b> welcome points. Use the menu below to play."
	MsgWelcomeBack = "👋 Welcome back!"
	MsgHelp        = "<b>Commands</b>\n" +
		"/balance - points and plays left today\n" +
		"/signin - daily sign-in\n" +
		"/gacha - draw a prize\n" +
		"/slot - spin the reels\n" +
		"/scratch - buy a scratch card\n" +
		"/tasks - daily and weekly tasks\n" +
		"/markets - open prediction markets\n" +
		"/bet MARKET OPTION STAKE - place a bet\n" +
		"/token - API access token"
	MsgUnknown = "🤔 Unknown command. Send /help for the list."
)

var errorTexts = map[string]string{
	errors.ErrCodeInsufficientFunds:   "💸 Not enough points.",
	errors.ErrCodeQuotaExceeded:       "⏳ Daily limit reached. Come back tomorrow.",
	errors.ErrCodeNoEligiblePrizes:    "📭 No prizes are available right now.",
	errors.ErrCodeStockExhausted:      "📭 Sold out.",
	errors.ErrCodeMarketNotOpen:       "🔒 This market is not taking bets.",
	errors.ErrCodeAlreadySettled:      "🏁 This market is already settled.",
	errors.ErrCodeAlreadyClaimed:      "✅ Already claimed.",
	errors.ErrCodeTaskNotCompleted:    "📋 Task not completed yet.",
	errors.ErrCodeAlreadyExists:       "✅ Already done today.",
	errors.ErrCodeIdempotencyConflict: "⚠️ Duplicate request.",
	errors.ErrCodeRateLimitExceeded:   "⏳ Slow down a little.",
}

// errorText turns a service error into a reply. Validation and not-found
// messages are safe to show as they are.
func errorText(err error) string {
	code := errors.CodeOf(err)
	if text, ok := errorTexts[code]; ok {
		return text
	}
	var appErr *errors.AppError
	if (code == errors.ErrCodeValidation || code == errors.ErrCodeNotFound) && errors.As(err, &appErr) {
		return "⚠️ " + html.EscapeString(appErr.Message)
	}
	return "❌ Something went wrong. Please try again later."
}

func remainingText(remaining *int) string {
	if remaining == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d", *remaining)
}

func costText(cost int64, free bool) string {
	if free {
		return "free credit"
	}
	return fmt.Sprintf("%d points", cost)
}

func prizeText(prizeType, name string, value *models.PrizeValue, awarded int64) string {
	switch prizeType {
	case models.PrizeTypeEmpty, "":
		return "nothing this time"
	case models.PrizeTypeRedemptionCode:
		if value != nil && value.Code != "" {
			return fmt.Sprintf("%s: <code>%s</code>", html.EscapeString(name), html.EscapeString(value.Code))
		}
	}
	if awarded > 0 && prizeType != models.PrizeTypePoints {
		return fmt.Sprintf("%s (converted to %d points)", html.EscapeString(name), awarded)
	}
	return html.EscapeString(name)
}

func formatStatus(st *services.AccountStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 Balance: <b>%d</b> points\n", st.Balance)
	fmt.Fprintf(&b, "Earned %d · Spent %d\n", st.TotalEarned, st.TotalSpent)
	for _, g := range st.Games {
		fmt.Fprintf(&b, "\n<b>%s</b>: %d points, %s left today", g.Game, g.CostPoints, remainingText(g.RemainingToday))
		if g.FreeCredits > 0 {
			fmt.Fprintf(&b, ", %d free", g.FreeCredits)
		}
	}
	return b.String()
}

func formatSignin(r *services.SigninResult) string {
	if r.Replayed {
		return fmt.Sprintf("✅ Already signed in for %s (day %d of your streak)\n💰 Balance: <b>%d</b>", r.Date, r.StreakDay, r.Balance)
	}
	text := fmt.Sprintf("✅ Signed in for %s (day %d of your streak)\n+%d points", r.Date, r.StreakDay, r.BasePoints)
	if r.BonusPoints > 0 {
		text += fmt.Sprintf("\n🎉 Streak bonus +%d", r.BonusPoints)
	}
	return text + fmt.Sprintf("\n💰 Balance: <b>%d</b>", r.Balance)
}

func formatGacha(r *services.GachaResult) string {
	prize := prizeText(r.PrizeType, r.PrizeName, &r.PrizeValue, r.PointsAwarded)
	head := "🎁 You got"
	if r.IsRare {
		head = "🌟 RARE! You got"
	}
	return fmt.Sprintf("%s %s\nPaid with %s\n💰 Balance: <b>%d</b> · Draws left today: %s",
		head, prize, costText(r.CostPoints, r.UsedFreeCredit), r.Balance, remainingText(r.RemainingToday))
}

func formatSpin(r *services.SpinResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎰 [ %s ]\n", strings.Join(r.Reels, " | "))
	for _, m := range r.Matched {
		fmt.Fprintf(&b, "• %s ×%s\n", html.EscapeString(m.Name), m.Multiplier.String())
	}
	switch {
	case r.IsJackpot:
		fmt.Fprintf(&b, "💥 JACKPOT! +%d points\n", r.Payout)
	case r.Payout > 0:
		fmt.Fprintf(&b, "🎉 +%d points\n", r.Payout)
	case r.Payout < 0:
		fmt.Fprintf(&b, "😬 %d points\n", r.Payout)
	default:
		b.WriteString("No win this time\n")
	}
	fmt.Fprintf(&b, "Paid with %s\n💰 Balance: <b>%d</b> · Spins left today: %s",
		costText(r.CostPoints, r.UsedFreeCredit), r.Balance, remainingText(r.RemainingToday))
	return b.String()
}

func formatScratch(r *services.ScratchCardView) string {
	if r.Status != models.ScratchStatusRevealed {
		return fmt.Sprintf("🎟 Card <code>%s</code> bought with %s.\nTap to scratch it!\nCards left today: %s",
			r.Serial, costText(r.CostPoints, r.UsedFreeCredit), remainingText(r.RemainingToday))
	}
	return fmt.Sprintf("🎟 Card <code>%s</code>: %s\n💰 Balance: <b>%d</b>",
		r.Serial, prizeText(r.PrizeType, r.PrizeName, r.PrizeValue, r.PointsAwarded), r.Balance)
}

func formatTasks(tasks []services.TaskView) string {
	if len(tasks) == 0 {
		return "📋 No active tasks."
	}
	var b strings.Builder
	b.WriteString("📋 <b>Tasks</b>\n")
	for _, t := range tasks {
		mark := "▫️"
		switch {
		case t.Claimed:
			mark = "✅"
		case t.Completed:
			mark = "🎁"
		}
		fmt.Fprintf(&b, "\n%s %s (%s) %d/%d · %d points", mark, html.EscapeString(t.Name), t.Schedule, t.Progress, t.Target, t.RewardPoints)
	}
	return b.String()
}

func formatClaim(r *services.ClaimResult) string {
	return fmt.Sprintf("🎁 Task reward +%d points\n💰 Balance: <b>%d</b>", r.Reward, r.Balance)
}

func formatMarket(m services.MarketView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔮 <b>#%d %s</b> (%s)\nPool: %d points · min bet %d\n", m.ID, html.EscapeString(m.Title), m.Status, m.TotalPool, m.MinBet)
	for _, o := range m.Options {
		odds := "-"
		if o.Odds != nil {
			odds = o.Odds.StringFixed(2)
		}
		fmt.Fprintf(&b, "  %d. %s · %d staked · odds %s\n", o.ID, html.EscapeString(o.Label), o.TotalStake, odds)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatBet(r *services.BetResult) string {
	odds := "-"
	if r.Odds != nil {
		odds = r.Odds.StringFixed(2)
	}
	return fmt.Sprintf("🎯 Bet #%d: %d points on option %d (current odds %s)\n💰 Balance: <b>%d</b>",
		r.BetID, r.Stake, r.OptionID, odds, r.Balance)
}
