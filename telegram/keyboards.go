package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/reward_engine/internal/services"
)

// Reply keyboard buttons
const (
	BtnSignin  = "✅ Sign in"
	BtnGacha   = "🎁 Draw"
	BtnSlot    = "🎰 Spin"
	BtnScratch = "🎟 Scratch"
	BtnTasks   = "📋 Tasks"
	BtnBalance = "💰 Balance"
	BtnMarkets = "🔮 Markets"
	BtnHelp    = "❓ Help"
)

// Callback data prefixes
const (
	cbReveal = "reveal:"
	cbClaim  = "claim:"
	cbBet    = "bet:"
)

// MainMenuKeyboard creates the main menu keyboard
func MainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnSignin),
			tgbotapi.NewKeyboardButton(BtnBalance),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnGacha),
			tgbotapi.NewKeyboardButton(BtnSlot),
			tgbotapi.NewKeyboardButton(BtnScratch),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnTasks),
			tgbotapi.NewKeyboardButton(BtnMarkets),
			tgbotapi.NewKeyboardButton(BtnHelp),
		),
	)
}

func ScratchRevealKeyboard(serial string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🪙 Scratch!", cbReveal+serial),
		),
	)
}

// TaskClaimKeyboard offers a button for every completed task that still
// waits for a manual claim. ok is false when there is nothing to claim.
func TaskClaimKeyboard(tasks []services.TaskView) (kb tgbotapi.InlineKeyboardMarkup, ok bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range tasks {
		if !t.Completed || t.Claimed || t.AutoClaim {
			continue
		}
		label := fmt.Sprintf("🎁 Claim %s (+%d)", t.Name, t.RewardPoints)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbClaim+strconv.FormatUint(uint64(t.ID), 10)),
		))
	}
	if len(rows) == 0 {
		return kb, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

// MarketBetKeyboard has one button per option staking the market's minimum bet.
func MarketBetKeyboard(m services.MarketView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, o := range m.Options {
		label := fmt.Sprintf("%s · %d", o.Label, m.MinBet)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d:%d", cbBet, m.ID, o.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// parseBetData splits "bet:<market>:<option>".
func parseBetData(data string) (marketID, optionID uint, ok bool) {
	rest, found := strings.CutPrefix(data, cbBet)
	if !found {
		return 0, 0, false
	}
	m, o, found := strings.Cut(rest, ":")
	if !found {
		return 0, 0, false
	}
	mid, err1 := strconv.ParseUint(m, 10, 64)
	oid, err2 := strconv.ParseUint(o, 10, 64)
	if err1 != nil || err2 != nil || mid == 0 || oid == 0 {
		return 0, 0, false
	}
	return uint(mid), uint(oid), true
}
