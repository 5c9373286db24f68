package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/reward_engine/internal/config"
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/security"
	"github.com/mroshb/reward_engine/internal/services"
	"github.com/mroshb/reward_engine/pkg/logger"
)

const (
	workerCount    = 10
	requestTimeout = 15 * time.Second
	apiTokenTTL    = 24 * time.Hour
)

// Services are the operations reachable from chat.
type Services struct {
	Accounts *services.AccountService
	Signins  *services.SigninService
	Gacha    *services.GachaService
	Slot     *services.SlotService
	Scratch  *services.ScratchService
	Markets  *services.MarketService
	Tasks    *services.TaskService
}

type Bot struct {
	api    *tgbotapi.BotAPI
	config *config.Config
	svc    Services

	// Worker pool for parallel processing
	workerChans []chan tgbotapi.Update
	stop        chan struct{}
}

func InitBot(cfg *config.Config, svc Services) (*Bot, error) {
	if err := tgbotapi.SetLogger(logger.Printf{}); err != nil {
		logger.Warn("Failed to set Telegram logger", "error", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if cfg.AppEnv == "development" {
		api.Debug = true
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)

	bot := &Bot{
		api:         api,
		config:      cfg,
		svc:         svc,
		workerChans: make([]chan tgbotapi.Update, workerCount),
		stop:        make(chan struct{}),
	}

	for i := range bot.workerChans {
		bot.workerChans[i] = make(chan tgbotapi.Update, 100)
		go bot.startWorker(bot.workerChans[i])
	}

	go bot.startUpdateListener()

	return bot, nil
}

func (b *Bot) startUpdateListener() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for {
		logger.Info("Starting update listener...")
		updates := b.api.GetUpdatesChan(u)

		for update := range updates {
			var userID int64
			if update.Message != nil && update.Message.From != nil {
				userID = update.Message.From.ID
			} else if update.CallbackQuery != nil {
				userID = update.CallbackQuery.From.ID
			}
			if userID == 0 {
				continue
			}

			// Hashed dispatch keeps one user's updates in order.
			workerIdx := userID % int64(len(b.workerChans))
			if workerIdx < 0 {
				workerIdx = -workerIdx
			}
			b.workerChans[workerIdx] <- update
		}

		select {
		case <-b.stop:
			return
		default:
		}
		logger.Warn("Update channel closed. Restarting in 5 seconds...")
		time.Sleep(5 * time.Second)
	}
}

func (b *Bot) startWorker(ch chan tgbotapi.Update) {
	for update := range ch {
		b.handleUpdate(update)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in handleUpdate", "error", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// actorFor provisions the Telegram user on first contact.
func (b *Bot) actorFor(ctx context.Context, from *tgbotapi.User) (*models.Account, services.Actor, bool, error) {
	account, created, err := b.svc.Accounts.EnsureAccount(ctx, fmt.Sprintf("tg:%d", from.ID), from.UserName)
	if err != nil {
		return nil, services.Actor{}, false, err
	}
	return account, services.Actor{AccountID: account.ID, IsAdmin: account.IsAdmin()}, created, nil
}

// requestToken derives the idempotency token from the Telegram message, so a
// redelivered update replays instead of charging twice.
func requestToken(chatID int64, messageID int) string {
	return fmt.Sprintf("tg:%d:%d", chatID, messageID)
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if message.From == nil {
		return
	}

	logger.Debug("Received message", "user_id", message.From.ID, "text", message.Text)

	account, actor, isNew, err := b.actorFor(ctx, message.From)
	if err != nil {
		logger.Error("Failed to provision account", "user_id", message.From.ID, "error", err)
		b.sendMessage(chatID, errorText(err), nil)
		return
	}

	command := message.Command()
	if command == "" {
		command = commandForButton(message.Text)
	}
	token := requestToken(chatID, message.MessageID)

	switch command {
	case "start":
		if isNew {
			b.sendMessage(chatID, fmt.Sprintf(MsgWelcome, account.Balance), MainMenuKeyboard())
		} else {
			b.sendMessage(chatID, MsgWelcomeBack, MainMenuKeyboard())
		}

	case "help":
		b.sendMessage(chatID, MsgHelp, MainMenuKeyboard())

	case "balance":
		status, err := b.svc.Accounts.Status(ctx, actor)
		b.reply(chatID, err, func() string { return formatStatus(status) })

	case "signin":
		result, err := b.svc.Signins.Signin(ctx, actor, token)
		b.reply(chatID, err, func() string { return formatSignin(result) })

	case "gacha":
		result, err := b.svc.Gacha.Play(ctx, actor, services.PlayRequest{Token: token, UseFreeCredit: true})
		b.reply(chatID, err, func() string { return formatGacha(result) })

	case "slot":
		result, err := b.svc.Slot.Spin(ctx, actor, services.PlayRequest{Token: token, UseFreeCredit: true})
		b.reply(chatID, err, func() string { return formatSpin(result) })

	case "scratch":
		card, err := b.svc.Scratch.Buy(ctx, actor, services.PlayRequest{Token: token, UseFreeCredit: true})
		if err != nil {
			b.sendMessage(chatID, errorText(err), nil)
			return
		}
		b.sendMessage(chatID, formatScratch(card), ScratchRevealKeyboard(card.Serial))

	case "tasks":
		tasks, err := b.svc.Tasks.List(ctx, actor.AccountID)
		if err != nil {
			b.sendMessage(chatID, errorText(err), nil)
			return
		}
		if kb, ok := TaskClaimKeyboard(tasks); ok {
			b.sendMessage(chatID, formatTasks(tasks), kb)
			return
		}
		b.sendMessage(chatID, formatTasks(tasks), nil)

	case "markets":
		b.sendMarkets(chatID)

	case "bet":
		marketID, optionID, stake, ok := parseBetArgs(message.CommandArguments())
		if !ok {
			b.sendMessage(chatID, "Usage: /bet MARKET OPTION STAKE", nil)
			return
		}
		result, err := b.svc.Markets.PlaceBet(ctx, actor, marketID, services.PlaceBetRequest{Token: token, OptionID: optionID, Stake: stake})
		b.reply(chatID, err, func() string { return formatBet(result) })

	case "token":
		jwt, err := security.GenerateJWT(account.ID, account.Role, b.config.JWTSecret, apiTokenTTL)
		if err != nil {
			logger.Error("Failed to issue API token", "account_id", account.ID, "error", err)
			b.sendMessage(chatID, errorText(err), nil)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf("🔑 API token (valid %s):\n<code>%s</code>", apiTokenTTL, jwt), nil)

	default:
		b.sendMessage(chatID, MsgUnknown, MainMenuKeyboard())
	}
}

func commandForButton(text string) string {
	switch text {
	case BtnSignin:
		return "signin"
	case BtnGacha:
		return "gacha"
	case BtnSlot:
		return "slot"
	case BtnScratch:
		return "scratch"
	case BtnTasks:
		return "tasks"
	case BtnBalance:
		return "balance"
	case BtnMarkets:
		return "markets"
	case BtnHelp:
		return "help"
	}
	return ""
}

// parseBetArgs parses "MARKET OPTION STAKE".
func parseBetArgs(args string) (marketID, optionID uint, stake int64, ok bool) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return 0, 0, 0, false
	}
	m, err1 := strconv.ParseUint(fields[0], 10, 64)
	o, err2 := strconv.ParseUint(fields[1], 10, 64)
	s, err3 := strconv.ParseInt(fields[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || m == 0 || o == 0 || s <= 0 {
		return 0, 0, 0, false
	}
	return uint(m), uint(o), s, true
}

func (b *Bot) sendMarkets(chatID int64) {
	markets, err := b.svc.Markets.List(models.MarketStatusOpen, 5, 0)
	if err != nil {
		b.sendMessage(chatID, errorText(err), nil)
		return
	}
	if len(markets) == 0 {
		b.sendMessage(chatID, "🔮 No open markets right now.", nil)
		return
	}
	for _, m := range markets {
		b.sendMessage(chatID, formatMarket(m), MarketBetKeyboard(m))
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		b.AnswerCallbackQuery(query.ID, "", false)
		return
	}
	chatID := query.Message.Chat.ID
	data := query.Data

	_, actor, _, err := b.actorFor(ctx, query.From)
	if err != nil {
		b.AnswerCallbackQuery(query.ID, "Please try again", true)
		return
	}

	switch {
	case strings.HasPrefix(data, cbReveal):
		card, err := b.svc.Scratch.Reveal(ctx, actor, strings.TrimPrefix(data, cbReveal))
		if err != nil {
			b.AnswerCallbackQuery(query.ID, stripTags(errorText(err)), true)
			return
		}
		b.AnswerCallbackQuery(query.ID, "", false)
		b.EditMessage(chatID, query.Message.MessageID, formatScratch(card), nil)

	case strings.HasPrefix(data, cbClaim):
		taskID, err := strconv.ParseUint(strings.TrimPrefix(data, cbClaim), 10, 64)
		if err != nil {
			b.AnswerCallbackQuery(query.ID, "", false)
			return
		}
		result, err := b.svc.Tasks.Claim(ctx, actor, uint(taskID), "tg:cb:"+query.ID)
		if err != nil {
			b.AnswerCallbackQuery(query.ID, stripTags(errorText(err)), true)
			return
		}
		b.AnswerCallbackQuery(query.ID, fmt.Sprintf("+%d points", result.Reward), false)
		b.sendMessage(chatID, formatClaim(result), nil)

	case strings.HasPrefix(data, cbBet):
		marketID, optionID, ok := parseBetData(data)
		if !ok {
			b.AnswerCallbackQuery(query.ID, "", false)
			return
		}
		market, err := b.svc.Markets.Get(ctx, marketID)
		if err != nil {
			b.AnswerCallbackQuery(query.ID, stripTags(errorText(err)), true)
			return
		}
		result, err := b.svc.Markets.PlaceBet(ctx, actor, marketID, services.PlaceBetRequest{
			Token:    "tg:cb:" + query.ID,
			OptionID: optionID,
			Stake:    market.MinBet,
		})
		if err != nil {
			b.AnswerCallbackQuery(query.ID, stripTags(errorText(err)), true)
			return
		}
		b.AnswerCallbackQuery(query.ID, "Bet placed", false)
		b.sendMessage(chatID, formatBet(result), nil)

	default:
		b.AnswerCallbackQuery(query.ID, "", false)
	}
}

// stripTags removes the HTML markup that callback alerts cannot render.
func stripTags(s string) string {
	r := strings.NewReplacer("<b>", "", "</b>", "", "<code>", "", "</code>", "")
	return r.Replace(s)
}

// reply sends the error text or, on success, the formatted result.
func (b *Bot) reply(chatID int64, err error, text func() string) {
	if err != nil {
		b.sendMessage(chatID, errorText(err), nil)
		return
	}
	b.sendMessage(chatID, text(), nil)
}

func (b *Bot) sendMessage(chatID int64, text string, keyboard interface{}) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	switch kb := keyboard.(type) {
	case tgbotapi.ReplyKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.InlineKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.ReplyKeyboardRemove:
		msg.ReplyMarkup = kb
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		sentMsg, err := b.api.Send(msg)
		if err != nil {
			logger.Error("Failed to send message", "error", err, "chat_id", chatID, "attempt", i+1)

			if strings.Contains(err.Error(), "connection reset") ||
				strings.Contains(err.Error(), "timeout") ||
				strings.Contains(err.Error(), "network is unreachable") {
				time.Sleep(time.Duration(i+1) * time.Second)
				continue
			}
			return 0
		}
		return sentMsg.MessageID
	}
	return 0
}

func (b *Bot) EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		logger.Error("Failed to edit message", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

func (b *Bot) AnswerCallbackQuery(queryID string, text string, showAlert bool) {
	callback := tgbotapi.NewCallback(queryID, text)
	callback.ShowAlert = showAlert
	if _, err := b.api.Request(callback); err != nil {
		logger.Error("Failed to answer callback query", "error", err, "query_id", queryID)
	}
}

func (b *Bot) Stop() {
	close(b.stop)
	b.api.StopReceivingUpdates()
	logger.Info("Bot stopped receiving updates")
}
