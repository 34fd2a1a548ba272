package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Armin-kho/satoshi-converter/internal/db"
	"github.com/Armin-kho/satoshi-converter/internal/poller"
	"github.com/Armin-kho/satoshi-converter/internal/render"
)

const callbackRefresh = "refresh"

// RateSource is the read side of the poller plus its refresh trigger.
type RateSource interface {
	State() poller.State
	RefreshNow() bool
	Subscribe(fn func(poller.State)) (unsubscribe func())
}

// sender is the part of *tgbotapi.BotAPI the app talks to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// App serves the rates grid over Telegram and keeps subscribed messages
// edited in place as the poller publishes new state.
type App struct {
	api    sender
	bot    *tgbotapi.BotAPI
	db     *db.DB
	rates  RateSource
	opts   render.Options
	logger *slog.Logger

	pending chan poller.State

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func New(token string, database *db.DB, rates RateSource, opts render.Options, logger *slog.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	a := newApp(b, database, rates, opts, logger)
	a.bot = b
	return a, nil
}

func newApp(api sender, database *db.DB, rates RateSource, opts render.Options, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		api:     api,
		db:      database,
		rates:   rates,
		opts:    opts,
		logger:  logger.With("component", "bot"),
		pending: make(chan poller.State, 1),
		stopCh:  make(chan struct{}),
	}
}

// Run receives updates until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.bot == nil {
		return errors.New("bot: no telegram client")
	}
	a.logger.Info("bot authorized", "username", a.bot.Self.UserName)

	a.startPusher()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			a.handleUpdate(ctx, upd)
		}
	}
}

// Close stops pushing state to subscribed messages.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		close(a.stopCh)
		a.wg.Wait()
	})
}

// startPusher subscribes to the poller and edits every subscribed message
// once a cycle settles. Only the newest pending state is kept.
func (a *App) startPusher() {
	unsubscribe := a.rates.Subscribe(a.offer)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-a.stopCh:
				return
			case s := <-a.pending:
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				a.pushAll(ctx, s)
				cancel()
			}
		}
	}()
}

func (a *App) offer(s poller.State) {
	if s.Loading {
		return
	}
	for {
		select {
		case a.pending <- s:
			return
		default:
		}
		select {
		case <-a.pending:
		default:
		}
	}
}

func (a *App) pushAll(ctx context.Context, s poller.State) {
	subs, err := a.db.ListSubscriptions(ctx)
	if err != nil {
		a.logger.Error("list subscriptions", "err", err)
		return
	}
	text := render.BuildMessage(s, a.opts)
	kb := keyboard(s.Loading)
	for _, sub := range subs {
		edit := tgbotapi.NewEditMessageTextAndMarkup(sub.ChatID, sub.MessageID, text, kb)
		edit.DisableWebPagePreview = true
		_, err := a.api.Request(edit)
		switch {
		case err == nil, isNotModified(err):
		case isGone(err):
			a.logger.Info("dropping subscription", "chat", sub.ChatID, "err", err)
			_, _ = a.db.DeleteSubscription(ctx, sub.ChatID)
		default:
			a.logger.Warn("edit rates message", "chat", sub.ChatID, "err", err)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		a.handleMessage(ctx, *upd.Message)
		return
	}
	if upd.CallbackQuery != nil {
		a.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
}

func (a *App) handleMessage(ctx context.Context, msg tgbotapi.Message) {
	if msg.Chat == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "rates":
		a.sendRates(ctx, chatID)
	case "refresh":
		if !a.rates.RefreshNow() {
			a.reply(chatID, "⏳ Rates are already updating.")
			return
		}
		a.sendRates(ctx, chatID)
	case "stop":
		removed, err := a.db.DeleteSubscription(ctx, chatID)
		if err != nil {
			a.logger.Error("delete subscription", "chat", chatID, "err", err)
			a.reply(chatID, "❌ Something went wrong, please try again.")
			return
		}
		if !removed {
			a.reply(chatID, "No live rates message in this chat.")
			return
		}
		a.reply(chatID, "✅ Live updates stopped. Send /rates to start again.")
	case "help":
		a.reply(chatID, helpText())
	}
}

func (a *App) handleCallback(ctx context.Context, q tgbotapi.CallbackQuery) {
	if q.Data != callbackRefresh {
		_, _ = a.api.Request(tgbotapi.NewCallback(q.ID, ""))
		return
	}

	toast := "Updating..."
	if !a.rates.RefreshNow() {
		toast = "Already updating"
	}
	_, _ = a.api.Request(tgbotapi.NewCallback(q.ID, toast))

	if q.Message == nil || q.Message.Chat == nil {
		return
	}
	if err := a.db.UpsertSubscription(ctx, q.Message.Chat.ID, q.Message.MessageID); err != nil {
		a.logger.Error("save subscription", "chat", q.Message.Chat.ID, "err", err)
	}
}

// sendRates posts the current grid and makes it the chat's live message.
// The previous live message keeps its last text but loses its button.
func (a *App) sendRates(ctx context.Context, chatID int64) {
	prev, hadPrev, err := a.db.GetSubscription(ctx, chatID)
	if err != nil {
		a.logger.Warn("load subscription", "chat", chatID, "err", err)
	}

	s := a.rates.State()
	msg := tgbotapi.NewMessage(chatID, render.BuildMessage(s, a.opts))
	msg.ReplyMarkup = keyboard(s.Loading)
	msg.DisableWebPagePreview = true
	sent, err := a.api.Send(msg)
	if err != nil {
		a.logger.Warn("send rates", "chat", chatID, "err", err)
		return
	}
	if err := a.db.UpsertSubscription(ctx, chatID, sent.MessageID); err != nil {
		a.logger.Error("save subscription", "chat", chatID, "err", err)
	}
	if hadPrev && prev.MessageID != sent.MessageID {
		a.retire(chatID, prev.MessageID)
	}
}

func (a *App) retire(chatID int64, messageID int) {
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	_, err := a.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty))
	if err != nil && !isNotModified(err) && !isGone(err) {
		a.logger.Debug("retire rates message", "chat", chatID, "message", messageID, "err", err)
	}
}

func (a *App) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := a.api.Send(msg); err != nil {
		a.logger.Warn("send reply", "chat", chatID, "err", err)
	}
}

func keyboard(loading bool) tgbotapi.InlineKeyboardMarkup {
	label := "🔄 Refresh Rates"
	if loading {
		label = "⏳ Updating..."
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackRefresh),
		),
	)
}

func helpText() string {
	return "❓ " + render.Title + "\n\n" +
		render.Explainer() + "\n\n" +
		"/rates – post the live rates grid (edited every 30 seconds)\n" +
		"/refresh – fetch fresh rates now\n" +
		"/stop – stop live updates in this chat\n" +
		"/help – this message"
}

func telegramError(err error) (*tgbotapi.Error, bool) {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}

func isNotModified(err error) bool {
	tgErr, ok := telegramError(err)
	return ok && strings.Contains(tgErr.Message, "message is not modified")
}

// isGone reports errors after which the message can never be edited again.
func isGone(err error) bool {
	tgErr, ok := telegramError(err)
	if !ok {
		return false
	}
	if tgErr.Code == 403 {
		return true
	}
	msg := strings.ToLower(tgErr.Message)
	return strings.Contains(msg, "message to edit not found") ||
		strings.Contains(msg, "chat not found") ||
		strings.Contains(msg, "message can't be edited")
}
