// Package bot is the cashier's counter screen as a Telegram chat.
package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Xtsservices/BasavatarakamCanteen2/services"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Engine is what the bot drives. *services.Engine implements it.
type Engine interface {
	Dispatch(ctx context.Context, ev services.Event) (services.Snapshot, error)
	Snapshot() services.Snapshot
	Subscribe() *services.Subscription
}

const staleButton = "The menu changed, please pick again."

type screen struct {
	messageID int
	text      string
	keyboard  tgbotapi.InlineKeyboardMarkup
}

type Bot struct {
	api      API
	engine   Engine
	outlet   string
	operator int64
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	screens map[int64]*screen // chat id -> live menu message
}

// New wires the bot. operator restricts the counter to one chat; zero lets
// any chat in.
func New(api API, engine Engine, outlet string, operator int64, logger *zap.SugaredLogger) *Bot {
	return &Bot{
		api:      api,
		engine:   engine,
		outlet:   outlet,
		operator: operator,
		logger:   logger,
		screens:  make(map[int64]*screen),
	}
}

func (b *Bot) setBotCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "menu", Description: "Show the counter screen"},
		tgbotapi.BotCommand{Command: "clear", Description: "Clear the search"},
		tgbotapi.BotCommand{Command: "sync", Description: "Reload the menu"},
	)
	_, err := b.api.Request(cfg)
	return err
}

// Run serves Telegram updates and mirrors engine updates into the live
// screens until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.setBotCommands(); err != nil {
		b.logger.Warnw("set bot commands", "error", err)
	}
	sub := b.engine.Subscribe()
	defer sub.Close()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			b.onEngineUpdate(up)
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) allowed(chatID int64) bool {
	return b.operator == 0 || chatID == b.operator
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID
	if !b.allowed(chatID) {
		b.send(chatID, "This counter is private.")
		return
	}
	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "/start" || text == "/menu":
		b.showScreen(chatID)
	case text == "/clear":
		b.dispatch(ctx, services.SearchChanged{Text: ""})
	case text == "/sync":
		b.dispatch(ctx, services.SyncRequested{})
	case strings.HasPrefix(text, "/"):
		b.send(chatID, "Unknown command. Use /menu.")
	case text != "":
		b.dispatch(ctx, services.SearchChanged{Text: text})
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || !b.allowed(cq.Message.Chat.ID) {
		b.answer(cq.ID, "")
		return
	}
	snap := b.engine.Snapshot()
	ev, ok := ParseCallback(cq.Data, snap)
	if !ok {
		if cq.Data == cbNoop {
			b.answer(cq.ID, "")
			return
		}
		b.answer(cq.ID, staleButton)
		b.refresh(cq.Message.Chat.ID, snap)
		return
	}
	b.answer(cq.ID, "")
	b.dispatch(ctx, ev)
}

// dispatch hands ev to the engine. Advisories, including the one for a
// rejected intent, reach the chat through onEngineUpdate.
func (b *Bot) dispatch(ctx context.Context, ev services.Event) {
	if _, err := b.engine.Dispatch(ctx, ev); err != nil {
		b.logger.Debugw("intent rejected", "event", ev, "error", err)
	}
}

func (b *Bot) onEngineUpdate(u services.Update) {
	b.mu.Lock()
	chats := make([]int64, 0, len(b.screens))
	for chatID := range b.screens {
		chats = append(chats, chatID)
	}
	b.mu.Unlock()

	for _, chatID := range chats {
		for _, a := range u.Advisories {
			b.send(chatID, a.Title+": "+a.Message)
		}
		b.refresh(chatID, u.Snapshot)
	}
}

// showScreen posts a fresh counter message; older ones stop updating.
func (b *Bot) showScreen(chatID int64) {
	text, kb := Screen(b.engine.Snapshot(), b.outlet)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Errorw("send screen", "chat_id", chatID, "error", err)
		return
	}
	b.mu.Lock()
	b.screens[chatID] = &screen{messageID: sent.MessageID, text: text, keyboard: kb}
	b.mu.Unlock()
}

func (b *Bot) refresh(chatID int64, snap services.Snapshot) {
	text, kb := Screen(snap, b.outlet)

	b.mu.Lock()
	sc, ok := b.screens[chatID]
	if !ok || (sc.text == text && sameKeyboard(sc.keyboard, kb)) {
		b.mu.Unlock()
		return
	}
	messageID := sc.messageID
	sc.text, sc.keyboard = text, kb
	b.mu.Unlock()

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	if _, err := b.api.Send(edit); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not modified") {
			return
		}
		if strings.Contains(errStr, "not found") {
			b.mu.Lock()
			delete(b.screens, chatID)
			b.mu.Unlock()
			b.showScreen(chatID)
			return
		}
		b.logger.Warnw("edit screen", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func sameKeyboard(a, b tgbotapi.InlineKeyboardMarkup) bool {
	if len(a.InlineKeyboard) != len(b.InlineKeyboard) {
		return false
	}
	for i := range a.InlineKeyboard {
		ra, rb := a.InlineKeyboard[i], b.InlineKeyboard[i]
		if len(ra) != len(rb) {
			return false
		}
		for j := range ra {
			if ra[j].Text != rb[j].Text || dataOf(ra[j]) != dataOf(rb[j]) {
				return false
			}
		}
	}
	return true
}

func dataOf(btn tgbotapi.InlineKeyboardButton) string {
	if btn.CallbackData == nil {
		return ""
	}
	return *btn.CallbackData
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debugw("answer callback", "error", err)
	}
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Errorw("send message", "chat_id", chatID, "error", err)
	}
}
