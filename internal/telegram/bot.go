// Package telegram adapts the conversation flow to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/ysatyn/messages-bot/internal/flow"
	"github.com/ysatyn/messages-bot/internal/session"
	"github.com/ysatyn/messages-bot/pkg/logger"
)

// Bot wires the flow Service to Telegram updates.
type Bot struct {
	logger *logger.Logger
	bot    *bot.Bot

	flow     *flow.Service
	sessions session.Manager
}

// NewBot creates the Telegram adapter and registers all handlers.
func NewBot(logger *logger.Logger, token string, flowService *flow.Service) (*Bot, error) {
	t := &Bot{
		logger:   logger,
		flow:     flowService,
		sessions: flowService.Sessions(),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(t.guard("default", t.handleDefault)),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %s", err)
	}
	t.bot = b

	t.registerHandlers()

	return t, nil
}

func (t *Bot) registerHandlers() {
	commands := map[string]bot.HandlerFunc{
		"/start":      t.handleStart,
		"/note":       t.handleNote,
		"/mynotes":    t.handleMyNotes,
		"/myref":      t.handleMyRef,
		"/newref":     t.handleNewRef,
		"/help":       t.handleHelp,
		"/buy_unread": t.handleBuyUnread,
		"/admin":      t.handleAdmin,
	}
	for command, handler := range commands {
		t.bot.RegisterHandler(bot.HandlerTypeMessageText, command, bot.MatchTypePrefix, t.guard(command, handler))
	}

	callbacks := map[string]bot.HandlerFunc{
		callbackViewNote:       t.handleViewNoteCallback,
		callbackEditNote:       t.handleEditNoteCallback,
		callbackDeleteNote:     t.handleDeleteNoteCallback,
		callbackHideRead:       t.handleHideReadCallback,
		callbackBackToNotes:    t.handleBackToNotesCallback,
		callbackCancelPurchase: t.handleCancelPurchaseCallback,
	}
	for prefix, handler := range callbacks {
		t.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, prefix, bot.MatchTypePrefix, t.guard(prefix, handler))
	}
}

// Start sets the command menu and runs the long-polling loop until the
// context is cancelled.
func (t *Bot) Start(ctx context.Context) {
	t.setCommands(ctx)
	t.logger.Info("Telegram bot started")
	t.bot.Start(ctx)
}

func (t *Bot) setCommands(ctx context.Context) {
	_, err := t.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []tgModels.BotCommand{
			{Command: "start", Description: "🏠 Main menu"},
			{Command: "note", Description: "✍️ Leave a note"},
			{Command: "mynotes", Description: "📒 My notes"},
			{Command: "myref", Description: "🔗 My link"},
			{Command: "help", Description: "❓ Help"},
			{Command: "buy_unread", Description: "🛒 Buy read cancels"},
		},
	})
	if err != nil {
		t.logger.Error("Failed to set bot commands: ", err)
	}
}

// guard wraps a handler with panic recovery so one bad update cannot take
// down the polling loop.
func (t *Bot) guard(name string, handler bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("Handler panicked",
					"handler", name,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		handler(ctx, b, update)
	}
}

// sendMessage sends plain text, fire-and-forget.
func (t *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	t.sendMessageMarkup(ctx, chatID, text, nil)
}

func (t *Bot) sendMessageMarkup(ctx context.Context, chatID int64, text string, markup tgModels.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		t.logger.Error("Failed to send message: ", err)
	}
}

func (t *Bot) editMessageMarkup(ctx context.Context, chatID int64, messageID int, text string, markup tgModels.ReplyMarkup) {
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := t.bot.EditMessageText(ctx, params); err != nil {
		t.logger.Error("Failed to edit message: ", err)
	}
}

// answerCallback shows a toast on the pressed button.
func (t *Bot) answerCallback(ctx context.Context, callbackID, text string) {
	_, err := t.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		t.logger.Error("Failed to answer callback query: ", err)
	}
}
