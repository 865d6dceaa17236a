package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/ysatyn/messages-bot/internal/flow"
	"github.com/ysatyn/messages-bot/internal/models"
	"github.com/ysatyn/messages-bot/internal/session"
)

const helpText = `Here is what I can do:

/note - leave a private note for another user
/mynotes - list, edit or delete your notes
/myref - get your referral link; whoever opens it receives your note
/newref - replace your referral link with a fresh one
/buy_unread - buy read cancels to hide read receipts on notes you receive`

// touch upserts the sender's account before any command logic runs.
func (t *Bot) touch(user *tgModels.User) (*models.Account, error) {
	return t.flow.Touch(user.ID, user.Username, user.FirstName, user.LastName)
}

// --- commands ---

func (t *Bot) handleStart(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	msg := update.Message
	user := msg.From
	if user == nil {
		return
	}
	unlock := t.sessions.Lock(user.ID, msg.Chat.ID)
	defer unlock()

	account, err := t.touch(user)
	if err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		t.sendMessage(ctx, msg.Chat.ID,
			fmt.Sprintf("Hi, %s! Here you can leave a private note for any user. Try /help to see how.", account.FirstName))
		return
	}

	note, author, err := t.flow.Deliver(user.ID, parts[1])
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		t.sendMessage(ctx, msg.Chat.ID, "This link does not point to anyone anymore.")
	case errors.Is(err, flow.ErrSelfDelivery):
		t.sendMessage(ctx, msg.Chat.ID, "You cannot receive your own note.")
	case errors.Is(err, models.ErrNoteNotFound):
		t.sendMessage(ctx, msg.Chat.ID, "📭 Nobody has written to you yet...\n\nBut you can leave a note for your friends with /note")
	case err != nil:
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
	default:
		text := fmt.Sprintf("You've got mail from %s:\n\n%s", author.FirstName, note.Text)
		t.sendMessageMarkup(ctx, msg.Chat.ID, text, hideReadKeyboard(note.ID))
	}
}

func (t *Bot) handleNote(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	msg := update.Message
	user := msg.From
	if user == nil {
		return
	}
	unlock := t.sessions.Lock(user.ID, msg.Chat.ID)
	defer unlock()

	if _, err := t.touch(user); err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	t.flow.BeginNote(user.ID, msg.Chat.ID)
	t.sendMessageMarkup(ctx, msg.Chat.ID,
		"👤 Share a user with the button below or type their numeric id:", shareUserKeyboard())
}

func (t *Bot) handleMyNotes(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	msg := update.Message
	user := msg.From
	if user == nil {
		return
	}

	notes, err := t.flow.ListNotes(user.ID)
	if err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}
	if len(notes) == 0 {
		t.sendMessage(ctx, msg.Chat.ID, "You have not left any notes yet. Use /note to create one.")
		return
	}

	text, markup := t.notesOverview(notes)
	t.sendMessageMarkup(ctx, msg.Chat.ID, text, markup)
}

func (t *Bot) handleMyRef(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	msg := update.Message
	user := msg.From
	if user == nil {
		return
	}

	account, err := t.touch(user)
	if err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	t.sendMessage(ctx, msg.Chat.ID, "Your referral link:\n"+t.flow.RefLink(account))
}

func (t *Bot) handleNewRef(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	msg := update.Message
	user := msg.From
	if user == nil {
		return
	}

	account, err := t.touch(user)
	if err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	code, err := t.flow.RegenerateRefCode(user.ID)
	if err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}
	account.RefCode = code
	t.sendMessage(ctx, msg.Chat.ID,
		"Done! The old link no longer works. Your new referral link:\n"+t.flow.RefLink(account))
}

func (t *Bot) handleHelp(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	t.sendMessage(ctx, msg.Chat.ID, helpText)
}

func (t *Bot) handleBuyUnread(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	msg := update.Message
	user := msg.From
	if user == nil {
		return
	}
	unlock := t.sessions.Lock(user.ID, msg.Chat.ID)
	defer unlock()

	if _, err := t.touch(user); err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	t.flow.BeginPurchase(user.ID, msg.Chat.ID)
	t.sendMessageMarkup(ctx, msg.Chat.ID,
		fmt.Sprintf("One read cancel costs %d stars. Send the number of cancels you want to buy:", t.flow.CreditCost()),
		cancelPurchaseKeyboard())
}

func (t *Bot) handleAdmin(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	msg := update.Message
	user := msg.From
	if user == nil || !t.flow.IsAdmin(user.ID) {
		return
	}

	stats, err := t.flow.Stats()
	if err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "The panel is missing; restart the bot to recreate it.")
		return
	}

	text := fmt.Sprintf("Hi, %s! Current bot statistics:\n\n", user.FirstName)
	text += fmt.Sprintf("💰 Total earnings: %d stars\n", stats.TotalEarnings)
	text += fmt.Sprintf("📖 Read cancels sold: %d\n", stats.TotalCreditsSold)
	text += fmt.Sprintf("👤 Admin id: %d\n\n", stats.AdminUserID)
	text += fmt.Sprintf("Running since %s\n", time.Unix(stats.LastRestart, 0).Format("2006-01-02 15:04:05"))

	t.sendMessage(ctx, msg.Chat.ID, text)
}

// --- default dispatch: payments, shared users and dialog text ---

func (t *Bot) handleDefault(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		t.handlePreCheckout(ctx, update.PreCheckoutQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		t.handleSuccessfulPayment(ctx, update.Message)
	case update.Message != nil && update.Message.UsersShared != nil:
		t.handleUsersShared(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		t.handleStateText(ctx, update.Message)
	}
}

func (t *Bot) handlePreCheckout(ctx context.Context, query *tgModels.PreCheckoutQuery) {
	_, err := t.bot.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	})
	if err != nil {
		t.logger.Error("Failed to answer pre-checkout query: ", err)
	}
}

func (t *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgModels.Message) {
	user := msg.From
	if user == nil {
		return
	}
	payment := msg.SuccessfulPayment

	account, err := t.flow.ConfirmPurchase(
		payment.TelegramPaymentChargeID,
		user.ID,
		payment.InvoicePayload,
		int64(payment.TotalAmount),
	)
	if err != nil {
		// Duplicates are already logged by the flow; the user only hears
		// about genuinely failed confirmations.
		if !errors.Is(err, models.ErrDuplicatePayment) {
			t.sendMessage(ctx, msg.Chat.ID, "The payment arrived but could not be applied. Please contact support.")
		}
		return
	}

	quantity, _ := flow.ParsePayload(payment.InvoicePayload)
	t.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf(
		"✅ Bought %d read cancel(s)!\n💰 Your current balance: %d", quantity, account.ReadCancelBalance))
}

func (t *Bot) handleUsersShared(ctx context.Context, msg *tgModels.Message) {
	user := msg.From
	if user == nil {
		return
	}
	unlock := t.sessions.Lock(user.ID, msg.Chat.ID)
	defer unlock()

	if len(msg.UsersShared.Users) == 0 {
		t.sendMessage(ctx, msg.Chat.ID, "❌ Could not read the shared user.")
		return
	}

	t.flow.SetTarget(user.ID, msg.Chat.ID, msg.UsersShared.Users[0].UserID)
	t.sendMessageMarkup(ctx, msg.Chat.ID, "✨ Now send the note text:", removeKeyboard())
}

// handleStateText routes free text by the sender's dialog state.
func (t *Bot) handleStateText(ctx context.Context, msg *tgModels.Message) {
	user := msg.From
	if user == nil {
		return
	}
	unlock := t.sessions.Lock(user.ID, msg.Chat.ID)
	defer unlock()

	switch t.sessions.State(user.ID, msg.Chat.ID) {
	case session.StateAwaitingTarget:
		t.stepTarget(ctx, msg)
	case session.StateAwaitingText:
		t.stepText(ctx, msg)
	case session.StateAwaitingEditText:
		t.stepEditText(ctx, msg)
	case session.StateAwaitingQuantity:
		t.stepQuantity(ctx, msg)
	}
}

func (t *Bot) stepTarget(ctx context.Context, msg *tgModels.Message) {
	if _, err := t.flow.SubmitTarget(msg.From.ID, msg.Chat.ID, msg.Text); err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "❌ Please enter a valid numeric user id.")
		return
	}
	t.sendMessageMarkup(ctx, msg.Chat.ID, "Now send the note text:", removeKeyboard())
}

func (t *Bot) stepText(ctx context.Context, msg *tgModels.Message) {
	note, err := t.flow.SubmitText(msg.From.ID, msg.Chat.ID, msg.Text)
	switch {
	case errors.Is(err, flow.ErrTextLength):
		t.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf(
			"The note must be between %d and %d characters long. Try again:", models.MinNoteLength, models.MaxNoteLength))
	case errors.Is(err, flow.ErrNoDialog):
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, start again with /note")
	case err != nil:
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
	default:
		t.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Note for user %d saved!", note.ForUserID))
	}
}

func (t *Bot) stepEditText(ctx context.Context, msg *tgModels.Message) {
	_, err := t.flow.SubmitEditText(msg.From.ID, msg.Chat.ID, msg.Text)
	switch {
	case errors.Is(err, flow.ErrTextLength):
		t.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf(
			"The note must be between %d and %d characters long. Try again:", models.MinNoteLength, models.MaxNoteLength))
	case errors.Is(err, models.ErrNoteNotFound):
		t.sendMessage(ctx, msg.Chat.ID, "That note no longer exists. You can create a new one with /note")
	case errors.Is(err, flow.ErrNoDialog):
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, start again from /mynotes")
	case err != nil:
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
	default:
		t.sendMessageMarkup(ctx, msg.Chat.ID, "Note updated!", backKeyboard())
	}
}

func (t *Bot) stepQuantity(ctx context.Context, msg *tgModels.Message) {
	invoice, err := t.flow.SubmitQuantity(msg.From.ID, msg.Chat.ID, msg.Text)
	if err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Please enter a valid positive number.")
		return
	}

	_, err = t.bot.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:      msg.Chat.ID,
		Title:       "Read cancel",
		Description: fmt.Sprintf("Purchase of %d read cancel(s) for %d stars", invoice.Quantity, invoice.TotalCost),
		Payload:     invoice.Payload,
		Currency:    "XTR",
		Prices: []tgModels.LabeledPrice{
			{Label: fmt.Sprintf("%d read cancel(s)", invoice.Quantity), Amount: int(invoice.TotalCost)},
		},
	})
	if err != nil {
		t.logger.Error("Failed to send invoice: ", err)
		t.sendMessage(ctx, msg.Chat.ID, "Could not issue the invoice, please try again.")
	}
}

// --- callbacks ---

// callbackMessage digs the underlying message out of a callback query.
func callbackMessage(query *tgModels.CallbackQuery) *tgModels.Message {
	return query.Message.Message
}

func (t *Bot) handleViewNoteCallback(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	query := update.CallbackQuery
	msg := callbackMessage(query)
	if msg == nil {
		return
	}

	noteID, err := noteIDFromData(query.Data, callbackViewNote)
	if err != nil {
		t.answerCallback(ctx, query.ID, "Unsupported action.")
		return
	}

	note, recipient, err := t.flow.ViewNote(query.From.ID, noteID)
	switch {
	case errors.Is(err, models.ErrNoteNotFound):
		t.answerCallback(ctx, query.ID, "Note not found.")
	case errors.Is(err, flow.ErrNotAuthor):
		t.answerCallback(ctx, query.ID, "You cannot view this note.")
	case err != nil:
		t.answerCallback(ctx, query.ID, "Something went wrong.")
	default:
		label := fmt.Sprint(note.ForUserID)
		if recipient != nil {
			label = recipient.FirstName
		}
		read := "not read yet"
		if note.ShownRead {
			read = "read"
		}
		text := fmt.Sprintf("Note for %s (%s):\n\n%s", label, read, note.Text)
		t.answerCallback(ctx, query.ID, "")
		t.editMessageMarkup(ctx, msg.Chat.ID, msg.ID, text, noteDetailKeyboard(note.ID))
	}
}

func (t *Bot) handleEditNoteCallback(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	query := update.CallbackQuery
	msg := callbackMessage(query)
	if msg == nil {
		return
	}
	unlock := t.sessions.Lock(query.From.ID, msg.Chat.ID)
	defer unlock()

	noteID, err := noteIDFromData(query.Data, callbackEditNote)
	if err != nil {
		t.answerCallback(ctx, query.ID, "Unsupported action.")
		return
	}

	err = t.flow.BeginEdit(query.From.ID, msg.Chat.ID, noteID)
	switch {
	case errors.Is(err, models.ErrNoteNotFound):
		t.answerCallback(ctx, query.ID, "Note not found.")
	case errors.Is(err, flow.ErrNotAuthor):
		t.answerCallback(ctx, query.ID, "You cannot edit this note.")
	case err != nil:
		t.answerCallback(ctx, query.ID, "Something went wrong.")
	default:
		t.answerCallback(ctx, query.ID, "")
		t.editMessageMarkup(ctx, msg.Chat.ID, msg.ID, "Send the new note text:", nil)
	}
}

func (t *Bot) handleDeleteNoteCallback(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	query := update.CallbackQuery
	msg := callbackMessage(query)
	if msg == nil {
		return
	}

	noteID, err := noteIDFromData(query.Data, callbackDeleteNote)
	if err != nil {
		t.answerCallback(ctx, query.ID, "Unsupported action.")
		return
	}

	err = t.flow.DeleteNote(query.From.ID, noteID)
	switch {
	case errors.Is(err, models.ErrNoteNotFound):
		t.answerCallback(ctx, query.ID, "Note not found.")
	case errors.Is(err, flow.ErrNotAuthor):
		t.answerCallback(ctx, query.ID, "You cannot delete this note.")
	case err != nil:
		t.answerCallback(ctx, query.ID, "Could not delete the note.")
	default:
		t.answerCallback(ctx, query.ID, "")
		t.editMessageMarkup(ctx, msg.Chat.ID, msg.ID, "Note deleted.", backKeyboard())
	}
}

func (t *Bot) handleHideReadCallback(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	query := update.CallbackQuery
	msg := callbackMessage(query)
	if msg == nil {
		return
	}

	noteID, err := noteIDFromData(query.Data, callbackHideRead)
	if err != nil {
		t.answerCallback(ctx, query.ID, "Unsupported action.")
		return
	}

	err = t.flow.HideRead(query.From.ID, noteID)
	switch {
	case errors.Is(err, models.ErrNoteNotFound):
		t.answerCallback(ctx, query.ID, "Note not found.")
	case errors.Is(err, flow.ErrNotRecipient):
		t.answerCallback(ctx, query.ID, "This note was not addressed to you.")
	case errors.Is(err, models.ErrNoCredits):
		t.answerCallback(ctx, query.ID, "You have no read cancels left. Buy some with /buy_unread")
	case err != nil:
		t.answerCallback(ctx, query.ID, "Something went wrong.")
	default:
		t.answerCallback(ctx, query.ID, "Read receipt hidden.")
	}
}

func (t *Bot) handleBackToNotesCallback(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	query := update.CallbackQuery
	msg := callbackMessage(query)
	if msg == nil {
		return
	}
	unlock := t.sessions.Lock(query.From.ID, msg.Chat.ID)
	defer unlock()

	t.flow.Cancel(query.From.ID, msg.Chat.ID)
	t.answerCallback(ctx, query.ID, "")

	notes, err := t.flow.ListNotes(query.From.ID)
	if err != nil {
		t.sendMessage(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}
	if len(notes) == 0 {
		t.editMessageMarkup(ctx, msg.Chat.ID, msg.ID,
			"You have not left any notes yet. Use /note to create one.", nil)
		return
	}

	text, markup := t.notesOverview(notes)
	t.editMessageMarkup(ctx, msg.Chat.ID, msg.ID, text, markup)
}

func (t *Bot) handleCancelPurchaseCallback(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	query := update.CallbackQuery
	msg := callbackMessage(query)
	if msg == nil {
		return
	}
	unlock := t.sessions.Lock(query.From.ID, msg.Chat.ID)
	defer unlock()

	t.flow.Cancel(query.From.ID, msg.Chat.ID)
	t.answerCallback(ctx, query.ID, "")
	t.editMessageMarkup(ctx, msg.Chat.ID, msg.ID, "Purchase cancelled.", nil)
}
