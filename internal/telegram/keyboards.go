package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgModels "github.com/go-telegram/bot/models"

	"github.com/ysatyn/messages-bot/internal/models"
)

// Callback data prefixes. The note id is appended where one applies.
const (
	callbackViewNote       = "view_note_"
	callbackEditNote       = "edit_note_"
	callbackDeleteNote     = "delete_note_"
	callbackHideRead       = "hide_read_"
	callbackBackToNotes    = "back_to_notes"
	callbackCancelPurchase = "cancel_purchase"
)

// noteIDFromData extracts the trailing note id from callback data.
func noteIDFromData(data, prefix string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
}

// shareUserKeyboard offers the native user picker for the target step.
func shareUserKeyboard() *tgModels.ReplyKeyboardMarkup {
	noBots := false
	return &tgModels.ReplyKeyboardMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
		Keyboard: [][]tgModels.KeyboardButton{{
			{
				Text: "Share a user",
				RequestUsers: &tgModels.KeyboardButtonRequestUsers{
					RequestID: 1,
					UserIsBot: noBots,
				},
			},
		}},
	}
}

func removeKeyboard() *tgModels.ReplyKeyboardRemove {
	return &tgModels.ReplyKeyboardRemove{RemoveKeyboard: true}
}

func inlineButton(text, data string) tgModels.InlineKeyboardButton {
	return tgModels.InlineKeyboardButton{Text: text, CallbackData: data}
}

// noteDetailKeyboard is shown under a single note in the author's list.
func noteDetailKeyboard(noteID int64) *tgModels.InlineKeyboardMarkup {
	return &tgModels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgModels.InlineKeyboardButton{
			{inlineButton("Edit", fmt.Sprintf("%s%d", callbackEditNote, noteID))},
			{inlineButton("Delete", fmt.Sprintf("%s%d", callbackDeleteNote, noteID))},
			{inlineButton("Back", callbackBackToNotes)},
		},
	}
}

func backKeyboard() *tgModels.InlineKeyboardMarkup {
	return &tgModels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgModels.InlineKeyboardButton{
			{inlineButton("Back", callbackBackToNotes)},
		},
	}
}

func cancelPurchaseKeyboard() *tgModels.InlineKeyboardMarkup {
	return &tgModels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgModels.InlineKeyboardButton{
			{inlineButton("Cancel purchase", callbackCancelPurchase)},
		},
	}
}

// hideReadKeyboard is attached to a delivered note so the recipient can
// spend a credit on the spot.
func hideReadKeyboard(noteID int64) *tgModels.InlineKeyboardMarkup {
	return &tgModels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgModels.InlineKeyboardButton{
			{inlineButton("Hide read receipt", fmt.Sprintf("%s%d", callbackHideRead, noteID))},
		},
	}
}

// notesOverview renders the author's note list with one view button per note.
func (t *Bot) notesOverview(notes []*models.Note) (string, *tgModels.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You have left %d note(s):\n\n", len(notes))

	markup := &tgModels.InlineKeyboardMarkup{}
	for _, note := range notes {
		label := t.flow.RecipientLabel(note)
		fmt.Fprintf(&sb, "- For %s at %s\n", label, time.Unix(note.CreatedAt, 0).Format("2006-01-02 15:04:05"))
		markup.InlineKeyboard = append(markup.InlineKeyboard, []tgModels.InlineKeyboardButton{
			inlineButton(fmt.Sprintf("Note for %s", label), fmt.Sprintf("%s%d", callbackViewNote, note.ID)),
		})
	}

	return sb.String(), markup
}
