// Package flow drives the multi-step note and purchase dialogs. Every
// operation receives its collaborators through the Service struct; nothing
// here talks to Telegram directly, which keeps the whole flow testable.
package flow

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ysatyn/messages-bot/internal/config"
	"github.com/ysatyn/messages-bot/internal/models"
	"github.com/ysatyn/messages-bot/internal/session"
	"github.com/ysatyn/messages-bot/pkg/logger"
)

const payloadPrefix = "buy_unread"

// Invoice describes a pending purchase the transport should bill for.
type Invoice struct {
	Quantity  int64
	TotalCost int64
	Payload   string
}

// Service implements the conversational flow on top of the record store and
// the session store.
type Service struct {
	logger *logger.Logger
	config *config.Config

	repo     models.Repository
	sessions session.Manager
}

// NewService creates a new flow Service instance
func NewService(
	repo models.Repository,
	sessions session.Manager,
	logger *logger.Logger,
	config *config.Config,
) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
		config:   config,
	}
}

// Touch upserts the calling account. Every command runs it first so the bot
// always has a fresh profile and a referral code for the caller.
func (s *Service) Touch(userID int64, username, firstName, lastName string) (*models.Account, error) {
	account, err := s.repo.UpsertAccount(userID, username, firstName, lastName)
	if err != nil {
		s.logger.Error("Failed to upsert account ", "error ", err, "user ", userID)
		return nil, err
	}
	return account, nil
}

// Sessions exposes the session store so the transport can route text
// messages by the current dialog state.
func (s *Service) Sessions() session.Manager {
	return s.sessions
}

// IsAdmin reports whether the user is the configured administrator.
func (s *Service) IsAdmin(userID int64) bool {
	return userID == s.config.AdminID
}

// CreditCost returns the unit price of one read-cancel credit.
func (s *Service) CreditCost() int {
	return s.config.CreditCost
}

// --- note creation ---

// BeginNote enters the creation dialog.
func (s *Service) BeginNote(userID, chatID int64) {
	s.sessions.SetState(userID, chatID, session.StateAwaitingTarget)
}

// SubmitTarget handles the recipient-id step. Invalid input re-prompts
// without transitioning. On success the target is merged into the payload
// before the state moves forward, so the text step can read it back.
func (s *Service) SubmitTarget(userID, chatID int64, input string) (int64, error) {
	targetID, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil || targetID <= 0 {
		return 0, ErrInvalidTarget
	}
	s.SetTarget(userID, chatID, targetID)
	return targetID, nil
}

// SetTarget records an already-resolved recipient id, as produced by the
// share-user button, and advances to the text step.
func (s *Service) SetTarget(userID, chatID, targetID int64) {
	s.sessions.SetData(userID, chatID, session.KeyTargetID, targetID)
	s.sessions.SetState(userID, chatID, session.StateAwaitingText)
}

// validText checks the note length bound in runes.
func validText(text string) bool {
	n := utf8.RuneCountInString(text)
	return n >= models.MinNoteLength && n <= models.MaxNoteLength
}

// SubmitText handles the final creation step: validate, persist, clear.
func (s *Service) SubmitText(userID, chatID int64, text string) (*models.Note, error) {
	targetID, ok := s.sessions.Data(userID, chatID, session.KeyTargetID)
	if !ok {
		s.sessions.ClearState(userID, chatID)
		return nil, ErrNoDialog
	}

	text = strings.TrimSpace(text)
	if !validText(text) {
		return nil, ErrTextLength
	}

	note, err := s.repo.CreateNote(targetID, text, userID)
	if err != nil {
		s.logger.Error("Failed to create note ", "error ", err, "author ", userID)
		return nil, err
	}

	s.sessions.ClearState(userID, chatID)
	return note, nil
}

// --- note view / edit / delete ---

// authorNote loads a note and checks the acting user is its author.
func (s *Service) authorNote(actorID, noteID int64) (*models.Note, error) {
	note, err := s.repo.GetNote(noteID)
	if err != nil {
		return nil, err
	}
	if note.CreatedByUserID != actorID {
		return nil, ErrNotAuthor
	}
	return note, nil
}

// ViewNote returns a note for its author, with the recipient account when
// it is known. A nil recipient means the target never talked to the bot.
func (s *Service) ViewNote(actorID, noteID int64) (*models.Note, *models.Account, error) {
	note, err := s.authorNote(actorID, noteID)
	if err != nil {
		return nil, nil, err
	}

	recipient, err := s.repo.GetAccount(note.ForUserID)
	if err != nil {
		recipient = nil
	}
	return note, recipient, nil
}

// ListNotes returns the caller's authored notes, newest first.
func (s *Service) ListNotes(userID int64) ([]*models.Note, error) {
	return s.repo.ListNotesByAuthor(userID)
}

// RecipientLabel names the recipient of a note for display, falling back to
// the raw id when the target never talked to the bot.
func (s *Service) RecipientLabel(note *models.Note) string {
	account, err := s.repo.GetAccount(note.ForUserID)
	if err != nil {
		return strconv.FormatInt(note.ForUserID, 10)
	}
	return account.FirstName
}

// BeginEdit enters the edit dialog for one note, author-only.
func (s *Service) BeginEdit(actorID, chatID, noteID int64) error {
	if _, err := s.authorNote(actorID, noteID); err != nil {
		return err
	}

	s.sessions.SetData(actorID, chatID, session.KeyNoteID, noteID)
	s.sessions.SetState(actorID, chatID, session.StateAwaitingEditText)
	return nil
}

// SubmitEditText replaces the note text. The same length bound as creation
// applies here.
func (s *Service) SubmitEditText(userID, chatID int64, text string) (*models.Note, error) {
	noteID, ok := s.sessions.Data(userID, chatID, session.KeyNoteID)
	if !ok {
		s.sessions.ClearState(userID, chatID)
		return nil, ErrNoDialog
	}

	text = strings.TrimSpace(text)
	if !validText(text) {
		return nil, ErrTextLength
	}

	note, err := s.repo.UpdateNoteText(noteID, text)
	if err != nil {
		return nil, err
	}

	s.sessions.ClearState(userID, chatID)
	return note, nil
}

// DeleteNote removes a note, author-only.
func (s *Service) DeleteNote(actorID, noteID int64) error {
	if _, err := s.authorNote(actorID, noteID); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteNote(noteID)
	if err != nil {
		return err
	}
	if !deleted {
		return models.ErrNoteNotFound
	}
	return nil
}

// Cancel resets any dialog back to the idle state.
func (s *Service) Cancel(userID, chatID int64) {
	s.sessions.ClearState(userID, chatID)
}

// --- delivery ---

// Deliver resolves a referral code visit: looks up the code owner, blocks
// self-visits, fetches the note left for the visitor and marks it read.
// Delivery decides self-targeting; creation never does.
func (s *Service) Deliver(visitorID int64, refCode string) (*models.Note, *models.Account, error) {
	author, err := s.repo.GetAccountByRefCode(refCode)
	if err != nil {
		return nil, nil, err
	}
	if author.UserID == visitorID {
		return nil, nil, ErrSelfDelivery
	}

	note, err := s.repo.GetNoteForPair(visitorID, author.UserID)
	if err != nil {
		return nil, author, err
	}

	if err := s.repo.MarkNoteRead(note.ID); err != nil {
		s.logger.Error("Failed to mark note as read ", "error ", err, "note ", note.ID)
		return nil, author, err
	}
	note.IsRead = true
	note.ShownRead = true

	return note, author, nil
}

// --- referral links ---

// RefLink renders the deep-link for an account's referral code.
func (s *Service) RefLink(account *models.Account) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", s.config.BotUsername, account.RefCode)
}

// RegenerateRefCode replaces the caller's referral code with a fresh one.
// Old links stop resolving immediately.
func (s *Service) RegenerateRefCode(userID int64) (string, error) {
	code, err := s.repo.ReplaceRefCode(userID)
	if err != nil {
		s.logger.Error("Failed to regenerate referral code ", "error ", err, "user ", userID)
		return "", err
	}
	return code, nil
}

// --- read receipts ---

// HideRead spends one read-cancel credit to reset the displayed read flag
// of a note addressed to the acting user. Decrement and flag flip are one
// atomic unit in the record store.
func (s *Service) HideRead(actorID, noteID int64) error {
	note, err := s.repo.GetNote(noteID)
	if err != nil {
		return err
	}
	if note.ForUserID != actorID {
		return ErrNotRecipient
	}

	return s.repo.SpendReadCancel(actorID, noteID)
}

// --- purchases ---

// BeginPurchase enters the quantity dialog.
func (s *Service) BeginPurchase(userID, chatID int64) {
	s.sessions.SetState(userID, chatID, session.StateAwaitingQuantity)
}

// SubmitQuantity validates the requested amount and produces the invoice.
// The dialog is cleared before billing; the confirmation arrives as its own
// event and does not depend on session state.
func (s *Service) SubmitQuantity(userID, chatID int64, input string) (*Invoice, error) {
	quantity, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil || quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	s.sessions.ClearState(userID, chatID)
	return &Invoice{
		Quantity:  quantity,
		TotalCost: quantity * int64(s.config.CreditCost),
		Payload:   fmt.Sprintf("%s_%d_%d", payloadPrefix, userID, quantity),
	}, nil
}

// ParsePayload extracts the credit quantity from an invoice payload.
func ParsePayload(payload string) (int64, error) {
	parts := strings.Split(payload, "_")
	if len(parts) < 2 || !strings.HasPrefix(payload, payloadPrefix) {
		return 0, fmt.Errorf("malformed invoice payload: %q", payload)
	}
	quantity, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || quantity <= 0 {
		return 0, fmt.Errorf("malformed invoice payload: %q", payload)
	}
	return quantity, nil
}

// ConfirmPurchase applies a provider confirmation. It is idempotent per
// charge id: a replay surfaces models.ErrDuplicatePayment and moves nothing.
func (s *Service) ConfirmPurchase(chargeID string, userID int64, payload string, totalAmount int64) (*models.Account, error) {
	quantity, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ApplyPurchase(chargeID, userID, quantity, totalAmount); err != nil {
		if err == models.ErrDuplicatePayment {
			s.logger.Warn("Replayed payment confirmation ignored ", "charge ", chargeID, "user ", userID)
		} else {
			s.logger.Error("Failed to apply purchase ", "error ", err, "charge ", chargeID)
		}
		return nil, err
	}

	return s.repo.GetAccount(userID)
}

// --- panel ---

// Stats returns the panel snapshot.
func (s *Service) Stats() (*models.Stats, error) {
	panel, err := s.repo.GetPanel()
	if err != nil {
		return nil, err
	}
	return &models.Stats{
		AdminUserID:      panel.AdminUserID,
		TotalEarnings:    panel.TotalEarnings,
		TotalCreditsSold: panel.TotalCreditsSold,
		LastRestart:      panel.LastRestart,
	}, nil
}
