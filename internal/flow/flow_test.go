package flow

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ysatyn/messages-bot/internal/config"
	"github.com/ysatyn/messages-bot/internal/models"
	"github.com/ysatyn/messages-bot/internal/session"
	"github.com/ysatyn/messages-bot/pkg/logger"
	"github.com/ysatyn/messages-bot/pkg/refcode"
)

// fakeRepo is an in-memory models.Repository with the same atomicity
// guarantees as the Postgres implementation.
type fakeRepo struct {
	mu         sync.Mutex
	accounts   map[int64]*models.Account
	notes      map[int64]*models.Note
	nextNoteID int64
	panel      *models.Panel
	payments   map[string]*models.Payment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts: make(map[int64]*models.Account),
		notes:    make(map[int64]*models.Note),
		payments: make(map[string]*models.Payment),
	}
}

func (r *fakeRepo) Close() error { return nil }

func (r *fakeRepo) GetAccount(userID int64) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[userID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *fakeRepo) GetAccountByRefCode(code string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.RefCode == code {
			copied := *account
			return &copied, nil
		}
	}
	return nil, models.ErrAccountNotFound
}

func (r *fakeRepo) refCodeTaken(code string) (bool, error) {
	for _, account := range r.accounts {
		if account.RefCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) UpsertAccount(userID int64, username, firstName, lastName string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[userID]; ok {
		account.Username = username
		account.FirstName = firstName
		account.LastName = lastName
		copied := *account
		return &copied, nil
	}
	code, err := refcode.Generate(userID, r.refCodeTaken)
	if err != nil {
		return nil, err
	}
	account := &models.Account{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		RefCode:   code,
		CreatedAt: time.Now().Unix(),
	}
	r.accounts[userID] = account
	copied := *account
	return &copied, nil
}

func (r *fakeRepo) ReplaceRefCode(userID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[userID]
	if !ok {
		return "", models.ErrAccountNotFound
	}
	code, err := refcode.Generate(userID, r.refCodeTaken)
	if err != nil {
		return "", err
	}
	account.RefCode = code
	return code, nil
}

func (r *fakeRepo) CreateNote(forUserID int64, text string, createdByUserID int64) (*models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, note := range r.notes {
		if note.CreatedByUserID == createdByUserID && note.ForUserID == forUserID {
			delete(r.notes, id)
		}
	}
	r.nextNoteID++
	note := &models.Note{
		ID:              r.nextNoteID,
		ForUserID:       forUserID,
		Text:            text,
		CreatedByUserID: createdByUserID,
		CreatedAt:       time.Now().Unix(),
	}
	r.notes[note.ID] = note
	copied := *note
	return &copied, nil
}

func (r *fakeRepo) GetNote(noteID int64) (*models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	note, ok := r.notes[noteID]
	if !ok {
		return nil, models.ErrNoteNotFound
	}
	copied := *note
	return &copied, nil
}

func (r *fakeRepo) GetNoteForPair(forUserID, createdByUserID int64) (*models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *models.Note
	for _, note := range r.notes {
		if note.ForUserID == forUserID && note.CreatedByUserID == createdByUserID {
			if newest == nil || note.CreatedAt > newest.CreatedAt || (note.CreatedAt == newest.CreatedAt && note.ID > newest.ID) {
				newest = note
			}
		}
	}
	if newest == nil {
		return nil, models.ErrNoteNotFound
	}
	copied := *newest
	return &copied, nil
}

func (r *fakeRepo) ListNotesByAuthor(userID int64) ([]*models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var notes []*models.Note
	for _, note := range r.notes {
		if note.CreatedByUserID == userID {
			copied := *note
			notes = append(notes, &copied)
		}
	}
	return notes, nil
}

func (r *fakeRepo) UpdateNoteText(noteID int64, text string) (*models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	note, ok := r.notes[noteID]
	if !ok {
		return nil, models.ErrNoteNotFound
	}
	note.Text = text
	copied := *note
	return &copied, nil
}

func (r *fakeRepo) DeleteNote(noteID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[noteID]; !ok {
		return false, nil
	}
	delete(r.notes, noteID)
	return true, nil
}

func (r *fakeRepo) MarkNoteRead(noteID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	note, ok := r.notes[noteID]
	if !ok {
		return models.ErrNoteNotFound
	}
	note.IsRead = true
	note.ShownRead = true
	return nil
}

func (r *fakeRepo) SpendReadCancel(userID, noteID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[userID]
	if !ok || account.ReadCancelBalance <= 0 {
		return models.ErrNoCredits
	}
	note, ok := r.notes[noteID]
	if !ok {
		return models.ErrNoteNotFound
	}
	account.ReadCancelBalance--
	note.ShownRead = false
	return nil
}

func (r *fakeRepo) ApplyPurchase(chargeID string, userID, quantity, totalAmount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[chargeID]; ok {
		return models.ErrDuplicatePayment
	}
	account, ok := r.accounts[userID]
	if !ok {
		return models.ErrAccountNotFound
	}
	if r.panel == nil {
		return models.ErrPanelNotFound
	}
	r.payments[chargeID] = &models.Payment{
		ChargeID: chargeID, UserID: userID, Quantity: quantity, TotalAmount: totalAmount,
	}
	account.ReadCancelBalance += quantity
	r.panel.TotalEarnings += totalAmount
	r.panel.TotalCreditsSold += quantity
	return nil
}

func (r *fakeRepo) EnsurePanel(adminUserID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panel == nil {
		r.panel = &models.Panel{ID: 1, AdminUserID: adminUserID}
	}
	r.panel.LastRestart = time.Now().Unix()
	return nil
}

func (r *fakeRepo) GetPanel() (*models.Panel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panel == nil {
		return nil, models.ErrPanelNotFound
	}
	copied := *r.panel
	return &copied, nil
}

const (
	testAdminID    = int64(999)
	testCreditCost = 10
	testChatID     = int64(500)
)

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	log, err := logger.NewLogger(true)
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	repo := newFakeRepo()
	if err := repo.EnsurePanel(testAdminID); err != nil {
		t.Fatalf("EnsurePanel: %v", err)
	}
	cfg := &config.Config{
		AdminID:     testAdminID,
		CreditCost:  testCreditCost,
		BotUsername: "ToUserBot",
	}
	return NewService(repo, session.NewMemoryManager(), log, cfg), repo
}

func touch(t *testing.T, s *Service, id int64, name string) *models.Account {
	t.Helper()
	account, err := s.Touch(id, "", name, "")
	if err != nil {
		t.Fatalf("Touch(%d): %v", id, err)
	}
	return account
}

func createNote(t *testing.T, s *Service, author, recipient int64, text string) *models.Note {
	t.Helper()
	s.BeginNote(author, testChatID)
	if _, err := s.SubmitTarget(author, testChatID, fmt.Sprint(recipient)); err != nil {
		t.Fatalf("SubmitTarget: %v", err)
	}
	note, err := s.SubmitText(author, testChatID, text)
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	return note
}

func TestCreateNoteFlow(t *testing.T) {
	s, _ := newTestService(t)
	touch(t, s, 1, "Alice")

	s.BeginNote(1, testChatID)
	if got := s.Sessions().State(1, testChatID); got != session.StateAwaitingTarget {
		t.Fatalf("state after BeginNote = %v, want %v", got, session.StateAwaitingTarget)
	}

	if _, err := s.SubmitTarget(1, testChatID, " 42 "); err != nil {
		t.Fatalf("SubmitTarget: %v", err)
	}
	if got := s.Sessions().State(1, testChatID); got != session.StateAwaitingText {
		t.Fatalf("state after target = %v, want %v", got, session.StateAwaitingText)
	}

	text := "Hello there, this is a test note."
	note, err := s.SubmitText(1, testChatID, text)
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if note.ForUserID != 42 || note.CreatedByUserID != 1 {
		t.Fatalf("note addressed (%d -> %d), want (1 -> 42)", note.CreatedByUserID, note.ForUserID)
	}
	if note.Text != text {
		t.Fatalf("note text = %q, want it unchanged", note.Text)
	}
	if note.ShownRead || note.IsRead {
		t.Fatal("fresh note already marked read")
	}
	if got := s.Sessions().State(1, testChatID); got != session.StateNone {
		t.Fatalf("state after completion = %v, want %v", got, session.StateNone)
	}
}

func TestInvalidTargetDoesNotTransition(t *testing.T) {
	s, _ := newTestService(t)
	touch(t, s, 1, "Alice")
	s.BeginNote(1, testChatID)

	for _, input := range []string{"abc", "-5", "0", "1.5", ""} {
		if _, err := s.SubmitTarget(1, testChatID, input); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("SubmitTarget(%q) error = %v, want ErrInvalidTarget", input, err)
		}
		if got := s.Sessions().State(1, testChatID); got != session.StateAwaitingTarget {
			t.Fatalf("state after invalid target = %v, want %v", got, session.StateAwaitingTarget)
		}
	}
}

func TestTextLengthBounds(t *testing.T) {
	s, repo := newTestService(t)
	touch(t, s, 1, "Alice")

	for _, text := range []string{"hi", "1234", strings.Repeat("a", 2001)} {
		s.BeginNote(1, testChatID)
		if _, err := s.SubmitTarget(1, testChatID, "42"); err != nil {
			t.Fatalf("SubmitTarget: %v", err)
		}
		if _, err := s.SubmitText(1, testChatID, text); !errors.Is(err, ErrTextLength) {
			t.Fatalf("SubmitText(len %d) error = %v, want ErrTextLength", len(text), err)
		}
		if got := s.Sessions().State(1, testChatID); got != session.StateAwaitingText {
			t.Fatalf("state after invalid text = %v, want %v", got, session.StateAwaitingText)
		}
		if len(repo.notes) != 0 {
			t.Fatalf("rejected text still created %d note(s)", len(repo.notes))
		}
		s.Cancel(1, testChatID)
	}

	for _, text := range []string{"12345", strings.Repeat("a", 2000)} {
		createNote(t, s, 1, 42, text)
	}
}

func TestSecondNoteSupersedesFirst(t *testing.T) {
	s, repo := newTestService(t)
	touch(t, s, 1, "Alice")

	createNote(t, s, 1, 42, "first version of the note")
	note := createNote(t, s, 1, 42, "second version of the note")

	if len(repo.notes) != 1 {
		t.Fatalf("pair holds %d notes, want exactly 1", len(repo.notes))
	}
	stored, err := repo.GetNote(note.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if stored.Text != "second version of the note" {
		t.Fatalf("surviving text = %q, want the newer one", stored.Text)
	}
}

func TestRefCodesUnique(t *testing.T) {
	s, _ := newTestService(t)
	seen := make(map[string]int64)
	for id := int64(1); id <= 200; id++ {
		account := touch(t, s, id, "User")
		if other, ok := seen[account.RefCode]; ok {
			t.Fatalf("accounts %d and %d share referral code %q", other, id, account.RefCode)
		}
		seen[account.RefCode] = id
	}
}

func TestRegenerateRefCode(t *testing.T) {
	s, _ := newTestService(t)
	account := touch(t, s, 1, "Alice")

	code, err := s.RegenerateRefCode(1)
	if err != nil {
		t.Fatalf("RegenerateRefCode: %v", err)
	}
	if code == account.RefCode {
		t.Fatal("regenerated code equals the old one")
	}
	if _, _, err := s.Deliver(2, account.RefCode); !errors.Is(err, models.ErrAccountNotFound) {
		t.Fatalf("old code still resolves, error = %v", err)
	}
}

func TestEditFlow(t *testing.T) {
	s, _ := newTestService(t)
	touch(t, s, 1, "Alice")
	note := createNote(t, s, 1, 42, "original note body")

	if err := s.BeginEdit(1, testChatID, note.ID); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	if got := s.Sessions().State(1, testChatID); got != session.StateAwaitingEditText {
		t.Fatalf("state after BeginEdit = %v, want %v", got, session.StateAwaitingEditText)
	}

	// Edits carry the same length bound as creation.
	if _, err := s.SubmitEditText(1, testChatID, "new"); !errors.Is(err, ErrTextLength) {
		t.Fatalf("short edit error = %v, want ErrTextLength", err)
	}
	if got := s.Sessions().State(1, testChatID); got != session.StateAwaitingEditText {
		t.Fatalf("state after rejected edit = %v, want %v", got, session.StateAwaitingEditText)
	}

	updated, err := s.SubmitEditText(1, testChatID, "updated note body")
	if err != nil {
		t.Fatalf("SubmitEditText: %v", err)
	}
	if updated.Text != "updated note body" {
		t.Fatalf("updated text = %q", updated.Text)
	}
	if got := s.Sessions().State(1, testChatID); got != session.StateNone {
		t.Fatalf("state after edit = %v, want %v", got, session.StateNone)
	}
}

func TestNonAuthorActionsRejected(t *testing.T) {
	s, repo := newTestService(t)
	touch(t, s, 1, "Alice")
	touch(t, s, 2, "Mallory")
	note := createNote(t, s, 1, 42, "private note for someone else")

	if _, _, err := s.ViewNote(2, note.ID); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("ViewNote by non-author error = %v, want ErrNotAuthor", err)
	}
	if err := s.BeginEdit(2, testChatID, note.ID); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("BeginEdit by non-author error = %v, want ErrNotAuthor", err)
	}
	if err := s.DeleteNote(2, note.ID); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("DeleteNote by non-author error = %v, want ErrNotAuthor", err)
	}
	// Repeating the rejected action changes nothing either.
	if err := s.DeleteNote(2, note.ID); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("repeated DeleteNote error = %v, want ErrNotAuthor", err)
	}
	if _, err := repo.GetNote(note.ID); err != nil {
		t.Fatalf("note mutated by rejected actions: %v", err)
	}
	if got := s.Sessions().State(2, testChatID); got != session.StateNone {
		t.Fatalf("rejected BeginEdit left state %v", got)
	}
}

func TestDeliver(t *testing.T) {
	s, _ := newTestService(t)
	author := touch(t, s, 1, "Alice")
	touch(t, s, 42, "Bob")
	note := createNote(t, s, 1, 42, "a note waiting for Bob")

	// Authors never receive their own notes.
	if _, _, err := s.Deliver(1, author.RefCode); !errors.Is(err, ErrSelfDelivery) {
		t.Fatalf("self delivery error = %v, want ErrSelfDelivery", err)
	}

	// A visitor with no note gets the empty-mailbox notice.
	if _, _, err := s.Deliver(7, author.RefCode); !errors.Is(err, models.ErrNoteNotFound) {
		t.Fatalf("empty mailbox error = %v, want ErrNoteNotFound", err)
	}

	delivered, from, err := s.Deliver(42, author.RefCode)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if from.UserID != 1 {
		t.Fatalf("delivered author = %d, want 1", from.UserID)
	}
	if delivered.ID != note.ID || delivered.Text != note.Text {
		t.Fatalf("delivered wrong note: %+v", delivered)
	}
	if !delivered.IsRead || !delivered.ShownRead {
		t.Fatal("delivery did not mark both read flags")
	}
}

func TestDeliverUnknownCode(t *testing.T) {
	s, _ := newTestService(t)
	touch(t, s, 1, "Alice")
	if _, _, err := s.Deliver(1, "NOPE1234"); !errors.Is(err, models.ErrAccountNotFound) {
		t.Fatalf("unknown code error = %v, want ErrAccountNotFound", err)
	}
}

func TestHideReadZeroBalance(t *testing.T) {
	s, repo := newTestService(t)
	author := touch(t, s, 1, "Alice")
	touch(t, s, 42, "Bob")
	createNote(t, s, 1, 42, "a note waiting for Bob")
	delivered, _, err := s.Deliver(42, author.RefCode)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if err := s.HideRead(42, delivered.ID); !errors.Is(err, models.ErrNoCredits) {
		t.Fatalf("HideRead with zero balance error = %v, want ErrNoCredits", err)
	}
	note, _ := repo.GetNote(delivered.ID)
	if !note.ShownRead {
		t.Fatal("shown-read flag changed despite zero balance")
	}
	account, _ := repo.GetAccount(42)
	if account.ReadCancelBalance != 0 {
		t.Fatalf("balance = %d, want 0", account.ReadCancelBalance)
	}
}

func TestHideReadSpendsExactlyOne(t *testing.T) {
	s, repo := newTestService(t)
	author := touch(t, s, 1, "Alice")
	touch(t, s, 42, "Bob")
	createNote(t, s, 1, 42, "a note waiting for Bob")
	delivered, _, err := s.Deliver(42, author.RefCode)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	repo.mu.Lock()
	repo.accounts[42].ReadCancelBalance = 3
	repo.mu.Unlock()

	if err := s.HideRead(42, delivered.ID); err != nil {
		t.Fatalf("HideRead: %v", err)
	}

	account, _ := repo.GetAccount(42)
	if account.ReadCancelBalance != 2 {
		t.Fatalf("balance = %d, want 2", account.ReadCancelBalance)
	}
	note, _ := repo.GetNote(delivered.ID)
	if note.ShownRead {
		t.Fatal("shown-read flag still set after spend")
	}
	if !note.IsRead {
		t.Fatal("true read flag was reset by the spend")
	}
}

func TestHideReadNonRecipientRejected(t *testing.T) {
	s, _ := newTestService(t)
	touch(t, s, 1, "Alice")
	touch(t, s, 42, "Bob")
	note := createNote(t, s, 1, 42, "a note waiting for Bob")

	if err := s.HideRead(1, note.ID); !errors.Is(err, ErrNotRecipient) {
		t.Fatalf("HideRead by author error = %v, want ErrNotRecipient", err)
	}
}

func TestConcurrentSpendNeverGoesNegative(t *testing.T) {
	s, repo := newTestService(t)
	author := touch(t, s, 1, "Alice")
	touch(t, s, 42, "Bob")
	createNote(t, s, 1, 42, "a note waiting for Bob")
	delivered, _, err := s.Deliver(42, author.RefCode)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	repo.mu.Lock()
	repo.accounts[42].ReadCancelBalance = 3
	repo.mu.Unlock()

	var wg sync.WaitGroup
	var succeeded int64
	var succMu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.HideRead(42, delivered.ID); err == nil {
				succMu.Lock()
				succeeded++
				succMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("%d spends succeeded, want 3", succeeded)
	}
	account, _ := repo.GetAccount(42)
	if account.ReadCancelBalance != 0 {
		t.Fatalf("balance = %d, want 0", account.ReadCancelBalance)
	}
}

func TestPurchaseFlow(t *testing.T) {
	s, _ := newTestService(t)
	touch(t, s, 42, "Bob")

	s.BeginPurchase(42, testChatID)
	if _, err := s.SubmitQuantity(42, testChatID, "zero"); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("invalid quantity error = %v, want ErrInvalidQuantity", err)
	}
	if got := s.Sessions().State(42, testChatID); got != session.StateAwaitingQuantity {
		t.Fatalf("state after invalid quantity = %v, want %v", got, session.StateAwaitingQuantity)
	}

	invoice, err := s.SubmitQuantity(42, testChatID, "3")
	if err != nil {
		t.Fatalf("SubmitQuantity: %v", err)
	}
	if invoice.Quantity != 3 || invoice.TotalCost != 3*testCreditCost {
		t.Fatalf("invoice = %+v, want quantity 3, total %d", invoice, 3*testCreditCost)
	}
	if got := s.Sessions().State(42, testChatID); got != session.StateNone {
		t.Fatalf("state after invoice = %v, want %v", got, session.StateNone)
	}

	account, err := s.ConfirmPurchase("charge-1", 42, invoice.Payload, invoice.TotalCost)
	if err != nil {
		t.Fatalf("ConfirmPurchase: %v", err)
	}
	if account.ReadCancelBalance != 3 {
		t.Fatalf("balance = %d, want 3", account.ReadCancelBalance)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEarnings != invoice.TotalCost || stats.TotalCreditsSold != 3 {
		t.Fatalf("panel = %+v, want earnings %d, sold 3", stats, invoice.TotalCost)
	}
}

func TestCancelPurchase(t *testing.T) {
	s, _ := newTestService(t)
	touch(t, s, 42, "Bob")
	s.BeginPurchase(42, testChatID)
	s.Cancel(42, testChatID)
	if got := s.Sessions().State(42, testChatID); got != session.StateNone {
		t.Fatalf("state after cancel = %v, want %v", got, session.StateNone)
	}
}

func TestConfirmPurchaseIdempotent(t *testing.T) {
	s, repo := newTestService(t)
	touch(t, s, 42, "Bob")
	s.BeginPurchase(42, testChatID)
	invoice, err := s.SubmitQuantity(42, testChatID, "2")
	if err != nil {
		t.Fatalf("SubmitQuantity: %v", err)
	}

	if _, err := s.ConfirmPurchase("charge-7", 42, invoice.Payload, invoice.TotalCost); err != nil {
		t.Fatalf("ConfirmPurchase: %v", err)
	}
	if _, err := s.ConfirmPurchase("charge-7", 42, invoice.Payload, invoice.TotalCost); !errors.Is(err, models.ErrDuplicatePayment) {
		t.Fatalf("replay error = %v, want ErrDuplicatePayment", err)
	}

	account, _ := repo.GetAccount(42)
	if account.ReadCancelBalance != 2 {
		t.Fatalf("balance after replay = %d, want 2", account.ReadCancelBalance)
	}
	panel, _ := repo.GetPanel()
	if panel.TotalEarnings != invoice.TotalCost || panel.TotalCreditsSold != 2 {
		t.Fatalf("panel moved on replay: %+v", panel)
	}
}

func TestParsePayload(t *testing.T) {
	if _, err := ParsePayload("garbage"); err == nil {
		t.Fatal("ParsePayload accepted garbage")
	}
	if _, err := ParsePayload("buy_unread_42_0"); err == nil {
		t.Fatal("ParsePayload accepted zero quantity")
	}
	quantity, err := ParsePayload("buy_unread_42_5")
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if quantity != 5 {
		t.Fatalf("quantity = %d, want 5", quantity)
	}
}

func TestRefLink(t *testing.T) {
	s, _ := newTestService(t)
	account := touch(t, s, 1, "Alice")
	link := s.RefLink(account)
	want := "https://t.me/ToUserBot?start=" + account.RefCode
	if link != want {
		t.Fatalf("RefLink = %q, want %q", link, want)
	}
}

// TestEndToEnd follows the worked example: note creation, delivery marking
// both read flags, then a credit spend hiding the displayed one.
func TestEndToEnd(t *testing.T) {
	s, repo := newTestService(t)
	author := touch(t, s, 1, "Alice")
	touch(t, s, 42, "Bob")

	s.BeginNote(1, testChatID)
	if _, err := s.SubmitTarget(1, testChatID, "42"); err != nil {
		t.Fatalf("SubmitTarget: %v", err)
	}
	note, err := s.SubmitText(1, testChatID, "Hello there, this is a test note.")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if note.ForUserID != 42 || note.CreatedByUserID != 1 || note.ShownRead {
		t.Fatalf("created note = %+v", note)
	}

	delivered, _, err := s.Deliver(42, author.RefCode)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !delivered.IsRead || !delivered.ShownRead {
		t.Fatal("delivery did not set both read flags")
	}

	repo.mu.Lock()
	repo.accounts[42].ReadCancelBalance = 3
	repo.mu.Unlock()

	if err := s.HideRead(42, delivered.ID); err != nil {
		t.Fatalf("HideRead: %v", err)
	}
	account, _ := repo.GetAccount(42)
	if account.ReadCancelBalance != 2 {
		t.Fatalf("balance = %d, want 2", account.ReadCancelBalance)
	}
	stored, _ := repo.GetNote(delivered.ID)
	if stored.ShownRead || !stored.IsRead {
		t.Fatalf("flags after spend: shown=%v true=%v, want shown=false true=true", stored.ShownRead, stored.IsRead)
	}
}
