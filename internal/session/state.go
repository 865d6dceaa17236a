// Package session holds per-conversation state for multi-step dialogs.
package session

// State names the step a conversation is currently waiting on. The zero
// value means no dialog is in progress.
type State int

const (
	StateNone State = iota
	// StateAwaitingTarget: note creation, waiting for the recipient id.
	StateAwaitingTarget
	// StateAwaitingText: note creation, waiting for the note body.
	StateAwaitingText
	// StateAwaitingEditText: note edit, waiting for the replacement body.
	StateAwaitingEditText
	// StateAwaitingQuantity: purchase, waiting for the credit quantity.
	StateAwaitingQuantity
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateAwaitingTarget:
		return "awaiting_target"
	case StateAwaitingText:
		return "awaiting_text"
	case StateAwaitingEditText:
		return "awaiting_edit_text"
	case StateAwaitingQuantity:
		return "awaiting_quantity"
	}
	return "unknown"
}

// Payload keys stored alongside a state.
const (
	// KeyTargetID carries the recipient id between the target and text steps.
	KeyTargetID = "target_id"
	// KeyNoteID carries the note id into the edit-text step.
	KeyNoteID = "note_id"
)

// Manager is the conversation state store, keyed by (user id, chat id).
type Manager interface {
	State(userID, chatID int64) State
	SetState(userID, chatID int64, state State)
	// ClearState resets the conversation to StateNone and drops its payload.
	ClearState(userID, chatID int64)
	InProgress(userID, chatID int64) bool

	SetData(userID, chatID int64, key string, value int64)
	Data(userID, chatID int64, key string) (int64, bool)

	// Lock serializes processing for one (user, chat) pair. The returned
	// function releases the lock.
	Lock(userID, chatID int64) func()
}
