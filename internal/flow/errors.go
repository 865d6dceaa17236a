package flow

import "errors"

// Validation errors re-prompt the user and leave the dialog state untouched.
var (
	ErrInvalidTarget   = errors.New("target must be a positive numeric user id")
	ErrTextLength      = errors.New("note text length is out of bounds")
	ErrInvalidQuantity = errors.New("quantity must be a positive number")
)

// Authorization errors reject the action with no mutation.
var (
	ErrNotAuthor    = errors.New("acting user is not the author of the note")
	ErrNotRecipient = errors.New("acting user is not the recipient of the note")
)

var (
	// ErrSelfDelivery means a user opened their own referral link.
	ErrSelfDelivery = errors.New("notes are never delivered to their author")
	// ErrNoDialog means a step input arrived without a matching dialog
	// payload, e.g. after a restart dropped the session store.
	ErrNoDialog = errors.New("no dialog in progress")
)
