package models

import "errors"

// Errors shared between the record store and the conversation flow.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoteNotFound    = errors.New("note not found")
	ErrPanelNotFound   = errors.New("panel not found")
	// ErrNoCredits means a read-cancel was requested with a zero balance.
	ErrNoCredits = errors.New("no read-cancel credits left")
	// ErrDuplicatePayment means the charge id was already applied.
	ErrDuplicatePayment = errors.New("payment already processed")
)
