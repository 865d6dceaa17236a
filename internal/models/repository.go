package models

type Repository interface {
	GetAccount(userID int64) (*Account, error)
	GetAccountByRefCode(code string) (*Account, error)
	UpsertAccount(userID int64, username, firstName, lastName string) (*Account, error)
	ReplaceRefCode(userID int64) (string, error)

	CreateNote(forUserID int64, text string, createdByUserID int64) (*Note, error)
	GetNote(noteID int64) (*Note, error)
	GetNoteForPair(forUserID, createdByUserID int64) (*Note, error)
	ListNotesByAuthor(userID int64) ([]*Note, error)
	UpdateNoteText(noteID int64, text string) (*Note, error)
	DeleteNote(noteID int64) (bool, error)
	MarkNoteRead(noteID int64) error

	SpendReadCancel(userID, noteID int64) error
	ApplyPurchase(chargeID string, userID, quantity, totalAmount int64) error

	EnsurePanel(adminUserID int64) error
	GetPanel() (*Panel, error)

	Close() error
}
