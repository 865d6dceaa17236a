package models

const (
	// MinNoteLength is the minimum accepted note text length, in runes.
	MinNoteLength = 5
	// MaxNoteLength is the maximum accepted note text length, in runes.
	MaxNoteLength = 2000
)

// Note is a private message one account leaves for another. A recipient only
// ever sees the newest note per author: creating a new one for the same
// (author, recipient) pair supersedes the previous one.
type Note struct {
	// ID is the surrogate identifier of the note.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// ForUserID is the Telegram id of the recipient.
	ForUserID int64 `json:"for_user_id" gorm:"column:for_user_id;not null;index"`
	// Text is the note body, MinNoteLength..MaxNoteLength runes.
	Text string `json:"text" gorm:"column:text;not null"`
	// CreatedAt is the Unix timestamp of creation.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;index"`
	// IsRead records that the recipient actually opened the note. It is kept
	// for the author's own audit and is never reset by the recipient.
	IsRead bool `json:"is_read" gorm:"column:is_read;not null;default:false"`
	// ShownRead is the read indicator the author is shown. The recipient can
	// spend a read-cancel credit to flip it back to false, independently of
	// IsRead.
	ShownRead bool `json:"shown_read" gorm:"column:shown_read;not null;default:false"`
	// CreatedByUserID is the Telegram id of the author.
	CreatedByUserID int64 `json:"created_by_user_id" gorm:"column:created_by_user_id;not null;index"`
}
