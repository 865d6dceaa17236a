package models

// Account represents a Telegram user known to the bot.
// Accounts are upserted on every interaction and never deleted.
type Account struct {
	// UserID is the Telegram user id, assigned externally.
	UserID int64 `json:"user_id" gorm:"column:user_id;primaryKey"`
	// Username is the Telegram handle, without the @. May be empty.
	Username string `json:"username" gorm:"column:username"`
	// FirstName is the display name of the user.
	FirstName string `json:"first_name" gorm:"column:first_name;not null"`
	// LastName may be empty.
	LastName string `json:"last_name" gorm:"column:last_name"`
	// RefCode is the short referral code that maps back to this account.
	// Unique across all accounts, regenerable on request.
	RefCode string `json:"ref_code" gorm:"column:ref_code;unique;not null"`
	// ReadCancelBalance is the number of purchased read-cancel credits.
	// Never negative.
	ReadCancelBalance int64 `json:"read_cancel_balance" gorm:"column:read_cancel_balance;not null;default:0"`
	// CreatedAt is the Unix timestamp of the first interaction.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;index"`

	// Notes are the notes authored by this account.
	Notes []Note `json:"notes" gorm:"foreignKey:CreatedByUserID;references:UserID;constraint:OnDelete:CASCADE"`
}
