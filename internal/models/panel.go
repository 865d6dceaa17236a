package models

// Panel is the singleton aggregate of monetization statistics. Exactly one
// row exists; it is created at startup if absent and its counters move
// atomically with each confirmed purchase.
type Panel struct {
	// ID is the primary key. The table only ever holds one row.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// AdminUserID is the designated administrator account.
	AdminUserID int64 `json:"admin_user_id" gorm:"column:admin_user_id;not null"`
	// TotalEarnings is the cumulative amount earned, in payment units.
	TotalEarnings int64 `json:"total_earnings" gorm:"column:total_earnings;not null;default:0"`
	// TotalCreditsSold is the cumulative number of read-cancel credits sold.
	TotalCreditsSold int64 `json:"total_credits_sold" gorm:"column:total_credits_sold;not null;default:0"`
	// LastRestart is the Unix timestamp of the most recent startup.
	LastRestart int64 `json:"last_restart" gorm:"column:last_restart;not null"`
}

// Stats is the panel snapshot served by the HTTP API and the /admin command.
type Stats struct {
	AdminUserID      int64 `json:"admin_user_id"`
	TotalEarnings    int64 `json:"total_earnings"`
	TotalCreditsSold int64 `json:"total_credits_sold"`
	LastRestart      int64 `json:"last_restart"`
}
