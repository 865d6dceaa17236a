package models

// Payment records a confirmed purchase, keyed by the provider charge id.
// The row doubles as the idempotency guard: a replayed confirmation with the
// same charge id inserts nothing and credits nothing.
type Payment struct {
	// ChargeID is the payment provider's charge identifier.
	ChargeID string `json:"charge_id" gorm:"column:charge_id;primaryKey"`
	// UserID is the buyer's Telegram id.
	UserID int64 `json:"user_id" gorm:"column:user_id;not null;index"`
	// Quantity is the number of read-cancel credits bought.
	Quantity int64 `json:"quantity" gorm:"column:quantity;not null"`
	// TotalAmount is the amount charged, in payment units.
	TotalAmount int64 `json:"total_amount" gorm:"column:total_amount;not null"`
	// CreatedAt is the Unix timestamp of the confirmation.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;index"`
}
