package models

import "time"

// Credit transaction reasons.
const (
	// ReasonSignupGrant marks the free credit granted on registration.
	ReasonSignupGrant = "signup_grant"
	// ReasonPurchase marks a webhook-driven credit top-up.
	ReasonPurchase = "purchase"
	// ReasonGeneration marks a debit spent on a generation request.
	ReasonGeneration = "generation"
	// ReasonRefund marks a compensating refund after a failed generation.
	ReasonRefund = "refund"
)

// CreditTransaction is an append-only audit entry for every balance mutation.
// Rows are written in the same database transaction as the balance update so
// the trail can be reconciled against the balance at any point.
type CreditTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Affected user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Affected user record.

	Amount int64  `gorm:"not null"`                  // Signed credit delta.
	Reason string `gorm:"type:text;not null;index"`  // One of the Reason* constants.

	GenerationID *string `gorm:"type:text;index"` // Related generation, if any.
	EventID      *string `gorm:"type:text;index"` // Related payment event, if any.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
