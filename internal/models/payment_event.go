package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentEvent records a processed payment-provider webhook event. The unique
// event ID is the replay guard: an event that already has a row here must not
// grant credits again.
type PaymentEvent struct {
	ID string `gorm:"type:text;primaryKey"` // Provider event identifier.

	Type string `gorm:"type:text;not null;index"` // Provider event type.

	UserID *uint64 `gorm:"index"`             // Credited user, when resolvable.
	User   *User   `gorm:"foreignKey:UserID"` // Credited user record.

	CreditsGranted int64 `gorm:"not null;default:0"` // Credits applied by this event.

	Payload datatypes.JSON `gorm:"type:jsonb"` // Raw event payload for reconciliation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Processing timestamp.
}

// TableName overrides the default table name.
func (PaymentEvent) TableName() string {
	return "payment_events"
}
