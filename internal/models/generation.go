package models

import "time"

// Generation records a successful image generation. The redo allowance for a
// generation lives in Redis with its own TTL; this row is the durable audit
// record referenced by credit transactions.
type Generation struct {
	ID string `gorm:"type:text;primaryKey"` // Opaque generation identifier (UUID).

	UserID uint64 `gorm:"not null;index"`      // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"`   // Owning user record.

	SourceImages int    `gorm:"not null;default:0"` // Number of reference images submitted.
	Model        string `gorm:"type:text;not null"` // Generation model identifier.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
