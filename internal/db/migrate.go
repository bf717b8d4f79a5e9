package db

import (
	"fmt"

	"github.com/blendlab/blendlab/internal/models"
	"gorm.io/gorm"
)

// Migrate applies schema migrations for all persistent models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Generation{},
		&models.CreditTransaction{},
		&models.PaymentEvent{},
	)
}
