// Package ledger owns the per-user credit balance. Every mutation goes through
// the guarded operations here; nothing else in the codebase writes the credits
// column.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/blendlab/blendlab/internal/models"
)

// ErrUserNotFound indicates the target user row does not exist.
var ErrUserNotFound = errors.New("ledger: user not found")

// Ledger performs guarded credit balance mutations against the database.
type Ledger struct {
	db *gorm.DB
}

// New constructs a Ledger. The handle may be a live transaction, in which case
// all operations join it.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// DebitResult reports the outcome of a conditional debit.
type DebitResult struct {
	OK        bool  // Whether the debit was applied.
	Remaining int64 // Balance after the attempt.
}

// TxRef optionally links an audit row to a generation or payment event.
type TxRef struct {
	GenerationID string
	EventID      string
}

// Balance returns the current credit balance for a user.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (int64, error) {
	var user models.User
	if errFind := l.db.WithContext(ctx).Select("id", "credits").First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("ledger: query balance: %w", errFind)
	}
	return user.Credits, nil
}

// TryDebit decrements the balance by amount iff the balance covers it. The
// guard is a single conditional UPDATE, so concurrent debits against the same
// user cannot over-spend or expose a negative balance. Zero affected rows is
// the insufficient-funds outcome, not an error.
func (l *Ledger) TryDebit(ctx context.Context, userID uint64, amount int64) (DebitResult, error) {
	if amount <= 0 {
		return DebitResult{}, fmt.Errorf("ledger: invalid debit amount %d", amount)
	}

	var result DebitResult
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.User{}).
			Where("id = ? AND credits >= ?", userID, amount).
			UpdateColumn("credits", gorm.Expr("credits - ?", amount))
		if update.Error != nil {
			return fmt.Errorf("ledger: debit: %w", update.Error)
		}

		var user models.User
		if errFind := tx.Select("id", "credits").First(&user, userID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("ledger: reload balance: %w", errFind)
		}

		result = DebitResult{OK: update.RowsAffected > 0, Remaining: user.Credits}
		if !result.OK {
			return nil
		}

		entry := models.CreditTransaction{
			UserID: userID,
			Amount: -amount,
			Reason: models.ReasonGeneration,
		}
		if errCreate := tx.Create(&entry).Error; errCreate != nil {
			return fmt.Errorf("ledger: record debit: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return DebitResult{}, errTx
	}
	return result, nil
}

// Credit increments the balance unconditionally and appends an audit row in the
// same transaction. Used for webhook top-ups, sign-up grants and compensating
// refunds; replay protection for top-ups is the caller's concern.
func (l *Ledger) Credit(ctx context.Context, userID uint64, amount int64, reason string, ref TxRef) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: invalid credit amount %d", amount)
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("credits", gorm.Expr("credits + ?", amount))
		if update.Error != nil {
			return fmt.Errorf("ledger: credit: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			return ErrUserNotFound
		}

		entry := models.CreditTransaction{
			UserID: userID,
			Amount: amount,
			Reason: reason,
		}
		if ref.GenerationID != "" {
			entry.GenerationID = &ref.GenerationID
		}
		if ref.EventID != "" {
			entry.EventID = &ref.EventID
		}
		if errCreate := tx.Create(&entry).Error; errCreate != nil {
			return fmt.Errorf("ledger: record credit: %w", errCreate)
		}
		return nil
	})
}

// Transactions returns the most recent audit entries for a user, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID uint64, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.CreditTransaction
	if errFind := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: query transactions: %w", errFind)
	}
	return entries, nil
}
