// Package payments processes Stripe checkout events into credit grants.
package payments

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blendlab/blendlab/internal/ledger"
	"github.com/blendlab/blendlab/internal/models"
)

// CreditsPerPurchase is the fixed credit grant per completed checkout.
const CreditsPerPurchase = 5

// CheckoutEvent is a signature-verified checkout.session.completed event.
type CheckoutEvent struct {
	ID      string
	Type    string
	UserID  uint64
	Payload []byte
}

// Outcome reports what processing an event did.
type Outcome struct {
	Duplicate      bool  // The event was already processed; nothing changed.
	CreditsGranted int64 // Credits applied by this call.
}

// Processor applies checkout events to the ledger exactly once per event ID.
type Processor struct {
	db *gorm.DB
}

// NewProcessor constructs a Processor.
func NewProcessor(db *gorm.DB) *Processor {
	return &Processor{db: db}
}

// ProcessCheckoutCompleted grants the purchase credits for an event, guarding
// against replays. The event row is inserted first with a conflict-ignoring
// insert, so of two concurrent deliveries only one claims the ID and credits
// the user; the claim and the grant commit or roll back together.
func (p *Processor) ProcessCheckoutCompleted(ctx context.Context, event CheckoutEvent) (Outcome, error) {
	if event.ID == "" {
		return Outcome{}, fmt.Errorf("payments: empty event id")
	}
	if event.UserID == 0 {
		return Outcome{}, fmt.Errorf("payments: event %s has no user reference", event.ID)
	}

	var outcome Outcome
	errTx := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userID := event.UserID
		record := models.PaymentEvent{
			ID:             event.ID,
			Type:           event.Type,
			UserID:         &userID,
			CreditsGranted: CreditsPerPurchase,
			Payload:        event.Payload,
		}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if insert.Error != nil {
			return fmt.Errorf("payments: record event: %w", insert.Error)
		}
		if insert.RowsAffected == 0 {
			outcome = Outcome{Duplicate: true}
			return nil
		}

		if errCredit := ledger.New(tx).Credit(ctx, event.UserID, CreditsPerPurchase, models.ReasonPurchase, ledger.TxRef{EventID: event.ID}); errCredit != nil {
			return errCredit
		}
		outcome = Outcome{CreditsGranted: CreditsPerPurchase}
		return nil
	})
	if errTx != nil {
		return Outcome{}, errTx
	}
	return outcome, nil
}
