// Package generate sequences a single generation request: rate limiting,
// credit or redo gating, input validation, the external blend call, and the
// compensating refund when anything fails after a debit.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/blendlab/blendlab/internal/gemini"
	"github.com/blendlab/blendlab/internal/ledger"
	"github.com/blendlab/blendlab/internal/limits"
	"github.com/blendlab/blendlab/internal/models"
)

// Input validation bounds.
const (
	// MaxFiles caps the reference images per request.
	MaxFiles = 5
	// MaxFileBytes caps each reference image's size.
	MaxFileBytes = 8 << 20
	// debitAmount is the credit cost of one new generation.
	debitAmount = 1
)

// CreditLedger is the balance gate for new generations.
type CreditLedger interface {
	TryDebit(ctx context.Context, userID uint64, amount int64) (ledger.DebitResult, error)
	Credit(ctx context.Context, userID uint64, amount int64, reason string, ref ledger.TxRef) error
}

// RateLimiter throttles generation requests per user.
type RateLimiter interface {
	Check(ctx context.Context, key string, window time.Duration, limit int64) (limits.RateResult, error)
}

// RedoCounter gates free re-attempts of a prior generation.
type RedoCounter interface {
	Init(ctx context.Context, userID uint64, generationID string) error
	CanUse(ctx context.Context, userID uint64, generationID string) (bool, error)
	Use(ctx context.Context, userID uint64, generationID string) (bool, error)
}

// ImageBlender is the external generation call.
type ImageBlender interface {
	BlendImages(ctx context.Context, images []gemini.InputImage) (gemini.Result, error)
}

// Orchestrator runs the per-request generation flow. It holds no mutable
// state; all coordination lives in the shared stores behind the interfaces.
type Orchestrator struct {
	db      *gorm.DB
	ledger  CreditLedger
	limiter RateLimiter
	redo    RedoCounter
	blender ImageBlender

	rateWindow time.Duration
	rateLimit  int64
	model      string
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(db *gorm.DB, creditLedger CreditLedger, limiter RateLimiter, redo RedoCounter, blender ImageBlender, rateWindow time.Duration, rateLimit int64, model string) *Orchestrator {
	return &Orchestrator{
		db:         db,
		ledger:     creditLedger,
		limiter:    limiter,
		redo:       redo,
		blender:    blender,
		rateWindow: rateWindow,
		rateLimit:  rateLimit,
		model:      model,
	}
}

// Request is one authenticated generation attempt.
type Request struct {
	UserID       uint64
	Redo         bool
	GenerationID string // Required when Redo is set.
	Images       []gemini.InputImage
}

// Response is a successful generation.
type Response struct {
	ImageDataURI string
	GenerationID string // Set only for new (non-redo) generations.
}

// chargeState tracks whether this request spent a credit. It is the sole
// refund trigger: a redo today never debits, but the compensation step keys
// off the charge, not the redo flag, so monetized redos would refund too.
type chargeState int

const (
	chargeNone chargeState = iota
	chargeDebited
)

// requestState threads the mutable per-request facts through the flow so the
// compensation precondition is explicit.
type requestState struct {
	userID uint64
	charge chargeState
}

// Process runs the full state machine for one request. The caller is assumed
// to be authenticated. Any failure after a successful debit triggers exactly
// one compensating refund before the error is returned; refund failures are
// logged for reconciliation rather than surfaced over the original error.
func (o *Orchestrator) Process(ctx context.Context, req Request) (Response, error) {
	rate, errRate := o.limiter.Check(ctx, rateKey(req.UserID), o.rateWindow, o.rateLimit)
	if errRate != nil {
		// Fail closed: an unreachable counter store must not open the paid path.
		return Response{}, fmt.Errorf("generate: rate limit check: %w", errRate)
	}
	if !rate.Allowed {
		return Response{}, &RateLimitedError{ResetIn: rate.ResetIn}
	}

	st := &requestState{userID: req.UserID}

	if req.Redo {
		if strings.TrimSpace(req.GenerationID) == "" {
			return Response{}, &InvalidInputError{Reason: "generation_id is required for redo"}
		}
		usable, errCan := o.redo.CanUse(ctx, req.UserID, req.GenerationID)
		if errCan != nil {
			return Response{}, fmt.Errorf("generate: redo check: %w", errCan)
		}
		if !usable {
			return Response{}, ErrRedoExhausted
		}
		used, errUse := o.redo.Use(ctx, req.UserID, req.GenerationID)
		if errUse != nil {
			return Response{}, fmt.Errorf("generate: redo use: %w", errUse)
		}
		if !used {
			return Response{}, ErrRedoExhausted
		}
	} else {
		result, errDebit := o.ledger.TryDebit(ctx, req.UserID, debitAmount)
		if errDebit != nil {
			return Response{}, fmt.Errorf("generate: debit: %w", errDebit)
		}
		if !result.OK {
			return Response{}, ErrInsufficientCredits
		}
		st.charge = chargeDebited
	}

	// Gating is done: the caller has paid with a credit or a redo attempt, so
	// a client disconnect must not abort the work. The rest of the flow runs
	// detached from request cancellation, and every failure passes through
	// fail() so a spent credit is always refunded.
	ctx = context.WithoutCancel(ctx)

	if errValidate := validateImages(req.Images); errValidate != nil {
		return Response{}, o.fail(st, errValidate)
	}

	generated, errBlend := o.blender.BlendImages(ctx, req.Images)
	if errBlend != nil {
		var noImage *gemini.NoImageError
		if errors.As(errBlend, &noImage) {
			return Response{}, o.fail(st, &GenerationFailedError{Message: noImage.Text})
		}
		log.WithError(errBlend).WithField("user_id", req.UserID).Error("generation call failed")
		return Response{}, o.fail(st, &GenerationFailedError{})
	}

	resp := Response{
		ImageDataURI: "data:" + generated.MimeType + ";base64," + generated.Data,
	}

	if !req.Redo {
		generationID := uuid.NewString()
		record := models.Generation{
			ID:           generationID,
			UserID:       req.UserID,
			SourceImages: len(req.Images),
			Model:        o.model,
		}
		if errCreate := o.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
			return Response{}, o.fail(st, fmt.Errorf("generate: persist generation: %w", errCreate))
		}
		if errInit := o.redo.Init(ctx, req.UserID, generationID); errInit != nil {
			return Response{}, o.fail(st, fmt.Errorf("generate: seed redo counter: %w", errInit))
		}
		resp.GenerationID = generationID
	}

	return resp, nil
}

// fail performs the compensating refund when a credit was spent, then returns
// the original error unchanged. A refund failure is logged, never raised, so
// it cannot mask the failure the caller needs to see.
func (o *Orchestrator) fail(st *requestState, cause error) error {
	if st.charge != chargeDebited {
		return cause
	}
	st.charge = chargeNone

	// Compensation must complete even when the request context is gone.
	refundCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errRefund := o.ledger.Credit(refundCtx, st.userID, debitAmount, models.ReasonRefund, ledger.TxRef{}); errRefund != nil {
		log.WithError(errRefund).WithFields(log.Fields{
			"user_id": st.userID,
			"amount":  debitAmount,
		}).Error("credit refund failed, manual reconciliation required")
	}
	return cause
}

// validateImages checks the file-count bound, declared media types and size
// ceiling. It runs after gating, so a failure here still refunds.
func validateImages(images []gemini.InputImage) error {
	if len(images) == 0 {
		return &InvalidInputError{Reason: "no files uploaded"}
	}
	if len(images) > MaxFiles {
		return &InvalidInputError{Reason: fmt.Sprintf("maximum %d files allowed", MaxFiles)}
	}
	for i, img := range images {
		if !strings.HasPrefix(img.MimeType, "image/") {
			return &InvalidInputError{Reason: fmt.Sprintf("file %d is not an image", i+1)}
		}
		if len(img.Data) > MaxFileBytes {
			return &InvalidInputError{Reason: fmt.Sprintf("file %d exceeds %d bytes", i+1, MaxFileBytes)}
		}
	}
	return nil
}

func rateKey(userID uint64) string {
	return "generate:" + strconv.FormatUint(userID, 10)
}
