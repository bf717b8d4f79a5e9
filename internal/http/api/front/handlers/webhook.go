package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/blendlab/blendlab/internal/payments"
)

// maxWebhookBody bounds the webhook payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler consumes Stripe webhook deliveries.
type WebhookHandler struct {
	processor *payments.Processor
	secret    string
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(processor *payments.Processor, secret string) *WebhookHandler {
	return &WebhookHandler{processor: processor, secret: secret}
}

// Handle verifies the event signature and applies completed checkouts to the
// ledger. Replayed event IDs are acknowledged without any further side effect.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	event, errVerify := webhook.ConstructEvent(body, c.GetHeader("Stripe-Signature"), h.secret)
	if errVerify != nil {
		log.WithError(errVerify).Warn("webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook signature verification failed"})
		return
	}

	if event.Type != "checkout.session.completed" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var checkoutSession stripe.CheckoutSession
	if errUnmarshal := json.Unmarshal(event.Data.Raw, &checkoutSession); errUnmarshal != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	userID, errParse := strconv.ParseUint(checkoutSession.Metadata["user_id"], 10, 64)
	if errParse != nil || userID == 0 {
		log.WithField("event_id", event.ID).Warn("checkout event without user metadata")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user metadata"})
		return
	}

	outcome, errProcess := h.processor.ProcessCheckoutCompleted(c.Request.Context(), payments.CheckoutEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		UserID:  userID,
		Payload: event.Data.Raw,
	})
	if errProcess != nil {
		log.WithError(errProcess).WithField("event_id", event.ID).Error("process checkout event failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "process event failed"})
		return
	}
	if outcome.Duplicate {
		log.WithField("event_id", event.ID).Info("duplicate checkout event acknowledged")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
