package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"gorm.io/gorm"

	"github.com/blendlab/blendlab/internal/config"
	"github.com/blendlab/blendlab/internal/models"
)

// CheckoutHandler creates Stripe Checkout sessions for credit purchases.
type CheckoutHandler struct {
	db      *gorm.DB
	cfg     config.StripeConfig
	baseURL string
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(db *gorm.DB, cfg config.StripeConfig, baseURL string) *CheckoutHandler {
	return &CheckoutHandler{db: db, cfg: cfg, baseURL: strings.TrimRight(baseURL, "/")}
}

// checkoutRequest defines the request body for checkout session creation.
type checkoutRequest struct {
	PriceID string `json:"price_id"`
}

// Create starts a Checkout session tagged with the user's ID. The webhook
// reads that metadata back to know whom to credit.
func (h *CheckoutHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	priceID := strings.TrimSpace(body.PriceID)
	if priceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing price_id"})
		return
	}
	if !h.priceAllowed(priceID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown price_id"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(h.baseURL + "/stripe/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(h.baseURL + "/stripe/cancel"),
	}
	if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}
	params.AddMetadata("user_id", strconv.FormatUint(userID, 10))

	checkoutSession, errCreate := session.New(params)
	if errCreate != nil {
		log.WithError(errCreate).WithField("user_id", userID).Error("create checkout session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create checkout session failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": checkoutSession.URL})
}

// priceAllowed checks the configured price allowlist. An empty allowlist
// accepts any price ID.
func (h *CheckoutHandler) priceAllowed(priceID string) bool {
	if len(h.cfg.PriceIDs) == 0 {
		return true
	}
	for _, allowed := range h.cfg.PriceIDs {
		if allowed == priceID {
			return true
		}
	}
	return false
}
