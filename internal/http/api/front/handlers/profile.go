package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blendlab/blendlab/internal/ledger"
	"github.com/blendlab/blendlab/internal/models"
)

// ProfileHandler handles user profile endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Get returns the current user's profile including the credit balance.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"credits":    user.Credits,
		"created_at": user.CreatedAt,
	})
}

// creditTransactionDTO defines the audit entry response payload.
type creditTransactionDTO struct {
	ID           uint64  `json:"id"`
	Amount       int64   `json:"amount"`
	Reason       string  `json:"reason"`
	GenerationID *string `json:"generation_id,omitempty"`
	EventID      *string `json:"event_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// Transactions lists the caller's recent credit audit entries.
func (h *ProfileHandler) Transactions(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entries, errList := ledger.New(h.db).Transactions(c.Request.Context(), userID, 50)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query transactions failed"})
		return
	}

	resp := make([]creditTransactionDTO, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, creditTransactionDTO{
			ID:           entry.ID,
			Amount:       entry.Amount,
			Reason:       entry.Reason,
			GenerationID: entry.GenerationID,
			EventID:      entry.EventID,
			CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"transactions": resp})
}
