package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blendlab/blendlab/internal/config"
	"github.com/blendlab/blendlab/internal/payments"
)

// publicConfigResponse is the response payload for public config.
type publicConfigResponse struct {
	SiteName           string   `json:"site_name"`
	PriceIDs           []string `json:"price_ids"`
	CreditsPerPurchase int64    `json:"credits_per_purchase"`
}

// PublicConfig returns the public configuration the front end needs to render
// the pricing page.
func PublicConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, publicConfigResponse{
			SiteName:           cfg.SiteName,
			PriceIDs:           cfg.Stripe.PriceIDs,
			CreditsPerPurchase: payments.CreditsPerPurchase,
		})
	}
}
