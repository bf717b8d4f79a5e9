// Package front registers the end-user HTTP routes.
package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blendlab/blendlab/internal/config"
	"github.com/blendlab/blendlab/internal/http/api/front/handlers"
	"github.com/blendlab/blendlab/internal/models"
	"github.com/blendlab/blendlab/internal/payments"
	"github.com/blendlab/blendlab/internal/security"
)

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, generation handlers.GenerationService) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(db, cfg.JWT)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)
	front.GET("/config", handlers.PublicConfig(cfg))

	webhookHandler := handlers.NewWebhookHandler(payments.NewProcessor(db), cfg.Stripe.WebhookSecret)
	front.POST("/stripe/webhook", webhookHandler.Handle)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, cfg.JWT))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.GET("/credits/transactions", profileHandler.Transactions)

	generateHandler := handlers.NewGenerateHandler(generation)
	authed.POST("/generate", generateHandler.Generate)

	checkoutHandler := handlers.NewCheckoutHandler(db, cfg.Stripe, cfg.BaseURL)
	authed.POST("/stripe/checkout", checkoutHandler.Create)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled || !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
