// Package app wires configuration, storage and HTTP serving together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/blendlab/blendlab/internal/config"
	"github.com/blendlab/blendlab/internal/db"
	"github.com/blendlab/blendlab/internal/gemini"
	"github.com/blendlab/blendlab/internal/generate"
	"github.com/blendlab/blendlab/internal/http/api/front"
	"github.com/blendlab/blendlab/internal/ledger"
	"github.com/blendlab/blendlab/internal/limits"
	"github.com/blendlab/blendlab/internal/logging"
)

// Options holds command-line inputs.
type Options struct {
	ConfigPath string
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, opts Options) error {
	cfg, errLoad := config.Load(opts.ConfigPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the HTTP API with database-backed components and blocks
// until ctx is cancelled.
func RunServer(ctx context.Context, opts Options) error {
	cfg, errLoad := config.Load(opts.ConfigPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Logging)

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	errPing := redisClient.Ping(pingCtx).Err()
	cancelPing()
	if errPing != nil {
		return fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, errPing)
	}
	defer func() { _ = redisClient.Close() }()

	stripe.Key = cfg.Stripe.SecretKey

	orchestrator := generate.NewOrchestrator(
		conn,
		ledger.New(conn),
		limits.NewRateLimiter(redisClient),
		limits.NewRedoCounter(redisClient),
		gemini.NewClient(cfg.Gemini),
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		int64(cfg.RateLimit.MaxRequests),
		cfg.Gemini.Model,
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogMiddleware())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	front.RegisterFrontRoutes(engine, conn, cfg, orchestrator)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// requestLogMiddleware emits one structured line per request.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}
