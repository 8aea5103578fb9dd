package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"visadesk/internal/handler"
	"visadesk/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler     *handler.PaymentHandler
	WebhookHandler     *handler.WebhookHandler
	ApplicationHandler *handler.ApplicationHandler
	RedisClient        *redis.Client
	NewRelicApp        *newrelic.Application
	Logger             *logrus.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Payment routes.
	payment := router.Group("/payment")
	{
		// The webhook is outside the idempotency middleware; redeliveries are
		// deduplicated by provider event id instead.
		payment.POST("/webhook", deps.WebhookHandler.HandleWebhook)
		payment.GET("/success", deps.PaymentHandler.CheckStatus)
		payment.GET("/cancel", deps.PaymentHandler.Cancel)

		idempotent := payment.Group("")
		idempotent.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
		{
			idempotent.POST("/process", deps.PaymentHandler.ProcessPayment)
			idempotent.POST("/checkout", deps.PaymentHandler.CreateCheckout)
		}
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		applications := v1.Group("/applications")
		{
			applications.GET("/:id/payment", deps.ApplicationHandler.GetPayment)
		}
	}

	return router
}
