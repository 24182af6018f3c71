package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lapakgo/payment-reconciler/internal/handlers"
	"github.com/lapakgo/payment-reconciler/internal/telemetry"
)

func NewRouter(
	webhook *handlers.WebhookHandler,
	orders *handlers.OrderHandler,
	admin *handlers.AdminHandler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "payment-reconciler"})
	})

	// Aggregator callback
	r.POST("/webhooks/bank-mutations", webhook.HandleBankMutations)

	// Buyer-facing order routes
	r.POST("/orders", orders.CreateOrder)
	r.GET("/orders/:id", orders.GetOrder)
	r.POST("/orders/:id/request-confirmation", orders.RequestManualConfirmation)

	// Reviewer / operator routes
	r.GET("/admin/reviews", admin.ListReviews)
	r.POST("/admin/orders/:id/confirm", admin.ConfirmOrder)
	r.POST("/admin/orders/:id/reject", admin.RejectOrder)
	r.POST("/admin/maintenance/sweep-stale", admin.SweepStale)

	return r
}
