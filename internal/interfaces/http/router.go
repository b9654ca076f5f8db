package http

import (
	"github.com/gin-gonic/gin"

	"github.com/artisan-apps/genmeter/internal/application/metering"
	"github.com/artisan-apps/genmeter/internal/interfaces/http/handlers"
	"github.com/artisan-apps/genmeter/internal/interfaces/http/middleware"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// NewRouter builds the gin engine with the metering surface mounted under
// /api/v1.
func NewRouter(service *metering.Service, mode string, log logger.Interface) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "device_id": service.DeviceID()})
	})

	handler := handlers.NewMeteringHandler(service, log)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/quota", handler.GetQuota)
		v1.POST("/generations", handler.ConsumeGeneration)
		v1.GET("/account", handler.GetAccount)
		v1.GET("/transactions", handler.ListTransactions)

		subscription := v1.Group("/subscription")
		{
			subscription.POST("/activate", handler.ActivateSubscription)
			subscription.POST("/cancel", handler.CancelSubscription)
		}

		events := v1.Group("/events")
		{
			events.POST("/purchase", handler.HandlePurchaseEvent)
			events.POST("/renewal", handler.HandleRenewalEvent)
		}
	}

	return router
}
