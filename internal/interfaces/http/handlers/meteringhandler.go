package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/artisan-apps/genmeter/internal/application/metering"
	"github.com/artisan-apps/genmeter/internal/application/metering/dto"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// MeteringHandler exposes the local metering service over HTTP. The surface
// is a companion for the host app: quota gate, consumption, billing event
// injection and account inspection.
type MeteringHandler struct {
	service *metering.Service
	logger  logger.Interface
}

// NewMeteringHandler creates a new metering handler
func NewMeteringHandler(service *metering.Service, logger logger.Interface) *MeteringHandler {
	return &MeteringHandler{
		service: service,
		logger:  logger,
	}
}

// ActivateRequest represents the request to activate a paid plan
type ActivateRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// GetQuota reports whether a generation may be consumed right now.
func (h *MeteringHandler) GetQuota(c *gin.Context) {
	status := h.service.CanUse(c.Request.Context())
	c.JSON(http.StatusOK, status)
}

// ConsumeGeneration spends one credit.
func (h *MeteringHandler) ConsumeGeneration(c *gin.Context) {
	ok, remaining := h.service.Consume(c.Request.Context())
	if !ok {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"consumed":  false,
			"remaining": remaining,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"consumed":  true,
		"remaining": remaining,
	})
}

// ActivateSubscription moves the account onto a paid plan.
func (h *MeteringHandler) ActivateSubscription(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid activate request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.service.Activate(c.Request.Context(), req.Plan) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "activation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": req.Plan})
}

// CancelSubscription drops the account back to the free tier.
func (h *MeteringHandler) CancelSubscription(c *gin.Context) {
	if !h.service.Cancel(c.Request.Context()) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cancellation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// HandlePurchaseEvent processes a purchase-success event from the billing
// platform feed.
func (h *MeteringHandler) HandlePurchaseEvent(c *gin.Context) {
	var event dto.SubscriptionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warnw("invalid purchase event", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	processed := h.service.HandlePurchaseEvent(c.Request.Context(), event)
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

// HandleRenewalEvent runs the renewal reconciler against one subscription
// status event and reports the outcome.
func (h *MeteringHandler) HandleRenewalEvent(c *gin.Context) {
	var event dto.SubscriptionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warnw("invalid renewal event", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.service.HandleRenewalEvent(c.Request.Context(), event)
	c.JSON(http.StatusOK, result)
}

// GetAccount returns the current account state.
func (h *MeteringHandler) GetAccount(c *gin.Context) {
	account, err := h.service.Account(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// ListTransactions returns the recorded transaction history, newest first.
func (h *MeteringHandler) ListTransactions(c *gin.Context) {
	txs, err := h.service.Transactions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *MeteringHandler) respondError(c *gin.Context, err error) {
	if appErr := errors.GetAppError(err); appErr != nil {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	h.logger.Errorw("request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
