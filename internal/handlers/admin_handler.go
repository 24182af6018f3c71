package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
	"github.com/lapakgo/payment-reconciler/internal/service"
)

// AdminHandler exposes the reviewer surface: the open review queue,
// confirm/reject on individual orders, and the stale-order sweep.
type AdminHandler struct {
	admin          *service.AdminService
	supervisor     *service.Supervisor
	sweepThreshold time.Duration
}

func NewAdminHandler(admin *service.AdminService, supervisor *service.Supervisor, sweepThreshold time.Duration) *AdminHandler {
	return &AdminHandler{admin: admin, supervisor: supervisor, sweepThreshold: sweepThreshold}
}

func (h *AdminHandler) ListReviews(c *gin.Context) {
	items, err := h.admin.OpenReviews(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reviews"})
		return
	}
	if items == nil {
		items = []models.ReviewItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *AdminHandler) ConfirmOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	err = h.admin.Confirm(c.Request.Context(), orderID)
	switch {
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "order already resolved"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm order"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "paid", "order_id": orderID})
	}
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *AdminHandler) RejectOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	err = h.admin.Reject(c.Request.Context(), orderID, req.Reason)
	switch {
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "order already resolved"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reject order"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "cancelled", "order_id": orderID})
	}
}

// SweepStale is the operator's "process old orders" action.
func (h *AdminHandler) SweepStale(c *gin.Context) {
	expired, err := h.supervisor.SweepStale(c.Request.Context(), h.sweepThreshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed", "expired": expired})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}
