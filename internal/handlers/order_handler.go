package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
	"github.com/lapakgo/payment-reconciler/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	BuyerID       uuid.UUID            `json:"buyer_id" binding:"required"`
	ProductID     uuid.UUID            `json:"product_id" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.MethodAutoTransfer
	}
	if req.PaymentMethod != models.MethodAutoTransfer && req.PaymentMethod != models.MethodManualTransfer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown payment method"})
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req.BuyerID, req.ProductID, req.PaymentMethod)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create order"})
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	view, err := h.orders.Get(c.Request.Context(), orderID)
	if errors.Is(err, models.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch order"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) RequestManualConfirmation(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	err = h.orders.RequestManualConfirmation(c.Request.Context(), orderID)
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, models.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "order already resolved"})
	case errors.Is(err, models.ErrFallbackNotReached):
		c.JSON(http.StatusConflict, gin.H{"error": "manual confirmation not yet available"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to request confirmation"})
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued_for_review", "order_id": orderID})
	}
}
