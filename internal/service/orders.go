package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lapakgo/payment-reconciler/internal/interfaces"
	"github.com/lapakgo/payment-reconciler/internal/models"
	"github.com/lapakgo/payment-reconciler/internal/telemetry"
)

// watcher is the slice of the supervisor the order service needs.
type watcher interface {
	Watch(order *models.Order)
}

// OrderService covers the buyer-facing order surface: checkout glue that
// creates a pending order from the catalog, the countdown status view, and
// the post-threshold manual-confirmation request.
type OrderService struct {
	orders     interfaces.OrderRepository
	products   interfaces.ProductRepository
	reviews    interfaces.ReviewRepository
	flags      interfaces.FallbackFlags
	supervisor watcher
	waitWindow time.Duration
}

func NewOrderService(
	orders interfaces.OrderRepository,
	products interfaces.ProductRepository,
	reviews interfaces.ReviewRepository,
	flags interfaces.FallbackFlags,
	supervisor watcher,
	waitWindow time.Duration,
) *OrderService {
	return &OrderService{
		orders:     orders,
		products:   products,
		reviews:    reviews,
		flags:      flags,
		supervisor: supervisor,
		waitWindow: waitWindow,
	}
}

// OrderView is the buyer-facing status of an order, including the payment
// deadline and whether the manual-confirmation affordance is active.
type OrderView struct {
	Order          *models.Order `json:"order"`
	PayBy          time.Time     `json:"pay_by"`
	ManualFallback bool          `json:"manual_fallback"`
}

// Create opens a pending order for the product, snapshotting price and
// seller, and puts it under the expiration supervisor. Orders paid by an
// inherently manual method are filed for admin review immediately.
func (s *OrderService) Create(ctx context.Context, buyerID, productID uuid.UUID, method models.PaymentMethod) (*models.Order, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}

	order := &models.Order{
		ID:            uuid.New(),
		Reference:     newReference(),
		BuyerID:       buyerID,
		SellerID:      product.SellerID,
		ProductID:     product.ID,
		Price:         product.Price,
		Status:        models.OrderPending,
		PaymentMethod: method,
		CreatedAt:     time.Now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.supervisor.Watch(order)

	if method == models.MethodManualTransfer {
		if err := s.reviews.File(ctx, &models.ReviewItem{
			OrderID: &order.ID,
			Amount:  order.Price,
			Reason:  models.ReasonManualMethod,
		}); err != nil {
			telemetry.Logger.Error("Failed to file manual-method review",
				zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	telemetry.Logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", order.Reference),
		zap.Int64("price", order.Price),
		zap.String("payment_method", string(method)),
	)
	return order, nil
}

// Get returns the buyer-facing view of an order.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	fallback := false
	if order.Status == models.OrderPending {
		fallback, err = s.flags.Active(ctx, orderID)
		if err != nil {
			telemetry.Logger.Warn("Failed to read fallback flag",
				zap.String("order_id", orderID.String()), zap.Error(err))
		}
	}

	return &OrderView{
		Order:          order,
		PayBy:          order.CreatedAt.Add(s.waitWindow),
		ManualFallback: fallback,
	}, nil
}

// RequestManualConfirmation is the buyer's "I already transferred" escalation.
// Only valid once the fallback affordance is active; files a review item for
// an admin, never changes status itself.
func (s *OrderService) RequestManualConfirmation(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderPending {
		return models.ErrAlreadyResolved
	}

	active, err := s.flags.Active(ctx, orderID)
	if err != nil {
		return err
	}
	if !active {
		return models.ErrFallbackNotReached
	}

	if err := s.reviews.File(ctx, &models.ReviewItem{
		OrderID: &order.ID,
		Amount:  order.Price,
		Reason:  models.ReasonBuyerClaimedTransfer,
	}); err != nil {
		return fmt.Errorf("file buyer claim for order %s: %w", orderID, err)
	}
	telemetry.ReviewItemsFiled.WithLabelValues(string(models.ReasonBuyerClaimedTransfer)).Inc()
	return nil
}

// newReference produces the short token buyers put in the transfer
// description. Base32 keeps it unambiguous in bank statements.
func newReference() string {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the platform entropy source is broken.
		panic(err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:])
}
