package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lapakgo/payment-reconciler/internal/interfaces"
	"github.com/lapakgo/payment-reconciler/internal/models"
	"github.com/lapakgo/payment-reconciler/internal/telemetry"
)

// AdminService is the human reviewer's surface: the open review queue plus
// accept/reject, funnelled through the same state machine as the automated
// path so both sides race safely on the same guard.
type AdminService struct {
	orders       interfaces.OrderRepository
	reviews      interfaces.ReviewRepository
	stateMachine *StateMachine
	fulfillment  *Fulfillment
}

func NewAdminService(
	orders interfaces.OrderRepository,
	reviews interfaces.ReviewRepository,
	stateMachine *StateMachine,
	fulfillment *Fulfillment,
) *AdminService {
	return &AdminService{
		orders:       orders,
		reviews:      reviews,
		stateMachine: stateMachine,
		fulfillment:  fulfillment,
	}
}

func (s *AdminService) OpenReviews(ctx context.Context) ([]models.ReviewItem, error) {
	return s.reviews.ListOpen(ctx)
}

// Confirm marks an order paid on a reviewer's say-so. Confirming an order
// that is already paid is treated as success and still re-runs the
// idempotent side effects — this is the retry path for fulfillment lost to a
// transient failure, since webhook redelivery stops at the idempotency
// guard. ErrInvalidTransition only propagates when the order ended up
// cancelled or expired.
func (s *AdminService) Confirm(ctx context.Context, orderID uuid.UUID) error {
	confirmErr := s.stateMachine.ConfirmPayment(ctx, orderID, models.SourceManual)
	if confirmErr != nil && !errors.Is(confirmErr, models.ErrInvalidTransition) {
		return confirmErr
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("reload order %s after confirm: %w", orderID, err)
	}
	if order.Status != models.OrderPaid {
		return confirmErr
	}

	if err := s.reviews.ResolveForOrder(ctx, orderID); err != nil {
		telemetry.Logger.Warn("Failed to resolve review items",
			zap.String("order_id", orderID.String()), zap.Error(err))
	}
	if err := s.fulfillment.Run(ctx, order); err != nil {
		telemetry.Logger.Error("Fulfillment side effect failed",
			zap.String("order_id", orderID.String()), zap.Error(err))
	}
	return nil
}

// Reject cancels a pending order with an audit reason.
func (s *AdminService) Reject(ctx context.Context, orderID uuid.UUID, reason string) error {
	if err := s.stateMachine.Cancel(ctx, orderID, reason); err != nil {
		return err
	}
	if err := s.reviews.ResolveForOrder(ctx, orderID); err != nil {
		telemetry.Logger.Warn("Failed to resolve review items",
			zap.String("order_id", orderID.String()), zap.Error(err))
	}
	return nil
}
