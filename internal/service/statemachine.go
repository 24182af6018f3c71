package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lapakgo/payment-reconciler/internal/interfaces"
	"github.com/lapakgo/payment-reconciler/internal/models"
	"github.com/lapakgo/payment-reconciler/internal/telemetry"
)

// timerRegistry cancels supervisor timers for orders that left pending.
type timerRegistry interface {
	Release(orderID uuid.UUID)
}

// StateMachine is the only code allowed to move an order out of pending.
// Correctness rests on the repository's compare-and-swap: of any number of
// concurrent callers, exactly one observes a successful transition and the
// rest get ErrInvalidTransition. The per-order lock on top serializes the
// full transition (persist + publish) so reporting stays ordered.
type StateMachine struct {
	orders    interfaces.OrderRepository
	locker    interfaces.OrderLocker
	publisher interfaces.StatePublisher
	flags     interfaces.FallbackFlags
	timers    timerRegistry
}

func NewStateMachine(
	orders interfaces.OrderRepository,
	locker interfaces.OrderLocker,
	publisher interfaces.StatePublisher,
	flags interfaces.FallbackFlags,
) *StateMachine {
	return &StateMachine{
		orders:    orders,
		locker:    locker,
		publisher: publisher,
		flags:     flags,
	}
}

// AttachTimers wires the expiration supervisor in after construction; the
// supervisor itself depends on the state machine to expire orders.
func (m *StateMachine) AttachTimers(t timerRegistry) {
	m.timers = t
}

// ConfirmPayment moves a pending order to paid and stamps paid_at. Returns
// ErrInvalidTransition when the order already left pending; racing callers
// treat that as already-succeeded, not fatal.
func (m *StateMachine) ConfirmPayment(ctx context.Context, orderID uuid.UUID, source models.ConfirmSource) error {
	now := time.Now()
	return m.transition(ctx, orderID, models.OrderPaid, source, &now)
}

// Cancel is the admin manual-rejection path.
func (m *StateMachine) Cancel(ctx context.Context, orderID uuid.UUID, reason string) error {
	err := m.transition(ctx, orderID, models.OrderCancelled, models.SourceManual, nil)
	if err == nil {
		telemetry.Logger.Info("Order cancelled",
			zap.String("order_id", orderID.String()),
			zap.String("reason", reason),
		)
	}
	return err
}

// Expire is invoked by the timeout supervisor; the pending-only guard makes
// it safe to race against a concurrent confirmation.
func (m *StateMachine) Expire(ctx context.Context, orderID uuid.UUID) error {
	return m.transition(ctx, orderID, models.OrderExpired, "", nil)
}

func (m *StateMachine) transition(ctx context.Context, orderID uuid.UUID, to models.OrderStatus, source models.ConfirmSource, paidAt *time.Time) error {
	release, err := m.locker.Acquire(ctx, orderID)
	if err != nil {
		return fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer release()

	rows, err := m.orders.Transition(ctx, orderID, to, paidAt)
	if err != nil {
		return fmt.Errorf("transition order %s to %s: %w", orderID, to, err)
	}
	if rows == 0 {
		return models.ErrInvalidTransition
	}

	if m.timers != nil {
		m.timers.Release(orderID)
	}
	if err := m.flags.Clear(ctx, orderID); err != nil {
		telemetry.Logger.Warn("Failed to clear fallback flag",
			zap.String("order_id", orderID.String()), zap.Error(err))
	}

	ev := models.StateChangeEvent{
		OrderID:       orderID,
		FromState:     models.OrderPending,
		ToState:       to,
		ConfirmSource: source,
		Timestamp:     time.Now(),
	}
	if err := m.publisher.PublishStateChange(ctx, ev); err != nil {
		telemetry.Logger.Error("Failed to publish state change",
			zap.String("order_id", orderID.String()), zap.Error(err))
	}

	telemetry.OrderTransitions.WithLabelValues(string(to), string(source)).Inc()
	telemetry.Logger.Info("Order state transition",
		zap.String("order_id", orderID.String()),
		zap.String("from_state", string(models.OrderPending)),
		zap.String("to_state", string(to)),
		zap.String("source", string(source)),
	)
	return nil
}
