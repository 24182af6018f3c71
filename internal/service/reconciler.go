package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lapakgo/payment-reconciler/internal/interfaces"
	"github.com/lapakgo/payment-reconciler/internal/matcher"
	"github.com/lapakgo/payment-reconciler/internal/models"
	"github.com/lapakgo/payment-reconciler/internal/telemetry"
)

// Reconciler drives one bank transaction through the pipeline: reference
// extraction, order lookup, amount validation, idempotency claim, paid
// transition, fulfillment. Each record is independent; callers batch them
// and classify the returned error per record.
type Reconciler struct {
	orders       interfaces.OrderRepository
	ledger       interfaces.LedgerRepository
	reviews      interfaces.ReviewRepository
	stateMachine *StateMachine
	fulfillment  *Fulfillment
}

func NewReconciler(
	orders interfaces.OrderRepository,
	ledger interfaces.LedgerRepository,
	reviews interfaces.ReviewRepository,
	stateMachine *StateMachine,
	fulfillment *Fulfillment,
) *Reconciler {
	return &Reconciler{
		orders:       orders,
		ledger:       ledger,
		reviews:      reviews,
		stateMachine: stateMachine,
		fulfillment:  fulfillment,
	}
}

// ProcessTransaction handles a single transfer record. The error identifies
// the outcome class: nil means a paid transition happened (or fulfillment is
// retrying), ErrDuplicateTransaction / ErrAlreadyResolved / ErrInvalidTransition
// are benign skips, the rest were recorded for manual triage.
func (r *Reconciler) ProcessTransaction(ctx context.Context, tx models.BankTransaction) error {
	ref, ok := matcher.ExtractReference(tx.Description)
	if !ok {
		r.fileReview(ctx, &models.ReviewItem{
			ExternalID:  tx.ExternalID,
			Amount:      tx.Amount,
			Description: tx.Description,
			Reason:      models.ReasonNoReference,
		})
		return models.ErrNoReferenceFound
	}

	order, err := r.orders.GetByReference(ctx, ref)
	if errors.Is(err, models.ErrOrderNotFound) {
		r.fileReview(ctx, &models.ReviewItem{
			ExternalID:  tx.ExternalID,
			Amount:      tx.Amount,
			Description: tx.Description,
			Reason:      models.ReasonOrderNotFound,
		})
		return models.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("load order by reference %s: %w", ref, err)
	}

	if order.Status != models.OrderPending {
		// Late or repeated transfer for a resolved order; never reopened.
		return models.ErrAlreadyResolved
	}

	if tx.Amount != order.Price {
		r.fileReview(ctx, &models.ReviewItem{
			OrderID:     &order.ID,
			ExternalID:  tx.ExternalID,
			Amount:      tx.Amount,
			Description: tx.Description,
			Reason:      models.ReasonAmountMismatch,
		})
		telemetry.Logger.Warn("Transfer amount mismatch, routed to manual review",
			zap.String("order_id", order.ID.String()),
			zap.Int64("expected", order.Price),
			zap.Int64("received", tx.Amount),
		)
		return models.ErrAmountMismatch
	}

	claimed, err := r.ledger.Claim(ctx, tx.ExternalID, order.ID)
	if err != nil {
		return fmt.Errorf("claim transaction %s: %w", tx.ExternalID, err)
	}
	if !claimed {
		return models.ErrDuplicateTransaction
	}

	err = r.stateMachine.ConfirmPayment(ctx, order.ID, models.SourceAuto)
	if errors.Is(err, models.ErrInvalidTransition) {
		// Lost the race to a manual confirmation or the expiry timer.
		if lerr := r.ledger.SetOutcome(ctx, tx.ExternalID, models.OutcomeLostRace); lerr != nil {
			telemetry.Logger.Error("Failed to record ledger outcome",
				zap.String("external_id", tx.ExternalID), zap.Error(lerr))
		}
		return models.ErrInvalidTransition
	}
	if err != nil {
		return fmt.Errorf("confirm payment for order %s: %w", order.ID, err)
	}

	if err := r.ledger.SetOutcome(ctx, tx.ExternalID, models.OutcomeConfirmed); err != nil {
		telemetry.Logger.Error("Failed to record ledger outcome",
			zap.String("external_id", tx.ExternalID), zap.Error(err))
	}
	if err := r.reviews.ResolveForOrder(ctx, order.ID); err != nil {
		telemetry.Logger.Warn("Failed to resolve review items",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	if err := r.fulfillment.Run(ctx, order); err != nil {
		// Payment status is authoritative; side effects retry later.
		telemetry.Logger.Error("Fulfillment side effect failed",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	return nil
}

func (r *Reconciler) fileReview(ctx context.Context, item *models.ReviewItem) {
	if err := r.reviews.File(ctx, item); err != nil {
		telemetry.Logger.Error("Failed to file review item",
			zap.String("external_id", item.ExternalID),
			zap.String("reason", string(item.Reason)),
			zap.Error(err),
		)
		return
	}
	telemetry.ReviewItemsFiled.WithLabelValues(string(item.Reason)).Inc()
}
