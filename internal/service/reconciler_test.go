package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

func transferFor(order *models.Order, externalID string, amount int64) models.BankTransaction {
	return models.BankTransaction{
		ExternalID:  externalID,
		Description: "TRSF E-BANKING ORDER-" + order.Reference + " BUDI",
		Amount:      amount,
		ReceivedAt:  time.Now(),
	}
}

func TestProcessTransactionConfirmsOrder(t *testing.T) {
	p := newTestPipeline()
	order := p.addPendingOrder(t, "A7F3KQZ2", 150000)
	ctx := context.Background()

	err := p.reconciler.ProcessTransaction(ctx, transferFor(order, "T1", 150000))
	require.NoError(t, err)

	got, err := p.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
	require.NotNil(t, got.PaidAt)

	entry, err := p.ledger.Get(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeConfirmed, entry.Outcome)
	assert.Equal(t, order.ID, entry.OrderID)

	// One conversation with one welcome message, one notification delivered.
	conv, ok := p.conversations.conversations[order.ID]
	require.True(t, ok)
	assert.Len(t, p.conversations.messages[conv.ID], 1)
	assert.Len(t, p.notifications.notifications, 1)
	assert.Len(t, p.notifier.sent, 1)
}

func TestProcessTransactionRedeliveryIsNoOp(t *testing.T) {
	p := newTestPipeline()
	order := p.addPendingOrder(t, "A7F3KQZ2", 150000)
	ctx := context.Background()

	require.NoError(t, p.reconciler.ProcessTransaction(ctx, transferFor(order, "T1", 150000)))

	for i := 0; i < 5; i++ {
		err := p.reconciler.ProcessTransaction(ctx, transferFor(order, "T1", 150000))
		assert.ErrorIs(t, err, models.ErrAlreadyResolved)
	}

	// Still one ledger entry, one conversation, one message, one notification.
	assert.Len(t, p.ledger.entries, 1)
	conv := p.conversations.conversations[order.ID]
	assert.Len(t, p.conversations.messages[conv.ID], 1)
	assert.Len(t, p.notifications.notifications, 1)
	assert.Len(t, p.notifier.sent, 1)
	assert.Len(t, p.publisher.all(), 1)
}

func TestProcessTransactionConcurrentRedelivery(t *testing.T) {
	p := newTestPipeline()
	order := p.addPendingOrder(t, "A7F3KQZ2", 150000)
	ctx := context.Background()

	const deliveries = 8
	var wg sync.WaitGroup
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.reconciler.ProcessTransaction(ctx, transferFor(order, "T1", 150000))
		}(i)
	}
	wg.Wait()

	confirmed := 0
	for _, err := range errs {
		if err == nil {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed, "exactly one delivery may confirm")
	assert.Len(t, p.ledger.entries, 1)
	assert.Len(t, p.publisher.all(), 1)
	conv := p.conversations.conversations[order.ID]
	assert.Len(t, p.conversations.messages[conv.ID], 1)
}

func TestProcessTransactionAmountMismatch(t *testing.T) {
	p := newTestPipeline()
	order := p.addPendingOrder(t, "A7F3KQZ2", 100000)
	ctx := context.Background()

	err := p.reconciler.ProcessTransaction(ctx, transferFor(order, "T1", 90000))
	assert.ErrorIs(t, err, models.ErrAmountMismatch)

	got, err := p.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status, "mismatch must never auto-confirm")

	open, err := p.reviews.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.ReasonAmountMismatch, open[0].Reason)
	require.NotNil(t, open[0].OrderID)
	assert.Equal(t, order.ID, *open[0].OrderID)
	assert.Equal(t, int64(90000), open[0].Amount)

	// Redelivered mismatch does not pile up review rows.
	_ = p.reconciler.ProcessTransaction(ctx, transferFor(order, "T1", 90000))
	open, err = p.reviews.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestProcessTransactionNoReference(t *testing.T) {
	p := newTestPipeline()
	ctx := context.Background()

	err := p.reconciler.ProcessTransaction(ctx, models.BankTransaction{
		ExternalID:  "T9",
		Description: "monthly salary payment",
		Amount:      5000000,
		ReceivedAt:  time.Now(),
	})
	assert.ErrorIs(t, err, models.ErrNoReferenceFound)

	open, err := p.reviews.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.ReasonNoReference, open[0].Reason)
	assert.Nil(t, open[0].OrderID)
}

func TestProcessTransactionUnknownOrder(t *testing.T) {
	p := newTestPipeline()
	ctx := context.Background()

	err := p.reconciler.ProcessTransaction(ctx, models.BankTransaction{
		ExternalID:  "T2",
		Description: "ORDER-ZZZZ2222",
		Amount:      150000,
		ReceivedAt:  time.Now(),
	})
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	open, err := p.reviews.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.ReasonOrderNotFound, open[0].Reason)
}

func TestProcessTransactionAfterExpiry(t *testing.T) {
	p := newTestPipeline()
	order := p.addPendingOrder(t, "A7F3KQZ2", 150000)
	ctx := context.Background()

	require.NoError(t, p.stateMachine.Expire(ctx, order.ID))

	// A valid late transfer is a benign no-op, never a paid transition.
	err := p.reconciler.ProcessTransaction(ctx, transferFor(order, "T1", 150000))
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	got, err := p.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderExpired, got.Status)
	assert.Empty(t, p.ledger.entries, "late transfer is not claimed")
}

func TestProcessTransactionLosesRaceToManualConfirm(t *testing.T) {
	p := newTestPipeline()
	order := p.addPendingOrder(t, "A7F3KQZ2", 150000)
	ctx := context.Background()

	admin := NewAdminService(p.orders, p.reviews, p.stateMachine, p.fulfillment)
	require.NoError(t, admin.Confirm(ctx, order.ID))

	err := p.reconciler.ProcessTransaction(ctx, transferFor(order, "T1", 150000))
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	// Exactly one fulfillment execution across both paths.
	conv := p.conversations.conversations[order.ID]
	assert.Len(t, p.conversations.messages[conv.ID], 1)
	assert.Len(t, p.notifications.notifications, 1)
	assert.Len(t, p.publisher.all(), 1)
}
