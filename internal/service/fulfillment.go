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

const welcomeMessage = "Thanks for your purchase! Your payment is confirmed. " +
	"Use this conversation if you need anything about your order."

// Fulfillment runs the post-payment side effects: support conversation,
// welcome message, buyer notification. Every step checks for an existing
// artifact before creating one, so a retry after a crash mid-way never
// duplicates anything. Failures here are reported but never touch the paid
// status.
type Fulfillment struct {
	conversations interfaces.ConversationRepository
	notifications interfaces.NotificationRepository
	notifier      interfaces.Notifier
}

func NewFulfillment(
	conversations interfaces.ConversationRepository,
	notifications interfaces.NotificationRepository,
	notifier interfaces.Notifier,
) *Fulfillment {
	return &Fulfillment{
		conversations: conversations,
		notifications: notifications,
		notifier:      notifier,
	}
}

// Run executes the side effects for an order that just became paid. Safe to
// call again for the same order.
func (f *Fulfillment) Run(ctx context.Context, order *models.Order) error {
	conv, err := f.conversations.FindOrCreate(ctx, &models.Conversation{
		ID:        uuid.New(),
		OrderID:   order.ID,
		BuyerID:   order.BuyerID,
		SellerID:  order.SellerID,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("fulfillment: conversation for order %s: %w", order.ID, err)
	}

	hasMessages, err := f.conversations.HasMessages(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("fulfillment: check messages for order %s: %w", order.ID, err)
	}
	if !hasMessages {
		err := f.conversations.AddMessage(ctx, &models.Message{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			SenderID:       order.SellerID,
			Body:           welcomeMessage,
			System:         true,
			CreatedAt:      time.Now(),
		})
		if err != nil {
			return fmt.Errorf("fulfillment: welcome message for order %s: %w", order.ID, err)
		}
	}

	notification := models.Notification{
		ID:        uuid.New(),
		UserID:    order.BuyerID,
		OrderID:   order.ID,
		Kind:      models.NotificationOrderPaid,
		Body:      fmt.Sprintf("Payment received for order %s.", order.Reference),
		CreatedAt: time.Now(),
	}
	created, err := f.notifications.CreateIfAbsent(ctx, &notification)
	if err != nil {
		return fmt.Errorf("fulfillment: notification for order %s: %w", order.ID, err)
	}
	if created {
		if err := f.notifier.Notify(ctx, notification); err != nil {
			// The record exists; delivery is retriable out of band.
			telemetry.Logger.Warn("Notification delivery failed",
				zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	return nil
}
