package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

// ConversationRepository persists support conversations and messages. The
// unique constraint on conversations.order_id guarantees a single
// conversation per order no matter how often fulfillment retries.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) FindOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, order_id, buyer_id, seller_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO NOTHING
	`, conv.ID, conv.OrderID, conv.BuyerID, conv.SellerID, conv.CreatedAt)
	if err != nil {
		return nil, err
	}

	// Read back: a concurrent or earlier invocation may own the row.
	var out models.Conversation
	err = r.db.QueryRowContext(ctx, `
		SELECT id, order_id, buyer_id, seller_id, created_at
		FROM conversations WHERE order_id = $1
	`, conv.OrderID).Scan(&out.ID, &out.OrderID, &out.BuyerID, &out.SellerID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ConversationRepository) HasMessages(ctx context.Context, conversationID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE conversation_id = $1)`,
		conversationID).Scan(&exists)
	return exists, err
}

func (r *ConversationRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.System, msg.CreatedAt)
	return err
}

// NotificationRepository inserts at most one notification per (order, kind).
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, n *models.Notification) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, order_id, kind, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, kind) DO NOTHING
	`, n.ID, n.UserID, n.OrderID, n.Kind, n.Body, n.CreatedAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
