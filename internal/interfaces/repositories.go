package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

// OrderRepository defines the contract for order persistence. Transition is
// the only write path for status: a compare-and-swap from pending, so at most
// one concurrent caller ever observes success per order.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByReference(ctx context.Context, reference string) (*models.Order, error)

	// Transition moves the order from pending to the given status, setting
	// paid_at when the target is paid. Returns the number of rows updated:
	// zero means the order was not pending (or does not exist).
	Transition(ctx context.Context, id uuid.UUID, to models.OrderStatus, paidAt *time.Time) (int64, error)

	// ListPendingBefore returns pending orders created before the cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)

	// ListPending returns all pending orders, used to re-arm timers on boot.
	ListPending(ctx context.Context) ([]models.Order, error)
}

// ProductRepository is the narrow catalog read interface.
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// LedgerRepository is the idempotency guard's backing store.
type LedgerRepository interface {
	// Claim atomically inserts a pending entry for externalID. It returns
	// false when the id was already claimed, in which case the caller must
	// treat the delivery as a no-op.
	Claim(ctx context.Context, externalID string, orderID uuid.UUID) (bool, error)

	// SetOutcome records the terminal outcome on a claimed entry.
	SetOutcome(ctx context.Context, externalID string, outcome models.LedgerOutcome) error

	Get(ctx context.Context, externalID string) (*models.LedgerEntry, error)
}

// ConversationRepository backs the fulfillment side effects. All creators are
// find-or-create so re-invocation after a partial failure stays safe.
type ConversationRepository interface {
	// FindOrCreate returns the single conversation for the order, creating
	// it if absent. Concurrent callers converge on the same row.
	FindOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)

	// HasMessages reports whether the conversation already holds any message.
	HasMessages(ctx context.Context, conversationID uuid.UUID) (bool, error)

	AddMessage(ctx context.Context, msg *models.Message) error
}

// NotificationRepository persists buyer notifications at most once per
// (order, kind).
type NotificationRepository interface {
	// CreateIfAbsent inserts the notification unless one already exists for
	// the same order and kind. Returns true when a row was inserted.
	CreateIfAbsent(ctx context.Context, n *models.Notification) (bool, error)
}

// ReviewRepository is the manual-review triage queue.
type ReviewRepository interface {
	// File adds a review item, deduplicated by external id when present.
	File(ctx context.Context, item *models.ReviewItem) error
	ListOpen(ctx context.Context) ([]models.ReviewItem, error)
	ResolveForOrder(ctx context.Context, orderID uuid.UUID) error
}

// OrderLocker serializes pipeline work per order id.
type OrderLocker interface {
	// Acquire blocks until the per-order lock is held or ctx is done.
	Acquire(ctx context.Context, orderID uuid.UUID) (release func(), err error)
}

// FallbackFlags tracks the buyer-facing manual-confirmation affordance.
type FallbackFlags interface {
	Set(ctx context.Context, orderID uuid.UUID, ttl time.Duration) error
	Active(ctx context.Context, orderID uuid.UUID) (bool, error)
	Clear(ctx context.Context, orderID uuid.UUID) error
}

// StatePublisher emits order state-change events to the downstream stream.
type StatePublisher interface {
	PublishStateChange(ctx context.Context, ev models.StateChangeEvent) error
}

// Notifier delivers buyer notifications to the external delivery system.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}
