package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s != OrderPending
}

type PaymentMethod string

const (
	MethodAutoTransfer   PaymentMethod = "auto_transfer"
	MethodManualTransfer PaymentMethod = "manual_transfer"
)

// ConfirmSource identifies which path confirmed a payment.
type ConfirmSource string

const (
	SourceAuto   ConfirmSource = "auto"
	SourceManual ConfirmSource = "manual"
)

// Order is a purchase intent. Price is in integral minor currency units and
// is immutable after creation; status only moves through the state machine.
type Order struct {
	ID            uuid.UUID     `json:"id"`
	Reference     string        `json:"reference"`
	BuyerID       uuid.UUID     `json:"buyer_id"`
	SellerID      uuid.UUID     `json:"seller_id"`
	ProductID     uuid.UUID     `json:"product_id"`
	Price         int64         `json:"price"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
}

// Product is the narrow catalog view needed to create an order: price to
// validate transfers against and seller to open the support conversation with.
type Product struct {
	ID           uuid.UUID `json:"id"`
	SellerID     uuid.UUID `json:"seller_id"`
	Title        string    `json:"title"`
	Price        int64     `json:"price"`
	DeliveryType string    `json:"delivery_type"`
}

// BankTransaction is a single transfer line reported by the aggregator.
type BankTransaction struct {
	ExternalID  string    `json:"id"`
	Description string    `json:"description"`
	Amount      int64     `json:"amount"`
	ReceivedAt  time.Time `json:"when"`
}

// WebhookPayload is the aggregator's callback envelope.
type WebhookPayload struct {
	Data []BankTransaction `json:"data"`
}

// BatchSummary reports per-record outcomes of one webhook delivery.
type BatchSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// LedgerOutcome is the terminal result recorded against a claimed external id.
type LedgerOutcome string

const (
	OutcomePending   LedgerOutcome = "pending"
	OutcomeConfirmed LedgerOutcome = "confirmed"
	OutcomeLostRace  LedgerOutcome = "lost_race"
)

// LedgerEntry maps a processed external transaction id to the order it
// resolved. Append-only; consulted before any transition is attempted.
type LedgerEntry struct {
	ExternalID  string        `json:"external_id"`
	OrderID     uuid.UUID     `json:"order_id"`
	Outcome     LedgerOutcome `json:"outcome"`
	ProcessedAt time.Time     `json:"processed_at"`
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Body           string    `json:"body"`
	System         bool      `json:"system"`
	CreatedAt      time.Time `json:"created_at"`
}

type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

const NotificationOrderPaid = "order_paid"

// ReviewReason classifies why an order landed in the manual review queue.
type ReviewReason string

const (
	ReasonAmountMismatch       ReviewReason = "amount_mismatch"
	ReasonNoReference          ReviewReason = "no_reference_found"
	ReasonOrderNotFound        ReviewReason = "order_not_found"
	ReasonBuyerClaimedTransfer ReviewReason = "buyer_claimed_transfer"
	ReasonManualMethod         ReviewReason = "manual_payment_method"
)

// ReviewItem is a triage row for a human reviewer. OrderID is nil when the
// transfer could not be tied to any order at all.
type ReviewItem struct {
	ID          int64        `json:"id"`
	OrderID     *uuid.UUID   `json:"order_id,omitempty"`
	ExternalID  string       `json:"external_id,omitempty"`
	Amount      int64        `json:"amount"`
	Description string       `json:"description,omitempty"`
	Reason      ReviewReason `json:"reason"`
	Resolved    bool         `json:"resolved"`
	CreatedAt   time.Time    `json:"created_at"`
}

// StateChangeEvent is published to the order.state.changed stream after every
// successful transition.
type StateChangeEvent struct {
	OrderID       uuid.UUID     `json:"order_id"`
	FromState     OrderStatus   `json:"from_state"`
	ToState       OrderStatus   `json:"to_state"`
	ConfirmSource ConfirmSource `json:"confirm_source,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}
