package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

// In-memory fakes. The order repo's Transition and the ledger's Claim mirror
// the atomicity of their Postgres counterparts (CAS update, insert-if-absent)
// so concurrency tests exercise the same guarantees as production.

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order

	// transitionErr is returned (and cleared) by the next Transition call,
	// simulating a transient persistence failure.
	transitionErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (r *fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetByReference(_ context.Context, ref string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Reference == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, models.ErrOrderNotFound
}

func (r *fakeOrderRepo) Transition(_ context.Context, id uuid.UUID, to models.OrderStatus, paidAt *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitionErr != nil {
		err := r.transitionErr
		r.transitionErr = nil
		return 0, err
	}
	o, ok := r.orders[id]
	if !ok || o.Status != models.OrderPending {
		return 0, nil
	}
	o.Status = to
	o.PaidAt = paidAt
	return 1, nil
}

func (r *fakeOrderRepo) ListPendingBefore(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.Status == models.OrderPending && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListPending(_ context.Context) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.Status == models.OrderPending {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeProductRepo struct {
	products map[uuid.UUID]*models.Product
}

func (r *fakeProductRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return p, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]*models.LedgerEntry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]*models.LedgerEntry)}
}

func (l *fakeLedger) Claim(_ context.Context, externalID string, orderID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[externalID]; exists {
		return false, nil
	}
	l.entries[externalID] = &models.LedgerEntry{
		ExternalID:  externalID,
		OrderID:     orderID,
		Outcome:     models.OutcomePending,
		ProcessedAt: time.Now(),
	}
	return true, nil
}

func (l *fakeLedger) SetOutcome(_ context.Context, externalID string, outcome models.LedgerOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[externalID]; ok {
		e.Outcome = outcome
	}
	return nil
}

func (l *fakeLedger) Get(_ context.Context, externalID string) (*models.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[externalID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	cp := *e
	return &cp, nil
}

type fakeReviewRepo struct {
	mu    sync.Mutex
	items []models.ReviewItem
}

func (r *fakeReviewRepo) File(_ context.Context, item *models.ReviewItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ExternalID != "" {
		for _, existing := range r.items {
			if existing.ExternalID == item.ExternalID && existing.Reason == item.Reason {
				return nil
			}
		}
	}
	cp := *item
	cp.ID = int64(len(r.items) + 1)
	cp.CreatedAt = time.Now()
	r.items = append(r.items, cp)
	return nil
}

func (r *fakeReviewRepo) ListOpen(_ context.Context) ([]models.ReviewItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReviewItem
	for _, item := range r.items {
		if !item.Resolved {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeReviewRepo) ResolveForOrder(_ context.Context, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].OrderID != nil && *r.items[i].OrderID == orderID {
			r.items[i].Resolved = true
		}
	}
	return nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation // keyed by order id
	messages      map[uuid.UUID][]models.Message     // keyed by conversation id

	// failNext is returned (and cleared) by the next FindOrCreate call,
	// simulating a transient store failure mid-fulfillment.
	failNext error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]models.Message),
	}
}

func (r *fakeConversationRepo) FindOrCreate(_ context.Context, conv *models.Conversation) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return nil, err
	}
	if existing, ok := r.conversations[conv.OrderID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *conv
	r.conversations[conv.OrderID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeConversationRepo) HasMessages(_ context.Context, conversationID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[conversationID]) > 0, nil
}

func (r *fakeConversationRepo) AddMessage(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], *msg)
	return nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]models.Notification // keyed by order id + kind
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[string]models.Notification)}
}

func (r *fakeNotificationRepo) CreateIfAbsent(_ context.Context, n *models.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := n.OrderID.String() + "/" + n.Kind
	if _, exists := r.notifications[key]; exists {
		return false, nil
	}
	r.notifications[key] = *n
	return true, nil
}

// memLocker serializes per order id with plain mutexes.
type memLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *memLocker) Acquire(_ context.Context, orderID uuid.UUID) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[orderID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

type memFlags struct {
	mu    sync.Mutex
	flags map[uuid.UUID]bool
}

func newMemFlags() *memFlags {
	return &memFlags{flags: make(map[uuid.UUID]bool)}
}

func (f *memFlags) Set(_ context.Context, orderID uuid.UUID, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[orderID] = true
	return nil
}

func (f *memFlags) Active(_ context.Context, orderID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags[orderID], nil
}

func (f *memFlags) Clear(_ context.Context, orderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flags, orderID)
	return nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []models.StateChangeEvent
}

func (p *memPublisher) PublishStateChange(_ context.Context, ev models.StateChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) all() []models.StateChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.StateChangeEvent, len(p.events))
	copy(out, p.events)
	return out
}

type memNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *memNotifier) Notify(_ context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}
