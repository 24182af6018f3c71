package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lapakgo/payment-reconciler/internal/interfaces"
	"github.com/lapakgo/payment-reconciler/internal/models"
	"github.com/lapakgo/payment-reconciler/internal/telemetry"
)

// expirer is the slice of the state machine the supervisor needs.
type expirer interface {
	Expire(ctx context.Context, orderID uuid.UUID) error
}

type orderTimers struct {
	fallback *time.Timer
	expire   *time.Timer
}

// Supervisor owns the countdown for every pending order: at the fallback
// threshold it raises the buyer-facing manual-confirmation affordance, at the
// end of the waiting window it expires the order. It never decides a race
// itself; Expire goes through the state machine's pending-only guard.
type Supervisor struct {
	orders        interfaces.OrderRepository
	flags         interfaces.FallbackFlags
	expirer       expirer
	waitWindow    time.Duration
	fallbackAfter time.Duration

	// retryDelay spaces the single re-arm of an expiry that failed on a
	// transient persistence error.
	retryDelay time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*orderTimers
}

func NewSupervisor(
	orders interfaces.OrderRepository,
	flags interfaces.FallbackFlags,
	expirer expirer,
	waitWindow, fallbackAfter time.Duration,
) *Supervisor {
	return &Supervisor{
		orders:        orders,
		flags:         flags,
		expirer:       expirer,
		waitWindow:    waitWindow,
		fallbackAfter: fallbackAfter,
		retryDelay:    5 * time.Second,
		timers:        make(map[uuid.UUID]*orderTimers),
	}
}

// Watch arms the fallback and expiry timers for a pending order. Deadlines
// are computed from created_at, so re-watching after a restart keeps the
// original window instead of restarting it.
func (s *Supervisor) Watch(order *models.Order) {
	if order.Status != models.OrderPending {
		return
	}

	fallbackIn := time.Until(order.CreatedAt.Add(s.fallbackAfter))
	expireIn := time.Until(order.CreatedAt.Add(s.waitWindow))
	if fallbackIn < 0 {
		fallbackIn = 0
	}
	if expireIn < 0 {
		expireIn = 0
	}

	orderID := order.ID

	// Arm and register under the lock: a zero-delay timer may fire (and call
	// Release) before Watch returns.
	s.mu.Lock()
	if old, ok := s.timers[orderID]; ok {
		old.fallback.Stop()
		old.expire.Stop()
	}
	t := &orderTimers{}
	t.fallback = time.AfterFunc(fallbackIn, func() {
		s.raiseFallback(orderID, expireIn-fallbackIn)
	})
	t.expire = time.AfterFunc(expireIn, func() {
		s.expire(orderID)
	})
	s.timers[orderID] = t
	s.mu.Unlock()
}

// Release cancels the timers for an order that left pending. Called by the
// state machine after every successful transition.
func (s *Supervisor) Release(orderID uuid.UUID) {
	s.mu.Lock()
	t, ok := s.timers[orderID]
	if ok {
		delete(s.timers, orderID)
	}
	s.mu.Unlock()
	if ok {
		t.fallback.Stop()
		t.expire.Stop()
	}
}

// Resume re-arms timers for all pending orders, used on boot so orders that
// were in flight when the process died still expire on schedule.
func (s *Supervisor) Resume(ctx context.Context) error {
	pending, err := s.orders.ListPending(ctx)
	if err != nil {
		return err
	}
	for i := range pending {
		s.Watch(&pending[i])
	}
	telemetry.Logger.Info("Supervisor resumed pending orders", zap.Int("count", len(pending)))
	return nil
}

// SweepStale expires every pending order created before now-olderThan,
// through the same state machine transitions as the timers. Returns how many
// orders were expired.
func (s *Supervisor) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.orders.ListPendingBefore(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		err := s.expirer.Expire(ctx, stale[i].ID)
		if errors.Is(err, models.ErrInvalidTransition) {
			continue // resolved between the scan and now
		}
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *Supervisor) raiseFallback(orderID uuid.UUID, remaining time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ttl := remaining
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.flags.Set(ctx, orderID, ttl); err != nil {
		telemetry.Logger.Error("Failed to raise manual fallback",
			zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	telemetry.Logger.Info("Manual confirmation fallback raised",
		zap.String("order_id", orderID.String()))
}

func (s *Supervisor) expire(orderID uuid.UUID) {
	s.tryExpire(orderID, true)
}

func (s *Supervisor) tryExpire(orderID uuid.UUID, retry bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.expirer.Expire(ctx, orderID)
	if errors.Is(err, models.ErrInvalidTransition) {
		// Paid or cancelled just before the timer fired.
		s.Release(orderID)
		return
	}
	if err != nil {
		telemetry.Logger.Error("Failed to expire order",
			zap.String("order_id", orderID.String()),
			zap.Bool("will_retry", retry),
			zap.Error(err),
		)
		// One re-arm covers a transient store blip; anything longer is for
		// the operator sweep.
		if retry {
			time.AfterFunc(s.retryDelay, func() { s.tryExpire(orderID, false) })
		}
	}
}
