package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, reference, buyer_id, seller_id, product_id, price, status, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, order.ID, order.Reference, order.BuyerID, order.SellerID, order.ProductID,
		order.Price, order.Status, order.PaymentMethod, order.CreatedAt)
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, id))
}

func (r *OrderRepository) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectOrder+` WHERE reference = $1`, reference))
}

// Transition is a compare-and-swap from pending. Zero rows updated means the
// order already left pending (or does not exist); callers map that to
// ErrInvalidTransition.
func (r *OrderRepository) Transition(ctx context.Context, id uuid.UUID, to models.OrderStatus, paidAt *time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, paid_at = $2
		WHERE id = $3 AND status = $4
	`, to, paidAt, id, models.OrderPending)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		selectOrder+` WHERE status = $1 AND created_at < $2 ORDER BY created_at`,
		models.OrderPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *OrderRepository) ListPending(ctx context.Context) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		selectOrder+` WHERE status = $1 ORDER BY created_at`, models.OrderPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

const selectOrder = `
	SELECT id, reference, buyer_id, seller_id, product_id, price, status, payment_method, created_at, paid_at
	FROM orders`

func (r *OrderRepository) scanOne(row *sql.Row) (*models.Order, error) {
	var o models.Order
	var paidAt sql.NullTime
	err := row.Scan(&o.ID, &o.Reference, &o.BuyerID, &o.SellerID, &o.ProductID,
		&o.Price, &o.Status, &o.PaymentMethod, &o.CreatedAt, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	return &o, nil
}

func (r *OrderRepository) scanAll(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var paidAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.Reference, &o.BuyerID, &o.SellerID, &o.ProductID,
			&o.Price, &o.Status, &o.PaymentMethod, &o.CreatedAt, &paidAt); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			o.PaidAt = &paidAt.Time
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
