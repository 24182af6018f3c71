package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

// ReviewRepository is the manual triage queue. Items carrying an external id
// are deduplicated per (external_id, reason) so webhook redelivery does not
// pile up duplicate rows.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) File(ctx context.Context, item *models.ReviewItem) error {
	if item.ExternalID != "" {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO review_items (order_id, external_id, amount, description, reason)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (external_id, reason) WHERE external_id <> '' DO NOTHING
		`, item.OrderID, item.ExternalID, item.Amount, item.Description, item.Reason)
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO review_items (order_id, external_id, amount, description, reason)
		VALUES ($1, '', $2, $3, $4)
	`, item.OrderID, item.Amount, item.Description, item.Reason)
	return err
}

func (r *ReviewRepository) ListOpen(ctx context.Context) ([]models.ReviewItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, external_id, amount, description, reason, resolved, created_at
		FROM review_items WHERE resolved = FALSE ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ReviewItem
	for rows.Next() {
		var item models.ReviewItem
		var orderID uuid.NullUUID
		if err := rows.Scan(&item.ID, &orderID, &item.ExternalID, &item.Amount,
			&item.Description, &item.Reason, &item.Resolved, &item.CreatedAt); err != nil {
			return nil, err
		}
		if orderID.Valid {
			item.OrderID = &orderID.UUID
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ReviewRepository) ResolveForOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE review_items SET resolved = TRUE WHERE order_id = $1 AND resolved = FALSE`,
		orderID)
	return err
}
