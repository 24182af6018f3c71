package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

// LedgerRepository backs the idempotency guard. The primary key on
// external_id makes Claim atomic under concurrent redelivery: exactly one
// caller gets RowsAffected == 1.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Claim(ctx context.Context, externalID string, orderID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_transactions (external_id, order_id, outcome, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO NOTHING
	`, externalID, orderID, models.OutcomePending, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *LedgerRepository) SetOutcome(ctx context.Context, externalID string, outcome models.LedgerOutcome) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE processed_transactions SET outcome = $1 WHERE external_id = $2`,
		outcome, externalID)
	return err
}

func (r *LedgerRepository) Get(ctx context.Context, externalID string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT external_id, order_id, outcome, processed_at
		FROM processed_transactions WHERE external_id = $1
	`, externalID).Scan(&e.ExternalID, &e.OrderID, &e.Outcome, &e.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
