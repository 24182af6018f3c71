package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, price, delivery_type
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.SellerID, &p.Title, &p.Price, &p.DeliveryType)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
