package repository

import "database/sql"

// InitDB creates the tables owned by the reconciliation core. Orders and
// products are shared with the marketplace domain; the ledger, conversations,
// notifications and review queue are private to this service.
func InitDB(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			seller_id UUID NOT NULL,
			title VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL,
			delivery_type VARCHAR(50) NOT NULL DEFAULT 'instant'
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			reference VARCHAR(32) NOT NULL UNIQUE,
			buyer_id UUID NOT NULL,
			seller_id UUID NOT NULL,
			product_id UUID NOT NULL,
			price BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			payment_method VARCHAR(30) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			paid_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS processed_transactions (
			external_id VARCHAR(255) PRIMARY KEY,
			order_id UUID NOT NULL,
			outcome VARCHAR(20) NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL UNIQUE,
			buyer_id UUID NOT NULL,
			seller_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			sender_id UUID NOT NULL,
			body TEXT NOT NULL,
			is_system BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			order_id UUID NOT NULL,
			kind VARCHAR(50) NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (order_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS review_items (
			id BIGSERIAL PRIMARY KEY,
			order_id UUID,
			external_id VARCHAR(255) NOT NULL DEFAULT '',
			amount BIGINT NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			reason VARCHAR(50) NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_review_items_external
			ON review_items(external_id, reason) WHERE external_id <> ''`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
