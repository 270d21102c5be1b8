package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-backoffice/internal/models"
)

// CreateSchema builds the schema straight from the bun models. Dev and test
// bootstrap only; production deployments run the versioned SQL migrations
// under migrations/ instead.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Client)(nil),
		(*models.Package)(nil),
		(*models.Order)(nil),
		(*models.PaymentProof)(nil),
		(*models.ActivityLog)(nil),
	}

	for _, model := range tables {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create table failed: %w", err)
		}
	}

	// One pending proof per order. The partial unique index makes the
	// invariant hold even if two submissions slip past the application
	// guard; works on both Postgres and SQLite.
	_, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_proofs_one_pending
		 ON payment_proofs (order_id) WHERE status = 'pending'`)
	if err != nil {
		return fmt.Errorf("create pending proof index failed: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_payment_proofs_order_id
		 ON payment_proofs (order_id)`)
	if err != nil {
		return fmt.Errorf("create proof order index failed: %w", err)
	}

	return nil
}
