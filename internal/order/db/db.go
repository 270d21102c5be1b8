package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-backoffice/internal/models"
)

var (
	// ErrLinkNotClaimable means the conditional link claim matched no row:
	// the link was already deactivated by a concurrent submission.
	ErrLinkNotClaimable = errors.New("payment link is no longer claimable")
	// ErrProofNotPending means a verify/reject hit a proof that was already
	// processed; the guard lives in the UPDATE itself, not a prior read.
	ErrProofNotPending = errors.New("payment proof is not pending")
	// ErrOrderNotNegotiable means a finalize raced with an earlier one.
	ErrOrderNotNegotiable = errors.New("order is no longer negotiable")
)

type DB struct {
	Bun *bun.DB
}

// ---------------- CLIENTS & PACKAGES ----------------

// UpsertClientByEmail matches on email and overwrites name and phone,
// creating the client when the email is new.
func (d *DB) UpsertClientByEmail(ctx context.Context, client models.Client) (*models.Client, error) {
	_, err := d.Bun.NewInsert().
		Model(&client).
		On("CONFLICT (email) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("phone = EXCLUDED.phone").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	var stored models.Client
	err = d.Bun.NewSelect().
		Model(&stored).
		Where("email = ?", client.Email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (d *DB) GetPackageByID(ctx context.Context, id string) (*models.Package, error) {
	var pkg models.Package
	err := d.Bun.NewSelect().
		Model(&pkg).
		Where("package_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByLinkToken(ctx context.Context, token string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("payment_link_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByVerificationToken(ctx context.Context, token string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("verification_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FinalizeOrder commits the negotiated figures and flips is_negotiable in a
// single conditional update. A second finalize matches no row.
func (d *DB) FinalizeOrder(ctx context.Context, order models.Order) error {
	res, err := d.Bun.NewUpdate().
		Model(&order).
		Column("total_price", "discount", "final_price", "dp_amount",
			"remaining_amount", "additional_costs", "custom_items",
			"package_details", "is_negotiable", "negotiated_at", "status",
			"payment_status", "updated_at").
		Where("order_id = ?", order.OrderID).
		Where("is_negotiable = ?", true).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrOrderNotNegotiable)
}

func (d *DB) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, now time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", now).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- PAYMENT LINK (paymentlink.Store) ----------------

func (d *DB) ArmPaymentLink(ctx context.Context, orderID, token string, expiresAt time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_link_token = ?", token).
		Set("payment_link_active = ?", true).
		Set("payment_link_expires_at = ?", expiresAt).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

func (d *DB) DeactivatePaymentLink(ctx context.Context, orderID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_link_active = ?", false).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

func (d *DB) ReactivatePaymentLink(ctx context.Context, orderID string, expiresAt time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_link_active = ?", true).
		Set("payment_link_expires_at = ?", expiresAt).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- PROOFS ----------------

func (d *DB) GetProofByID(ctx context.Context, id string) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	err := d.Bun.NewSelect().
		Model(&proof).
		Where("proof_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &proof, nil
}

func (d *DB) ListProofsByOrder(ctx context.Context, orderID string) ([]models.PaymentProof, error) {
	var proofs []models.PaymentProof
	err := d.Bun.NewSelect().
		Model(&proofs).
		Where("order_id = ?", orderID).
		Order("submitted_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return proofs, nil
}

// ---------------- TRANSACTIONS ----------------

// TxOps is the set of writes the proof workflow performs inside one atomic
// unit. The order row and the proof row either both move or neither does.
type TxOps interface {
	ClaimPaymentLink(ctx context.Context, orderID string) error
	InsertProof(ctx context.Context, proof *models.PaymentProof) error
	MarkProofVerified(ctx context.Context, proofID, adminID string, at time.Time, notes string) error
	MarkProofRejected(ctx context.Context, proofID, adminID string, at time.Time, notes string) error
	SumVerifiedAmounts(ctx context.Context, orderID string) (float64, error)
	UpdateOrderPayment(ctx context.Context, update models.OrderPaymentUpdate, now time.Time) error
	ReactivatePaymentLink(ctx context.Context, orderID string, expiresAt time.Time) error
	InsertActivity(ctx context.Context, entry *models.ActivityLog) error
}

// InTx runs fn inside a single transaction; any error rolls everything back.
func (d *DB) InTx(ctx context.Context, fn func(ops TxOps) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(&txOps{tx: tx})
	})
}

type txOps struct {
	tx bun.Tx
}

// ClaimPaymentLink atomically takes the link down. Two concurrent
// submissions race on this row: exactly one sees an affected row, the other
// gets ErrLinkNotClaimable.
func (t *txOps) ClaimPaymentLink(ctx context.Context, orderID string) error {
	res, err := t.tx.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_link_active = ?", false).
		Where("order_id = ?", orderID).
		Where("payment_link_active = ?", true).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrLinkNotClaimable)
}

func (t *txOps) InsertProof(ctx context.Context, proof *models.PaymentProof) error {
	_, err := t.tx.NewInsert().Model(proof).Exec(ctx)
	return err
}

func (t *txOps) MarkProofVerified(ctx context.Context, proofID, adminID string, at time.Time, notes string) error {
	return t.markProcessed(ctx, proofID, adminID, at, notes, models.ProofVerified)
}

func (t *txOps) MarkProofRejected(ctx context.Context, proofID, adminID string, at time.Time, notes string) error {
	return t.markProcessed(ctx, proofID, adminID, at, notes, models.ProofRejected)
}

// markProcessed is the conditional terminal update. The WHERE status =
// 'pending' clause is the idempotency guard: a second admin action matches
// no row regardless of what it read beforehand.
func (t *txOps) markProcessed(ctx context.Context, proofID, adminID string, at time.Time, notes string, status models.ProofStatus) error {
	res, err := t.tx.NewUpdate().
		Model((*models.PaymentProof)(nil)).
		Set("status = ?", status).
		Set("verified_by = ?", adminID).
		Set("verified_at = ?", at).
		Set("admin_notes = ?", notes).
		Where("proof_id = ?", proofID).
		Where("status = ?", models.ProofPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrProofNotPending)
}

func (t *txOps) SumVerifiedAmounts(ctx context.Context, orderID string) (float64, error) {
	var sum float64
	err := t.tx.NewSelect().
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Table("payment_proofs").
		Where("order_id = ?", orderID).
		Where("status = ?", models.ProofVerified).
		Scan(ctx, &sum)
	if err != nil {
		return 0, err
	}
	return sum, nil
}

func (t *txOps) UpdateOrderPayment(ctx context.Context, update models.OrderPaymentUpdate, now time.Time) error {
	_, err := t.tx.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", update.Status).
		Set("payment_status = ?", update.PaymentStatus).
		Set("remaining_amount = ?", update.RemainingAmount).
		Set("payment_link_active = ?", update.PaymentLinkActive).
		Set("updated_at = ?", now).
		Where("order_id = ?", update.OrderID).
		Exec(ctx)
	return err
}

func (t *txOps) ReactivatePaymentLink(ctx context.Context, orderID string, expiresAt time.Time) error {
	_, err := t.tx.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_link_active = ?", true).
		Set("payment_link_expires_at = ?", expiresAt).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

func (t *txOps) InsertActivity(ctx context.Context, entry *models.ActivityLog) error {
	_, err := t.tx.NewInsert().Model(entry).Exec(ctx)
	return err
}

func requireAffected(res sql.Result, sentinel error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return sentinel
	}
	return nil
}
