// Package payment implements the proof workflow: a client submits evidence
// of a bank transfer through a tokenized link, an admin verifies or rejects
// it, and the order's commercial state follows. Every state-changing
// operation runs as one atomic unit over the order row and the proof row.
package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"ms-backoffice/internal/logger"
	"ms-backoffice/internal/models"
	"ms-backoffice/internal/order/db"
	"ms-backoffice/internal/payment/storage"
)

type DBLayer interface {
	GetOrderByLinkToken(ctx context.Context, token string) (*models.Order, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetProofByID(ctx context.Context, id string) (*models.PaymentProof, error)
	InTx(ctx context.Context, fn func(ops db.TxOps) error) error
}

// Links is the slice of the payment link manager the workflow consults.
// Both methods are pure; all link writes go through the transaction.
type Links interface {
	IsUsable(o *models.Order, now time.Time) bool
	RetryExpiry(o *models.Order, now time.Time) time.Time
}

// SubmitLock serializes concurrent submissions per order ahead of the
// database guard.
type SubmitLock interface {
	Lock(ctx context.Context, orderID string) (bool, error)
	Unlock(ctx context.Context, orderID string) error
}

type FileStore interface {
	Store(ctx context.Context, orderID, contentType string, data []byte) (string, error)
	Remove(ctx context.Context, ref string) error
}

type EventPublisher interface {
	Publish(topic string, key string, value []byte) error
}

type Workflow struct {
	DB     DBLayer
	Links  Links
	Lock   SubmitLock
	Files  FileStore
	Events EventPublisher
	logger *logger.Logger
}

func NewWorkflow(dbl DBLayer, links Links, lock SubmitLock, files FileStore, events EventPublisher, log *logger.Logger) *Workflow {
	return &Workflow{
		DB:     dbl,
		Links:  links,
		Lock:   lock,
		Files:  files,
		Events: events,
		logger: log,
	}
}

// Submit accepts an uploaded proof against a valid link. On success the
// proof is stored pending and the link is deactivated in the same
// transaction, which is what keeps "at most one pending proof per order"
// true under concurrent submissions.
func (w *Workflow) Submit(ctx context.Context, token string, req models.SubmitProofRequest, contentType string, file []byte, now time.Time) (*models.SubmitProofResponse, error) {
	o, err := w.DB.GetOrderByLinkToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr("no order found for this payment link", err)
		}
		return nil, storageErr("failed to look up order by link token", err)
	}

	if !w.Links.IsUsable(o, now) {
		return nil, expiredLinkErr()
	}

	if err := w.validateAmount(o, req); err != nil {
		return nil, err
	}

	locked, err := w.Lock.Lock(ctx, o.OrderID)
	if err != nil {
		return nil, storageErr("failed to acquire submit lock", err)
	}
	if !locked {
		return nil, conflictErr("another submission for this order is in progress")
	}
	defer func() {
		if err := w.Lock.Unlock(ctx, o.OrderID); err != nil {
			w.logger.Warn("PAYMENT", fmt.Sprintf("Failed to release submit lock for order %s: %v", o.OrderID, err))
		}
	}()

	// The file is written only after the lock is held so a losing submitter
	// never leaves an orphan on disk.
	fileRef, err := w.Files.Store(ctx, o.OrderID, contentType, file)
	if err != nil {
		if isRejectedUpload(err) {
			return nil, validationErr(err.Error())
		}
		return nil, storageErr("failed to store proof file", err)
	}

	proof := &models.PaymentProof{
		ProofID:      uuid.NewString(),
		OrderID:      o.OrderID,
		Amount:       req.Amount,
		PaymentType:  req.PaymentType,
		ProofFileRef: fileRef,
		Status:       models.ProofPending,
		SubmittedAt:  now,
	}

	err = w.DB.InTx(ctx, func(ops db.TxOps) error {
		if err := ops.ClaimPaymentLink(ctx, o.OrderID); err != nil {
			return err
		}
		if err := ops.InsertProof(ctx, proof); err != nil {
			return err
		}
		return ops.InsertActivity(ctx, &models.ActivityLog{
			ID:        uuid.NewString(),
			OrderID:   o.OrderID,
			Action:    "payment_proof_submitted",
			Detail:    fmt.Sprintf("%s proof of %.2f submitted", proof.PaymentType, proof.Amount),
			CreatedAt: now,
		})
	})
	if err != nil {
		w.discardProofFile(ctx, fileRef)
		if errors.Is(err, db.ErrLinkNotClaimable) {
			return nil, expiredLinkErr()
		}
		return nil, storageErr("failed to persist payment proof", err)
	}

	o.PaymentLinkActive = false
	w.logger.LogPayment("SUBMIT", o.OrderID, fmt.Sprintf("proof %s stored pending", proof.ProofID))
	w.publishProofEvent(TopicProofSubmitted, o, proof, now)

	return &models.SubmitProofResponse{ProofID: proof.ProofID}, nil
}

// Verify marks a pending proof verified and propagates to the order: status
// walks the staged transitions down to confirmed, payment status follows the
// proof type, and the remaining amount is recomputed from the sum of
// verified proofs inside the same transaction. The link stays inactive.
func (w *Workflow) Verify(ctx context.Context, proofID, adminID, adminNotes string, now time.Time) (*models.Order, error) {
	proof, o, err := w.loadProofAndOrder(ctx, proofID)
	if err != nil {
		return nil, err
	}

	targetStatus, err := verifiedStatus(o.Status, proof.PaymentType)
	if err != nil {
		return nil, conflictErr(err.Error())
	}

	paymentStatus := models.PaymentDPPaid
	if proof.PaymentType == models.PaymentTypeFull {
		paymentStatus = models.PaymentPaid
	}

	var remaining float64
	err = w.DB.InTx(ctx, func(ops db.TxOps) error {
		if err := ops.MarkProofVerified(ctx, proofID, adminID, now, adminNotes); err != nil {
			return err
		}
		verifiedSum, err := ops.SumVerifiedAmounts(ctx, o.OrderID)
		if err != nil {
			return err
		}
		remaining = round2(o.FinalPrice - verifiedSum)
		if err := ops.UpdateOrderPayment(ctx, models.OrderPaymentUpdate{
			OrderID:           o.OrderID,
			Status:            targetStatus,
			PaymentStatus:     paymentStatus,
			RemainingAmount:   remaining,
			PaymentLinkActive: false,
		}, now); err != nil {
			return err
		}
		return ops.InsertActivity(ctx, &models.ActivityLog{
			ID:        uuid.NewString(),
			OrderID:   o.OrderID,
			ActorID:   adminID,
			Action:    "payment_proof_verified",
			Detail:    fmt.Sprintf("proof %s verified, remaining %.2f", proofID, remaining),
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, db.ErrProofNotPending) {
			return nil, alreadyProcessedErr()
		}
		return nil, storageErr("failed to verify payment proof", err)
	}

	o.Status = targetStatus
	o.PaymentStatus = paymentStatus
	o.RemainingAmount = remaining
	o.PaymentLinkActive = false
	proof.Status = models.ProofVerified

	w.logger.LogPayment("VERIFY", o.OrderID, fmt.Sprintf("proof %s verified by %s", proofID, adminID))
	w.publishProofEvent(TopicProofVerified, o, proof, now)
	return o, nil
}

// Reject marks a pending proof rejected and re-arms the link so the client
// can submit a corrected proof. Order status and payment status stay put.
// When the original expiry has already passed the link gets a fresh retry
// window, otherwise the old expiry stands.
func (w *Workflow) Reject(ctx context.Context, proofID, adminID, adminNotes string, now time.Time) (*models.Order, error) {
	if adminNotes == "" {
		return nil, validationErr("admin notes are required when rejecting a proof")
	}

	proof, o, err := w.loadProofAndOrder(ctx, proofID)
	if err != nil {
		return nil, err
	}

	retryExpiry := w.Links.RetryExpiry(o, now)

	err = w.DB.InTx(ctx, func(ops db.TxOps) error {
		if err := ops.MarkProofRejected(ctx, proofID, adminID, now, adminNotes); err != nil {
			return err
		}
		if err := ops.ReactivatePaymentLink(ctx, o.OrderID, retryExpiry); err != nil {
			return err
		}
		return ops.InsertActivity(ctx, &models.ActivityLog{
			ID:        uuid.NewString(),
			OrderID:   o.OrderID,
			ActorID:   adminID,
			Action:    "payment_proof_rejected",
			Detail:    fmt.Sprintf("proof %s rejected: %s", proofID, adminNotes),
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, db.ErrProofNotPending) {
			return nil, alreadyProcessedErr()
		}
		return nil, storageErr("failed to reject payment proof", err)
	}

	o.PaymentLinkActive = true
	o.PaymentLinkExpiresAt = &retryExpiry
	proof.Status = models.ProofRejected

	w.logger.LogPayment("REJECT", o.OrderID, fmt.Sprintf("proof %s rejected by %s", proofID, adminID))
	w.publishProofEvent(TopicProofRejected, o, proof, now)
	return o, nil
}

// isRejectedUpload separates the client's fault from ours: the storage
// sentinels describe a bad upload, anything else is an infrastructure fault.
func isRejectedUpload(err error) bool {
	return errors.Is(err, storage.ErrFileTooLarge) ||
		errors.Is(err, storage.ErrUnsupportedType) ||
		errors.Is(err, storage.ErrEmptyFile)
}

// discardProofFile removes a file whose transaction rolled back, best effort.
func (w *Workflow) discardProofFile(ctx context.Context, ref string) {
	if err := w.Files.Remove(ctx, ref); err != nil {
		w.logger.Warn("PAYMENT", fmt.Sprintf("Failed to remove orphaned proof file %s: %v", ref, err))
	}
}

func (w *Workflow) loadProofAndOrder(ctx context.Context, proofID string) (*models.PaymentProof, *models.Order, error) {
	proof, err := w.DB.GetProofByID(ctx, proofID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, notFoundErr("payment proof not found", err)
		}
		return nil, nil, storageErr("failed to look up payment proof", err)
	}

	o, err := w.DB.GetOrderByID(ctx, proof.OrderID)
	if err != nil {
		return nil, nil, storageErr("failed to load order for proof", err)
	}
	return proof, o, nil
}

// validateAmount enforces the commercial rules: a full payment must match
// the outstanding obligation exactly (final price minus verified payments,
// which on a fresh order is the final price), a down payment must be
// positive and not exceed it.
func (w *Workflow) validateAmount(o *models.Order, req models.SubmitProofRequest) error {
	outstanding := o.RemainingAmount
	switch req.PaymentType {
	case models.PaymentTypeFull:
		if !amountsEqual(req.Amount, outstanding) {
			return validationErr(fmt.Sprintf("full payment must be exactly %.2f", outstanding))
		}
	case models.PaymentTypeDP:
		if req.Amount <= 0 || req.Amount > outstanding+centEpsilon {
			return validationErr(fmt.Sprintf("down payment must be above 0 and at most %.2f", outstanding))
		}
	default:
		return validationErr("payment_type must be 'dp' or 'full'")
	}
	return nil
}

// verifiedStatus walks the staged transitions a verification implies. Every
// hop is validated against the transition table; the end state is always
// confirmed. A confirmed order with a down payment verified earlier re-enters
// the walk at awaiting_full so the settlement proof can land.
func verifiedStatus(current models.OrderStatus, pt models.PaymentType) (models.OrderStatus, error) {
	var hops []models.OrderStatus
	switch pt {
	case models.PaymentTypeFull:
		switch current {
		case models.StatusAwaitingDP, models.StatusDPPaid, models.StatusConfirmed:
			hops = append(hops, models.StatusAwaitingFull)
		}
		hops = append(hops, models.StatusPaid, models.StatusConfirmed)
	default:
		hops = append(hops, models.StatusDPPaid, models.StatusConfirmed)
	}

	status := current
	var err error
	for _, hop := range hops {
		status, err = status.TransitionTo(hop)
		if err != nil {
			return current, err
		}
	}
	return status, nil
}

const centEpsilon = 0.005

func amountsEqual(a, b float64) bool {
	return math.Abs(a-b) < centEpsilon
}

func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
