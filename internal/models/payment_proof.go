package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ProofStatus string

const (
	ProofPending  ProofStatus = "pending"
	ProofVerified ProofStatus = "verified"
	ProofRejected ProofStatus = "rejected"
)

// PaymentProof is one client-submitted payment attempt. A proof is created
// only through an active payment link and is terminal once verified or
// rejected. At most one pending proof exists per order; the link is
// deactivated in the same transaction that inserts the row.
type PaymentProof struct {
	bun.BaseModel `bun:"table:payment_proofs"`

	ProofID      string      `bun:"proof_id,pk" json:"proof_id"`
	OrderID      string      `bun:"order_id,notnull" json:"order_id"`
	Amount       float64     `bun:"amount,notnull" json:"amount"`
	PaymentType  PaymentType `bun:"payment_type,notnull" json:"payment_type"`
	ProofFileRef string      `bun:"proof_file_ref,notnull" json:"proof_file_ref"`
	Status       ProofStatus `bun:"status,notnull" json:"status"`
	VerifiedBy   string      `bun:"verified_by,nullzero" json:"verified_by,omitempty"`
	VerifiedAt   *time.Time  `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	AdminNotes   string      `bun:"admin_notes,nullzero" json:"admin_notes,omitempty"`
	SubmittedAt  time.Time   `bun:"submitted_at,notnull,default:current_timestamp" json:"submitted_at"`

	Order *Order `bun:"rel:belongs-to,join:order_id=order_id" json:"-"`
}

type SubmitProofRequest struct {
	Amount      float64     `json:"amount"`
	PaymentType PaymentType `json:"payment_type"`
}

type SubmitProofResponse struct {
	ProofID string `json:"proof_id"`
}

type ReviewProofRequest struct {
	AdminNotes string `json:"admin_notes"`
}
