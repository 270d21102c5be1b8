package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"ms-backoffice/internal/models"
)

const (
	TopicProofSubmitted = "backoffice.payment.submitted"
	TopicProofVerified  = "backoffice.payment.verified"
	TopicProofRejected  = "backoffice.payment.rejected"
)

// ProofEvent is the payload streamed to reporting and notification
// consumers after every proof state change.
type ProofEvent struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	ProofID       string               `json:"proof_id"`
	Amount        float64              `json:"amount"`
	PaymentType   models.PaymentType   `json:"payment_type"`
	ProofStatus   models.ProofStatus   `json:"proof_status"`
	OrderStatus   models.OrderStatus   `json:"order_status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Timestamp     time.Time            `json:"timestamp"`
}

// publishProofEvent streams the event best-effort: a broker outage must not
// fail a committed transaction.
func (w *Workflow) publishProofEvent(topic string, order *models.Order, proof *models.PaymentProof, now time.Time) {
	event := ProofEvent{
		Type:          topic,
		OrderID:       order.OrderID,
		OrderNumber:   order.OrderNumber,
		ProofID:       proof.ProofID,
		Amount:        proof.Amount,
		PaymentType:   proof.PaymentType,
		ProofStatus:   proof.Status,
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		Timestamp:     now,
	}

	value, err := json.Marshal(event)
	if err != nil {
		w.logger.Error("KAFKA", fmt.Sprintf("Failed to marshal proof event: %v", err))
		return
	}

	if err := w.Events.Publish(topic, order.OrderID, value); err != nil {
		w.logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for order %s: %v", topic, order.OrderID, err))
	}
}
