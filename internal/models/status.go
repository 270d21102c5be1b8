package models

import "fmt"

// OrderStatus is the commercial state of an order. The set is closed and
// every move is checked against the transition table, so an illegal jump is
// an error instead of a silently accepted string.
type OrderStatus string

const (
	StatusPending      OrderStatus = "pending"
	StatusNegotiation  OrderStatus = "negotiation"
	StatusAwaitingDP   OrderStatus = "awaiting_dp"
	StatusDPPaid       OrderStatus = "dp_paid"
	StatusAwaitingFull OrderStatus = "awaiting_full"
	StatusPaid         OrderStatus = "paid"
	StatusConfirmed    OrderStatus = "confirmed"
	StatusProcessing   OrderStatus = "processing"
	StatusCompleted    OrderStatus = "completed"
	StatusCancelled    OrderStatus = "cancelled"
)

// Confirmed keeps an edge back to awaiting_full: a confirmed order with an
// unpaid balance re-opens when the settlement proof is verified.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:      {StatusNegotiation, StatusAwaitingDP, StatusAwaitingFull},
	StatusNegotiation:  {StatusAwaitingDP, StatusAwaitingFull},
	StatusAwaitingDP:   {StatusDPPaid, StatusAwaitingFull},
	StatusDPPaid:       {StatusAwaitingFull, StatusConfirmed},
	StatusAwaitingFull: {StatusDPPaid, StatusPaid},
	StatusPaid:         {StatusConfirmed},
	StatusConfirmed:    {StatusProcessing, StatusAwaitingFull},
	StatusProcessing:   {StatusCompleted},
	StatusCompleted:    {},
	StatusCancelled:    {},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := orderTransitions[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// IsTerminal reports whether no further transitions are possible. Terminal
// orders refuse payment link issuance and proof submission.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is allowed.
// Cancellation is reachable from every non-terminal state.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if next == StatusCancelled {
		return !s.IsTerminal()
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo validates a single hop and returns the new status.
func (s OrderStatus) TransitionTo(next OrderStatus) (OrderStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal order status transition %s -> %s", s, next)
	}
	return next, nil
}
