// Package paymentlink owns the renewable payment-link capability on an
// order: a high-entropy token plus an active flag and an expiry. Possessing
// the current token while the link is active and unexpired is what lets a
// client submit payment proof without authenticating.
package paymentlink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-backoffice/internal/models"
	"ms-backoffice/internal/utils"
)

var (
	// ErrActiveLinkExists means issue was called while a usable link is still
	// out. Admins wait for expiry or for a proof submission; there is no
	// force-renew.
	ErrActiveLinkExists = errors.New("an active payment link already exists for this order")
	// ErrOrderTerminal means the order is completed or cancelled and accepts
	// no further payment activity.
	ErrOrderTerminal = errors.New("order is in a terminal state")
	// ErrInvalidValidity means hoursValid fell outside the allowed window.
	ErrInvalidValidity = errors.New("link validity must be between 1 and 168 hours")
)

// Store is the slice of the order storage layer the manager writes through.
type Store interface {
	ArmPaymentLink(ctx context.Context, orderID, token string, expiresAt time.Time) error
	DeactivatePaymentLink(ctx context.Context, orderID string) error
	ReactivatePaymentLink(ctx context.Context, orderID string, expiresAt time.Time) error
}

type Manager struct {
	Store Store

	// DefaultValidity is used when the caller does not pick a window.
	DefaultValidity time.Duration
	MinValidity     time.Duration
	MaxValidity     time.Duration

	// RetryWindow is how much time a client gets when a rejection re-arms a
	// link whose expiry has already passed.
	RetryWindow time.Duration

	// PublicBaseURL is prepended to tokens to build the shareable URL.
	PublicBaseURL string
}

func NewManager(store Store, publicBaseURL string) *Manager {
	return &Manager{
		Store:           store,
		DefaultValidity: 48 * time.Hour,
		MinValidity:     1 * time.Hour,
		MaxValidity:     168 * time.Hour,
		RetryWindow:     24 * time.Hour,
		PublicBaseURL:   publicBaseURL,
	}
}

// IssuedLink is what a successful Issue hands back to the caller.
type IssuedLink struct {
	Token     string
	URL       string
	ExpiresAt time.Time
}

// Issue mints a fresh token and arms the link. It refuses while a usable
// link is still out and refuses terminal orders outright.
func (m *Manager) Issue(ctx context.Context, o *models.Order, hoursValid int, now time.Time) (*IssuedLink, error) {
	if o.Status.IsTerminal() {
		return nil, ErrOrderTerminal
	}
	if m.IsUsable(o, now) {
		return nil, ErrActiveLinkExists
	}

	validity := m.DefaultValidity
	if hoursValid != 0 {
		validity = time.Duration(hoursValid) * time.Hour
		if validity < m.MinValidity || validity > m.MaxValidity {
			return nil, ErrInvalidValidity
		}
	}

	token, err := utils.GeneratePaymentLinkToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate link token: %w", err)
	}

	expiresAt := now.Add(validity)
	if err := m.Store.ArmPaymentLink(ctx, o.OrderID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to arm payment link: %w", err)
	}

	o.PaymentLinkToken = token
	o.PaymentLinkActive = true
	o.PaymentLinkExpiresAt = &expiresAt

	return &IssuedLink{
		Token:     token,
		URL:       fmt.Sprintf("%s/payment/%s", m.PublicBaseURL, token),
		ExpiresAt: expiresAt,
	}, nil
}

// IsUsable reports whether the link grants submission right now. It is
// recomputed on every call, never cached: expiry is a passive property of
// the clock, not a timer.
func (m *Manager) IsUsable(o *models.Order, now time.Time) bool {
	return o.PaymentLinkActive &&
		o.PaymentLinkExpiresAt != nil &&
		now.Before(*o.PaymentLinkExpiresAt)
}

// Deactivate turns the link off without touching token or expiry. Proof
// submission does this automatically; cancellation uses it too.
func (m *Manager) Deactivate(ctx context.Context, o *models.Order) error {
	if err := m.Store.DeactivatePaymentLink(ctx, o.OrderID); err != nil {
		return fmt.Errorf("failed to deactivate payment link: %w", err)
	}
	o.PaymentLinkActive = false
	return nil
}

// Reactivate re-arms the link after a rejection so the client can submit a
// corrected proof. Token and expiry stay as they were.
func (m *Manager) Reactivate(ctx context.Context, o *models.Order) error {
	if o.PaymentLinkExpiresAt == nil {
		return errors.New("cannot reactivate an order that never had a payment link")
	}
	if err := m.Store.ReactivatePaymentLink(ctx, o.OrderID, *o.PaymentLinkExpiresAt); err != nil {
		return fmt.Errorf("failed to reactivate payment link: %w", err)
	}
	o.PaymentLinkActive = true
	return nil
}

// RetryExpiry returns the expiry a rejected order's link should carry. When
// the original window has already passed, the client gets RetryWindow from
// now; otherwise the original expiry stands. Reactivation alone never moves
// the expiry, so this is the rejection path's explicit decision.
func (m *Manager) RetryExpiry(o *models.Order, now time.Time) time.Time {
	if o.PaymentLinkExpiresAt != nil && now.Before(*o.PaymentLinkExpiresAt) {
		return *o.PaymentLinkExpiresAt
	}
	return now.Add(m.RetryWindow)
}
