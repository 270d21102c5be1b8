package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentStatus tracks how much of the final price has been verified.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentDPPaid PaymentStatus = "dp_paid"
	PaymentPaid   PaymentStatus = "paid"
)

// PaymentType is the kind of payment a client declares on a proof.
type PaymentType string

const (
	PaymentTypeDP   PaymentType = "dp"
	PaymentTypeFull PaymentType = "full"
)

// CustomItem is one negotiated line item. Stored as JSONB on the order.
type CustomItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// PackageSnapshot is the point-in-time copy of the chosen package,
// immutable once negotiation is finalized.
type PackageSnapshot struct {
	PackageID string  `json:"package_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID     string `bun:"order_id,pk" json:"order_id"`
	OrderNumber string `bun:"order_number,notnull,unique" json:"order_number"`
	ClientID    string `bun:"client_id,notnull" json:"client_id"`

	// VerificationToken is a permanent read capability: anyone holding it may
	// view the order summary without logging in.
	VerificationToken string `bun:"verification_token,notnull,unique" json:"-"`

	// PaymentLinkToken is the renewable write capability. Possession of the
	// current token while the link is active and unexpired is what allows a
	// proof submission.
	PaymentLinkToken     string     `bun:"payment_link_token,nullzero" json:"-"`
	PaymentLinkActive    bool       `bun:"payment_link_active" json:"payment_link_active"`
	PaymentLinkExpiresAt *time.Time `bun:"payment_link_expires_at,nullzero" json:"payment_link_expires_at,omitempty"`

	TotalPrice      float64          `bun:"total_price" json:"total_price"`
	Discount        float64          `bun:"discount" json:"discount"`
	FinalPrice      float64          `bun:"final_price" json:"final_price"`
	DPAmount        float64          `bun:"dp_amount" json:"dp_amount"`
	RemainingAmount float64          `bun:"remaining_amount" json:"remaining_amount"`
	AdditionalCosts float64          `bun:"additional_costs" json:"additional_costs"`
	CustomItems     []CustomItem     `bun:"custom_items,type:jsonb" json:"custom_items"`
	PackageDetails  *PackageSnapshot `bun:"package_details,type:jsonb,nullzero" json:"package_details,omitempty"`

	IsNegotiable bool       `bun:"is_negotiable" json:"is_negotiable"`
	NegotiatedAt *time.Time `bun:"negotiated_at,nullzero" json:"negotiated_at,omitempty"`

	Status        OrderStatus   `bun:"status,notnull" json:"status"`
	PaymentStatus PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`

	EventDate time.Time `bun:"event_date,nullzero" json:"event_date,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Client *Client `bun:"rel:belongs-to,join:client_id=client_id" json:"client,omitempty"`
}

// OrderPaymentUpdate carries the payment-related order fields that the
// proof workflow is allowed to touch. Nothing else on the order row moves
// through this path.
type OrderPaymentUpdate struct {
	OrderID           string
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	RemainingAmount   float64
	PaymentLinkActive bool
}

// --- Request / response DTOs ---

type CreateOrderRequest struct {
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	ClientPhone string    `json:"client_phone"`
	EventDate   time.Time `json:"event_date"`
}

type RecalculateRequest struct {
	PackageID       string       `json:"package_id,omitempty"`
	CustomItems     []CustomItem `json:"custom_items,omitempty"`
	Discount        float64      `json:"discount"`
	AdditionalCosts float64      `json:"additional_costs"`
}

type FinalizeRequest struct {
	RecalculateRequest
	// PaymentPlan selects which link the client will be asked to pay first:
	// "dp" for a down payment, "full" for the whole amount.
	PaymentPlan PaymentType `json:"payment_plan"`
}

type IssueLinkRequest struct {
	HoursValid int `json:"hours_valid,omitempty"`
}

type IssueLinkResponse struct {
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
	QRCode    []byte    `json:"qr_code,omitempty"`
}

// OrderSummary is the public view returned to token holders. It deliberately
// omits both capability tokens.
type OrderSummary struct {
	OrderNumber     string           `json:"order_number"`
	Status          OrderStatus      `json:"status"`
	PaymentStatus   PaymentStatus    `json:"payment_status"`
	TotalPrice      float64          `json:"total_price"`
	Discount        float64          `json:"discount"`
	FinalPrice      float64          `json:"final_price"`
	DPAmount        float64          `json:"dp_amount"`
	RemainingAmount float64          `json:"remaining_amount"`
	CustomItems     []CustomItem     `json:"custom_items,omitempty"`
	PackageDetails  *PackageSnapshot `json:"package_details,omitempty"`
	LinkUsable      bool             `json:"link_usable"`
	LinkExpiresAt   *time.Time       `json:"link_expires_at,omitempty"`
}

func (o *Order) Summary(linkUsable bool) *OrderSummary {
	return &OrderSummary{
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		TotalPrice:      o.TotalPrice,
		Discount:        o.Discount,
		FinalPrice:      o.FinalPrice,
		DPAmount:        o.DPAmount,
		RemainingAmount: o.RemainingAmount,
		CustomItems:     o.CustomItems,
		PackageDetails:  o.PackageDetails,
		LinkUsable:      linkUsable,
		LinkExpiresAt:   o.PaymentLinkExpiresAt,
	}
}
