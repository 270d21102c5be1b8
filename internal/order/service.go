package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-backoffice/internal/logger"
	"ms-backoffice/internal/models"
	"ms-backoffice/internal/order/paymentlink"
	"ms-backoffice/internal/order/pricing"
	"ms-backoffice/internal/order/qr"
	"ms-backoffice/internal/utils"
)

const (
	TopicOrderCreated   = "backoffice.order.created"
	TopicOrderFinalized = "backoffice.order.finalized"
	TopicOrderCancelled = "backoffice.order.cancelled"
	TopicLinkIssued     = "backoffice.payment.link_issued"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotNegotiable  = errors.New("order is no longer negotiable")
	ErrCannotCancel   = errors.New("order cannot be cancelled from its current state")
	ErrClientRequired = errors.New("client name and email are required")
)

type DBLayer interface {
	UpsertClientByEmail(ctx context.Context, client models.Client) (*models.Client, error)
	GetPackageByID(ctx context.Context, id string) (*models.Package, error)
	CreateOrder(ctx context.Context, order models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByLinkToken(ctx context.Context, token string) (*models.Order, error)
	GetOrderByVerificationToken(ctx context.Context, token string) (*models.Order, error)
	FinalizeOrder(ctx context.Context, order models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, now time.Time) error
	ListProofsByOrder(ctx context.Context, orderID string) ([]models.PaymentProof, error)
}

type LinkManager interface {
	Issue(ctx context.Context, o *models.Order, hoursValid int, now time.Time) (*paymentlink.IssuedLink, error)
	IsUsable(o *models.Order, now time.Time) bool
	Deactivate(ctx context.Context, o *models.Order) error
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// OrderService owns order creation, negotiation and link issuance. All
// field mutation goes through here or the proof workflow; there is no
// generic "update any field" entry point.
type OrderService struct {
	DB     DBLayer
	Links  LinkManager
	Kafka  KafkaPublisher
	logger *logger.Logger
}

func NewOrderService(db DBLayer, links LinkManager, kafka KafkaPublisher, log *logger.Logger) *OrderService {
	return &OrderService{DB: db, Links: links, Kafka: kafka, logger: log}
}

// CreateOrder opens a draft engagement for a client, upserting the client
// by email (existing name and phone are overwritten). The order starts
// negotiable with both capability tokens in place.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest, now time.Time) (*models.Order, error) {
	if req.ClientName == "" || req.ClientEmail == "" {
		return nil, ErrClientRequired
	}

	client, err := s.DB.UpsertClientByEmail(ctx, models.Client{
		ClientID:  uuid.NewString(),
		Name:      req.ClientName,
		Email:     req.ClientEmail,
		Phone:     req.ClientPhone,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert client: %w", err)
	}

	verificationToken, err := utils.GenerateVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	order := models.Order{
		OrderID:           uuid.NewString(),
		OrderNumber:       utils.GenerateOrderNumber(now),
		ClientID:          client.ClientID,
		VerificationToken: verificationToken,
		Status:            models.StatusPending,
		PaymentStatus:     models.PaymentUnpaid,
		IsNegotiable:      true,
		EventDate:         req.EventDate,
		CreatedAt:         now,
	}

	if err := s.DB.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.LogOrder("CREATE", order.OrderID, fmt.Sprintf("order %s opened for client %s", order.OrderNumber, client.Email))
	s.publishOrderEvent(TopicOrderCreated, &order)

	return &order, nil
}

// Recalculate returns a live pricing preview for an order still under
// negotiation. Nothing is persisted.
func (s *OrderService) Recalculate(ctx context.Context, orderID string, req models.RecalculateRequest) (*pricing.Quote, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsNegotiable {
		return nil, ErrNotNegotiable
	}

	input, _, err := s.buildPricingInput(ctx, req)
	if err != nil {
		return nil, err
	}

	quote := pricing.Calculate(*input)
	return &quote, nil
}

// FinalizeNegotiation commits the negotiated inputs into immutable priced
// fields, snapshots the package and moves the order to the awaiting state
// matching the chosen payment plan. A second finalize fails.
func (s *OrderService) FinalizeNegotiation(ctx context.Context, orderID string, req models.FinalizeRequest, now time.Time) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsNegotiable {
		return nil, ErrNotNegotiable
	}

	input, snapshot, err := s.buildPricingInput(ctx, req.RecalculateRequest)
	if err != nil {
		return nil, err
	}
	quote := pricing.Calculate(*input)

	target := models.StatusAwaitingDP
	if req.PaymentPlan == models.PaymentTypeFull {
		target = models.StatusAwaitingFull
	}
	status, err := order.Status.TransitionTo(target)
	if err != nil {
		return nil, err
	}

	order.TotalPrice = quote.TotalPrice
	order.Discount = quote.Discount
	order.FinalPrice = quote.FinalPrice
	order.DPAmount = quote.DPAmount
	// Nothing is verified yet, so the whole final price is outstanding.
	order.RemainingAmount = quote.FinalPrice
	order.AdditionalCosts = req.AdditionalCosts
	order.CustomItems = pricing.ValidItems(req.CustomItems)
	order.PackageDetails = snapshot
	order.IsNegotiable = false
	order.NegotiatedAt = &now
	order.Status = status
	order.PaymentStatus = models.PaymentUnpaid
	order.UpdatedAt = now

	if err := s.DB.FinalizeOrder(ctx, *order); err != nil {
		return nil, err
	}

	s.logger.LogOrder("FINALIZE", order.OrderID,
		fmt.Sprintf("final price %.2f, dp %.2f, plan %s", order.FinalPrice, order.DPAmount, req.PaymentPlan))
	s.publishOrderEvent(TopicOrderFinalized, order)

	return order, nil
}

// IssuePaymentLink mints a payment link for the order and renders it as a
// QR code for sharing.
func (s *OrderService) IssuePaymentLink(ctx context.Context, orderID string, hoursValid int, now time.Time) (*models.IssueLinkResponse, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	link, err := s.Links.Issue(ctx, order, hoursValid, now)
	if err != nil {
		return nil, err
	}

	qrCode, err := qr.EncodeLink(link.URL)
	if err != nil {
		s.logger.Warn("ORDER", fmt.Sprintf("Failed to render QR for order %s: %v", orderID, err))
		qrCode = nil
	}

	s.logger.LogOrder("LINK", order.OrderID, fmt.Sprintf("payment link issued, expires %s", link.ExpiresAt.Format(time.RFC3339)))
	s.publishOrderEvent(TopicLinkIssued, order)

	return &models.IssueLinkResponse{
		Link:      link.URL,
		ExpiresAt: link.ExpiresAt,
		QRCode:    qrCode,
	}, nil
}

// CancelOrder moves a non-terminal order to cancelled and takes down any
// open payment link.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID string, now time.Time) error {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if !order.Status.CanTransition(models.StatusCancelled) {
		return ErrCannotCancel
	}

	if err := s.DB.UpdateOrderStatus(ctx, orderID, models.StatusCancelled, now); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	if err := s.Links.Deactivate(ctx, order); err != nil {
		s.logger.Warn("ORDER", fmt.Sprintf("Failed to deactivate link for cancelled order %s: %v", orderID, err))
	}

	order.Status = models.StatusCancelled
	s.logger.LogOrder("CANCEL", orderID, fmt.Sprintf("cancelled by %s", actorID))
	s.publishOrderEvent(TopicOrderCancelled, order)
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.getOrder(ctx, orderID)
}

// SummaryByLinkToken resolves the public payment page. A dead link still
// returns the summary with LinkUsable false so the client UI can offer
// "request a new link" instead of claiming the order is missing.
func (s *OrderService) SummaryByLinkToken(ctx context.Context, token string, now time.Time) (*models.OrderSummary, error) {
	order, err := s.DB.GetOrderByLinkToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order.Summary(s.Links.IsUsable(order, now)), nil
}

// SummaryByVerificationToken resolves the permanent read-only tracking view.
func (s *OrderService) SummaryByVerificationToken(ctx context.Context, token string, now time.Time) (*models.OrderSummary, error) {
	order, err := s.DB.GetOrderByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order.Summary(s.Links.IsUsable(order, now)), nil
}

func (s *OrderService) getOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return order, nil
}

// buildPricingInput resolves the package (when one is selected) and returns
// both the calculator input and the snapshot to persist at finalization.
func (s *OrderService) buildPricingInput(ctx context.Context, req models.RecalculateRequest) (*pricing.Input, *models.PackageSnapshot, error) {
	input := &pricing.Input{
		CustomItems:     req.CustomItems,
		AdditionalCosts: req.AdditionalCosts,
		Discount:        req.Discount,
	}

	if req.PackageID == "" {
		return input, nil, nil
	}

	pkg, err := s.DB.GetPackageByID(ctx, req.PackageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("package %s not found", req.PackageID)
		}
		return nil, nil, fmt.Errorf("failed to load package %s: %w", req.PackageID, err)
	}

	input.PackagePrice = pkg.Price
	snapshot := &models.PackageSnapshot{
		PackageID: pkg.PackageID,
		Name:      pkg.Name,
		Price:     pkg.Price,
	}
	return input, snapshot, nil
}

func (s *OrderService) publishOrderEvent(topic string, order *models.Order) {
	value, err := json.Marshal(order)
	if err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to marshal order event: %v", err))
		return
	}
	if err := s.Kafka.Publish(topic, order.OrderID, value); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Kafka publish error (%s): %v", topic, err))
	}
}
