package order_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-backoffice/internal/logger"
	"ms-backoffice/internal/models"
	"ms-backoffice/internal/order"
	"ms-backoffice/internal/order/paymentlink"
)

// Mock implementations

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) UpsertClientByEmail(ctx context.Context, client models.Client) (*models.Client, error) {
	args := m.Called(ctx, client)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *MockDBLayer) GetPackageByID(ctx context.Context, id string) (*models.Package, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Package), args.Error(1)
}

func (m *MockDBLayer) CreateOrder(ctx context.Context, o models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrderByLinkToken(ctx context.Context, token string) (*models.Order, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrderByVerificationToken(ctx context.Context, token string) (*models.Order, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) FinalizeOrder(ctx context.Context, o models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, now time.Time) error {
	args := m.Called(ctx, orderID, status, now)
	return args.Error(0)
}

func (m *MockDBLayer) ListProofsByOrder(ctx context.Context, orderID string) ([]models.PaymentProof, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PaymentProof), args.Error(1)
}

type MockLinkManager struct {
	mock.Mock
}

func (m *MockLinkManager) Issue(ctx context.Context, o *models.Order, hoursValid int, now time.Time) (*paymentlink.IssuedLink, error) {
	args := m.Called(ctx, o, hoursValid, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentlink.IssuedLink), args.Error(1)
}

func (m *MockLinkManager) IsUsable(o *models.Order, now time.Time) bool {
	args := m.Called(o, now)
	return args.Bool(0)
}

func (m *MockLinkManager) Deactivate(ctx context.Context, o *models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

type MockKafka struct {
	mock.Mock
}

func (m *MockKafka) Publish(topic string, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

func newTestService() (*order.OrderService, *MockDBLayer, *MockLinkManager, *MockKafka) {
	dbl := new(MockDBLayer)
	links := new(MockLinkManager)
	kafka := new(MockKafka)
	svc := order.NewOrderService(dbl, links, kafka, logger.NewLogger())
	return svc, dbl, links, kafka
}

func TestCreateOrder_OpensNegotiableDraft(t *testing.T) {
	svc, dbl, _, kafka := newTestService()
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	dbl.On("UpsertClientByEmail", mock.Anything, mock.MatchedBy(func(c models.Client) bool {
		return c.Email == "budi@example.com" && c.Name == "Budi Santoso"
	})).Return(&models.Client{ClientID: "client-1", Name: "Budi Santoso", Email: "budi@example.com"}, nil)

	var created models.Order
	dbl.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		created = o
		return true
	})).Return(nil)
	kafka.On("Publish", order.TopicOrderCreated, mock.Anything, mock.Anything).Return(nil)

	got, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		ClientName:  "Budi Santoso",
		ClientEmail: "budi@example.com",
		EventDate:   now.AddDate(0, 3, 0),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, models.PaymentUnpaid, created.PaymentStatus)
	assert.True(t, created.IsNegotiable)
	assert.Equal(t, "client-1", created.ClientID)
	assert.NotEmpty(t, created.OrderID)
	assert.NotEmpty(t, created.VerificationToken)
	assert.Contains(t, created.OrderNumber, "ORD-20260815-")
	assert.Equal(t, created.OrderID, got.OrderID)
	kafka.AssertExpectations(t)
}

func TestCreateOrder_RequiresClientIdentity(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{ClientName: "Budi Santoso"}, time.Now())
	assert.ErrorIs(t, err, order.ErrClientRequired)

	_, err = svc.CreateOrder(context.Background(), models.CreateOrderRequest{ClientEmail: "budi@example.com"}, time.Now())
	assert.ErrorIs(t, err, order.ErrClientRequired)
}

func TestRecalculate_PreviewsWithoutPersisting(t *testing.T) {
	svc, dbl, _, _ := newTestService()

	dbl.On("GetOrderByID", mock.Anything, "order-1").
		Return(&models.Order{OrderID: "order-1", IsNegotiable: true, Status: models.StatusPending}, nil)
	dbl.On("GetPackageByID", mock.Anything, "pkg-1").
		Return(&models.Package{PackageID: "pkg-1", Name: "Gold Wedding", Price: 80_000_000}, nil)

	quote, err := svc.Recalculate(context.Background(), "order-1", models.RecalculateRequest{
		PackageID: "pkg-1",
		CustomItems: []models.CustomItem{
			{Name: "Extra decoration", UnitPrice: 5_000_000, Quantity: 2},
			{Name: "Photo booth", UnitPrice: 5_000_000, Quantity: 1},
		},
		AdditionalCosts: 5_000_000,
		Discount:        10_000_000,
	})
	require.NoError(t, err)

	assert.Equal(t, 100_000_000.0, quote.TotalPrice)
	assert.Equal(t, 90_000_000.0, quote.FinalPrice)
	assert.Equal(t, 27_000_000.0, quote.DPAmount)
	dbl.AssertNotCalled(t, "FinalizeOrder", mock.Anything, mock.Anything)
}

func TestRecalculate_RefusesFinalizedOrder(t *testing.T) {
	svc, dbl, _, _ := newTestService()

	dbl.On("GetOrderByID", mock.Anything, "order-1").
		Return(&models.Order{OrderID: "order-1", IsNegotiable: false, Status: models.StatusAwaitingDP}, nil)

	_, err := svc.Recalculate(context.Background(), "order-1", models.RecalculateRequest{})
	assert.ErrorIs(t, err, order.ErrNotNegotiable)
}

func TestFinalizeNegotiation_DPPlan(t *testing.T) {
	svc, dbl, _, kafka := newTestService()
	now := time.Now()

	dbl.On("GetOrderByID", mock.Anything, "order-1").
		Return(&models.Order{OrderID: "order-1", IsNegotiable: true, Status: models.StatusPending}, nil)
	dbl.On("GetPackageByID", mock.Anything, "pkg-1").
		Return(&models.Package{PackageID: "pkg-1", Name: "Gold Wedding", Price: 90_000_000}, nil)

	var committed models.Order
	dbl.On("FinalizeOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		committed = o
		return true
	})).Return(nil)
	kafka.On("Publish", order.TopicOrderFinalized, "order-1", mock.Anything).Return(nil)

	got, err := svc.FinalizeNegotiation(context.Background(), "order-1", models.FinalizeRequest{
		RecalculateRequest: models.RecalculateRequest{PackageID: "pkg-1"},
		PaymentPlan:        models.PaymentTypeDP,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusAwaitingDP, committed.Status)
	assert.False(t, committed.IsNegotiable)
	assert.Equal(t, 90_000_000.0, committed.FinalPrice)
	assert.Equal(t, 27_000_000.0, committed.DPAmount)
	// Nothing verified yet: the whole final price is outstanding, not
	// final minus the projected down payment.
	assert.Equal(t, 90_000_000.0, committed.RemainingAmount)
	require.NotNil(t, committed.NegotiatedAt)
	require.NotNil(t, committed.PackageDetails)
	assert.Equal(t, "Gold Wedding", committed.PackageDetails.Name)
	assert.Equal(t, models.StatusAwaitingDP, got.Status)
}

func TestFinalizeNegotiation_FullPlan(t *testing.T) {
	svc, dbl, _, kafka := newTestService()

	dbl.On("GetOrderByID", mock.Anything, "order-1").
		Return(&models.Order{OrderID: "order-1", IsNegotiable: true, Status: models.StatusNegotiation}, nil)
	dbl.On("FinalizeOrder", mock.Anything, mock.Anything).Return(nil)
	kafka.On("Publish", order.TopicOrderFinalized, "order-1", mock.Anything).Return(nil)

	got, err := svc.FinalizeNegotiation(context.Background(), "order-1", models.FinalizeRequest{
		RecalculateRequest: models.RecalculateRequest{
			CustomItems: []models.CustomItem{{Name: "Catering", UnitPrice: 100_000, Quantity: 200}},
		},
		PaymentPlan: models.PaymentTypeFull,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingFull, got.Status)
	assert.Equal(t, 20_000_000.0, got.FinalPrice)
}

func TestFinalizeNegotiation_DropsInvalidItems(t *testing.T) {
	svc, dbl, _, kafka := newTestService()

	dbl.On("GetOrderByID", mock.Anything, "order-1").
		Return(&models.Order{OrderID: "order-1", IsNegotiable: true, Status: models.StatusPending}, nil)
	dbl.On("FinalizeOrder", mock.Anything, mock.Anything).Return(nil)
	kafka.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	got, err := svc.FinalizeNegotiation(context.Background(), "order-1", models.FinalizeRequest{
		RecalculateRequest: models.RecalculateRequest{
			CustomItems: []models.CustomItem{
				{Name: "", UnitPrice: 100, Quantity: 1},
				{Name: "Kept", UnitPrice: 100, Quantity: 1},
			},
		},
		PaymentPlan: models.PaymentTypeDP,
	}, time.Now())
	require.NoError(t, err)
	require.Len(t, got.CustomItems, 1)
	assert.Equal(t, "Kept", got.CustomItems[0].Name)
}

func TestFinalizeNegotiation_RefusesSecondFinalize(t *testing.T) {
	svc, dbl, _, _ := newTestService()

	dbl.On("GetOrderByID", mock.Anything, "order-1").
		Return(&models.Order{OrderID: "order-1", IsNegotiable: false, Status: models.StatusAwaitingDP}, nil)

	_, err := svc.FinalizeNegotiation(context.Background(), "order-1", models.FinalizeRequest{
		PaymentPlan: models.PaymentTypeDP,
	}, time.Now())
	assert.ErrorIs(t, err, order.ErrNotNegotiable)
}

func TestIssuePaymentLink_ReturnsLinkAndQR(t *testing.T) {
	svc, dbl, links, kafka := newTestService()
	now := time.Now()
	o := &models.Order{OrderID: "order-1", Status: models.StatusAwaitingDP}

	dbl.On("GetOrderByID", mock.Anything, "order-1").Return(o, nil)
	links.On("Issue", mock.Anything, o, 24, now).Return(&paymentlink.IssuedLink{
		Token:     "tok-1",
		URL:       "https://pay.example.com/payment/tok-1",
		ExpiresAt: now.Add(24 * time.Hour),
	}, nil)
	kafka.On("Publish", order.TopicLinkIssued, "order-1", mock.Anything).Return(nil)

	resp, err := svc.IssuePaymentLink(context.Background(), "order-1", 24, now)
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example.com/payment/tok-1", resp.Link)
	assert.Equal(t, now.Add(24*time.Hour), resp.ExpiresAt)
	assert.NotEmpty(t, resp.QRCode)
}

func TestIssuePaymentLink_PropagatesManagerRefusal(t *testing.T) {
	svc, dbl, links, _ := newTestService()
	now := time.Now()
	o := &models.Order{OrderID: "order-1", Status: models.StatusCompleted}

	dbl.On("GetOrderByID", mock.Anything, "order-1").Return(o, nil)
	links.On("Issue", mock.Anything, o, 0, now).Return(nil, paymentlink.ErrOrderTerminal)

	_, err := svc.IssuePaymentLink(context.Background(), "order-1", 0, now)
	assert.ErrorIs(t, err, paymentlink.ErrOrderTerminal)
}

func TestCancelOrder(t *testing.T) {
	svc, dbl, links, kafka := newTestService()
	now := time.Now()
	o := &models.Order{OrderID: "order-1", Status: models.StatusAwaitingDP}

	dbl.On("GetOrderByID", mock.Anything, "order-1").Return(o, nil)
	dbl.On("UpdateOrderStatus", mock.Anything, "order-1", models.StatusCancelled, now).Return(nil)
	links.On("Deactivate", mock.Anything, o).Return(nil)
	kafka.On("Publish", order.TopicOrderCancelled, "order-1", mock.Anything).Return(nil)

	require.NoError(t, svc.CancelOrder(context.Background(), "order-1", "admin-1", now))
	dbl.AssertExpectations(t)
	links.AssertExpectations(t)
}

func TestCancelOrder_RefusesTerminalOrder(t *testing.T) {
	svc, dbl, _, _ := newTestService()

	dbl.On("GetOrderByID", mock.Anything, "order-1").
		Return(&models.Order{OrderID: "order-1", Status: models.StatusCompleted}, nil)

	err := svc.CancelOrder(context.Background(), "order-1", "admin-1", time.Now())
	assert.ErrorIs(t, err, order.ErrCannotCancel)
}

func TestSummaryByLinkToken(t *testing.T) {
	svc, dbl, links, _ := newTestService()
	now := time.Now()
	expires := now.Add(-time.Hour)
	o := &models.Order{
		OrderID:              "order-1",
		OrderNumber:          "ORD-20260815-000001",
		Status:               models.StatusAwaitingDP,
		PaymentStatus:        models.PaymentUnpaid,
		FinalPrice:           90_000_000,
		RemainingAmount:      90_000_000,
		PaymentLinkActive:    true,
		PaymentLinkExpiresAt: &expires,
	}

	dbl.On("GetOrderByLinkToken", mock.Anything, "tok-1").Return(o, nil)
	links.On("IsUsable", o, now).Return(false)

	summary, err := svc.SummaryByLinkToken(context.Background(), "tok-1", now)
	require.NoError(t, err)

	// The expired link still resolves, flagged unusable.
	assert.Equal(t, "ORD-20260815-000001", summary.OrderNumber)
	assert.False(t, summary.LinkUsable)
}

func TestSummaryByLinkToken_UnknownToken(t *testing.T) {
	svc, dbl, _, _ := newTestService()
	dbl.On("GetOrderByLinkToken", mock.Anything, "ghost").Return(nil, sql.ErrNoRows)

	_, err := svc.SummaryByLinkToken(context.Background(), "ghost", time.Now())
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestSummaryByVerificationToken(t *testing.T) {
	svc, dbl, links, _ := newTestService()
	now := time.Now()
	o := &models.Order{OrderID: "order-1", OrderNumber: "ORD-20260815-000002", Status: models.StatusConfirmed}

	dbl.On("GetOrderByVerificationToken", mock.Anything, "verif-1").Return(o, nil)
	links.On("IsUsable", o, now).Return(false)

	summary, err := svc.SummaryByVerificationToken(context.Background(), "verif-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, summary.Status)
}
