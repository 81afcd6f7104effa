package payment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/apperr"
	"github.com/carelink/carelink_backend/pkg/billing"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockProcessor struct {
	findFn     func(ctx context.Context, email string) (string, error)
	checkoutFn func(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
	activeFn   func(ctx context.Context, customerID string) (*billing.Subscription, error)
	portalFn   func(ctx context.Context, customerID, returnURL string) (string, error)
	webhookFn  func(payload []byte, signature string) (*billing.Event, error)

	findCalls     atomic.Int32
	checkoutCalls atomic.Int32
}

func (m *mockProcessor) FindCustomer(ctx context.Context, email string) (string, error) {
	m.findCalls.Add(1)
	return m.findFn(ctx, email)
}

func (m *mockProcessor) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	m.checkoutCalls.Add(1)
	return m.checkoutFn(ctx, req)
}

func (m *mockProcessor) ActiveSubscription(ctx context.Context, customerID string) (*billing.Subscription, error) {
	return m.activeFn(ctx, customerID)
}

func (m *mockProcessor) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return m.portalFn(ctx, customerID, returnURL)
}

func (m *mockProcessor) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	return m.webhookFn(payload, signature)
}

type mockOrders struct {
	created     []*repo.Order
	transitions []string
	moved       bool
	createErr   error
	bySession   map[string]*repo.Order
	lookups     atomic.Int32
}

func (m *mockOrders) GetBySession(_ context.Context, sessionID string) (*repo.Order, error) {
	m.lookups.Add(1)
	if o, ok := m.bySession[sessionID]; ok {
		return o, nil
	}
	return nil, repo.ErrNotFound
}

func (m *mockOrders) Create(_ context.Context, o *repo.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrders) TransitionBySession(_ context.Context, sessionID string, from, to repo.OrderStatus) (bool, error) {
	m.transitions = append(m.transitions, sessionID+":"+string(from)+"->"+string(to))
	return m.moved, nil
}

type mockSubscribers struct {
	upserts []*repo.Subscriber
	err     error
}

func (m *mockSubscribers) Upsert(_ context.Context, sub *repo.Subscriber) error {
	m.upserts = append(m.upserts, sub)
	return m.err
}

func testConfig() *config.Config {
	return &config.Config{
		Authentication: config.AuthenticationConfig{AllowGuestPayments: true},
		Stripe: config.StripeConfig{
			Currency:        "gbp",
			GuestEmail:      "guest@example.com",
			SuccessURL:      "https://app.test/payment-success",
			CancelURL:       "https://app.test/payment-cancelled",
			PortalReturnURL: "https://app.test/",
		},
	}
}

func okProcessor() *mockProcessor {
	return &mockProcessor{
		findFn: func(context.Context, string) (string, error) { return "cus_123", nil },
		checkoutFn: func(context.Context, billing.CheckoutRequest) (*billing.CheckoutSession, error) {
			return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
		},
	}
}

func patient() *role.Session {
	return &role.Session{UserID: uuid.New(), Email: "pat@example.com"}
}

// ---------------------------------------------------------------------------
// CreatePayment
// ---------------------------------------------------------------------------

func TestCreatePaymentConvertsToMinorUnits(t *testing.T) {
	proc := okProcessor()
	var sent billing.CheckoutRequest
	proc.checkoutFn = func(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
		sent = req
		return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
	}
	orders := &mockOrders{}
	svc := New(orders, &mockSubscribers{}, proc, testConfig())
	caller := patient()

	url, err := svc.CreatePayment(context.Background(), caller, CreatePaymentRequest{
		Amount:      49.99,
		Description: "Blood Test Package",
		Metadata:    map[string]any{"package": "blood"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", url)

	assert.Equal(t, int64(4999), sent.AmountMinor)
	assert.Equal(t, billing.ModePayment, sent.Mode)
	assert.Equal(t, "gbp", sent.Currency)
	assert.Equal(t, "Blood Test Package", sent.Description)
	assert.Equal(t, "cus_123", sent.CustomerID)
	assert.Equal(t, "https://app.test/payment-success", sent.SuccessURL)
	assert.Equal(t, "blood", sent.Metadata["package"])

	require.Len(t, orders.created, 1)
	o := orders.created[0]
	assert.Equal(t, repo.OrderStatusPending, o.Status)
	assert.Equal(t, int64(4999), o.Amount)
	assert.Equal(t, "gbp", o.Currency)
	assert.Equal(t, "cs_test_1", o.StripeSessionID)
	assert.Equal(t, repo.OrderKindPayment, o.Kind)
	require.NotNil(t, o.UserID)
	assert.Equal(t, caller.UserID, *o.UserID)
	assert.Equal(t, o.ID.String(), sent.Metadata["order_id"])
}

func TestCreatePaymentGuest(t *testing.T) {
	proc := okProcessor()
	var email string
	proc.findFn = func(_ context.Context, e string) (string, error) {
		email = e
		return "", nil
	}
	var sent billing.CheckoutRequest
	proc.checkoutFn = func(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
		sent = req
		return &billing.CheckoutSession{ID: "cs_guest", URL: "https://checkout.stripe.test/cs_guest"}, nil
	}
	orders := &mockOrders{}

	_, err := New(orders, &mockSubscribers{}, proc, testConfig()).
		CreatePayment(context.Background(), nil, CreatePaymentRequest{Amount: 10, Description: "Consultation"})
	require.NoError(t, err)

	assert.Equal(t, "guest@example.com", email)
	assert.Empty(t, sent.CustomerID)
	assert.Equal(t, "guest@example.com", sent.CustomerEmail)
	require.Len(t, orders.created, 1)
	assert.Nil(t, orders.created[0].UserID)
}

func TestCreatePaymentGuestDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Authentication.AllowGuestPayments = false
	proc := okProcessor()

	_, err := New(&mockOrders{}, &mockSubscribers{}, proc, cfg).
		CreatePayment(context.Background(), nil, CreatePaymentRequest{Amount: 10, Description: "Consultation"})
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	assert.Equal(t, int32(0), proc.findCalls.Load())
}

func TestCreatePaymentValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreatePaymentRequest
	}{
		{"zero amount", CreatePaymentRequest{Amount: 0, Description: "x"}},
		{"negative amount", CreatePaymentRequest{Amount: -5, Description: "x"}},
		{"rounds to zero", CreatePaymentRequest{Amount: 0.001, Description: "x"}},
		{"missing description", CreatePaymentRequest{Amount: 5, Description: "  "}},
		{"nested metadata", CreatePaymentRequest{Amount: 5, Description: "x", Metadata: map[string]any{"a": map[string]any{"b": 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := okProcessor()
			orders := &mockOrders{}
			_, err := New(orders, &mockSubscribers{}, proc, testConfig()).CreatePayment(context.Background(), patient(), tt.req)
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Equal(t, int32(0), proc.checkoutCalls.Load())
			assert.Empty(t, orders.created)
		})
	}
}

func TestCreatePaymentProviderError(t *testing.T) {
	proc := okProcessor()
	proc.checkoutFn = func(context.Context, billing.CheckoutRequest) (*billing.CheckoutSession, error) {
		return nil, errors.New("Your card was declined.")
	}
	orders := &mockOrders{}

	_, err := New(orders, &mockSubscribers{}, proc, testConfig()).
		CreatePayment(context.Background(), patient(), CreatePaymentRequest{Amount: 20, Description: "x"})
	require.ErrorIs(t, err, apperr.ErrPaymentProvider)
	assert.Equal(t, "Your card was declined.", err.Error())
	assert.Empty(t, orders.created)
	assert.Equal(t, int32(1), proc.checkoutCalls.Load())
}

// ---------------------------------------------------------------------------
// CreateSubscription
// ---------------------------------------------------------------------------

func TestCreateSubscription(t *testing.T) {
	proc := okProcessor()
	var sent billing.CheckoutRequest
	proc.checkoutFn = func(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
		sent = req
		return &billing.CheckoutSession{ID: "cs_sub", URL: "https://checkout.stripe.test/cs_sub"}, nil
	}
	orders := &mockOrders{}

	url, err := New(orders, &mockSubscribers{}, proc, testConfig()).CreateSubscription(context.Background(), patient(),
		CreateSubscriptionRequest{PriceAmount: 1499, Interval: "month", Description: "Premium plan"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_sub", url)

	assert.Equal(t, billing.ModeSubscription, sent.Mode)
	assert.Equal(t, int64(1499), sent.AmountMinor)
	assert.Equal(t, "month", sent.Interval)

	require.Len(t, orders.created, 1)
	assert.Equal(t, repo.OrderKindSubscription, orders.created[0].Kind)
	assert.Equal(t, int64(1499), orders.created[0].Amount)
}

func TestCreateSubscriptionRejects(t *testing.T) {
	svc := New(&mockOrders{}, &mockSubscribers{}, okProcessor(), testConfig())
	ctx := context.Background()

	_, err := svc.CreateSubscription(ctx, nil, CreateSubscriptionRequest{PriceAmount: 999, Interval: "month", Description: "x"})
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = svc.CreateSubscription(ctx, patient(), CreateSubscriptionRequest{PriceAmount: 999, Interval: "week", Description: "x"})
	require.ErrorIs(t, err, ErrInvalidInterval)

	_, err = svc.CreateSubscription(ctx, patient(), CreateSubscriptionRequest{PriceAmount: 0, Interval: "year", Description: "x"})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

// ---------------------------------------------------------------------------
// CheckSubscription / portal
// ---------------------------------------------------------------------------

func TestCheckSubscriptionActive(t *testing.T) {
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	proc := okProcessor()
	proc.activeFn = func(_ context.Context, customerID string) (*billing.Subscription, error) {
		assert.Equal(t, "cus_123", customerID)
		return &billing.Subscription{ID: "sub_1", UnitAmount: 1999, CurrentPeriodEnd: end}, nil
	}
	subs := &mockSubscribers{}

	status, err := New(&mockOrders{}, subs, proc, testConfig()).CheckSubscription(context.Background(), patient())
	require.NoError(t, err)
	assert.True(t, status.Subscribed)
	require.NotNil(t, status.Tier)
	assert.Equal(t, "Premium", *status.Tier)
	assert.Equal(t, end, *status.End)

	require.Len(t, subs.upserts, 1)
	assert.True(t, subs.upserts[0].Subscribed)
	assert.Equal(t, "cus_123", *subs.upserts[0].StripeCustomerID)
}

func TestCheckSubscriptionNoCustomer(t *testing.T) {
	proc := okProcessor()
	proc.findFn = func(context.Context, string) (string, error) { return "", nil }
	subs := &mockSubscribers{err: errors.New("db down")}

	status, err := New(&mockOrders{}, subs, proc, testConfig()).CheckSubscription(context.Background(), patient())
	require.NoError(t, err)
	assert.False(t, status.Subscribed)
	assert.Nil(t, status.Tier)
	assert.Nil(t, status.End)
	assert.Len(t, subs.upserts, 1)
}

func TestCheckSubscriptionIsLive(t *testing.T) {
	proc := okProcessor()
	proc.activeFn = func(context.Context, string) (*billing.Subscription, error) { return nil, nil }
	svc := New(&mockOrders{}, &mockSubscribers{}, proc, testConfig())
	caller := patient()

	for range 3 {
		_, err := svc.CheckSubscription(context.Background(), caller)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), proc.findCalls.Load())
}

func TestOpenCustomerPortal(t *testing.T) {
	proc := okProcessor()
	proc.portalFn = func(_ context.Context, customerID, returnURL string) (string, error) {
		assert.Equal(t, "cus_123", customerID)
		assert.Equal(t, "https://app.test/", returnURL)
		return "https://billing.stripe.test/p/session", nil
	}
	svc := New(&mockOrders{}, &mockSubscribers{}, proc, testConfig())

	url, err := svc.OpenCustomerPortal(context.Background(), patient())
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/p/session", url)

	_, err = svc.OpenCustomerPortal(context.Background(), nil)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestBillingNeedsAccountEmail(t *testing.T) {
	proc := okProcessor()
	proc.portalFn = func(context.Context, string, string) (string, error) {
		t.Fatal("portal must not be opened without an email")
		return "", nil
	}
	subs := &mockSubscribers{}
	svc := New(&mockOrders{}, subs, proc, testConfig())
	ctx := context.Background()

	for _, caller := range []*role.Session{
		{UserID: uuid.New()},
		{UserID: uuid.New(), Email: "  "},
	} {
		_, err := svc.CheckSubscription(ctx, caller)
		require.ErrorIs(t, err, apperr.ErrAuthorization)
		assert.ErrorIs(t, err, ErrEmailRequired)

		_, err = svc.OpenCustomerPortal(ctx, caller)
		require.ErrorIs(t, err, apperr.ErrAuthorization)

		_, err = svc.CreateSubscription(ctx, caller, CreateSubscriptionRequest{PriceAmount: 999, Interval: "month", Description: "Premium"})
		require.ErrorIs(t, err, apperr.ErrAuthorization)
	}

	assert.Equal(t, int32(0), proc.findCalls.Load())
	assert.Equal(t, int32(0), proc.checkoutCalls.Load())
	assert.Empty(t, subs.upserts)
}

func TestTier(t *testing.T) {
	assert.Equal(t, "Basic", Tier(999))
	assert.Equal(t, "Premium", Tier(1000))
	assert.Equal(t, "Premium", Tier(1999))
	assert.Equal(t, "Enterprise", Tier(2000))
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

func TestHandleWebhookTransitions(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{"checkout.session.completed", "cs_1:pending->paid"},
		{"checkout.session.expired", "cs_1:pending->cancelled"},
		{"checkout.session.async_payment_failed", "cs_1:pending->failed"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			proc := okProcessor()
			proc.webhookFn = func([]byte, string) (*billing.Event, error) {
				return &billing.Event{ID: "evt_1", Type: tt.eventType, SessionID: "cs_1"}, nil
			}
			orders := &mockOrders{moved: true}

			err := New(orders, &mockSubscribers{}, proc, testConfig()).HandleWebhook(context.Background(), []byte("{}"), "sig")
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, orders.transitions)
		})
	}
}

func TestHandleWebhookUnmatchedLooksUpOrder(t *testing.T) {
	proc := okProcessor()
	proc.webhookFn = func([]byte, string) (*billing.Event, error) {
		return &billing.Event{ID: "evt_3", Type: "checkout.session.completed", SessionID: "cs_paid"}, nil
	}
	orders := &mockOrders{
		moved:     false,
		bySession: map[string]*repo.Order{"cs_paid": {ID: uuid.New(), Status: repo.OrderStatusPaid}},
	}
	svc := New(orders, &mockSubscribers{}, proc, testConfig())

	require.NoError(t, svc.HandleWebhook(context.Background(), nil, "sig"))
	assert.Equal(t, int32(1), orders.lookups.Load())

	// A session with no order at all is logged, not an error.
	orders.bySession = nil
	require.NoError(t, svc.HandleWebhook(context.Background(), nil, "sig"))
	assert.Equal(t, int32(2), orders.lookups.Load())
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	proc := okProcessor()
	proc.webhookFn = func([]byte, string) (*billing.Event, error) {
		return &billing.Event{ID: "evt_2", Type: "invoice.paid"}, nil
	}
	orders := &mockOrders{}

	require.NoError(t, New(orders, &mockSubscribers{}, proc, testConfig()).HandleWebhook(context.Background(), nil, "sig"))
	assert.Empty(t, orders.transitions)
}

func TestHandleWebhookBadSignature(t *testing.T) {
	proc := okProcessor()
	proc.webhookFn = func([]byte, string) (*billing.Event, error) {
		return nil, billing.ErrInvalidSignature
	}

	err := New(&mockOrders{}, &mockSubscribers{}, proc, testConfig()).HandleWebhook(context.Background(), nil, "bad")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

// ---------------------------------------------------------------------------
// Metadata
// ---------------------------------------------------------------------------

func TestValidateMetadata(t *testing.T) {
	require.NoError(t, ValidateMetadata(nil))
	require.NoError(t, ValidateMetadata(map[string]any{"a": "x", "b": 1.5, "c": true, "d": nil}))

	tooMany := map[string]any{}
	for i := range 21 {
		tooMany[uuid.NewString()[:8]+string(rune('a'+i))] = i
	}
	require.ErrorIs(t, ValidateMetadata(tooMany), apperr.ErrValidation)

	require.Error(t, ValidateMetadata(map[string]any{"": "x"}))
	require.Error(t, ValidateMetadata(map[string]any{"k": []any{1}}))
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	require.Error(t, ValidateMetadata(map[string]any{"k": string(long)}))
}
