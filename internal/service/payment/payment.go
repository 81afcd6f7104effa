package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/apperr"
	"github.com/carelink/carelink_backend/pkg/billing"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreatePaymentRequest struct {
	// Amount is in major units, e.g. 49.99.
	Amount      float64
	Description string
	Metadata    map[string]any
}

type CreateSubscriptionRequest struct {
	// PriceAmount is in minor units, e.g. 999 for 9.99.
	PriceAmount int64
	Interval    string
	Description string
}

// SubscriptionStatus is always built from a live processor lookup.
type SubscriptionStatus struct {
	Subscribed bool       `json:"subscribed"`
	Tier       *string    `json:"subscription_tier"`
	End        *time.Time `json:"subscription_end"`
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type OrderStore interface {
	Create(ctx context.Context, o *repo.Order) error
	GetBySession(ctx context.Context, sessionID string) (*repo.Order, error)
	TransitionBySession(ctx context.Context, sessionID string, from, to repo.OrderStatus) (bool, error)
}

type SubscriberStore interface {
	Upsert(ctx context.Context, sub *repo.Subscriber) error
}

type Service interface {
	// CreatePayment opens a one-off checkout and records a pending order.
	// A nil caller pays as a guest when guest payments are enabled.
	CreatePayment(ctx context.Context, caller *role.Session, req CreatePaymentRequest) (checkoutURL string, err error)
	CreateSubscription(ctx context.Context, caller *role.Session, req CreateSubscriptionRequest) (checkoutURL string, err error)
	CheckSubscription(ctx context.Context, caller *role.Session) (*SubscriptionStatus, error)
	OpenCustomerPortal(ctx context.Context, caller *role.Session) (portalURL string, err error)
	// HandleWebhook settles pending orders from verified checkout events.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type paymentService struct {
	orders      OrderStore
	subscribers SubscriberStore
	processor   billing.Processor

	stripe     config.StripeConfig
	allowGuest bool
}

func New(orders OrderStore, subscribers SubscriberStore, processor billing.Processor, cfg *config.Config) Service {
	return &paymentService{
		orders:      orders,
		subscribers: subscribers,
		processor:   processor,
		stripe:      cfg.Stripe,
		allowGuest:  cfg.Authentication.AllowGuestPayments,
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, caller *role.Session, req CreatePaymentRequest) (string, error) {
	if !caller.Authenticated() && !s.allowGuest {
		return "", ErrAuthRequired
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return "", ErrInvalidAmount
	}
	minor := int64(math.Round(req.Amount * 100))
	if minor < 1 {
		return "", ErrInvalidAmount
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return "", ErrDescriptionRequired
	}
	if err := ValidateMetadata(req.Metadata); err != nil {
		return "", err
	}

	email := s.stripe.GuestEmail
	if caller.Authenticated() && strings.TrimSpace(caller.Email) != "" {
		email = caller.Email
	}

	order := &repo.Order{
		ID:       uuid.Must(uuid.NewV7()),
		Kind:     repo.OrderKindPayment,
		Amount:   minor,
		Currency: s.stripe.Currency,
		Metadata: req.Metadata,
	}
	if caller.Authenticated() {
		order.UserID = &caller.UserID
	}

	return s.checkout(ctx, order, email, billing.CheckoutRequest{
		Mode:        billing.ModePayment,
		AmountMinor: minor,
		Currency:    s.stripe.Currency,
		Description: desc,
		Metadata:    stringMetadata(req.Metadata),
	})
}

func (s *paymentService) CreateSubscription(ctx context.Context, caller *role.Session, req CreateSubscriptionRequest) (string, error) {
	if err := requireBillingEmail(caller); err != nil {
		return "", err
	}
	if req.PriceAmount <= 0 {
		return "", ErrInvalidAmount
	}
	if req.Interval != "month" && req.Interval != "year" {
		return "", ErrInvalidInterval
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return "", ErrDescriptionRequired
	}

	order := &repo.Order{
		ID:       uuid.Must(uuid.NewV7()),
		UserID:   &caller.UserID,
		Kind:     repo.OrderKindSubscription,
		Amount:   req.PriceAmount,
		Currency: s.stripe.Currency,
		Metadata: map[string]any{"interval": req.Interval},
	}

	return s.checkout(ctx, order, caller.Email, billing.CheckoutRequest{
		Mode:        billing.ModeSubscription,
		AmountMinor: req.PriceAmount,
		Currency:    s.stripe.Currency,
		Description: desc,
		Interval:    req.Interval,
		Metadata:    map[string]string{},
	})
}

// checkout resolves the customer, opens the hosted session and records the
// pending order under the session id. Nothing is retried.
func (s *paymentService) checkout(ctx context.Context, order *repo.Order, email string, req billing.CheckoutRequest) (string, error) {
	customerID, err := s.processor.FindCustomer(ctx, email)
	if err != nil {
		return "", apperr.PaymentProvider(err)
	}

	req.CustomerID = customerID
	if customerID == "" {
		req.CustomerEmail = email
	}
	req.SuccessURL = s.stripe.SuccessURL
	req.CancelURL = s.stripe.CancelURL
	req.Metadata["order_id"] = order.ID.String()
	if order.UserID != nil {
		req.Metadata["user_id"] = order.UserID.String()
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, req)
	if err != nil {
		return "", apperr.PaymentProvider(err)
	}

	order.StripeSessionID = sess.ID
	order.Status = repo.OrderStatusPending
	if err := s.orders.Create(ctx, order); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return sess.URL, nil
}

func (s *paymentService) CheckSubscription(ctx context.Context, caller *role.Session) (*SubscriptionStatus, error) {
	if err := requireBillingEmail(caller); err != nil {
		return nil, err
	}

	status := &SubscriptionStatus{}
	record := &repo.Subscriber{Email: caller.Email, UserID: &caller.UserID}

	customerID, err := s.processor.FindCustomer(ctx, caller.Email)
	if err != nil {
		return nil, apperr.PaymentProvider(err)
	}
	if customerID != "" {
		record.StripeCustomerID = &customerID

		sub, err := s.processor.ActiveSubscription(ctx, customerID)
		if err != nil {
			return nil, apperr.PaymentProvider(err)
		}
		if sub != nil {
			tier := Tier(sub.UnitAmount)
			end := sub.CurrentPeriodEnd
			status = &SubscriptionStatus{Subscribed: true, Tier: &tier, End: &end}
		}
	}

	record.Subscribed = status.Subscribed
	record.SubscriptionTier = status.Tier
	record.SubscriptionEnd = status.End
	if err := s.subscribers.Upsert(ctx, record); err != nil {
		slog.Warn("failed to record subscription check", "user_id", caller.UserID, "error", err)
	}

	return status, nil
}

func (s *paymentService) OpenCustomerPortal(ctx context.Context, caller *role.Session) (string, error) {
	if err := requireBillingEmail(caller); err != nil {
		return "", err
	}

	customerID, err := s.processor.FindCustomer(ctx, caller.Email)
	if err != nil {
		return "", apperr.PaymentProvider(err)
	}
	if customerID == "" {
		return "", ErrNoCustomer
	}

	url, err := s.processor.CreatePortalSession(ctx, customerID, s.stripe.PortalReturnURL)
	if err != nil {
		return "", apperr.PaymentProvider(err)
	}
	return url, nil
}

// requireBillingEmail gates the operations that find the processor customer
// by the caller's email. Subscriber rows are keyed by that email too.
func requireBillingEmail(caller *role.Session) error {
	if !caller.Authenticated() {
		return ErrAuthRequired
	}
	if strings.TrimSpace(caller.Email) == "" {
		return ErrEmailRequired
	}
	return nil
}

// webhookTransitions maps checkout event types to the status a pending
// order moves to.
var webhookTransitions = map[string]repo.OrderStatus{
	"checkout.session.completed":               repo.OrderStatusPaid,
	"checkout.session.async_payment_succeeded": repo.OrderStatusPaid,
	"checkout.session.async_payment_failed":    repo.OrderStatusFailed,
	"checkout.session.expired":                 repo.OrderStatusCancelled,
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			return fmt.Errorf("webhook: %w", err)
		}
		slog.Warn("rejected stripe webhook", "error", err)
		return ErrInvalidWebhook
	}

	to, ok := webhookTransitions[ev.Type]
	if !ok || ev.SessionID == "" {
		slog.Debug("ignoring stripe event", "event_id", ev.ID, "type", ev.Type)
		return nil
	}

	moved, err := s.orders.TransitionBySession(ctx, ev.SessionID, repo.OrderStatusPending, to)
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}
	if !moved {
		s.logUnmatched(ctx, ev)
	}
	return nil
}

// logUnmatched records why an event settled nothing: either the session has
// no order here or its order already left pending.
func (s *paymentService) logUnmatched(ctx context.Context, ev *billing.Event) {
	order, err := s.orders.GetBySession(ctx, ev.SessionID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		slog.Info("stripe event has no matching order", "event_id", ev.ID, "session_id", ev.SessionID, "type", ev.Type)
	case err != nil:
		slog.Warn("failed to look up order for stripe event", "event_id", ev.ID, "session_id", ev.SessionID, "error", err)
	default:
		slog.Info("stripe event for settled order", "event_id", ev.ID, "session_id", ev.SessionID, "type", ev.Type,
			"order_id", order.ID, "status", order.Status)
	}
}

// Tier names the plan behind a monthly unit amount in minor units.
func Tier(unitAmount int64) string {
	switch {
	case unitAmount <= 999:
		return "Basic"
	case unitAmount <= 1999:
		return "Premium"
	default:
		return "Enterprise"
	}
}
