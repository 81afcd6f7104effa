package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/carelink/carelink_backend/config"
)

var (
	ErrNotConfigured    = errors.New("stripe: secret key is not configured")
	ErrInvalidSignature = errors.New("stripe: webhook signature verification failed")
	ErrEmptyEmail       = errors.New("stripe: customer lookup needs an email")
)

// Stripe implements Processor with stripe-go's package-level API.
type Stripe struct {
	webhookSecret string
}

var _ Processor = (*Stripe)(nil)

func NewStripe(cfg config.StripeConfig) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	stripe.Key = cfg.SecretKey
	return &Stripe{webhookSecret: cfg.WebhookSecret}, nil
}

func (s *Stripe) FindCustomer(ctx context.Context, email string) (string, error) {
	// An empty email filter lists every customer on the account.
	if strings.TrimSpace(email) == "" {
		return "", ErrEmptyEmail
	}
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	it := customer.List(params)
	if it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", providerError(err)
	}
	return "", nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	price := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(req.Currency),
		UnitAmount: stripe.Int64(req.AmountMinor),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(req.Description),
		},
	}
	if req.Mode == ModeSubscription {
		price.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(req.Interval),
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(req.Mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{PriceData: price, Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, providerError(err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) ActiveSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	it := subscription.List(params)
	if it.Next() {
		sub := it.Subscription()
		out := &Subscription{ID: sub.ID}
		if sub.Items != nil && len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			if item.Price != nil {
				out.UnitAmount = item.Price.UnitAmount
			}
			out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
		return out, nil
	}
	if err := it.Err(); err != nil {
		return nil, providerError(err)
	}
	return nil, nil
}

func (s *Stripe) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	ps, err := portalsession.New(params)
	if err != nil {
		return "", providerError(err)
	}
	return ps.URL, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events. Other event types come back with an empty SessionID.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if s.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(ev)
}

func decodeEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || ev.Data.Object["object"] != "checkout.session" {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.SessionID = cs.ID
	out.Metadata = cs.Metadata
	return out, nil
}

// providerError keeps Stripe's human-readable message and drops the JSON envelope.
func providerError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return errors.New(se.Msg)
	}
	return err
}
