// Package billing talks to Stripe: customer lookup, hosted checkout,
// subscription status, the customer portal and webhook verification.
package billing

import (
	"context"
	"time"
)

type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
)

// CheckoutRequest describes a single-line-item hosted checkout.
type CheckoutRequest struct {
	// CustomerID is used when the email already maps to a Stripe customer;
	// otherwise CustomerEmail lets Stripe create one during checkout.
	CustomerID    string
	CustomerEmail string

	Mode        Mode
	AmountMinor int64
	Currency    string
	Description string
	Interval    string // month or year, subscription mode only

	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Subscription is the first active subscription of a customer.
type Subscription struct {
	ID               string
	UnitAmount       int64
	CurrentPeriodEnd time.Time
}

// Event is a verified webhook event about a checkout session.
type Event struct {
	ID        string
	Type      string
	SessionID string
	Metadata  map[string]string
}

// Processor is the payment-processor surface the payment service uses.
type Processor interface {
	// FindCustomer returns "" when no customer has the email.
	FindCustomer(ctx context.Context, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ActiveSubscription returns nil when the customer has none.
	ActiveSubscription(ctx context.Context, customerID string) (*Subscription, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
