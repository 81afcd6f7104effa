package repo

import (
	"context"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Subscriber mirrors the last live subscription check for an email. It is
// written for reconciliation and reporting only.
type Subscriber struct {
	Email            string
	UserID           *uuid.UUID
	StripeCustomerID *string
	Subscribed       bool
	SubscriptionTier *string
	SubscriptionEnd  *time.Time
	UpdatedAt        time.Time
}

type SubscriberStore struct {
	drv dialect.Driver
}

func (s *SubscriberStore) Upsert(ctx context.Context, sub *Subscriber) error {
	sub.UpdatedAt = time.Now().UTC()

	q, args := builder().Insert(subscribersTable).
		Columns("email", "user_id", "stripe_customer_id", "subscribed", "subscription_tier", "subscription_end", "updated_at").
		Values(sub.Email, nullUUID(sub.UserID), sub.StripeCustomerID, sub.Subscribed, sub.SubscriptionTier, sub.SubscriptionEnd, sub.UpdatedAt).
		OnConflict(entsql.ConflictColumns("email"), entsql.ResolveWithNewValues()).
		Query()
	_, err := execAffected(ctx, s.drv, q, args)
	return err
}
