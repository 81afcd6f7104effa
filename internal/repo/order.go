package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

type OrderKind string

const (
	OrderKindPayment      OrderKind = "payment"
	OrderKindSubscription OrderKind = "subscription"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is one checkout attempt. Status only moves through webhooks.
type Order struct {
	ID              uuid.UUID      `json:"id"`
	StripeSessionID string         `json:"stripe_session_id"`
	UserID          *uuid.UUID     `json:"user_id"`
	Kind            OrderKind      `json:"kind"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Status          OrderStatus    `json:"status"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type OrderStore struct {
	drv dialect.Driver
}

var orderColumns = []string{"id", "stripe_session_id", "user_id", "kind", "amount", "currency", "status", "metadata", "created_at", "updated_at"}

func scanOrder(rows entsql.ColumnScanner) (*Order, error) {
	var (
		o      Order
		userID uuid.NullUUID
		meta   []byte
	)
	if err := rows.Scan(&o.ID, &o.StripeSessionID, &userID, &o.Kind, &o.Amount, &o.Currency, &o.Status, &meta, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.UserID = uuidPtr(userID)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &o.Metadata); err != nil {
			return nil, fmt.Errorf("order metadata: %w", err)
		}
	}
	return &o, nil
}

// Create inserts a pending order. The caller sets ID when the id must be
// known before the row exists (it goes into the checkout session metadata).
func (s *OrderStore) Create(ctx context.Context, o *Order) error {
	now := time.Now().UTC()
	if o.ID == uuid.Nil {
		o.ID = newID()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(o.Metadata)
	if err != nil {
		return fmt.Errorf("order metadata: %w", err)
	}
	o.CreatedAt, o.UpdatedAt = now, now

	q, args := builder().Insert(ordersTable).
		Columns(orderColumns...).
		Values(o.ID, o.StripeSessionID, nullUUID(o.UserID), o.Kind, o.Amount, o.Currency, o.Status, string(meta), o.CreatedAt, o.UpdatedAt).
		Query()
	_, err = execAffected(ctx, s.drv, q, args)
	return err
}

func (s *OrderStore) GetBySession(ctx context.Context, sessionID string) (*Order, error) {
	q, args := builder().Select(orderColumns...).
		From(builder().Table(ordersTable)).
		Where(entsql.EQ("stripe_session_id", sessionID)).
		Query()
	return queryOne(ctx, s.drv, q, args, scanOrder)
}

// TransitionBySession moves an order from one status to another. It returns
// false when no order in status from has that session id.
func (s *OrderStore) TransitionBySession(ctx context.Context, sessionID string, from, to OrderStatus) (bool, error) {
	q, args := builder().Update(ordersTable).
		Set("status", to).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("stripe_session_id", sessionID),
			entsql.EQ("status", from),
		)).
		Query()
	n, err := execAffected(ctx, s.drv, q, args)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
