// Package repo is the PostgreSQL store. Queries are built with ent's SQL
// dialect builder and run over an ent dialect.Driver.
package repo

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("repo: not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Client groups the per-table stores.
type Client struct {
	driver dialect.Driver

	Profile    *ProfileStore
	Result     *ResultStore
	Order      *OrderStore
	Message    *MessageStore
	Subscriber *SubscriberStore
	Schema     *Schema
}

func NewClient(drv dialect.Driver) *Client {
	return &Client{
		driver:     drv,
		Profile:    &ProfileStore{drv: drv},
		Result:     &ResultStore{drv: drv},
		Order:      &OrderStore{drv: drv},
		Message:    &MessageStore{drv: drv},
		Subscriber: &SubscriberStore{drv: drv},
		Schema:     &Schema{drv: drv},
	}
}

func (c *Client) Close() error {
	return c.driver.Close()
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

// newID returns a time-ordered UUIDv7.
func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id
}

func queryAll[T any](ctx context.Context, drv dialect.Driver, q string, args []any, scan func(entsql.ColumnScanner) (*T, error)) ([]*T, error) {
	var rows entsql.Rows
	if err := drv.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func queryOne[T any](ctx context.Context, drv dialect.Driver, q string, args []any, scan func(entsql.ColumnScanner) (*T, error)) (*T, error) {
	all, err := queryAll(ctx, drv, q, args, scan)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[0], nil
}

func execAffected(ctx context.Context, drv dialect.Driver, q string, args []any) (int64, error) {
	var res entsql.Result
	if err := drv.Exec(ctx, q, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func stringPtr(n entsql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}
