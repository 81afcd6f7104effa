package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const revokedSessionPrefix = "session:revoked:"

// SessionDenylist records auth-provider session ids that were logged out
// before their token expired.
type SessionDenylist struct {
	rdb goredis.UniversalClient
}

func NewSessionDenylist(rdb goredis.UniversalClient) *SessionDenylist {
	return &SessionDenylist{rdb: rdb}
}

// Revoke keeps the entry until the token would have expired anyway.
func (d *SessionDenylist) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return d.rdb.Set(ctx, revokedSessionPrefix+sessionID, 1, ttl).Err()
}

func (d *SessionDenylist) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	err := d.rdb.Get(ctx, revokedSessionPrefix+sessionID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, err
	}
}
