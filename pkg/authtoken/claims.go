package authtoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload of an access token minted by the hosted auth provider.
type Claims struct {
	jwt.RegisteredClaims

	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`

	// UserID is parsed from the subject during verification.
	UserID uuid.UUID `json:"-"`
}

func (c *Claims) GetUserID() uuid.UUID { return c.UserID }
func (c *Claims) GetEmail() string { return c.Email }
func (c *Claims) GetSessionID() string { return c.SessionID }

func (c *Claims) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().After(c.ExpiresAt.Time)
}

// TTL returns how long the token stays valid, or zero once expired.
func (c *Claims) TTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := time.Until(c.ExpiresAt.Time)
	if d < 0 {
		return 0
	}
	return d
}
