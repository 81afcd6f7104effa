package authtoken

import (
	"errors"
	"fmt"
)

var ErrMissingToken = errors.New("missing bearer token")

type ErrConfig struct{ Msg string }

func (e ErrConfig) Error() string { return "authtoken config error: " + e.Msg }

type ErrInvalidToken struct{ Err error }

func (e ErrInvalidToken) Error() string { return fmt.Sprintf("invalid token: %v", e.Err) }
func (e ErrInvalidToken) Unwrap() error { return e.Err }
