package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := NotFound("message not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))

	wrapped := fmt.Errorf("mark read: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestIsWithMessageSentinel(t *testing.T) {
	sentinel := Authorization("not staff")

	assert.True(t, errors.Is(Authorization("not staff"), sentinel))
	assert.False(t, errors.Is(Authorization("not signed in"), sentinel))
	// Kind-only sentinel still matches.
	assert.True(t, errors.Is(sentinel, ErrAuthorization))
}

func TestProviderPassesMessageThrough(t *testing.T) {
	upstream := errors.New("card_declined: Your card was declined.")
	err := PaymentProvider(upstream)

	assert.Equal(t, "card_declined: Your card was declined.", err.Error())
	assert.ErrorIs(t, err, upstream)
	assert.ErrorIs(t, err, ErrPaymentProvider)
}

func TestProviderKeepsExistingClassification(t *testing.T) {
	err := AIProvider(Validation("result has no values"))
	assert.Equal(t, KindValidation, err.Kind)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}
