// Package apperr defines the error kinds every service reports and the
// handlers translate into HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers; it is stable API.
type Kind string

const (
	KindAuthorization         Kind = "authorization"
	KindConsentRequired       Kind = "consent_required"
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindPaymentProvider       Kind = "payment_provider"
	KindAIProvider            Kind = "ai_provider"
	KindTranscriptionProvider Kind = "transcription_provider"
)

// Error is a classified application error. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind whose target carries no message,
// so errors.Is(err, apperr.ErrNotFound) works for every not-found error.
// A target with a message must also match the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Kind sentinels for errors.Is.
var (
	ErrAuthorization         = &Error{Kind: KindAuthorization}
	ErrConsentRequired       = &Error{Kind: KindConsentRequired}
	ErrValidation            = &Error{Kind: KindValidation}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrPaymentProvider       = &Error{Kind: KindPaymentProvider}
	ErrAIProvider            = &Error{Kind: KindAIProvider}
	ErrTranscriptionProvider = &Error{Kind: KindTranscriptionProvider}
)

func Authorization(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }
func ConsentRequired(msg string) *Error { return &Error{Kind: KindConsentRequired, Message: msg} }
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// PaymentProvider wraps an upstream payment failure, keeping its message verbatim.
func PaymentProvider(err error) *Error { return provider(KindPaymentProvider, err) }

// AIProvider wraps an upstream generation failure, keeping its message verbatim.
func AIProvider(err error) *Error { return provider(KindAIProvider, err) }

// TranscriptionProvider wraps an upstream speech-to-text failure.
func TranscriptionProvider(err error) *Error { return provider(KindTranscriptionProvider, err) }

func provider(kind Kind, err error) *Error {
	if err == nil {
		err = errors.New(string(kind) + " error")
	}
	// Already classified upstream: keep the original kind and message.
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
