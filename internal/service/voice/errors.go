package voice

import "github.com/carelink/carelink_backend/pkg/apperr"

// FallbackMessage is shown to the user whenever transcription fails.
const FallbackMessage = "Voice transcription failed. Please try typing your message instead."

var (
	ErrAuthRequired  = apperr.Authorization("sign in to use voice input")
	ErrAudioRequired = apperr.Validation("audio is required")
	ErrInvalidAudio  = apperr.Validation("audio must be base64 encoded")
	ErrAudioTooLarge = apperr.Validation("audio exceeds 25 MiB")
)
