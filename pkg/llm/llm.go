// Package llm wraps the hosted model providers: chat-style text generation
// (OpenAI or Gemini) and Whisper speech-to-text.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/carelink/carelink_backend/config"
)

var ErrEmptyResponse = errors.New("model returned no content")

// Prompt is one single-turn generation request.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider for a JSON-only response.
	JSON bool
}

type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

type TranscriptionRequest struct {
	Audio    []byte
	Filename string // extension tells the provider the container format
	Language string
}

type Segment struct {
	Text       string
	AvgLogprob float64
}

type Transcription struct {
	Text     string
	Language string
	Duration float64
	Segments []Segment
}

type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*Transcription, error)
}

// NewGenerator builds the provider named by ai.provider. The returned close
// func is never nil.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case "", "openai":
		return NewOpenAI(cfg.OpenAI), noop, nil
	case "gemini":
		g, err := NewGemini(ctx, cfg.Gemini)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
