package llm

import (
	"bytes"
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carelink/carelink_backend/config"
)

// OpenAI serves both Generator and Transcriber.
type OpenAI struct {
	client             *openai.Client
	chatModel          string
	transcriptionModel string
}

var (
	_ Generator   = (*OpenAI)(nil)
	_ Transcriber = (*OpenAI)(nil)
)

func NewOpenAI(cfg config.OpenAIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	sttModel := cfg.TranscriptionModel
	if sttModel == "" {
		sttModel = openai.Whisper1
	}

	return &OpenAI{
		client:             openai.NewClientWithConfig(oc),
		chatModel:          chatModel,
		transcriptionModel: sttModel,
	}
}

func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	req := openai.ChatCompletionRequest{
		Model:       o.chatModel,
		Messages:    msgs,
		Temperature: 0.2,
	}
	if p.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", providerError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe asks for verbose_json so per-segment log probabilities come back.
func (o *OpenAI) Transcribe(ctx context.Context, req TranscriptionRequest) (*Transcription, error) {
	name := req.Filename
	if name == "" {
		name = "audio.webm"
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.transcriptionModel,
		FilePath: name,
		Reader:   bytes.NewReader(req.Audio),
		Language: req.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, providerError(err)
	}

	out := &Transcription{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]Segment, 0, len(resp.Segments)),
	}
	for _, s := range resp.Segments {
		out.Segments = append(out.Segments, Segment{Text: s.Text, AvgLogprob: s.AvgLogprob})
	}
	return out, nil
}

// providerError reduces OpenAI API errors to the provider's own message.
func providerError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}
	return err
}
