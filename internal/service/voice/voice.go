// Package voice turns recorded audio into text and tags it with
// medical-keyword and health-relatedness signals.
package voice

import (
	"context"
	"encoding/base64"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/apperr"
	"github.com/carelink/carelink_backend/pkg/llm"
)

const (
	MaxAudioBytes     = 25 << 20
	DefaultLanguage   = "en"
	DefaultConfidence = 0.8

	audioFilename = "audio.webm"
)

type TranscribeRequest struct {
	// Audio is base64, optionally as a data URL.
	Audio    string
	Language string
}

type Transcript struct {
	Text            string   `json:"text"`
	Language        string   `json:"language"`
	Duration        float64  `json:"duration"`
	Confidence      float64  `json:"confidence"`
	MedicalKeywords []string `json:"medicalKeywords"`
	IsHealthRelated bool     `json:"isHealthRelated"`
	Timestamp       string   `json:"timestamp"`
}

type Service interface {
	Transcribe(ctx context.Context, caller *role.Session, req TranscribeRequest) (*Transcript, error)
}

type voiceService struct {
	stt llm.Transcriber
	now func() time.Time
}

func New(stt llm.Transcriber) Service {
	return &voiceService{stt: stt, now: time.Now}
}

func (s *voiceService) Transcribe(ctx context.Context, caller *role.Session, req TranscribeRequest) (*Transcript, error) {
	if !caller.Authenticated() {
		return nil, ErrAuthRequired
	}

	audio, err := decodeAudio(req.Audio)
	if err != nil {
		return nil, err
	}

	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = DefaultLanguage
	}

	tr, err := s.stt.Transcribe(ctx, llm.TranscriptionRequest{
		Audio:    audio,
		Filename: audioFilename,
		Language: lang,
	})
	if err != nil {
		slog.Warn("transcription failed", "user_id", caller.UserID, "bytes", len(audio), "error", err)
		return nil, apperr.TranscriptionProvider(err)
	}

	// The response echoes the requested code; the provider reports a
	// language name instead.
	return &Transcript{
		Text:            tr.Text,
		Language:        lang,
		Duration:        tr.Duration,
		Confidence:      Confidence(tr.Segments),
		MedicalKeywords: MedicalKeywords(tr.Text),
		IsHealthRelated: IsHealthRelated(tr.Text),
		Timestamp:       s.now().UTC().Format(time.RFC3339),
	}, nil
}

// Confidence maps the mean segment log-probability into [0,1].
func Confidence(segments []llm.Segment) float64 {
	if len(segments) == 0 {
		return DefaultConfidence
	}
	var sum float64
	for _, seg := range segments {
		sum += seg.AvgLogprob
	}
	c := math.Exp(sum / float64(len(segments)))
	return math.Max(0, math.Min(1, c))
}

func decodeAudio(in string) ([]byte, error) {
	in = strings.TrimSpace(in)
	if _, rest, ok := strings.Cut(in, ";base64,"); ok && strings.HasPrefix(in, "data:") {
		in = rest
	}
	if in == "" {
		return nil, ErrAudioRequired
	}
	if base64.StdEncoding.DecodedLen(len(in)) > MaxAudioBytes+3 {
		return nil, ErrAudioTooLarge
	}

	audio, err := base64.StdEncoding.DecodeString(in)
	if err != nil {
		return nil, ErrInvalidAudio
	}
	if len(audio) == 0 {
		return nil, ErrAudioRequired
	}
	if len(audio) > MaxAudioBytes {
		return nil, ErrAudioTooLarge
	}
	return audio, nil
}
