// Package insight generates AI artifacts for test results: a plain-language
// summary and a list of risk flags. Both are staff-only and gated on the
// patient's consent, read at call time.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/apperr"
	"github.com/carelink/carelink_backend/pkg/llm"
	"github.com/carelink/carelink_backend/pkg/observability"
)

type ArtifactKind string

const (
	ArtifactSummary   ArtifactKind = "summary"
	ArtifactRiskFlags ArtifactKind = "risk_flags"
)

// SubjectArtifact is published with the result id after an artifact is
// written. The artifact kind is appended as the last token.
const SubjectArtifact = "carelink.result.artifact"

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type ResultStore interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.Result, error)
	SetSummary(ctx context.Context, id uuid.UUID, summary string, at time.Time) error
	SetRiskFlags(ctx context.Context, id uuid.UUID, flags json.RawMessage, at time.Time) error
}

// ConsentReader is satisfied by the consent service.
type ConsentReader interface {
	Get(ctx context.Context, caller *role.Session, userID uuid.UUID) (bool, error)
}

type Publisher interface {
	Publish(subject string, data []byte) error
}

type Service interface {
	// GenerateSummary attaches a fresh summary to the result, replacing any
	// earlier one.
	GenerateSummary(ctx context.Context, caller *role.Session, resultID uuid.UUID) error
	// GenerateRiskFlags attaches a fresh risk-flag list to the result,
	// replacing any earlier one.
	GenerateRiskFlags(ctx context.Context, caller *role.Session, resultID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type insightService struct {
	results   ResultStore
	consent   ConsentReader
	generator llm.Generator
	events    Publisher
	tracer    trace.Tracer
	now       func() time.Time
}

func New(results ResultStore, consent ConsentReader, generator llm.Generator, events Publisher) Service {
	return &insightService{
		results:   results,
		consent:   consent,
		generator: generator,
		events:    events,
		tracer:    observability.Tracer(),
		now:       time.Now,
	}
}

func (s *insightService) GenerateSummary(ctx context.Context, caller *role.Session, resultID uuid.UUID) (err error) {
	ctx, end := s.span(ctx, "insight.GenerateSummary", resultID)
	defer func() { end(err) }()

	result, err := s.authorize(ctx, caller, resultID)
	if err != nil {
		return err
	}

	out, err := s.generator.Generate(ctx, summaryPrompt(result))
	if err != nil {
		slog.Warn("summary generation failed", "result_id", resultID, "error", err)
		return apperr.AIProvider(err)
	}
	summary := strings.TrimSpace(out)
	if summary == "" {
		return apperr.AIProvider(llm.ErrEmptyResponse)
	}

	if err := s.results.SetSummary(ctx, resultID, summary, s.now().UTC()); err != nil {
		return storeError("store summary", err)
	}
	s.publish(ArtifactSummary, resultID)
	return nil
}

func (s *insightService) GenerateRiskFlags(ctx context.Context, caller *role.Session, resultID uuid.UUID) (err error) {
	ctx, end := s.span(ctx, "insight.GenerateRiskFlags", resultID)
	defer func() { end(err) }()

	result, err := s.authorize(ctx, caller, resultID)
	if err != nil {
		return err
	}

	out, err := s.generator.Generate(ctx, riskFlagsPrompt(result))
	if err != nil {
		slog.Warn("risk flag generation failed", "result_id", resultID, "error", err)
		return apperr.AIProvider(err)
	}
	flags, err := ParseRiskFlags(out)
	if err != nil {
		slog.Warn("unusable risk flag response", "result_id", resultID, "error", err)
		return apperr.AIProvider(err)
	}

	raw, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encode risk flags: %w", err)
	}
	if err := s.results.SetRiskFlags(ctx, resultID, raw, s.now().UTC()); err != nil {
		return storeError("store risk flags", err)
	}
	s.publish(ArtifactRiskFlags, resultID)
	return nil
}

// authorize requires a staff caller, then an existing result whose patient
// has consented. Nothing reaches the model provider unless it passes.
func (s *insightService) authorize(ctx context.Context, caller *role.Session, resultID uuid.UUID) (*repo.Result, error) {
	if !caller.IsStaff() {
		return nil, ErrNotStaff
	}

	result, err := s.results.Get(ctx, resultID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}

	granted, err := s.consent.Get(ctx, caller, result.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check consent: %w", err)
	}
	if !granted {
		return nil, ErrConsentRequired
	}
	return result, nil
}

// storeError reports a result removed while its artifact was generated as
// not found.
func storeError(op string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrResultNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *insightService) publish(kind ArtifactKind, resultID uuid.UUID) {
	if s.events == nil {
		return
	}
	subject := fmt.Sprintf("%s.%s", SubjectArtifact, kind)
	if err := s.events.Publish(subject, []byte(resultID.String())); err != nil {
		slog.Warn("failed to publish artifact event", "result_id", resultID, "kind", kind, "error", err)
	}
}

func (s *insightService) span(ctx context.Context, name string, resultID uuid.UUID) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("result.id", resultID.String())))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		}
		span.End()
	}
}
