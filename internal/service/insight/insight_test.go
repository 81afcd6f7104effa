package insight

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/apperr"
	"github.com/carelink/carelink_backend/pkg/authorize"
	"github.com/carelink/carelink_backend/pkg/llm"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// memResults stores artifacts in place so repeated generation can be observed.
type memResults struct {
	results map[uuid.UUID]*repo.Result
	writes  atomic.Int32
}

func (m *memResults) Get(_ context.Context, id uuid.UUID) (*repo.Result, error) {
	r, ok := m.results[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return r, nil
}

func (m *memResults) SetSummary(_ context.Context, id uuid.UUID, summary string, at time.Time) error {
	m.writes.Add(1)
	r, ok := m.results[id]
	if !ok {
		return repo.ErrNotFound
	}
	r.AISummary = &summary
	r.AISummaryGeneratedAt = &at
	return nil
}

func (m *memResults) SetRiskFlags(_ context.Context, id uuid.UUID, flags json.RawMessage, at time.Time) error {
	m.writes.Add(1)
	r, ok := m.results[id]
	if !ok {
		return repo.ErrNotFound
	}
	r.AIRiskFlags = flags
	r.AIRiskFlagsGeneratedAt = &at
	return nil
}

type mockConsent struct {
	granted map[uuid.UUID]bool
	calls   atomic.Int32
}

func (m *mockConsent) Get(_ context.Context, _ *role.Session, userID uuid.UUID) (bool, error) {
	m.calls.Add(1)
	return m.granted[userID], nil
}

type mockGenerator struct {
	generateFn func(ctx context.Context, p llm.Prompt) (string, error)
	calls      atomic.Int32
}

func (m *mockGenerator) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	m.calls.Add(1)
	return m.generateFn(ctx, p)
}

type mockPublisher struct {
	subjects []string
}

func (m *mockPublisher) Publish(subject string, _ []byte) error {
	m.subjects = append(m.subjects, subject)
	return nil
}

type fixture struct {
	results   *memResults
	consent   *mockConsent
	generator *mockGenerator
	events    *mockPublisher
	svc       Service
	resultID  uuid.UUID
	patientID uuid.UUID
}

func newFixture(consented bool, reply string) *fixture {
	patientID, resultID := uuid.New(), uuid.New()
	f := &fixture{
		results: &memResults{results: map[uuid.UUID]*repo.Result{
			resultID: {ID: resultID, PatientID: patientID, TestName: "Lipid panel", Values: json.RawMessage(`{"ldl": 4.9}`)},
		}},
		consent: &mockConsent{granted: map[uuid.UUID]bool{patientID: consented}},
		generator: &mockGenerator{generateFn: func(context.Context, llm.Prompt) (string, error) {
			return reply, nil
		}},
		events:    &mockPublisher{},
		resultID:  resultID,
		patientID: patientID,
	}
	f.svc = New(f.results, f.consent, f.generator, f.events)
	return f
}

func doctor() *role.Session {
	return &role.Session{UserID: uuid.New(), Roles: []authorize.Role{authorize.RoleDoctor}}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNonStaffRejectedBeforeAnyCall(t *testing.T) {
	callers := map[string]*role.Session{
		"guest":   nil,
		"patient": {UserID: uuid.New(), Roles: []authorize.Role{authorize.RolePatient}},
		"no role": {UserID: uuid.New()},
	}

	for name, caller := range callers {
		t.Run(name, func(t *testing.T) {
			f := newFixture(true, "summary")

			err := f.svc.GenerateSummary(context.Background(), caller, f.resultID)
			require.ErrorIs(t, err, apperr.ErrAuthorization)
			err = f.svc.GenerateRiskFlags(context.Background(), caller, f.resultID)
			require.ErrorIs(t, err, ErrNotStaff)

			assert.Equal(t, int32(0), f.consent.calls.Load())
			assert.Equal(t, int32(0), f.generator.calls.Load())
		})
	}
}

func TestConsentRequired(t *testing.T) {
	f := newFixture(false, "summary")

	err := f.svc.GenerateSummary(context.Background(), doctor(), f.resultID)
	require.ErrorIs(t, err, apperr.ErrConsentRequired)

	err = f.svc.GenerateRiskFlags(context.Background(), doctor(), f.resultID)
	require.ErrorIs(t, err, apperr.ErrConsentRequired)

	assert.Equal(t, int32(0), f.generator.calls.Load())
	assert.Equal(t, int32(0), f.results.writes.Load())
}

func TestConsentIsReadOnEveryCall(t *testing.T) {
	f := newFixture(true, "first")
	caller := doctor()

	require.NoError(t, f.svc.GenerateSummary(context.Background(), caller, f.resultID))

	f.consent.granted[f.patientID] = false
	err := f.svc.GenerateSummary(context.Background(), caller, f.resultID)
	require.ErrorIs(t, err, ErrConsentRequired)
	assert.Equal(t, int32(2), f.consent.calls.Load())
	assert.Equal(t, int32(1), f.generator.calls.Load())
}

func TestResultNotFound(t *testing.T) {
	f := newFixture(true, "summary")

	err := f.svc.GenerateSummary(context.Background(), doctor(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int32(0), f.generator.calls.Load())
}

func TestResultRemovedDuringGeneration(t *testing.T) {
	for name, generate := range map[string]func(*fixture) error{
		"summary": func(f *fixture) error {
			return f.svc.GenerateSummary(context.Background(), doctor(), f.resultID)
		},
		"risk flags": func(f *fixture) error {
			return f.svc.GenerateRiskFlags(context.Background(), doctor(), f.resultID)
		},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(true, "")
			f.generator.generateFn = func(context.Context, llm.Prompt) (string, error) {
				delete(f.results.results, f.resultID)
				return `{"flags":[{"marker":"LDL","value":"4.9","severity":"high","note":"x"}]}`, nil
			}

			err := generate(f)
			require.ErrorIs(t, err, ErrResultNotFound)
			assert.ErrorIs(t, err, apperr.ErrNotFound)
			assert.Empty(t, f.events.subjects)
		})
	}
}

func TestGenerateSummaryReplaces(t *testing.T) {
	f := newFixture(true, "")
	n := 0
	f.generator.generateFn = func(_ context.Context, p llm.Prompt) (string, error) {
		n++
		assert.Contains(t, p.User, "Lipid panel")
		assert.False(t, p.JSON)
		if n == 1 {
			return "  LDL is high.  ", nil
		}
		return "LDL is high; retest in 3 months.", nil
	}
	caller := &role.Session{UserID: uuid.New(), Roles: []authorize.Role{authorize.RoleAdmin}}

	require.NoError(t, f.svc.GenerateSummary(context.Background(), caller, f.resultID))
	assert.Equal(t, "LDL is high.", *f.results.results[f.resultID].AISummary)

	require.NoError(t, f.svc.GenerateSummary(context.Background(), caller, f.resultID))
	r := f.results.results[f.resultID]
	assert.Equal(t, "LDL is high; retest in 3 months.", *r.AISummary)
	assert.NotNil(t, r.AISummaryGeneratedAt)
	assert.Equal(t, []string{"carelink.result.artifact.summary", "carelink.result.artifact.summary"}, f.events.subjects)
}

func TestProviderErrorPassesThrough(t *testing.T) {
	f := newFixture(true, "")
	f.generator.generateFn = func(context.Context, llm.Prompt) (string, error) {
		return "", errors.New("Rate limit reached for gpt-4o-mini")
	}

	err := f.svc.GenerateSummary(context.Background(), doctor(), f.resultID)
	require.ErrorIs(t, err, apperr.ErrAIProvider)
	assert.Equal(t, "Rate limit reached for gpt-4o-mini", err.Error())
	assert.Equal(t, int32(0), f.results.writes.Load())
	assert.Empty(t, f.events.subjects)
}

func TestGenerateRiskFlags(t *testing.T) {
	f := newFixture(true, `{"flags":[{"marker":"LDL","value":"4.9 mmol/L","severity":"High","note":"Above target"}]}`)

	require.NoError(t, f.svc.GenerateRiskFlags(context.Background(), doctor(), f.resultID))

	var stored []RiskFlag
	require.NoError(t, json.Unmarshal(f.results.results[f.resultID].AIRiskFlags, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, RiskFlag{Marker: "LDL", Value: "4.9 mmol/L", Severity: "high", Note: "Above target"}, stored[0])
	assert.Equal(t, []string{"carelink.result.artifact.risk_flags"}, f.events.subjects)
}

func TestGenerateRiskFlagsUnparseable(t *testing.T) {
	f := newFixture(true, "The LDL looks high.")

	err := f.svc.GenerateRiskFlags(context.Background(), doctor(), f.resultID)
	require.ErrorIs(t, err, apperr.ErrAIProvider)
	assert.Nil(t, f.results.results[f.resultID].AIRiskFlags)
	assert.Equal(t, int32(0), f.results.writes.Load())
}

func TestParseRiskFlags(t *testing.T) {
	flags, err := ParseRiskFlags("```json\n[{\"marker\":\"HbA1c\",\"value\":\"48\",\"severity\":\"moderate\",\"note\":\"\"}]\n```")
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "HbA1c", flags[0].Marker)

	flags, err = ParseRiskFlags(`{"flags": []}`)
	require.NoError(t, err)
	assert.NotNil(t, flags)
	assert.Empty(t, flags)

	_, err = ParseRiskFlags(`{"flags":[{"marker":"LDL","severity":"critical"}]}`)
	require.Error(t, err)

	_, err = ParseRiskFlags(`{"items": []}`)
	require.Error(t, err)

	_, err = ParseRiskFlags("  ")
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
}
