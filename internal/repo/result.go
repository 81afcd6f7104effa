package repo

import (
	"context"
	"encoding/json"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Result is one test-result record owned by a patient.
type Result struct {
	ID                     uuid.UUID       `json:"id"`
	PatientID              uuid.UUID       `json:"patient_id"`
	TestName               string          `json:"test_name"`
	Values                 json.RawMessage `json:"values"`
	Notes                  *string         `json:"notes"`
	DocumentKey            *string         `json:"-"`
	AISummary              *string         `json:"ai_summary"`
	AISummaryGeneratedAt   *time.Time      `json:"ai_summary_generated_at"`
	AIRiskFlags            json.RawMessage `json:"ai_risk_flags"`
	AIRiskFlagsGeneratedAt *time.Time      `json:"ai_risk_flags_generated_at"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func (r *Result) HasDocument() bool { return r.DocumentKey != nil && *r.DocumentKey != "" }

type ResultStore struct {
	drv dialect.Driver
}

var resultColumns = []string{
	"id", "patient_id", "test_name", "values", "notes", "document_key",
	"ai_summary", "ai_summary_generated_at", "ai_risk_flags", "ai_risk_flags_generated_at",
	"created_at", "updated_at",
}

func scanResult(rows entsql.ColumnScanner) (*Result, error) {
	var (
		r                      Result
		values, flags          []byte
		notes, docKey, summary entsql.NullString
		summaryAt, flagsAt     entsql.NullTime
	)
	if err := rows.Scan(&r.ID, &r.PatientID, &r.TestName, &values, &notes, &docKey,
		&summary, &summaryAt, &flags, &flagsAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Values = values
	if len(flags) > 0 {
		r.AIRiskFlags = flags
	}
	r.Notes = stringPtr(notes)
	r.DocumentKey = stringPtr(docKey)
	r.AISummary = stringPtr(summary)
	r.AISummaryGeneratedAt = timePtr(summaryAt)
	r.AIRiskFlagsGeneratedAt = timePtr(flagsAt)
	return &r, nil
}

func timePtr(n entsql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func (s *ResultStore) Create(ctx context.Context, r *Result) error {
	now := time.Now().UTC()
	if r.ID == uuid.Nil {
		r.ID = newID()
	}
	if len(r.Values) == 0 {
		r.Values = json.RawMessage(`{}`)
	}
	r.CreatedAt, r.UpdatedAt = now, now

	q, args := builder().Insert(resultsTable).
		Columns("id", "patient_id", "test_name", "values", "notes", "created_at", "updated_at").
		Values(r.ID, r.PatientID, r.TestName, string(r.Values), r.Notes, r.CreatedAt, r.UpdatedAt).
		Query()
	_, err := execAffected(ctx, s.drv, q, args)
	return err
}

func (s *ResultStore) Get(ctx context.Context, id uuid.UUID) (*Result, error) {
	q, args := builder().Select(resultColumns...).
		From(builder().Table(resultsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	return queryOne(ctx, s.drv, q, args, scanResult)
}

// List returns results newest first. A nil patientID lists every patient.
func (s *ResultStore) List(ctx context.Context, patientID *uuid.UUID, limit int) ([]*Result, error) {
	sel := builder().Select(resultColumns...).
		From(builder().Table(resultsTable)).
		OrderBy(entsql.Desc("created_at"))
	if patientID != nil {
		sel.Where(entsql.EQ("patient_id", *patientID))
	}
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	return queryAll(ctx, s.drv, q, args, scanResult)
}

// SetSummary replaces any previous summary in a single statement.
func (s *ResultStore) SetSummary(ctx context.Context, id uuid.UUID, summary string, at time.Time) error {
	return s.setArtifact(ctx, id, "ai_summary", summary, "ai_summary_generated_at", at)
}

// SetRiskFlags replaces any previous flag set; flags must be a JSON array.
func (s *ResultStore) SetRiskFlags(ctx context.Context, id uuid.UUID, flags json.RawMessage, at time.Time) error {
	return s.setArtifact(ctx, id, "ai_risk_flags", string(flags), "ai_risk_flags_generated_at", at)
}

func (s *ResultStore) setArtifact(ctx context.Context, id uuid.UUID, col string, v any, atCol string, at time.Time) error {
	q, args := builder().Update(resultsTable).
		Set(col, v).
		Set(atCol, at).
		Set("updated_at", at).
		Where(entsql.EQ("id", id)).
		Query()
	n, err := execAffected(ctx, s.drv, q, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ResultStore) SetDocumentKey(ctx context.Context, id uuid.UUID, key string) error {
	q, args := builder().Update(resultsTable).
		Set("document_key", key).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	n, err := execAffected(ctx, s.drv, q, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
