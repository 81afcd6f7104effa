// Package result manages test-result records and their uploaded documents.
// Patients reach only their own results; staff reach every result.
package result

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/authorize"
	"github.com/carelink/carelink_backend/pkg/s3"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxTestNameLen   = 200
)

var documentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	// PatientID defaults to the caller.
	PatientID *uuid.UUID
	TestName  string
	Values    json.RawMessage
	Notes     *string
}

type ListFilter struct {
	// PatientID narrows a staff listing; patients always list their own.
	PatientID *uuid.UUID
	Limit     int
}

type Document struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Store interface {
	Create(ctx context.Context, r *repo.Result) error
	Get(ctx context.Context, id uuid.UUID) (*repo.Result, error)
	List(ctx context.Context, patientID *uuid.UUID, limit int) ([]*repo.Result, error)
	SetDocumentKey(ctx context.Context, id uuid.UUID, key string) error
}

type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignDownload(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Enforcer interface {
	Enforce(ctx context.Context, subject authorize.GroupSubject, domain authorize.Domain, object authorize.Resource, action authorize.Action) (bool, error)
}

type Service interface {
	Create(ctx context.Context, caller *role.Session, req CreateRequest) (*repo.Result, error)
	List(ctx context.Context, caller *role.Session, f ListFilter) ([]*repo.Result, error)
	Get(ctx context.Context, caller *role.Session, id uuid.UUID) (*repo.Result, error)
	AttachDocument(ctx context.Context, caller *role.Session, id uuid.UUID, doc Document) (*repo.Result, error)
	DocumentURL(ctx context.Context, caller *role.Session, id uuid.UUID) (string, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type resultService struct {
	store    Store
	objects  ObjectStore
	enforcer Enforcer
	maxBytes int64
}

func New(store Store, objects ObjectStore, enforcer Enforcer, cfg *config.Config) Service {
	maxMB := cfg.S3.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 20
	}
	return &resultService{
		store:    store,
		objects:  objects,
		enforcer: enforcer,
		maxBytes: int64(maxMB) << 20,
	}
}

func (s *resultService) Create(ctx context.Context, caller *role.Session, req CreateRequest) (*repo.Result, error) {
	if err := s.can(ctx, caller, authorize.ResourceResult, authorize.ActionCreate); err != nil {
		return nil, err
	}

	patientID := caller.UserID
	if req.PatientID != nil && *req.PatientID != uuid.Nil {
		patientID = *req.PatientID
	}
	if patientID != caller.UserID && !caller.IsStaff() {
		return nil, ErrInvalidPatient
	}

	name := strings.TrimSpace(req.TestName)
	if name == "" || utf8.RuneCountInString(name) > maxTestNameLen {
		return nil, ErrTestNameRequired
	}

	values := bytes.TrimSpace(req.Values)
	if len(values) == 0 {
		values = []byte("{}")
	}
	var obj map[string]any
	if err := json.Unmarshal(values, &obj); err != nil || obj == nil {
		return nil, ErrInvalidValues
	}

	r := &repo.Result{
		PatientID: patientID,
		TestName:  name,
		Values:    json.RawMessage(values),
		Notes:     req.Notes,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create result: %w", err)
	}
	return r, nil
}

func (s *resultService) List(ctx context.Context, caller *role.Session, f ListFilter) ([]*repo.Result, error) {
	if err := s.can(ctx, caller, authorize.ResourceResult, authorize.ActionList); err != nil {
		return nil, err
	}

	patientID := f.PatientID
	if !caller.IsStaff() {
		patientID = &caller.UserID
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	results, err := s.store.List(ctx, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

func (s *resultService) Get(ctx context.Context, caller *role.Session, id uuid.UUID) (*repo.Result, error) {
	if err := s.can(ctx, caller, authorize.ResourceResult, authorize.ActionRead); err != nil {
		return nil, err
	}
	return s.visible(ctx, caller, id)
}

func (s *resultService) AttachDocument(ctx context.Context, caller *role.Session, id uuid.UUID, doc Document) (*repo.Result, error) {
	if err := s.can(ctx, caller, authorize.ResourceResultDocument, authorize.ActionCreate); err != nil {
		return nil, err
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(doc.ContentType, ";")[0]))
	if _, ok := documentTypes[contentType]; !ok {
		return nil, ErrDocumentType
	}
	if doc.Size <= 0 || doc.Body == nil {
		return nil, ErrDocumentEmpty
	}
	if doc.Size > s.maxBytes {
		return nil, ErrDocumentTooLarge
	}

	r, err := s.visible(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	key := s3.DocumentKey(r.PatientID, r.ID, doc.Filename)
	if err := s.objects.Upload(ctx, key, contentType, doc.Body, doc.Size); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	if err := s.store.SetDocumentKey(ctx, r.ID, key); err != nil {
		return nil, fmt.Errorf("store document key: %w", err)
	}

	if r.HasDocument() && *r.DocumentKey != key {
		if err := s.objects.Delete(ctx, *r.DocumentKey); err != nil {
			slog.Warn("failed to delete replaced document", "result_id", r.ID, "key", *r.DocumentKey, "error", err)
		}
	}
	r.DocumentKey = &key
	return r, nil
}

func (s *resultService) DocumentURL(ctx context.Context, caller *role.Session, id uuid.UUID) (string, error) {
	if err := s.can(ctx, caller, authorize.ResourceResultDocument, authorize.ActionRead); err != nil {
		return "", err
	}

	r, err := s.visible(ctx, caller, id)
	if err != nil {
		return "", err
	}
	if !r.HasDocument() {
		return "", ErrNoDocument
	}

	url, err := s.objects.PresignDownload(ctx, *r.DocumentKey)
	if err != nil {
		return "", fmt.Errorf("presign document: %w", err)
	}
	return url, nil
}

func (s *resultService) can(ctx context.Context, caller *role.Session, object authorize.Resource, action authorize.Action) error {
	if !caller.Authenticated() {
		return ErrAuthRequired
	}
	ok, err := s.enforcer.Enforce(ctx, caller.Subject(), authorize.DomainSys, object, action)
	if err != nil {
		return fmt.Errorf("enforce %s:%s: %w", object, action, err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// visible loads a result the caller may see. Other patients' results read
// as not found.
func (s *resultService) visible(ctx context.Context, caller *role.Session, id uuid.UUID) (*repo.Result, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if r.PatientID != caller.UserID && !caller.IsStaff() {
		return nil, ErrResultNotFound
	}
	return r, nil
}
