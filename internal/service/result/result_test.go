package result

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/apperr"
	"github.com/carelink/carelink_backend/pkg/authorize"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type memStore struct {
	results map[uuid.UUID]*repo.Result
	limit   int
}

func newMemStore() *memStore {
	return &memStore{results: map[uuid.UUID]*repo.Result{}}
}

func (m *memStore) Create(_ context.Context, r *repo.Result) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.results[r.ID] = r
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*repo.Result, error) {
	r, ok := m.results[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) List(_ context.Context, patientID *uuid.UUID, limit int) ([]*repo.Result, error) {
	m.limit = limit
	var out []*repo.Result
	for _, r := range m.results {
		if patientID == nil || r.PatientID == *patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) SetDocumentKey(_ context.Context, id uuid.UUID, key string) error {
	m.results[id].DocumentKey = &key
	return nil
}

type mockObjects struct {
	uploaded    []string
	deleted     []string
	deleteErr   error
	uploadCalls atomic.Int32
}

func (m *mockObjects) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	m.uploadCalls.Add(1)
	if _, err := io.ReadAll(body); err != nil {
		return err
	}
	m.uploaded = append(m.uploaded, key)
	return nil
}

func (m *mockObjects) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://s3.test/" + key + "?sig=1", nil
}

func (m *mockObjects) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return m.deleteErr
}

// roleEnforcer mirrors the seeded policies closely enough for these tests.
type roleEnforcer struct {
	sessions map[authorize.GroupSubject]*role.Session
	deny     bool
}

func (e *roleEnforcer) Enforce(_ context.Context, subject authorize.GroupSubject, _ authorize.Domain, _ authorize.Resource, _ authorize.Action) (bool, error) {
	if e.deny {
		return false, nil
	}
	s, ok := e.sessions[subject]
	return ok && len(s.Roles) > 0, nil
}

type fixture struct {
	store    *memStore
	objects  *mockObjects
	enforcer *roleEnforcer
	svc      Service
	patient  *role.Session
	other    *role.Session
	doctor   *role.Session
}

func newFixture() *fixture {
	f := &fixture{
		store:   newMemStore(),
		objects: &mockObjects{},
		patient: &role.Session{UserID: uuid.New(), Roles: []authorize.Role{authorize.RolePatient}},
		other:   &role.Session{UserID: uuid.New(), Roles: []authorize.Role{authorize.RolePatient}},
		doctor:  &role.Session{UserID: uuid.New(), Roles: []authorize.Role{authorize.RoleDoctor}},
	}
	f.enforcer = &roleEnforcer{sessions: map[authorize.GroupSubject]*role.Session{
		f.patient.Subject(): f.patient,
		f.other.Subject():   f.other,
		f.doctor.Subject():  f.doctor,
	}}
	f.svc = New(f.store, f.objects, f.enforcer, &config.Config{S3: config.S3Config{MaxUploadMB: 1}})
	return f
}

func (f *fixture) create(t *testing.T, caller *role.Session) *repo.Result {
	t.Helper()
	r, err := f.svc.Create(context.Background(), caller, CreateRequest{TestName: "Full blood count", Values: json.RawMessage(`{"hb": 13.2}`)})
	require.NoError(t, err)
	return r
}

func pdf(body string) Document {
	return Document{Filename: "Report.PDF", ContentType: "application/pdf", Size: int64(len(body)), Body: strings.NewReader(body)}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateForSelf(t *testing.T) {
	f := newFixture()
	r := f.create(t, f.patient)
	assert.Equal(t, f.patient.UserID, r.PatientID)
	assert.Equal(t, "Full blood count", r.TestName)
}

func TestCreateForOthersRequiresStaff(t *testing.T) {
	f := newFixture()
	target := f.other.UserID

	_, err := f.svc.Create(context.Background(), f.patient, CreateRequest{PatientID: &target, TestName: "x"})
	require.ErrorIs(t, err, ErrInvalidPatient)

	r, err := f.svc.Create(context.Background(), f.doctor, CreateRequest{PatientID: &target, TestName: "Lipid panel"})
	require.NoError(t, err)
	assert.Equal(t, target, r.PatientID)
	assert.JSONEq(t, `{}`, string(r.Values))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.patient, CreateRequest{TestName: "  "})
	require.ErrorIs(t, err, ErrTestNameRequired)

	_, err = f.svc.Create(ctx, f.patient, CreateRequest{TestName: "x", Values: json.RawMessage(`[1,2]`)})
	require.ErrorIs(t, err, ErrInvalidValues)

	_, err = f.svc.Create(ctx, nil, CreateRequest{TestName: "x"})
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestCasbinDenial(t *testing.T) {
	f := newFixture()
	f.enforcer.deny = true

	_, err := f.svc.List(context.Background(), f.doctor, ListFilter{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPatientSeesOnlyOwnResults(t *testing.T) {
	f := newFixture()
	mine := f.create(t, f.patient)
	theirs := f.create(t, f.other)

	list, err := f.svc.List(context.Background(), f.patient, ListFilter{PatientID: &f.other.UserID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = f.svc.Get(context.Background(), f.patient, theirs.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := f.svc.Get(context.Background(), f.doctor, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, f.other.UserID, got.PatientID)
}

func TestListLimits(t *testing.T) {
	f := newFixture()

	_, err := f.svc.List(context.Background(), f.doctor, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, defaultListLimit, f.store.limit)

	_, err = f.svc.List(context.Background(), f.doctor, ListFilter{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, maxListLimit, f.store.limit)
}

func TestAttachDocumentAndURL(t *testing.T) {
	f := newFixture()
	r := f.create(t, f.patient)

	_, err := f.svc.DocumentURL(context.Background(), f.patient, r.ID)
	require.ErrorIs(t, err, ErrNoDocument)

	updated, err := f.svc.AttachDocument(context.Background(), f.patient, r.ID, pdf("%PDF-1.7"))
	require.NoError(t, err)
	wantKey := "results/" + f.patient.UserID.String() + "/" + r.ID.String() + ".pdf"
	assert.Equal(t, []string{wantKey}, f.objects.uploaded)
	assert.Equal(t, wantKey, *updated.DocumentKey)

	url, err := f.svc.DocumentURL(context.Background(), f.doctor, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.test/"+wantKey+"?sig=1", url)

	// Same key again: nothing to clean up.
	_, err = f.svc.AttachDocument(context.Background(), f.patient, r.ID, pdf("%PDF-1.7 v2"))
	require.NoError(t, err)
	assert.Empty(t, f.objects.deleted)
}

func TestAttachDocumentReplacesOldKey(t *testing.T) {
	f := newFixture()
	r := f.create(t, f.patient)
	f.objects.deleteErr = errors.New("access denied")

	_, err := f.svc.AttachDocument(context.Background(), f.patient, r.ID, pdf("%PDF"))
	require.NoError(t, err)

	png := Document{Filename: "scan.png", ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")}
	_, err = f.svc.AttachDocument(context.Background(), f.patient, r.ID, png)
	require.NoError(t, err)
	assert.Len(t, f.objects.deleted, 1)
	assert.True(t, strings.HasSuffix(f.objects.deleted[0], ".pdf"))
}

func TestAttachDocumentRejects(t *testing.T) {
	f := newFixture()
	r := f.create(t, f.patient)
	ctx := context.Background()

	_, err := f.svc.AttachDocument(ctx, f.patient, r.ID, Document{Filename: "a.exe", ContentType: "application/octet-stream", Size: 3, Body: strings.NewReader("abc")})
	require.ErrorIs(t, err, ErrDocumentType)

	_, err = f.svc.AttachDocument(ctx, f.patient, r.ID, Document{Filename: "a.pdf", ContentType: "application/pdf", Size: 2 << 20, Body: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrDocumentTooLarge)

	_, err = f.svc.AttachDocument(ctx, f.other, r.ID, pdf("%PDF"))
	require.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, int32(0), f.objects.uploadCalls.Load())
}
