package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/authorize"
)

// DefaultRegion is used for phone numbers written without a country code.
const DefaultRegion = "GB"

const maxNameLen = 100

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type EnsureRequest struct {
	// UserType is patient or doctor; empty means patient.
	UserType string
	FullName *string
}

type UpdateRequest struct {
	FullName *string
	Phone    *string
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.Profile, error)
	Create(ctx context.Context, p *repo.Profile) (bool, error)
	Update(ctx context.Context, id uuid.UUID, u repo.ProfileUpdate) (*repo.Profile, error)
	SetUserType(ctx context.Context, id uuid.UUID, t repo.UserType) error
}

type RoleGranter interface {
	AddRoleForUserInDomain(ctx context.Context, subject authorize.GroupSubject, role authorize.Role, domain authorize.Domain) (bool, error)
}

type Service interface {
	Get(ctx context.Context, caller *role.Session) (*repo.Profile, error)
	// Ensure creates the caller's profile on first sign-in and grants the
	// matching role. An existing profile is returned unchanged.
	Ensure(ctx context.Context, caller *role.Session, req EnsureRequest) (*repo.Profile, error)
	Update(ctx context.Context, caller *role.Session, req UpdateRequest) (*repo.Profile, error)
	// BootstrapAdmin grants the admin role outside any session. A failure to
	// write the profile row is logged and does not fail the grant.
	BootstrapAdmin(ctx context.Context, userID uuid.UUID, email string) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type profileService struct {
	store Store
	roles RoleGranter
}

func New(store Store, roles RoleGranter) Service {
	return &profileService{store: store, roles: roles}
}

func (s *profileService) Get(ctx context.Context, caller *role.Session) (*repo.Profile, error) {
	if !caller.Authenticated() {
		return nil, ErrAuthRequired
	}
	p, err := s.store.Get(ctx, caller.UserID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *profileService) Ensure(ctx context.Context, caller *role.Session, req EnsureRequest) (*repo.Profile, error) {
	if !caller.Authenticated() {
		return nil, ErrAuthRequired
	}

	userType := repo.UserType(strings.ToLower(strings.TrimSpace(req.UserType)))
	switch userType {
	case "":
		userType = repo.UserTypePatient
	case repo.UserTypePatient, repo.UserTypeDoctor:
	default:
		return nil, ErrInvalidUserType
	}

	var name *string
	if req.FullName != nil {
		n, err := cleanName(*req.FullName)
		if err != nil {
			return nil, err
		}
		name = &n
	}

	p := &repo.Profile{
		ID:       caller.UserID,
		Email:    caller.Email,
		FullName: name,
		UserType: userType,
	}
	created, err := s.store.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	if !created {
		if p, err = s.store.Get(ctx, caller.UserID); err != nil {
			return nil, fmt.Errorf("get profile: %w", err)
		}
	}

	// Granting is idempotent, so a grant lost on an earlier attempt is
	// repaired on the next sign-in.
	if err := s.grant(ctx, p.ID, p.UserType); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *profileService) Update(ctx context.Context, caller *role.Session, req UpdateRequest) (*repo.Profile, error) {
	if !caller.Authenticated() {
		return nil, ErrAuthRequired
	}

	var u repo.ProfileUpdate
	if req.FullName != nil {
		n, err := cleanName(*req.FullName)
		if err != nil {
			return nil, err
		}
		u.FullName = &n
	}
	if req.Phone != nil {
		phone, err := NormalizePhone(*req.Phone)
		if err != nil {
			return nil, err
		}
		u.Phone = &phone
	}

	p, err := s.store.Update(ctx, caller.UserID, u)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

func (s *profileService) BootstrapAdmin(ctx context.Context, userID uuid.UUID, email string) error {
	if userID == uuid.Nil {
		return errors.New("user id is required")
	}
	if err := s.grant(ctx, userID, repo.UserTypeAdmin); err != nil {
		return err
	}

	p := &repo.Profile{ID: userID, Email: email, UserType: repo.UserTypeAdmin}
	created, err := s.store.Create(ctx, p)
	if err != nil {
		slog.Warn("admin granted but profile was not created", "user_id", userID, "error", err)
		return nil
	}
	if !created {
		if err := s.store.SetUserType(ctx, userID, repo.UserTypeAdmin); err != nil {
			slog.Warn("admin granted but profile type was not updated", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (s *profileService) grant(ctx context.Context, userID uuid.UUID, t repo.UserType) error {
	r, ok := authorize.RoleFromUserType(string(t))
	if !ok {
		return fmt.Errorf("no role for user type %q", t)
	}
	if _, err := s.roles.AddRoleForUserInDomain(ctx, authorize.SubjectFor(userID), r, authorize.DomainSys); err != nil {
		return fmt.Errorf("grant %s: %w", r.Name(), err)
	}
	return nil
}

func cleanName(in string) (string, error) {
	n := strings.TrimSpace(in)
	if n == "" || utf8.RuneCountInString(n) > maxNameLen {
		return "", ErrInvalidName
	}
	return n, nil
}

// NormalizePhone returns the number in E.164 form. An empty string clears
// the stored number.
func NormalizePhone(in string) (string, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(in, DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
