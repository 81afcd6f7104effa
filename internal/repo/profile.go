package repo

import (
	"context"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

type UserType string

const (
	UserTypePatient UserType = "patient"
	UserTypeDoctor  UserType = "doctor"
	UserTypeAdmin   UserType = "admin"
)

// Profile is keyed by the auth provider's user id.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	Phone     *string   `json:"phone"`
	UserType  UserType  `json:"user_type"`
	AIConsent bool      `json:"ai_consent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the user-editable fields; nil leaves a field alone.
type ProfileUpdate struct {
	FullName *string
	Phone    *string
}

type ProfileStore struct {
	drv dialect.Driver
}

var profileColumns = []string{"id", "email", "full_name", "phone", "user_type", "ai_consent", "created_at", "updated_at"}

func scanProfile(rows entsql.ColumnScanner) (*Profile, error) {
	var (
		p               Profile
		fullName, phone entsql.NullString
	)
	if err := rows.Scan(&p.ID, &p.Email, &fullName, &phone, &p.UserType, &p.AIConsent, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.FullName = stringPtr(fullName)
	p.Phone = stringPtr(phone)
	return &p, nil
}

func (s *ProfileStore) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	q, args := builder().Select(profileColumns...).
		From(builder().Table(profilesTable)).
		Where(entsql.EQ("id", id)).
		Query()
	return queryOne(ctx, s.drv, q, args, scanProfile)
}

// Create inserts p unless a profile with the same id exists. It reports
// whether a row was written.
func (s *ProfileStore) Create(ctx context.Context, p *Profile) (bool, error) {
	now := time.Now().UTC()
	if p.UserType == "" {
		p.UserType = UserTypePatient
	}
	p.CreatedAt, p.UpdatedAt = now, now

	q, args := builder().Insert(profilesTable).
		Columns(profileColumns...).
		Values(p.ID, p.Email, p.FullName, p.Phone, p.UserType, p.AIConsent, p.CreatedAt, p.UpdatedAt).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()
	n, err := execAffected(ctx, s.drv, q, args)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *ProfileStore) GetConsent(ctx context.Context, id uuid.UUID) (bool, error) {
	q, args := builder().Select("ai_consent").
		From(builder().Table(profilesTable)).
		Where(entsql.EQ("id", id)).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return false, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, err
		}
		return false, ErrNotFound
	}
	var consent bool
	if err := rows.Scan(&consent); err != nil {
		return false, err
	}
	return consent, nil
}

func (s *ProfileStore) SetConsent(ctx context.Context, id uuid.UUID, value bool) error {
	q, args := builder().Update(profilesTable).
		Set("ai_consent", value).
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

func (s *ProfileStore) Update(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Profile, error) {
	upd := builder().Update(profilesTable).Set("updated_at", time.Now().UTC())
	if u.FullName != nil {
		upd.Set("full_name", *u.FullName)
	}
	if u.Phone != nil {
		upd.Set("phone", *u.Phone)
	}
	q, args := upd.Where(entsql.EQ("id", id)).Query()

	n, err := execAffected(ctx, s.drv, q, args)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *ProfileStore) SetUserType(ctx context.Context, id uuid.UUID, t UserType) error {
	q, args := builder().Update(profilesTable).
		Set("user_type", t).
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
