package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
)

// Store is the slice of the profile store consent needs.
type Store interface {
	GetConsent(ctx context.Context, id uuid.UUID) (bool, error)
	SetConsent(ctx context.Context, id uuid.UUID, value bool) error
}

type Service interface {
	// Set stores the AI-processing consent of userID. Only userID may call it.
	Set(ctx context.Context, caller *role.Session, userID uuid.UUID, value bool) error
	// Get reads the flag straight from the store on every call. The owner
	// and staff may read it; a missing profile reads as false.
	Get(ctx context.Context, caller *role.Session, userID uuid.UUID) (bool, error)
}

type consentService struct {
	store Store
}

func New(store Store) Service {
	return &consentService{store: store}
}

func (s *consentService) Set(ctx context.Context, caller *role.Session, userID uuid.UUID, value bool) error {
	if !caller.Is(userID) {
		return ErrNotOwner
	}
	if err := s.store.SetConsent(ctx, userID, value); err != nil {
		if repo.IsNotFound(err) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("set consent: %w", err)
	}
	return nil
}

func (s *consentService) Get(ctx context.Context, caller *role.Session, userID uuid.UUID) (bool, error) {
	if !caller.Is(userID) && !caller.IsStaff() {
		return false, ErrNotAllowed
	}
	granted, err := s.store.GetConsent(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get consent: %w", err)
	}
	return granted, nil
}
