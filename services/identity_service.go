package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/recipebook/recipebook-server/domain"
	apperrors "github.com/recipebook/recipebook-server/errors"
	"github.com/recipebook/recipebook-server/internal/metrics"
)

// Assertion is a normalized OAuth identity assertion handed over by a
// federation provider adapter.
type Assertion struct {
	Provider   domain.AuthProvider
	ProviderID string
	Email      string
}

// IdentityService resolves an inbound identity assertion to exactly one
// account. It is the only writer of the provider linkage fields.
type IdentityService struct {
	users domain.UserRepository
}

func NewIdentityService(users domain.UserRepository) *IdentityService {
	return &IdentityService{users: users}
}

// Reconcile looks up, merges or creates the account for an assertion.
//
// A merge only ever happens onto a pure password account that has never been
// linked; an email match against anything else is a conflict. Auto-merging a
// second social identity onto a claimed email would let an attacker take
// over the account, so that path always rejects.
func (s *IdentityService) Reconcile(ctx context.Context, assertion Assertion) (*domain.User, error) {
	assertion.Email = domain.NormalizeEmail(assertion.Email)
	if assertion.Email == "" {
		// Email is the merge key; without it reconciliation is unsafe.
		return nil, apperrors.NewInputInvalid(fmt.Sprintf("%s did not provide an email address", assertion.Provider))
	}
	if assertion.ProviderID == "" {
		return nil, apperrors.NewInputInvalid("identity assertion is missing a provider id")
	}

	user, err := s.users.GetUserByProvider(ctx, assertion.Provider, assertion.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewInternal("identity lookup failed", err)
	}

	user, err = s.users.GetUserByEmail(ctx, assertion.Email)
	if err == nil {
		if user.AuthProvider == domain.AuthProviderLocal && !user.IsLinked() {
			// One-time, one-way link of a pure password account. Role and
			// subscription fields are untouched.
			user.AuthProvider = assertion.Provider
			user.ProviderID = assertion.ProviderID
			if err := s.users.UpdateUser(ctx, user); err != nil {
				return nil, apperrors.NewInternal("failed to link account", err)
			}
			log.Info().Str("userID", user.ID).Str("provider", string(assertion.Provider)).
				Msg("Linked local account to external identity")
			return user, nil
		}
		return nil, apperrors.NewConflict(fmt.Sprintf(
			"this email is already associated with a %s account", user.AuthProvider))
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewInternal("identity lookup failed", err)
	}

	user = &domain.User{
		Email:              assertion.Email,
		AuthProvider:       assertion.Provider,
		ProviderID:         assertion.ProviderID,
		Role:               domain.RoleUser,
		SubscriptionStatus: domain.SubscriptionFree,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Raced against a concurrent first login for the same identity.
			return nil, apperrors.NewConflict("account already exists")
		}
		return nil, apperrors.NewInternal("failed to create account", err)
	}

	metrics.UserRegisteredTotal.Inc()
	log.Info().Str("userID", user.ID).Str("provider", string(assertion.Provider)).
		Msg("Created account from external identity")
	return user, nil
}
