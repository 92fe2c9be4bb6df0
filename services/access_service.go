package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recipebook/recipebook-server/domain"
	"github.com/recipebook/recipebook-server/internal/metrics"
)

// DenialReason distinguishes why premium access was refused.
type DenialReason string

const (
	DenialNone            DenialReason = ""
	DenialNeverSubscribed DenialReason = "never_subscribed"
	DenialExpired         DenialReason = "expired"
)

// AccessService is the request-time entitlement predicate. Besides deciding,
// it demotes expired subscriptions on read so the stale-premium window is
// bounded by the time since the last check.
type AccessService struct {
	users domain.UserRepository
}

func NewAccessService(users domain.UserRepository) *AccessService {
	return &AccessService{users: users}
}

// CheckPremiumAccess decides whether user may see premium content. If the
// subscription turned out to be expired, the user record is demoted to free
// synchronously (in the store and in the passed struct) before denial.
func (s *AccessService) CheckPremiumAccess(ctx context.Context, user *domain.User) (bool, DenialReason) {
	if user.Role == domain.RoleAdmin {
		return true, DenialNone
	}
	if user.SubscriptionStatus != domain.SubscriptionPremium {
		return false, DenialNeverSubscribed
	}

	if user.SubscriptionExpiry == nil {
		// Premium without an expiry should not arise from reconciliation;
		// treat as non-expiring rather than locking the user out.
		log.Warn().Str("userID", user.ID).Str("email", user.Email).
			Msg("Premium user without subscription expiry")
		return true, DenialNone
	}

	if !user.SubscriptionExpiry.After(time.Now()) {
		if err := s.users.SetSubscription(ctx, user.ID, domain.SubscriptionFree, nil, ""); err != nil {
			// Demotion failing must not grant access; the next check retries.
			log.Error().Err(err).Str("userID", user.ID).Msg("Failed to demote expired subscription")
		} else {
			metrics.PremiumDemotionsTotal.Inc()
			log.Info().Str("userID", user.ID).Time("expiredOn", *user.SubscriptionExpiry).
				Msg("Expired subscription demoted to free")
		}
		user.SubscriptionStatus = domain.SubscriptionFree
		return false, DenialExpired
	}

	return true, DenialNone
}
