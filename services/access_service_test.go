package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebook/recipebook-server/domain"
)

func TestCheckPremiumAccess_AdminBypassesSubscription(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAccessService(users)

	allowed, reason := svc.CheckPremiumAccess(context.Background(), &domain.User{
		ID:                 "admin-1",
		Role:               domain.RoleAdmin,
		SubscriptionStatus: domain.SubscriptionFree,
	})
	assert.True(t, allowed)
	assert.Equal(t, DenialNone, reason)
}

func TestCheckPremiumAccess_FreeUserDenied(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAccessService(users)

	allowed, reason := svc.CheckPremiumAccess(context.Background(), &domain.User{
		ID:                 "user-1",
		Role:               domain.RoleUser,
		SubscriptionStatus: domain.SubscriptionFree,
	})
	assert.False(t, allowed)
	assert.Equal(t, DenialNeverSubscribed, reason)
	assert.Empty(t, users.subscriptionLog)
}

func TestCheckPremiumAccess_ActivePremiumAllowed(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour)
	user := &domain.User{
		ID:                 "user-1",
		Role:               domain.RoleUser,
		SubscriptionStatus: domain.SubscriptionPremium,
		SubscriptionExpiry: &expiry,
	}
	users := newFakeUserRepo(user)
	svc := NewAccessService(users)

	allowed, reason := svc.CheckPremiumAccess(context.Background(), user)
	assert.True(t, allowed)
	assert.Equal(t, DenialNone, reason)
	assert.Empty(t, users.subscriptionLog)
}

func TestCheckPremiumAccess_ExpiredPremiumDemotedOnRead(t *testing.T) {
	expiry := time.Now().Add(-time.Hour)
	user := &domain.User{
		ID:                 "user-1",
		Role:               domain.RoleUser,
		SubscriptionStatus: domain.SubscriptionPremium,
		SubscriptionExpiry: &expiry,
	}
	users := newFakeUserRepo(user)
	svc := NewAccessService(users)

	allowed, reason := svc.CheckPremiumAccess(context.Background(), user)
	assert.False(t, allowed)
	assert.Equal(t, DenialExpired, reason)

	require.Len(t, users.subscriptionLog, 1)
	assert.Equal(t, domain.SubscriptionFree, users.subscriptionLog[0].status)
	assert.Nil(t, users.subscriptionLog[0].expiry)
	assert.Equal(t, domain.SubscriptionFree, user.SubscriptionStatus)
}

func TestCheckPremiumAccess_DemotionFailureStillDenies(t *testing.T) {
	expiry := time.Now().Add(-time.Hour)
	user := &domain.User{
		ID:                 "user-1",
		Role:               domain.RoleUser,
		SubscriptionStatus: domain.SubscriptionPremium,
		SubscriptionExpiry: &expiry,
	}
	users := newFakeUserRepo(user)
	users.setSubErr = assert.AnError
	svc := NewAccessService(users)

	allowed, reason := svc.CheckPremiumAccess(context.Background(), user)
	assert.False(t, allowed)
	assert.Equal(t, DenialExpired, reason)
}

func TestCheckPremiumAccess_PremiumWithoutExpiryAllowed(t *testing.T) {
	user := &domain.User{
		ID:                 "user-1",
		Role:               domain.RoleUser,
		SubscriptionStatus: domain.SubscriptionPremium,
	}
	users := newFakeUserRepo(user)
	svc := NewAccessService(users)

	allowed, reason := svc.CheckPremiumAccess(context.Background(), user)
	assert.True(t, allowed)
	assert.Equal(t, DenialNone, reason)
}
