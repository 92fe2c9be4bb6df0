package domain

import (
	"strings"
	"time"
)

// AuthProvider identifies how an account authenticates.
type AuthProvider string

const (
	AuthProviderLocal    AuthProvider = "local"
	AuthProviderGoogle   AuthProvider = "google"
	AuthProviderFacebook AuthProvider = "facebook"
	AuthProviderApple    AuthProvider = "apple"
)

// Role defines the RBAC role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// SubscriptionStatus defines the entitlement tier of a user.
type SubscriptionStatus string

const (
	SubscriptionFree    SubscriptionStatus = "free"
	SubscriptionPremium SubscriptionStatus = "premium"
)

// User represents an account in the system. An account is created either by
// local registration (email + password) or by the first OAuth assertion for
// an email with no existing match. ProviderID is set at most once: once a
// social identity is linked, the link is permanent.
type User struct {
	ID                 string             `bson:"_id,omitempty" json:"id"`
	Email              string             `bson:"email" json:"email"`
	PasswordHash       string             `bson:"password_hash,omitempty" json:"-"`
	AuthProvider       AuthProvider       `bson:"auth_provider" json:"authProvider"`
	ProviderID         string             `bson:"provider_id,omitempty" json:"-"`
	Role               Role               `bson:"role" json:"role"`
	SubscriptionStatus SubscriptionStatus `bson:"subscription_status" json:"subscriptionStatus"`
	SubscriptionExpiry *time.Time         `bson:"subscription_expiry,omitempty" json:"subscriptionExpiry,omitempty"`
	LastPaymentMethod  string             `bson:"last_payment_method,omitempty" json:"-"`
	CreatedAt          time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"-"`
}

// Permissions are derived flags exposed on the current-user endpoint.
type Permissions struct {
	CanModify      bool `json:"canModify"`
	CanViewPremium bool `json:"canViewPremium"`
}

// Permissions derives the permission flags from role and subscription status.
// Note: this does not consult the expiry; the access gate owns expiry checks.
func (u *User) Permissions() Permissions {
	return Permissions{
		CanModify:      u.Role == RoleAdmin,
		CanViewPremium: u.Role == RoleAdmin || u.SubscriptionStatus == SubscriptionPremium,
	}
}

// IsLinked reports whether the account is claimed by an external identity.
func (u *User) IsLinked() bool {
	return u.ProviderID != ""
}

// NormalizeEmail canonicalizes an address for storage and lookup. Email
// uniqueness is case-insensitive, so every write and every query must go
// through the same form; otherwise a differently-cased address from an OAuth
// provider or a webhook payload misses the account it belongs to.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
