// Package federation adapts external OAuth2 identity providers. Each
// provider is normalized to an ExternalUserInfo immediately; no
// provider-specific type leaks past this boundary.
package federation

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/recipebook/recipebook-server/domain"
)

// ExternalUserInfo holds standardized user information retrieved from an
// external OAuth2 provider.
type ExternalUserInfo struct {
	ProviderUserID string // unique id within the provider (e.g. Google's 'sub')
	Email          string
	Name           string
}

// Provider is an external OAuth2 identity provider.
type Provider interface {
	// Name returns the provider key ("google", "facebook").
	Name() domain.AuthProvider

	// AuthCodeURL builds the URL the user is redirected to, carrying the
	// CSRF state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchUserInfo retrieves and normalizes the user's profile.
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error)
}
