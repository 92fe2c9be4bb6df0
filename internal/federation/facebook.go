package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	facebookOAuth2 "golang.org/x/oauth2/facebook"

	"github.com/recipebook/recipebook-server/domain"
)

// Graph API endpoint for user info; the fields parameter selects the data.
var facebookUserInfoEndpoint = "https://graph.facebook.com/me?fields=id,name,email"

// FacebookProvider implements Provider for Facebook.
type FacebookProvider struct {
	config *oauth2.Config
}

func NewFacebookProvider(appID, appSecret, redirectURL string) *FacebookProvider {
	return &FacebookProvider{
		config: &oauth2.Config{
			ClientID:     appID,
			ClientSecret: appSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"public_profile", "email"},
			Endpoint:     facebookOAuth2.Endpoint,
		},
	}
}

func (p *FacebookProvider) Name() domain.AuthProvider { return domain.AuthProviderFacebook }

func (p *FacebookProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *FacebookProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

func (p *FacebookProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error) {
	resp, err := p.config.Client(ctx, token).Get(facebookUserInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch facebook user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook user info returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode facebook user info: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("facebook user info missing id")
	}

	// Facebook may omit the email depending on the user's privacy settings;
	// the identity reconciler rejects assertions without one.
	return &ExternalUserInfo{
		ProviderUserID: payload.ID,
		Email:          payload.Email,
		Name:           payload.Name,
	}, nil
}

var _ Provider = (*FacebookProvider)(nil)
