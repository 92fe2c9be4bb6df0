package echo

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/recipebook/recipebook-server/domain"
	apperrors "github.com/recipebook/recipebook-server/errors"
	"github.com/recipebook/recipebook-server/internal/metrics"
	"github.com/recipebook/recipebook-server/services"
)

const (
	platformWeb    = "web"
	platformMobile = "mobile"
)

// OAuthStartHandler begins the redirect flow for a provider. The optional
// platform query parameter ("web" or "mobile") selects where the user lands
// after the callback; it is carried through the CSRF state.
func (a *API) OAuthStartHandler(c echo.Context) error {
	provider, ok := a.providers[domain.AuthProvider(c.Param("provider"))]
	if !ok {
		return writeError(c, apperrors.NewNotFound("unknown identity provider"))
	}

	platform := c.QueryParam("platform")
	if platform != platformMobile {
		platform = platformWeb
	}

	state := a.states.Issue(platform)
	return c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// OAuthCallbackHandler completes the redirect flow: it consumes the state,
// exchanges the code, reconciles the external identity to an account, and
// redirects the user agent with a freshly issued token.
func (a *API) OAuthCallbackHandler(c echo.Context) error {
	provider, ok := a.providers[domain.AuthProvider(c.Param("provider"))]
	if !ok {
		return writeError(c, apperrors.NewNotFound("unknown identity provider"))
	}

	if errParam := c.QueryParam("error"); errParam != "" {
		log.Warn().Str("provider", string(provider.Name())).Str("error", errParam).
			Msg("Provider reported authorization error")
		return a.redirectFailure(c, platformWeb, "authorization was denied")
	}

	platform, ok := a.states.Consume(c.QueryParam("state"))
	if !ok {
		return writeError(c, apperrors.NewUnauthenticated("invalid or expired state"))
	}

	code := c.QueryParam("code")
	if code == "" {
		return writeError(c, apperrors.NewInputInvalid("missing authorization code"))
	}

	ctx := c.Request().Context()

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("provider", string(provider.Name())).
			Msg("Authorization code exchange failed")
		return a.redirectFailure(c, platform, "sign-in failed")
	}

	info, err := provider.FetchUserInfo(ctx, token)
	if err != nil {
		log.Error().Err(err).Str("provider", string(provider.Name())).
			Msg("Failed to fetch user info from provider")
		return a.redirectFailure(c, platform, "sign-in failed")
	}

	user, err := a.identities.Reconcile(ctx, services.Assertion{
		Provider:   provider.Name(),
		ProviderID: info.ProviderUserID,
		Email:      info.Email,
	})
	if err != nil {
		log.Warn().Err(err).Str("provider", string(provider.Name())).
			Msg("Identity reconciliation rejected")
		return a.redirectFailure(c, platform, apperrors.AsAPIError(err).Message)
	}

	jwt, err := a.authService.IssueToken(user)
	if err != nil {
		return writeError(c, err)
	}

	metrics.OAuthLoginTotal.Inc()
	log.Info().Str("userID", user.ID).Str("provider", string(provider.Name())).
		Msg("OAuth sign-in completed")

	return c.Redirect(http.StatusFound, a.successURL(platform, jwt))
}

func (a *API) successURL(platform, token string) string {
	if platform == platformMobile {
		return fmt.Sprintf("%s?token=%s", a.cfg.MobileRedirectURL, url.QueryEscape(token))
	}
	return fmt.Sprintf("%s/auth/success?token=%s", a.cfg.FrontendURL, url.QueryEscape(token))
}

func (a *API) redirectFailure(c echo.Context, platform, reason string) error {
	target := fmt.Sprintf("%s/auth/error?reason=%s", a.cfg.FrontendURL, url.QueryEscape(reason))
	if platform == platformMobile {
		target = fmt.Sprintf("%s?error=%s", a.cfg.MobileRedirectURL, url.QueryEscape(reason))
	}
	return c.Redirect(http.StatusFound, target)
}
