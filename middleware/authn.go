package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/recipebook/recipebook-server/domain"
	apperrors "github.com/recipebook/recipebook-server/errors"
	"github.com/recipebook/recipebook-server/internal/auth"
)

// userContextKey is the echo context key holding the authenticated *domain.User.
const userContextKey = "auth_user"

// Authenticator validates bearer tokens and loads the account behind them.
type Authenticator struct {
	tokens *auth.TokenService
	users  domain.UserRepository
}

func NewAuthenticator(tokens *auth.TokenService, users domain.UserRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// RequireAuth rejects requests without a valid Bearer token. On success the
// loaded user is stored on the echo context for handlers downstream.
func (a *Authenticator) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return unauthenticated(c, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return unauthenticated(c, "invalid authorization header format: expected Bearer token")
		}

		claims, err := a.tokens.Verify(parts[1])
		if err != nil {
			return unauthenticated(c, "invalid or expired token")
		}

		user, err := a.users.GetUserByID(c.Request().Context(), claims.Subject)
		if err != nil {
			// Token may outlive the account it was issued for.
			return unauthenticated(c, "invalid or expired token")
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireAdmin allows only admin accounts through. It must run after
// RequireAuth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := UserFromContext(c)
		if user == nil || user.Role != domain.RoleAdmin {
			apiErr := apperrors.NewUnauthorized("admin access required")
			return c.JSON(http.StatusForbidden, apiErr)
		}
		return next(c)
	}
}

// UserFromContext returns the authenticated user set by RequireAuth, or nil.
func UserFromContext(c echo.Context) *domain.User {
	user, _ := c.Get(userContextKey).(*domain.User)
	return user
}

func unauthenticated(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, apperrors.NewUnauthenticated(msg))
}
