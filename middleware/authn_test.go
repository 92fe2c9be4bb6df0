package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebook/recipebook-server/domain"
	"github.com/recipebook/recipebook-server/internal/auth"
)

type stubUserRepo struct {
	user *domain.User
}

func (r *stubUserRepo) CreateUser(context.Context, *domain.User) error { return nil }

func (r *stubUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, domain.ErrNotFound
}

func (r *stubUserRepo) GetUserByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (r *stubUserRepo) GetUserByProvider(context.Context, domain.AuthProvider, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (r *stubUserRepo) UpdateUser(context.Context, *domain.User) error { return nil }

func (r *stubUserRepo) SetSubscription(context.Context, string, domain.SubscriptionStatus, *time.Time, string) error {
	return nil
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func performRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := mw(okHandler)(c)
	require.NoError(t, err)
	return rec
}

func TestRequireAuth_ValidToken(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour)
	user := &domain.User{ID: "user-1", Role: domain.RoleUser}
	authn := NewAuthenticator(tokens, &stubUserRepo{user: user})

	token, err := tokens.Issue("user-1", domain.RoleUser)
	require.NoError(t, err)

	rec := performRequest(t, authn.RequireAuth, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour)
	authn := NewAuthenticator(tokens, &stubUserRepo{})

	rec := performRequest(t, authn.RequireAuth, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour)
	authn := NewAuthenticator(tokens, &stubUserRepo{})

	rec := performRequest(t, authn.RequireAuth, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	expired := auth.NewTokenService("secret", -time.Minute)
	token, err := expired.Issue("user-1", domain.RoleUser)
	require.NoError(t, err)

	authn := NewAuthenticator(auth.NewTokenService("secret", time.Hour), &stubUserRepo{})
	rec := performRequest(t, authn.RequireAuth, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_DeletedAccount(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour)
	token, err := tokens.Issue("gone-user", domain.RoleUser)
	require.NoError(t, err)

	authn := NewAuthenticator(tokens, &stubUserRepo{})
	rec := performRequest(t, authn.RequireAuth, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()

	run := func(user *domain.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if user != nil {
			c.Set(userContextKey, user)
		}
		require.NoError(t, RequireAdmin(okHandler)(c))
		return rec
	}

	assert.Equal(t, http.StatusOK, run(&domain.User{ID: "a", Role: domain.RoleAdmin}).Code)
	assert.Equal(t, http.StatusForbidden, run(&domain.User{ID: "u", Role: domain.RoleUser}).Code)
	assert.Equal(t, http.StatusForbidden, run(nil).Code)
}
