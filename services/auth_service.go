package services

import (
	"context"
	"errors"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/recipebook/recipebook-server/domain"
	apperrors "github.com/recipebook/recipebook-server/errors"
	"github.com/recipebook/recipebook-server/internal/auth"
	"github.com/recipebook/recipebook-server/internal/metrics"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

// AuthResult carries a freshly issued token and the account it belongs to.
type AuthResult struct {
	Token string
	User  *domain.User
}

// AuthService handles local registration and login. Plaintext passwords
// never leave this service unhashed.
type AuthService struct {
	users  domain.UserRepository
	hasher auth.PasswordHasher
	tokens *auth.TokenService
}

func NewAuthService(users domain.UserRepository, hasher auth.PasswordHasher, tokens *auth.TokenService) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens}
}

// Register creates a local password account and issues a token.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, apperrors.NewInputInvalid("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewInputInvalid("password must be at least 8 characters")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternal("failed to create account", err)
	}

	user := &domain.User{
		Email:              email,
		PasswordHash:       hash,
		AuthProvider:       domain.AuthProviderLocal,
		Role:               domain.RoleUser,
		SubscriptionStatus: domain.SubscriptionFree,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, apperrors.NewConflict("user already exists")
		}
		return nil, apperrors.NewInternal("failed to create account", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternal("failed to issue token", err)
	}

	metrics.UserRegisteredTotal.Inc()
	log.Info().Str("userID", user.ID).Msg("User registered")
	return &AuthResult{Token: token, User: user}, nil
}

// IssueToken mints a token for an already authenticated account. Used by the
// OAuth callback after reconciliation.
func (s *AuthService) IssueToken(user *domain.User) (string, error) {
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return "", apperrors.NewInternal("failed to issue token", err)
	}
	return token, nil
}

// Login verifies credentials and issues a token. All credential failures
// collapse into the same generic message.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		metrics.LoginFailureTotal.Inc()
		return nil, apperrors.NewUnauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.NewInternal("login failed", err)
	}

	if user.PasswordHash == "" {
		// Social-only account; there is no password to check.
		metrics.LoginFailureTotal.Inc()
		return nil, apperrors.NewUnauthenticated("please sign in with your social account")
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		metrics.LoginFailureTotal.Inc()
		return nil, apperrors.NewUnauthenticated("invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternal("failed to issue token", err)
	}

	metrics.LoginSuccessTotal.Inc()
	log.Debug().Str("userID", user.ID).Msg("User logged in")
	return &AuthResult{Token: token, User: user}, nil
}
