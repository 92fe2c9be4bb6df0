// Package echo exposes the HTTP surface of the server.
package echo

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/recipebook/recipebook-server/config"
	"github.com/recipebook/recipebook-server/domain"
	apperrors "github.com/recipebook/recipebook-server/errors"
	"github.com/recipebook/recipebook-server/internal/federation"
	"github.com/recipebook/recipebook-server/internal/ratelimit"
	"github.com/recipebook/recipebook-server/middleware"
	"github.com/recipebook/recipebook-server/services"
)

// HealthChecker reports backing-store liveness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// API holds the handler dependencies and registers all routes.
type API struct {
	cfg          *config.ServerConfig
	health       HealthChecker
	authService  *services.AuthService
	identities   *services.IdentityService
	entitlements *services.EntitlementService
	recipes      *services.RecipeService
	authn        *middleware.Authenticator
	providers    map[domain.AuthProvider]federation.Provider
	states       *federation.StateStore
	limiter      ratelimit.Limiter
	registry     *prometheus.Registry
}

func NewAPI(
	cfg *config.ServerConfig,
	health HealthChecker,
	authService *services.AuthService,
	identities *services.IdentityService,
	entitlements *services.EntitlementService,
	recipes *services.RecipeService,
	authn *middleware.Authenticator,
	providers map[domain.AuthProvider]federation.Provider,
	states *federation.StateStore,
	limiter ratelimit.Limiter,
	registry *prometheus.Registry,
) *API {
	return &API{
		cfg:          cfg,
		health:       health,
		authService:  authService,
		identities:   identities,
		entitlements: entitlements,
		recipes:      recipes,
		authn:        authn,
		providers:    providers,
		states:       states,
		limiter:      limiter,
		registry:     registry,
	}
}

// RegisterRoutes wires all endpoints onto the echo instance.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.GET("/", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", a.RegisterHandler, a.rateLimited)
	auth.POST("/login", a.LoginHandler, a.rateLimited)
	auth.GET("/me", a.MeHandler, a.authn.RequireAuth)
	auth.GET("/:provider", a.OAuthStartHandler)
	auth.GET("/:provider/callback", a.OAuthCallbackHandler)

	payments := api.Group("/payments")
	payments.POST("/validate-iap", a.ValidateIAPHandler, a.authn.RequireAuth)
	payments.POST("/webhook", a.StripeWebhookHandler)

	recipes := api.Group("/recipes", a.authn.RequireAuth)
	recipes.GET("", a.ListRecipesHandler)
	recipes.GET("/:id", a.GetRecipeHandler)
	recipes.POST("", a.CreateRecipeHandler, middleware.RequireAdmin)
}

// HealthHandler reports liveness, including the backing store.
func (a *API) HealthHandler(c echo.Context) error {
	if err := a.health.Ping(c.Request().Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed to reach the store")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// RegisterHandler creates a local password account.
func (a *API) RegisterHandler(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperrors.NewInputInvalid("invalid request body"))
	}

	result, err := a.authService.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, authResponse{Token: result.Token, User: result.User})
}

// LoginHandler verifies credentials and issues a token.
func (a *API) LoginHandler(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperrors.NewInputInvalid("invalid request body"))
	}

	result, err := a.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

// MeHandler returns the authenticated account with its derived permissions.
func (a *API) MeHandler(c echo.Context) error {
	user := middleware.UserFromContext(c)
	return c.JSON(http.StatusOK, echo.Map{
		"user":        user,
		"permissions": user.Permissions(),
	})
}

// ValidateIAPHandler processes an in-app purchase receipt for the
// authenticated user.
func (a *API) ValidateIAPHandler(c echo.Context) error {
	user := middleware.UserFromContext(c)

	var req services.IAPRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperrors.NewInputInvalid("invalid request body"))
	}

	result, err := a.entitlements.ValidateIAP(c.Request().Context(), user.ID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// StripeWebhookHandler receives webhook deliveries. The raw body is read
// before any decoding because signature verification covers the exact bytes
// on the wire.
func (a *API) StripeWebhookHandler(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeError(c, apperrors.NewInputInvalid("failed to read request body"))
	}
	sigHeader := c.Request().Header.Get("Stripe-Signature")

	result, err := a.entitlements.HandleStripeEvent(c.Request().Context(), payload, sigHeader)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListRecipesHandler returns all recipes shaped for the caller's entitlement.
func (a *API) ListRecipesHandler(c echo.Context) error {
	user := middleware.UserFromContext(c)

	views, err := a.recipes.List(c.Request().Context(), user)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, views)
}

// GetRecipeHandler returns a single recipe in full, or 403 for premium
// recipes when the caller is not entitled.
func (a *API) GetRecipeHandler(c echo.Context) error {
	user := middleware.UserFromContext(c)

	recipe, err := a.recipes.Get(c.Request().Context(), user, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, recipe)
}

// CreateRecipeHandler stores a new recipe. Admin only.
func (a *API) CreateRecipeHandler(c echo.Context) error {
	user := middleware.UserFromContext(c)

	var recipe domain.Recipe
	if err := c.Bind(&recipe); err != nil {
		return writeError(c, apperrors.NewInputInvalid("invalid request body"))
	}

	created, err := a.recipes.Create(c.Request().Context(), user, &recipe)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// rateLimited throttles an endpoint by caller IP.
func (a *API) rateLimited(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !a.limiter.Allow(c.Request().Context(), c.RealIP()) {
			log.Warn().Str("ip", c.RealIP()).Str("path", c.Path()).Msg("Rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":   "rate_limited",
				"message": "too many requests, try again later",
			})
		}
		return next(c)
	}
}

func writeError(c echo.Context, err error) error {
	apiErr := apperrors.AsAPIError(err)
	status := apperrors.HTTPStatus(apiErr)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	return c.JSON(status, apiErr)
}
