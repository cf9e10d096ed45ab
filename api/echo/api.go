//nolint:varnamelen
package echo

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/coinkeep/finauth/api"
	"github.com/coinkeep/finauth/domain"
	"github.com/coinkeep/finauth/errors"
	"github.com/coinkeep/finauth/services"
)

// AuthAPI struct to hold dependencies.
type AuthAPI struct {
	authService  *services.AuthService
	codeService  *services.AuthCodeService
	tokenService *services.TokenService
	userRepo     domain.UserRepository
	tokenTTL     time.Duration
	codeTTL      time.Duration
}

// NewAuthAPI initializes the auth API.
func NewAuthAPI(
	authService *services.AuthService,
	codeService *services.AuthCodeService,
	tokenService *services.TokenService,
	userRepo domain.UserRepository,
	tokenTTL, codeTTL time.Duration,
) *AuthAPI {
	if tokenTTL <= 0 {
		tokenTTL = services.DefaultAccessTokenTTL
	}
	if codeTTL <= 0 {
		codeTTL = services.DefaultAuthCodeTTL
	}
	return &AuthAPI{
		authService:  authService,
		codeService:  codeService,
		tokenService: tokenService,
		userRepo:     userRepo,
		tokenTTL:     tokenTTL,
		codeTTL:      codeTTL,
	}
}

// RegisterRoutes registers the auth routes.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	requireAuth := RequireAuth(a.tokenService)

	e.POST("/auth/login", a.LoginHandler)
	e.POST("/auth/authorize", a.AuthorizeHandler, requireAuth)
	e.POST("/auth/token", a.TokenHandler)
	e.GET("/auth/userinfo", a.UserInfoHandler, requireAuth)
	e.GET("/healthz", a.HealthHandler)
}

// LoginHandler is the direct login variant: email and password are verified
// and an access token is minted straight away, skipping the code store.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	email := c.FormValue("email")
	password := c.FormValue("password")

	if email == "" || password == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("email and password are required"))
	}

	ctx := c.Request().Context()

	userID, err := a.authService.Authenticate(ctx, email, password)
	if err != nil {
		// Unknown email and wrong password produce the same body.
		log.Debug().Err(err).Msg("Login failed")
		return c.JSON(statusFor(err), errors.ToOAuth2Error(err))
	}

	return a.respondWithToken(c, userID)
}

// AuthorizeHandler approves an authorization request for the already
// authenticated user: it binds the PKCE challenge to a fresh single-use code
// and returns the code to the client.
func (a *AuthAPI) AuthorizeHandler(c echo.Context) error {
	clientID := c.FormValue("client_id")
	redirectURI := c.FormValue("redirect_uri")
	codeChallenge := c.FormValue("code_challenge")
	challengeMethod := c.FormValue("code_challenge_method")

	if clientID == "" || redirectURI == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("client_id and redirect_uri are required"))
	}
	if codeChallenge == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("code_challenge is required"))
	}
	if challengeMethod == "" {
		challengeMethod = string(services.ChallengeMethodS256)
	}

	method, err := services.ParseChallengeMethod(challengeMethod)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errors.ToOAuth2Error(err))
	}

	userID := UserID(c)
	ctx := c.Request().Context()

	code, err := a.codeService.Issue(ctx, userID, clientID, redirectURI, codeChallenge, method, a.codeTTL)
	if err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("Failed to issue authorization code")
		return c.JSON(statusFor(err), errors.ToOAuth2Error(err))
	}

	return c.JSON(http.StatusOK, api.AuthorizeResponse{AuthCode: code})
}

// TokenHandler exchanges a single-use authorization code plus its PKCE
// verifier for an access token.
func (a *AuthAPI) TokenHandler(c echo.Context) error {
	grantType := c.FormValue("grant_type")
	code := c.FormValue("code")
	codeVerifier := c.FormValue("code_verifier")

	if grantType != "authorization_code" {
		return c.JSON(http.StatusBadRequest, errors.NewUnsupportedGrantType())
	}
	if code == "" || codeVerifier == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("code and code_verifier are required"))
	}

	ctx := c.Request().Context()

	userID, err := a.codeService.Consume(ctx, code, codeVerifier)
	if err != nil {
		log.Debug().Err(err).Msg("Authorization code exchange failed")
		return c.JSON(statusFor(err), errors.ToOAuth2Error(err))
	}

	return a.respondWithToken(c, userID)
}

// UserInfoHandler returns the identity behind the presented bearer token. It
// doubles as the reference for how protected finance routes consume the
// middleware.
func (a *AuthAPI) UserInfoHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := a.userRepo.GetUserByID(ctx, UserID(c))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load user for userinfo")
		return c.JSON(statusFor(err), errors.ToOAuth2Error(err))
	}

	return c.JSON(http.StatusOK, api.UserInfoResponse{ID: user.ID, Email: user.Email})
}

// HealthHandler is a liveness probe.
func (a *AuthAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (a *AuthAPI) respondWithToken(c echo.Context, userID string) error {
	token, err := a.tokenService.Issue(userID, a.tokenTTL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign access token")
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("Failed to generate token"))
	}

	return c.JSON(http.StatusOK, api.TokenResponse{
		AccessToken: token.Value,
		TokenType:   api.TokenTypeBearer,
		ExpiresIn:   int(a.tokenTTL.Seconds()),
	})
}

// statusFor picks the HTTP status for an internal auth error. Storage
// trouble is the only 5xx; token failures are 401; everything else is a 400
// the caller can correct.
func statusFor(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case stderrors.Is(err, errors.ErrMalformedToken),
		stderrors.Is(err, errors.ErrInvalidSignature),
		stderrors.Is(err, errors.ErrTokenExpired):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
