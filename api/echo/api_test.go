package echo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinkeep/finauth/api"
	echoapi "github.com/coinkeep/finauth/api/echo"
	"github.com/coinkeep/finauth/cache"
	"github.com/coinkeep/finauth/domain"
	"github.com/coinkeep/finauth/errors"
	"github.com/coinkeep/finauth/internal/auth"
	"github.com/coinkeep/finauth/services"
)

// memUserRepo is a map-backed domain.UserRepository for handler tests.
type memUserRepo struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[string]*domain.User),
	}
}

func (r *memUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *memUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return user, nil
}

type testEnv struct {
	e      *echo.Echo
	userID string
}

func setupAPI(t *testing.T) *testEnv {
	t.Helper()

	userRepo := newMemUserRepo()
	hasher := auth.NewBcryptPasswordHasher(4)
	store := cache.NewMemoryCodeStore()
	t.Cleanup(func() { _ = store.Close() })

	signer := services.NewTokenSigner()
	signer.AddKeySigner("test-secret-key")

	authService := services.NewAuthService(userRepo, hasher)
	codeService := services.NewAuthCodeService(store)
	tokenService := services.NewTokenService(signer, "test-secret-key", "finauth-test")

	user, err := authService.Signup(context.Background(), "a@b.com", "right")
	require.NoError(t, err)

	authAPI := echoapi.NewAuthAPI(authService, codeService, tokenService, userRepo,
		30*time.Minute, 10*time.Minute)

	e := echo.New()
	authAPI.RegisterRoutes(e)

	return &testEnv{e: e, userID: user.ID}
}

func (env *testEnv) postForm(path, bearer string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) get(path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := env.postForm("/auth/login", "", url.Values{
		"email":    {"a@b.com"},
		"password": {"right"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestLoginReturnsBearerToken(t *testing.T) {
	env := setupAPI(t)

	rec := env.postForm("/auth/login", "", url.Values{
		"email":    {"a@b.com"},
		"password": {"right"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, int((30 * time.Minute).Seconds()), resp.ExpiresIn)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := setupAPI(t)

	wrongPassword := env.postForm("/auth/login", "", url.Values{
		"email":    {"a@b.com"},
		"password": {"wrong"},
	})
	unknownEmail := env.postForm("/auth/login", "", url.Values{
		"email":    {"unknown@b.com"},
		"password": {"x"},
	})

	assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	assert.Equal(t, http.StatusBadRequest, unknownEmail.Code)
	// Same status and same body: no account enumeration through login.
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestAuthorizationCodeFlow(t *testing.T) {
	env := setupAPI(t)
	bearer := env.login(t)

	challenge, err := services.ChallengeFromVerifier("verifier123", services.ChallengeMethodS256)
	require.NoError(t, err)

	// Authorize: authenticated user approves the client and binds the challenge.
	rec := env.postForm("/auth/authorize", bearer, url.Values{
		"client_id":             {"finance-web"},
		"redirect_uri":          {"http://localhost:3000/callback"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var authz api.AuthorizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &authz))
	require.NotEmpty(t, authz.AuthCode)

	// Exchange the code with the matching verifier.
	rec = env.postForm("/auth/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {authz.AuthCode},
		"code_verifier": {"verifier123"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var token api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "bearer", token.TokenType)

	// The minted token authenticates the original user.
	rec = env.get("/auth/userinfo", token.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var info api.UserInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, env.userID, info.ID)
	assert.Equal(t, "a@b.com", info.Email)

	// The code is single use: a second exchange fails.
	rec = env.postForm("/auth/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {authz.AuthCode},
		"code_verifier": {"verifier123"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), errors.InvalidGrant)
}

func TestTokenExchangeWrongVerifierBurnsCode(t *testing.T) {
	env := setupAPI(t)
	bearer := env.login(t)

	challenge, err := services.ChallengeFromVerifier("verifier123", services.ChallengeMethodS256)
	require.NoError(t, err)

	rec := env.postForm("/auth/authorize", bearer, url.Values{
		"client_id":             {"finance-web"},
		"redirect_uri":          {"http://localhost:3000/callback"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var authz api.AuthorizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &authz))

	rec = env.postForm("/auth/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {authz.AuthCode},
		"code_verifier": {"not-the-verifier"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Even the correct verifier cannot retry a burned code.
	rec = env.postForm("/auth/token", "", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {authz.AuthCode},
		"code_verifier": {"verifier123"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), errors.InvalidGrant)
}

func TestTokenEndpointRejectsUnknownGrantType(t *testing.T) {
	env := setupAPI(t)

	rec := env.postForm("/auth/token", "", url.Values{
		"grant_type":    {"client_credentials"},
		"code":          {"whatever"},
		"code_verifier": {"whatever"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), errors.UnsupportedGrantType)
}

func TestAuthorizeRequiresAuthentication(t *testing.T) {
	env := setupAPI(t)

	rec := env.postForm("/auth/authorize", "", url.Values{
		"client_id":             {"finance-web"},
		"redirect_uri":          {"http://localhost:3000/callback"},
		"code_challenge":        {"whatever"},
		"code_challenge_method": {"S256"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorizeValidatesChallenge(t *testing.T) {
	env := setupAPI(t)
	bearer := env.login(t)

	missingChallenge := env.postForm("/auth/authorize", bearer, url.Values{
		"client_id":    {"finance-web"},
		"redirect_uri": {"http://localhost:3000/callback"},
	})
	assert.Equal(t, http.StatusBadRequest, missingChallenge.Code)
	assert.Contains(t, missingChallenge.Body.String(), errors.InvalidRequest)

	badMethod := env.postForm("/auth/authorize", bearer, url.Values{
		"client_id":             {"finance-web"},
		"redirect_uri":          {"http://localhost:3000/callback"},
		"code_challenge":        {"whatever"},
		"code_challenge_method": {"S512"},
	})
	assert.Equal(t, http.StatusBadRequest, badMethod.Code)
	assert.Contains(t, badMethod.Body.String(), errors.InvalidRequest)
}

func TestProtectedRouteRejectsBadTokens(t *testing.T) {
	env := setupAPI(t)

	assert.Equal(t, http.StatusUnauthorized, env.get("/auth/userinfo", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.get("/auth/userinfo", "garbage").Code)

	// Token signed with a different key.
	otherSigner := services.NewTokenSigner()
	otherSigner.AddKeySigner("other-secret")
	otherService := services.NewTokenService(otherSigner, "other-secret", "finauth-test")
	forged, err := otherService.Issue(env.userID, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, env.get("/auth/userinfo", forged.Value).Code)
}

func TestHealthz(t *testing.T) {
	env := setupAPI(t)

	rec := env.get("/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
