package services

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/coinkeep/finauth/errors"
)

// DefaultAccessTokenTTL is the expiry window for access tokens when the
// caller does not override it.
const DefaultAccessTokenTTL = 30 * time.Minute

// IssuedToken is a freshly signed access token together with its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenService mints and validates the signed bearer tokens. Tokens are
// stateless: validity is recomputed from the signature and the exp claim on
// every call, nothing is stored server side.
type TokenService struct {
	signer    *TokenSigner
	verifyKey []byte
	issuer    string
	now       func() time.Time
}

// NewTokenService creates a new TokenService instance. The secret is the
// process-wide HS256 key loaded from configuration at startup.
func NewTokenService(signer *TokenSigner, secret, issuer string) *TokenService {
	return &TokenService{
		signer:    signer,
		verifyKey: []byte(secret),
		issuer:    issuer,
		now:       time.Now,
	}
}

// WithClock overrides the service clock for deterministic expiry tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue builds the claim set {sub, iat, exp, jti, iss} for a verified
// identity and signs it with the process-wide key.
func (s *TokenService) Issue(userID string, ttl time.Duration) (*IssuedToken, error) {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": userID,
		"exp": jwt.NewNumericDate(expiresAt).Unix(),
		"iat": jwt.NewNumericDate(now).Unix(),
		"jti": uuid.NewString(),
	}

	signed, err := s.signer.Sign(claims, "")
	if err != nil {
		return nil, fmt.Errorf("cannot sign token: %w", err)
	}

	return &IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Validate verifies the signature and expiry of a bearer token and returns
// the subject claim. Read-only, no I/O; protected requests call this on
// every hit.
func (s *TokenService) Validate(tokenValue string) (string, error) {
	parsed, err := jwt.Parse(tokenValue,
		func(token *jwt.Token) (any, error) {
			return s.verifyKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case stderrors.Is(err, jwt.ErrTokenMalformed):
			return "", errors.ErrMalformedToken
		case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", errors.ErrInvalidSignature
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return "", errors.ErrTokenExpired
		default:
			return "", fmt.Errorf("%w: %v", errors.ErrMalformedToken, err)
		}
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.ErrMalformedToken
	}

	return subject, nil
}
