package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinkeep/finauth/errors"
	"github.com/coinkeep/finauth/services"
)

const testSecret = "test-secret-key"

func newTokenService(secret string) *services.TokenService {
	signer := services.NewTokenSigner()
	signer.AddKeySigner(secret)
	return services.NewTokenService(signer, secret, "finauth-test")
}

func TestTokenIssueAndValidate(t *testing.T) {
	svc := newTokenService(testSecret)

	token, err := svc.Issue("user-42", 30*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token.Value)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), token.ExpiresAt, 5*time.Second)

	userID, err := svc.Validate(token.Value)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestTokenValidateExpired(t *testing.T) {
	issuedAt := time.Now()
	svc := newTokenService(testSecret).WithClock(func() time.Time { return issuedAt })

	token, err := svc.Issue("user-42", time.Minute)
	require.NoError(t, err)

	// Still valid just before expiry.
	svc.WithClock(func() time.Time { return issuedAt.Add(30 * time.Second) })
	_, err = svc.Validate(token.Value)
	require.NoError(t, err)

	// Advance the clock past the TTL; no sleeping.
	svc.WithClock(func() time.Time { return issuedAt.Add(2 * time.Minute) })
	_, err = svc.Validate(token.Value)
	assert.ErrorIs(t, err, errors.ErrTokenExpired)
}

func TestTokenValidateWrongKey(t *testing.T) {
	issuer := newTokenService("key-one")
	validator := newTokenService("key-two")

	token, err := issuer.Issue("user-42", time.Minute)
	require.NoError(t, err)

	_, err = validator.Validate(token.Value)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestTokenValidateMalformed(t *testing.T) {
	svc := newTokenService(testSecret)

	for _, garbage := range []string{"", "not-a-jwt", "a.b", "a.b.c.d"} {
		_, err := svc.Validate(garbage)
		assert.ErrorIs(t, err, errors.ErrMalformedToken, "input %q", garbage)
	}
}

func TestTokenIssueDefaultTTL(t *testing.T) {
	svc := newTokenService(testSecret)

	token, err := svc.Issue("user-42", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(services.DefaultAccessTokenTTL), token.ExpiresAt, 5*time.Second)
}
