package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinkeep/finauth/domain"
	"github.com/coinkeep/finauth/errors"
)

// DefaultAuthCodeTTL mirrors the ten minute expiry the authorize endpoint
// has always used.
const DefaultAuthCodeTTL = 10 * time.Minute

// AuthCodeService manages the single-use, time-bounded lifecycle of
// authorization codes. The repository provides the atomic fetch-and-mark;
// this service owns expiry and PKCE decisions.
type AuthCodeService struct {
	repo domain.AuthCodeRepository
	now  func() time.Time
}

// NewAuthCodeService creates a new AuthCodeService instance.
func NewAuthCodeService(repo domain.AuthCodeRepository) *AuthCodeService {
	return &AuthCodeService{
		repo: repo,
		now:  time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to drive expiry
// without sleeping.
func (s *AuthCodeService) WithClock(now func() time.Time) *AuthCodeService {
	s.now = now
	return s
}

// Issue generates an unguessable authorization code bound to the user, the
// client context and the PKCE challenge, stores it with the given TTL and
// returns the code value.
func (s *AuthCodeService) Issue(
	ctx context.Context,
	userID, clientID, redirectURI, codeChallenge string,
	method CodeChallengeMethod,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		ttl = DefaultAuthCodeTTL
	}

	now := s.now()
	authCode := &domain.AuthCode{
		Code:                uuid.NewString(),
		UserID:              userID,
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: string(method),
		ExpiresAt:           now.Add(ttl),
		Used:                false,
		CreatedAt:           now,
	}

	if err := s.repo.SaveAuthCode(ctx, authCode); err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("Failed to store authorization code")
		return "", fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}

	log.Debug().
		Str("client_id", clientID).
		Str("user_id", userID).
		Time("expires_at", authCode.ExpiresAt).
		Msg("Authorization code issued")

	return authCode.Code, nil
}

// Consume exchanges a code for the user identity bound to it. The repository
// marks the code used atomically before any check runs, so every code gets
// exactly one exchange attempt: a second call, an expired code or a wrong
// verifier all fail, and a failed attempt cannot be retried.
func (s *AuthCodeService) Consume(ctx context.Context, code, verifier string) (string, error) {
	record, err := s.repo.ConsumeAuthCode(ctx, code)
	if err != nil {
		return "", err
	}

	if record.Used {
		log.Warn().Str("client_id", record.ClientID).Msg("Authorization code replay attempt")
		return "", errors.ErrCodeAlreadyUsed
	}

	if record.ExpiredAt(s.now()) {
		return "", errors.ErrCodeExpired
	}

	// The challenge method is bound to the code at issue time; the exchange
	// request cannot downgrade it.
	method := CodeChallengeMethod(record.CodeChallengeMethod)
	if !VerifierMatches(record.CodeChallenge, verifier, method) {
		log.Warn().Str("client_id", record.ClientID).Msg("PKCE verification failed for authorization code")
		return "", errors.ErrPKCEVerificationFailed
	}

	return record.UserID, nil
}
