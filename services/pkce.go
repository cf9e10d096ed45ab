package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/coinkeep/finauth/errors"
)

// CodeChallengeMethod is a PKCE transformation method (RFC 7636 section 4.2).
type CodeChallengeMethod string

const (
	ChallengeMethodPlain CodeChallengeMethod = "plain"
	ChallengeMethodS256  CodeChallengeMethod = "S256"
)

// ParseChallengeMethod validates a code_challenge_method request parameter.
func ParseChallengeMethod(s string) (CodeChallengeMethod, error) {
	switch CodeChallengeMethod(s) {
	case ChallengeMethodPlain, ChallengeMethodS256:
		return CodeChallengeMethod(s), nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnsupportedChallengeMethod, s)
	}
}

// ChallengeFromVerifier derives the code challenge for a verifier. For S256
// the challenge is the unpadded URL-safe base64 of the SHA-256 digest of the
// verifier; for plain it is the verifier itself.
func ChallengeFromVerifier(verifier string, method CodeChallengeMethod) (string, error) {
	if verifier == "" {
		return "", fmt.Errorf("%w: empty code verifier", errors.ErrPKCEVerificationFailed)
	}

	switch method {
	case ChallengeMethodPlain:
		return verifier, nil
	case ChallengeMethodS256:
		digest := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(digest[:]), nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnsupportedChallengeMethod, method)
	}
}

// VerifierMatches recomputes the challenge from the presented verifier and
// compares it to the stored one. The comparison is constant time so the
// stored challenge cannot be probed byte by byte.
func VerifierMatches(storedChallenge, verifier string, method CodeChallengeMethod) bool {
	computed, err := ChallengeFromVerifier(verifier, method)
	if err != nil {
		return false
	}
	if len(computed) != len(storedChallenge) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedChallenge)) == 1
}
