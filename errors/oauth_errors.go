package errors

import (
	stderrors "errors"
	"fmt"
)

// Internal auth taxonomy. Every one of these is an expected, recoverable
// condition that maps to a 400/401 at the HTTP boundary, never a crash.
// ErrStorageUnavailable is the only condition that may surface as a 5xx.
var (
	ErrInvalidCredentials         = stderrors.New("invalid credentials")
	ErrUserNotFound               = stderrors.New("user not found")
	ErrCodeNotFound               = stderrors.New("authorization code not found")
	ErrCodeExpired                = stderrors.New("authorization code expired")
	ErrCodeAlreadyUsed            = stderrors.New("authorization code already used")
	ErrPKCEVerificationFailed     = stderrors.New("pkce verification failed")
	ErrUnsupportedChallengeMethod = stderrors.New("unsupported code challenge method")
	ErrMalformedToken             = stderrors.New("malformed token")
	ErrInvalidSignature           = stderrors.New("invalid token signature")
	ErrTokenExpired               = stderrors.New("token expired")
	ErrStorageUnavailable         = stderrors.New("backing storage unavailable")
)

// OAuth2Error represents a standardized OAuth 2.0 error response body.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard OAuth2 error codes
const (
	InvalidRequest         = "invalid_request"
	AccessDenied           = "access_denied"
	UnsupportedGrantType   = "unsupported_grant_type"
	InvalidGrant           = "invalid_grant"
	InvalidToken           = "invalid_token"
	ServerError            = "server_error"
	TemporarilyUnavailable = "temporarily_unavailable"
)

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: description,
	}
}

func NewInvalidToken(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidToken,
		Description: description,
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
	}
}

func NewTemporarilyUnavailable(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        TemporarilyUnavailable,
		Description: description,
	}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: "The authorization grant type is not supported",
	}
}

// ToOAuth2Error maps an internal sentinel onto the RFC 6749 response body the
// boundary returns. ErrInvalidCredentials and ErrUserNotFound collapse into
// the same invalid_grant body so the caller cannot enumerate accounts.
func ToOAuth2Error(err error) *OAuth2Error {
	switch {
	case stderrors.Is(err, ErrInvalidCredentials), stderrors.Is(err, ErrUserNotFound):
		return NewInvalidGrant("Invalid email or password")
	case stderrors.Is(err, ErrCodeNotFound),
		stderrors.Is(err, ErrCodeExpired),
		stderrors.Is(err, ErrCodeAlreadyUsed):
		return NewInvalidGrant("Invalid or expired authorization code")
	case stderrors.Is(err, ErrPKCEVerificationFailed):
		return NewInvalidGrant("PKCE validation failed")
	case stderrors.Is(err, ErrUnsupportedChallengeMethod):
		return NewInvalidRequest("Invalid code_challenge_method")
	case stderrors.Is(err, ErrMalformedToken),
		stderrors.Is(err, ErrInvalidSignature),
		stderrors.Is(err, ErrTokenExpired):
		return NewInvalidToken("Invalid token")
	case stderrors.Is(err, ErrStorageUnavailable):
		return NewTemporarilyUnavailable("Service temporarily unavailable")
	default:
		return NewServerError("Internal server error")
	}
}
