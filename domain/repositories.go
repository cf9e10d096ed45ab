package domain

import "context"

// UserRepository defines the credential lookup the auth core consumes. The
// finance API owns the user collection; the auth core only reads it, plus
// CreateUser for signup and seeding.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
}

// AuthCodeRepository manages the single-use lifecycle of authorization codes.
type AuthCodeRepository interface {
	// SaveAuthCode stores a freshly issued code. The record's ExpiresAt
	// bounds its lifetime; backings may retain it slightly longer so a
	// first-touch lookup of an expired code can still be distinguished
	// from a code that never existed.
	SaveAuthCode(ctx context.Context, code *AuthCode) error

	// ConsumeAuthCode atomically fetches the record and marks it used,
	// returning the record as it was before the mark. Concurrent calls on
	// the same code observe Used=false exactly once. A missing code
	// returns errors.ErrCodeNotFound.
	ConsumeAuthCode(ctx context.Context, code string) (*AuthCode, error)

	// DeleteExpiredAuthCodes removes codes past their retention window.
	DeleteExpiredAuthCodes(ctx context.Context) error
}
