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

// AuthService verifies login credentials against the stored password hashes.
type AuthService struct {
	userRepo domain.UserRepository
	hasher   PasswordHasher
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(userRepo domain.UserRepository, hasher PasswordHasher) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
	}
}

// Authenticate looks up the user by email and verifies the password against
// the stored bcrypt hash. ErrUserNotFound and ErrInvalidCredentials are kept
// distinct internally; the boundary collapses them into one response.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		log.Debug().Str("email", email).Msg("Login attempt for unknown email")
		return "", errors.ErrUserNotFound
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		log.Debug().Str("user_id", user.ID).Msg("Login attempt with wrong password")
		return "", errors.ErrInvalidCredentials
	}

	return user.ID, nil
}

// Signup hashes the password and creates the user record. The finance API
// owns profile updates; this exists so the auth service can seed and test
// accounts without reaching around the repository.
func (s *AuthService) Signup(ctx context.Context, email, password string) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}
