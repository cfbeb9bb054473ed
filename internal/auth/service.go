package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// dummyHash is verified against when a username is unknown so failed
// logins take the same time whether or not the account exists.
var dummyHash = func() string {
	h, err := HashPassword("garage-core-timing-equaliser")
	if err != nil {
		panic(err)
	}
	return h
}()

// Service implements login, password change and account creation.
type Service struct {
	users    UserRepository
	secret   string
	tokenTTL time.Duration
}

// NewService returns a Service signing tokens with secret for ttl.
func NewService(users UserRepository, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{users: users, secret: secret, tokenTTL: ttl}
}

// TokenTTL returns the lifetime given to issued tokens.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Login checks credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = VerifyPassword(password, dummyHash) //nolint:errcheck // timing only
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateAccessToken(user, s.secret, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ChangePassword replaces userID's password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// CreateUser adds an account. An empty role means RoleUser.
func (s *Service) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	if !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{Username: username, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Resolve returns the account for id. It satisfies the scheduler's owner lookup.
func (s *Service) Resolve(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}
