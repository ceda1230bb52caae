package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vovakirdan/marketchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when name/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned when registering a taken name.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidName is returned when a display name doesn't meet constraints.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

const (
	minNameLen     = 3
	maxNameLen     = 32
	minPasswordLen = 6
)

// Service issues and validates chat tokens.
// Display names are not verified beyond length; guests pick their own.
type Service struct {
	store     store.AccountStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(accounts store.AccountStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     accounts,
		jwtConfig: jwtConfig,
	}
}

// Register creates an account and returns a token for it.
func (s *Service) Register(ctx context.Context, name, password string) (string, error) {
	name, err := normalizeName(name)
	if err != nil {
		return "", err
	}
	if len(password) < minPasswordLen {
		return "", ErrInvalidPassword
	}

	if existing, err := s.store.GetAccountByName(ctx, name); err == nil && existing != nil {
		return "", ErrAccountExists
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	acc, err := s.store.CreateAccount(ctx, name, hashed)
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}

	return s.issue(acc.ID, acc.Name, false)
}

// Login validates credentials and returns a token.
func (s *Service) Login(ctx context.Context, name, password string) (string, error) {
	acc, err := s.store.GetAccountByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := ComparePassword(acc.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.issue(acc.ID, acc.Name, false)
}

// Guest creates a guest account and returns a token speaking as displayName.
func (s *Service) Guest(ctx context.Context, displayName string) (token, sessionID string, err error) {
	displayName, err = normalizeName(displayName)
	if err != nil {
		return "", "", err
	}

	sessionID = strings.ReplaceAll(uuid.NewString(), "-", "")
	acc, err := s.store.CreateGuestAccount(ctx, sessionID)
	if err != nil {
		return "", "", fmt.Errorf("create guest account: %w", err)
	}

	token, err = s.issue(acc.ID, displayName, true)
	if err != nil {
		return "", "", err
	}
	return token, sessionID, nil
}

// ValidateToken validates a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func (s *Service) issue(accountID int64, name string, guest bool) (string, error) {
	token, err := GenerateToken(s.jwtConfig, accountID, name, guest)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}
