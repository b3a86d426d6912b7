package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/repository"
	"github.com/splax/expensetracker/pkg/crypto"
	jwtpkg "github.com/splax/expensetracker/pkg/jwt"
)

// TokenTypeBearer is the token_type reported with every issued token.
const TokenTypeBearer = "bearer"

var (
	// ErrInvalidInput indicates a required registration field is empty.
	ErrInvalidInput = errors.New("auth: username, email and password are required")
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("auth: incorrect username or password")
	// ErrInvalidToken is returned for every token that fails verification.
	ErrInvalidToken = jwtpkg.ErrInvalidToken
	// ErrIdentityNotFound indicates a valid token whose subject no longer exists.
	ErrIdentityNotFound = errors.New("auth: token subject not found")
	// ErrPasswordTooLong also matches ErrInvalidInput.
	ErrPasswordTooLong = crypto.ErrPasswordTooLong

	ErrDuplicateUsername = repository.ErrDuplicateUsername
	ErrDuplicateEmail    = repository.ErrDuplicateEmail
)

// Config carries the settings the service needs from the API configuration.
type Config struct {
	AccessTokenTTL time.Duration
}

// Service handles registration, credential checks and bearer token resolution.
type Service struct {
	users  repository.UserRepository
	hasher *crypto.Hasher
	tokens *jwtpkg.Service
	logger *slog.Logger
	cfg    Config
}

// New constructs a Service.
func New(users repository.UserRepository, hasher *crypto.Hasher, tokens *jwtpkg.Service, logger *slog.Logger, cfg Config) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{users: users, hasher: hasher, tokens: tokens, logger: logger, cfg: cfg}
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

// Register creates a user after checking that the username and email are free.
func (s Service) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	// the store's unique constraints catch a registration racing this one
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate returns the user whose stored hash verifies password. The
// username is trimmed the same way Register trims it.
func (s Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("login rejected", "username", username, "reason", "unknown_user")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Info("login rejected", "username", username, "reason", "bad_password")
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the user and issues an access token whose subject is the username.
func (s Service) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, err
	}
	ttl := s.cfg.AccessTokenTTL
	access, err := s.tokens.Issue(user.Username, ttl)
	if err != nil {
		return Token{}, fmt.Errorf("issue token: %w", err)
	}
	if ttl <= 0 {
		ttl = s.tokens.DefaultTTL()
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return Token{AccessToken: access, TokenType: TokenTypeBearer, ExpiresIn: ttl}, nil
}

// Authorize validates a bearer token and returns the user it names.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrInvalidToken
	}
	username, err := s.tokens.Decode(trimmed)
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		return nil, err
	}
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("token rejected", "username", username, "reason", "unknown_subject")
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("resolve token subject: %w", err)
	}
	return user, nil
}
