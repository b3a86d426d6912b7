// Package account manages the profile and password of an authenticated user.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/repository"
	"github.com/splax/expensetracker/pkg/crypto"
)

var (
	ErrInvalidInput         = errors.New("account: invalid input")
	ErrWrongCurrentPassword = errors.New("account: current password is incorrect")
	ErrDuplicateEmail       = repository.ErrDuplicateEmail
	ErrNoActor              = errors.New("account: no authenticated user")
	ErrPasswordTooLong      = crypto.ErrPasswordTooLong
)

// ProfileInput lists the profile fields a user may change. Nil means unchanged.
type ProfileInput struct {
	Email *string
}

// Service implements self-service account operations.
type Service struct {
	users  repository.UserRepository
	hasher *crypto.Hasher
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, hasher *crypto.Hasher, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{users: users, hasher: hasher, logger: logger}
}

func (s Service) reload(ctx context.Context, actor *domain.User) (*domain.User, error) {
	if actor == nil {
		return nil, ErrNoActor
	}
	user, err := s.users.GetUserByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", actor.ID, err)
	}
	return user, nil
}

// Profile returns the current stored state of actor.
func (s Service) Profile(ctx context.Context, actor *domain.User) (*domain.User, error) {
	return s.reload(ctx, actor)
}

// UpdateProfile applies in to actor. The username never changes.
func (s Service) UpdateProfile(ctx context.Context, actor *domain.User, in ProfileInput) (*domain.User, error) {
	user, err := s.reload(ctx, actor)
	if err != nil {
		return nil, err
	}
	if in.Email == nil {
		return user, nil
	}
	email := strings.TrimSpace(*in.Email)
	if email == "" {
		return nil, ErrInvalidInput
	}
	if email == user.Email {
		return user, nil
	}
	if other, err := s.users.GetUserByEmail(ctx, email); err == nil && other.ID != user.ID {
		return nil, ErrDuplicateEmail
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	user.Email = email
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("profile updated", "user_id", user.ID)
	return user, nil
}

// ChangePassword replaces the password once current verifies against the stored hash.
func (s Service) ChangePassword(ctx context.Context, actor *domain.User, current, next string) error {
	user, err := s.reload(ctx, actor)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		s.logger.Info("password change rejected", "user_id", user.ID)
		return ErrWrongCurrentPassword
	}
	if next == "" {
		return ErrInvalidInput
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("password changed", "user_id", user.ID)
	return nil
}
