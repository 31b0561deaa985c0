package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials намеренно один и тот же для неизвестного
	// email и неверного пароля — чтобы нельзя было перебирать аккаунты.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrBlocked            = errors.New("account is blocked")
	ErrInvalidInput       = errors.New("invalid user input")
)

type Service interface {
	Register(ctx context.Context, u *User, password string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateProfile(ctx context.Context, u *User) (*User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo       Repository
	bcryptCost int
}

// NewService создаёт сервис пользователей. Стоимость bcrypt приходит
// из конфигурации, а не читается в местах вызова.
func NewService(repo Repository, bcryptCost int) Service {
	return &service{
		repo:       repo,
		bcryptCost: bcryptCost,
	}
}

func (s *service) Register(ctx context.Context, u *User, password string) (*User, error) {
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Email = strings.TrimSpace(u.Email)
	u.Phone = strings.TrimSpace(u.Phone)

	if u.FirstName == "" {
		return nil, fmt.Errorf("%w: first_name must not be empty", ErrInvalidInput)
	}
	if u.LastName == "" {
		return nil, fmt.Errorf("%w: last_name must not be empty", ErrInvalidInput)
	}
	if u.Email == "" {
		return nil, fmt.Errorf("%w: email must not be empty", ErrInvalidInput)
	}
	if u.Phone == "" {
		return nil, fmt.Errorf("%w: phone must not be empty", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password must not be empty", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate password hash")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	// Регистрация создаёт только обычного покупателя
	u.IsAdmin = false
	u.IsBlocked = false

	if _, err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to create user: %w", err)
	}

	log.Info().Stringer("user_id", u.ID).Msg("service: user registered")
	return u, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to get user by email for login")
		return nil, fmt.Errorf("service: failed to authenticate: %w", err)
	}

	if u.IsBlocked {
		log.Warn().Stringer("user_id", u.ID).Msg("service: login attempt for blocked account")
		return nil, ErrBlocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user by id")
		return nil, fmt.Errorf("service: failed to get user by id '%s': %w", id, err)
	}

	return u, nil
}

func (s *service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list users")
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}

	return users, nil
}

func (s *service) UpdateProfile(ctx context.Context, u *User) (*User, error) {
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Email = strings.TrimSpace(u.Email)
	u.Phone = strings.TrimSpace(u.Phone)

	if u.FirstName == "" || u.LastName == "" || u.Email == "" || u.Phone == "" {
		return nil, fmt.Errorf("%w: all profile fields are required", ErrInvalidInput)
	}

	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to update profile")
		return nil, fmt.Errorf("service: failed to update profile for user '%s': %w", u.ID, err)
	}

	return s.repo.GetByID(ctx, u.ID)
}

// ChangePassword меняет пароль владельца аккаунта после проверки
// текущего пароля.
func (s *service) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password must not be empty", ErrInvalidInput)
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user for password change")
		return fmt.Errorf("service: failed to get user for password change: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate new password hash")
		return fmt.Errorf("service: failed to hash new password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to update password")
		return fmt.Errorf("service: failed to update password for user '%s': %w", id, err)
	}

	log.Info().Stringer("user_id", id).Msg("service: password changed")
	return nil
}

func (s *service) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	if err := s.repo.SetBlocked(ctx, id, blocked); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to set blocked flag")
		return fmt.Errorf("service: failed to set blocked for user '%s': %w", id, err)
	}

	log.Info().Stringer("user_id", id).Bool("blocked", blocked).Msg("service: user blocked flag updated")
	return nil
}

func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to delete user")
		return fmt.Errorf("service: failed to delete user by id '%s': %w", id, err)
	}

	log.Info().Stringer("user_id", id).Msg("service: user deleted")
	return nil
}
