package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/storage"
)

// UserService handles account management.
type UserService struct {
	store  storage.Store
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(store storage.Store, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{store: store, logger: logger}
}

// RegisterRequest contains parameters for creating an account.
type RegisterRequest struct {
	Username string
	Password string
}

// RegisterResponse contains the result of creating an account.
type RegisterResponse struct {
	Username string
}

// Register creates a new account. The password is hashed before it
// reaches storage; the plaintext is never persisted. Returns
// ErrAlreadyExists when the username is taken.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	user, err := domain.NewUser(req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateUser(ctx, user.Username, user.PasswordHash); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "username", user.Username)

	return &RegisterResponse{Username: user.Username}, nil
}

// UserInfo represents account information without credential material.
type UserInfo struct {
	Username     string    `json:"username"`
	LastActivity time.Time `json:"last_activity"`
}

// List returns every account, without password hashes.
func (s *UserService) List(ctx context.Context) ([]UserInfo, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, UserInfo{
			Username:     u.Username,
			LastActivity: u.LastActivityTime(),
		})
	}
	return infos, nil
}

// Remove deletes an account and all of its reading progress.
func (s *UserService) Remove(ctx context.Context, username string) error {
	if err := s.store.RemoveUser(ctx, username); err != nil {
		return err
	}

	s.logger.Info("user removed", "username", username)
	return nil
}

// ResetPassword replaces the account's password.
func (s *UserService) ResetPassword(ctx context.Context, username, newPassword string) error {
	if newPassword == "" {
		return domain.ErrInvalidArgument.WithDetails("password must not be empty")
	}

	hash, err := domain.HashSecret(newPassword)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, username, hash); err != nil {
		return err
	}

	s.logger.Info("password reset", "username", username)
	return nil
}
