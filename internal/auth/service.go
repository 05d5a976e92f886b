package auth

import (
	"context"
	"time"

	"github.com/inkwell-press/inkwell/internal/identity"
	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/shared"
)

// Directory is the account store sign-in authenticates against.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*identity.Account, error)
	VerifyCredentials(account *identity.Account, password string) bool
	Register(ctx context.Context, email, name, password string) (*identity.Account, error)
}

// Service wraps authentication business rules.
type Service struct {
	directory Directory
	repo      Repository
}

// NewService constructs a new Service.
func NewService(directory Directory, repo Repository) *Service {
	return &Service{directory: directory, repo: repo}
}

// SignIn validates email/password credentials. An unknown email and a wrong
// password are indistinguishable to the caller; approval is only reported
// after the credentials themselves check out.
func (s *Service) SignIn(ctx context.Context, email, password string) (*identity.Account, error) {
	account, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !s.directory.VerifyCredentials(account, password) {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.Approved {
		return nil, httpx.ErrUnapproved
	}
	return account, nil
}

// Register creates an unapproved contributor account.
func (s *Service) Register(ctx context.Context, email, name, password string) (*identity.Account, error) {
	return s.directory.Register(ctx, email, name, password)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, accountID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
