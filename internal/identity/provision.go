package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
)

// SeedAccount describes an account the provisioning pass guarantees exists.
type SeedAccount struct {
	Email    string
	Name     string
	Password string
	Approved bool
	Role     rbac.Role
}

// Provision runs the idempotent bootstrap sequence: ensure both roles exist,
// then ensure each seed account exists with its role assigned. Safe to run
// on every process start; existing records are left untouched.
func (s *Service) Provision(ctx context.Context, seeds []SeedAccount) error {
	for _, role := range []rbac.Role{rbac.RoleAdmin, rbac.RoleContributor} {
		if err := s.EnsureRole(ctx, role); err != nil {
			return err
		}
	}

	for _, seed := range seeds {
		if err := s.ensureAccount(ctx, seed); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ensureAccount(ctx context.Context, seed SeedAccount) error {
	account, err := s.FindByEmail(ctx, seed.Email)
	switch {
	case err == nil:
		// Already provisioned; only make sure the role link exists.
		return s.AssignRole(ctx, account.ID, seed.Role)
	case errors.Is(err, shared.ErrNotFound):
		account, err = s.CreateAccount(ctx, seed.Email, seed.Name, seed.Password, seed.Approved)
		if err != nil {
			return err
		}
		if s.logger != nil {
			s.logger.Info("provisioned seed account", slog.String("email", account.Email), slog.String("role", string(seed.Role)))
		}
		return s.AssignRole(ctx, account.ID, seed.Role)
	default:
		return err
	}
}
