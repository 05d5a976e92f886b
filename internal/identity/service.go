package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
)

// Service wraps account and role business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register creates an unapproved account and assigns the Contributor role.
// The role record is ensured before assignment so the operation never half
// applies.
func (s *Service) Register(ctx context.Context, email, name, password string) (*Account, error) {
	account, err := s.CreateAccount(ctx, email, name, password, false)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureRole(ctx, rbac.RoleContributor); err != nil {
		return nil, err
	}
	if err := s.AssignRole(ctx, account.ID, rbac.RoleContributor); err != nil {
		return nil, err
	}
	return account, nil
}

// CreateAccount hashes the password and persists a new account. The hash is
// the only credential material that ever leaves this function.
func (s *Service) CreateAccount(ctx context.Context, email, name, password string, approved bool) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, &OperationError{Reasons: []string{"email and password are required"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Approved:     approved,
	}
	id, err := s.repo.InsertAccount(ctx, account)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, &OperationError{Reasons: []string{"email already registered"}}
		}
		return nil, err
	}
	account.ID = id
	return account, nil
}

// VerifyCredentials compares the password against the stored hash.
func (s *Service) VerifyCredentials(account *Account, password string) bool {
	if account == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) == nil
}

// FindByEmail fetches an account by its identifier.
func (s *Service) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// DisplayName resolves an account email to the holder's display name,
// falling back to the email itself when no name was captured.
func (s *Service) DisplayName(ctx context.Context, email string) (string, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if account.Name == "" {
		return account.Email, nil
	}
	return account.Name, nil
}

// FindByID fetches an account by primary key.
func (s *Service) FindByID(ctx context.Context, id int64) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}

// EnsureRole creates the role record when it does not exist yet.
func (s *Service) EnsureRole(ctx context.Context, role rbac.Role) error {
	exists, err := s.repo.RoleExists(ctx, string(role))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.repo.CreateRole(ctx, string(role))
}

// AssignRole links an account to a role from the closed enumeration.
func (s *Service) AssignRole(ctx context.Context, accountID int64, role rbac.Role) error {
	return s.repo.AssignRole(ctx, accountID, string(role))
}

// RolesOf returns the account's roles. Stored names outside the closed
// enumeration are logged and skipped rather than granted.
func (s *Service) RolesOf(ctx context.Context, accountID int64) (rbac.RoleSet, error) {
	names, err := s.repo.RoleNames(ctx, accountID)
	if err != nil {
		return nil, err
	}
	set := make(rbac.RoleSet, len(names))
	for _, name := range names {
		role, err := rbac.ParseRole(name)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping unknown role", slog.String("role", name), slog.Int64("account_id", accountID))
			}
			continue
		}
		set[role] = struct{}{}
	}
	return set, nil
}

// ResolvePrincipal builds the decision-time snapshot for a user.
func (s *Service) ResolvePrincipal(ctx context.Context, userID int64) (*rbac.Principal, error) {
	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.RolesOf(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &rbac.Principal{
		ID:       account.ID,
		Email:    account.Email,
		Approved: account.Approved,
		Roles:    roles,
	}, nil
}

// ListUnapproved returns accounts awaiting approval.
func (s *Service) ListUnapproved(ctx context.Context, page, perPage int) ([]Account, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	accounts, total, err := s.repo.ListUnapproved(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return accounts, shared.NewPagination(page, perPage, total), nil
}

// Approve marks an account as cleared to sign in.
func (s *Service) Approve(ctx context.Context, id int64) error {
	return s.repo.Approve(ctx, id)
}

var _ rbac.PrincipalResolver = (*Service)(nil)
