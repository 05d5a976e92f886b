package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-press/inkwell/internal/platform/db"
	"github.com/inkwell-press/inkwell/internal/shared"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// ErrDuplicateEmail indicates the email is already registered.
var ErrDuplicateEmail = errors.New("identity: email already registered")

// Repository defines persistence operations for identity.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	InsertAccount(ctx context.Context, account *Account) (int64, error)
	Approve(ctx context.Context, id int64) error
	ListUnapproved(ctx context.Context, limit, offset int) ([]Account, int, error)

	RoleExists(ctx context.Context, name string) (bool, error)
	CreateRole(ctx context.Context, name string) error
	AssignRole(ctx context.Context, accountID int64, name string) error
	RoleNames(ctx context.Context, accountID int64) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, email, name, password_hash, approved, created_at, updated_at`

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

// FindByID fetches an account by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Account, error) {
	return r.scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// InsertAccount persists a new account and returns its ID.
func (r *PGRepository) InsertAccount(ctx context.Context, account *Account) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (email, name, password_hash, approved, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		account.Email, account.Name, account.PasswordHash, account.Approved, now).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrDuplicateEmail
		}
		return 0, err
	}
	return id, nil
}

// Approve flips an account to approved. Unknown IDs report shared.ErrNotFound.
func (r *PGRepository) Approve(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET approved = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListUnapproved returns accounts still waiting for approval, oldest first.
func (r *PGRepository) ListUnapproved(ctx context.Context, limit, offset int) ([]Account, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM accounts WHERE NOT approved`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE NOT approved ORDER BY created_at ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Approved, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	return accounts, total, rows.Err()
}

// RoleExists reports whether a role record exists.
func (r *PGRepository) RoleExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// CreateRole inserts a role record. Creating an existing role is a no-op.
func (r *PGRepository) CreateRole(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	return err
}

// AssignRole links an account to a role, creating the role row inside the
// same transaction when it is missing. Re-assigning is a no-op.
func (r *PGRepository) AssignRole(ctx context.Context, accountID int64, name string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO account_roles (account_id, role_id)
			 SELECT $1, id FROM roles WHERE name = $2
			 ON CONFLICT DO NOTHING`, accountID, name)
		return err
	})
}

// RoleNames returns the role names assigned to an account.
func (r *PGRepository) RoleNames(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.name FROM roles r
		 JOIN account_roles ar ON ar.role_id = r.id
		 WHERE ar.account_id = $1 ORDER BY r.name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PGRepository) scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Approved, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

var _ Repository = (*PGRepository)(nil)
