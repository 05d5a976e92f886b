package articles

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/shared"
)

// Repository defines persistence operations for the article catalog.
// Update and Delete fail with httpx.ErrConflict when the row changed since
// it was read; callers re-check existence on that path.
type Repository interface {
	List(ctx context.Context) ([]Article, error)
	Find(ctx context.Context, id int64) (*Article, error)
	Insert(ctx context.Context, article *Article) (int64, error)
	Update(ctx context.Context, article *Article) error
	Delete(ctx context.Context, article *Article) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const articleColumns = `id, title, body, owner_email, created_at, start_date, end_date, updated_at`

// List returns the full catalog in insertion order.
func (r *PGRepository) List(ctx context.Context) ([]Article, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var catalog []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.OwnerEmail, &a.CreatedAt, &a.StartDate, &a.EndDate, &a.UpdatedAt); err != nil {
			return nil, err
		}
		catalog = append(catalog, a)
	}
	return catalog, rows.Err()
}

// Find fetches a single article.
func (r *PGRepository) Find(ctx context.Context, id int64) (*Article, error) {
	var a Article
	err := r.pool.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id).
		Scan(&a.ID, &a.Title, &a.Body, &a.OwnerEmail, &a.CreatedAt, &a.StartDate, &a.EndDate, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Insert persists a new article and returns its ID.
func (r *PGRepository) Insert(ctx context.Context, article *Article) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO articles (title, body, owner_email, created_at, start_date, end_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		article.Title, article.Body, article.OwnerEmail, article.CreatedAt, article.StartDate, article.EndDate, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	article.ID = id
	article.UpdatedAt = now
	return id, nil
}

// Update writes title, body and window guarded by the optimistic token read
// with the article.
func (r *PGRepository) Update(ctx context.Context, article *Article) error {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx,
		`UPDATE articles SET title = $1, body = $2, start_date = $3, end_date = $4, updated_at = $5
		 WHERE id = $6 AND updated_at = $7`,
		article.Title, article.Body, article.StartDate, article.EndDate, now, article.ID, article.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrConflict
	}
	article.UpdatedAt = now
	return nil
}

// Delete removes the article permanently, guarded by the optimistic token.
func (r *PGRepository) Delete(ctx context.Context, article *Article) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM articles WHERE id = $1 AND updated_at = $2`,
		article.ID, article.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrConflict
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
