package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// UserRepository reads the contact details used for notifications.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Get returns a user or ErrNotFound.
func (r *UserRepository) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email, phone, role, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Upsert creates or refreshes a user profile.
func (r *UserRepository) Upsert(ctx context.Context, u *model.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, name, email, phone, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone, role = EXCLUDED.role`,
		u.ID, u.Name, u.Email, u.Phone, u.Role, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

var userSortColumns = map[string]string{
	"":           "created_at",
	"created_at": "created_at",
	"name":       "name",
	"email":      "email",
}

// List pages through users, newest first unless f says otherwise. Search
// matches name or email, case-insensitively.
func (r *UserRepository) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	col, ok := userSortColumns[f.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("unknown sort column %q", f.SortBy)
	}
	var (
		clause string
		args   []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		clause = " WHERE name ILIKE $1 OR email ILIKE $1"
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.db.Query(ctx,
		`SELECT id, name, email, phone, role, created_at FROM users`+clause+
			fmt.Sprintf(" ORDER BY %s %s, id LIMIT $%d OFFSET $%d", col, dir, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}
