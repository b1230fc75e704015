package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
)

const userColumns = `id, email, name, role, active, created_at, updated_at, version`

func scanUser(row interface{ Scan(...any) error }, user *models.User) error {
	return row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
}

func (s *Queries) CreateUser(ctx context.Context, email, name string, role models.Role) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, name, role, active, created_at, updated_at, version)
		VALUES ($1, $2, $3, TRUE, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	if err := scanUser(s.q.QueryRowContext(ctx, query, email, name, role), user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create user %s: %w", email, database.ErrDuplicateName)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (s *Queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := scanUser(s.q.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func (s *Queries) CountUsersSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE created_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count users since %s: %w", since.Format(time.RFC3339), err)
	}
	return n, nil
}
